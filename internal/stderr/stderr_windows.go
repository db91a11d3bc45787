//go:build windows

// Package stderr is a no-op on Windows, where the audio backend does not
// write to fd 2.
package stderr

import (
	"context"
	"log/slog"
	"os"
)

// Start is a no-op on Windows.
func Start() error {
	return nil
}

// WriteOriginal writes to stderr.
func WriteOriginal(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

// Stop is a no-op on Windows.
func Stop() {}

// Forward waits for ctx; nothing is captured.
func Forward(ctx context.Context, _ *slog.Logger) {
	<-ctx.Done()
}
