//go:build windows

package app

import (
	"context"
	"log/slog"
)

type resyncer interface {
	Resync(ctx context.Context) error
}

// watchResync is a no-op: there is no SIGUSR1 on Windows.
func watchResync(context.Context, resyncer, *slog.Logger) {}
