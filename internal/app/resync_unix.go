//go:build !windows

package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type resyncer interface {
	Resync(ctx context.Context) error
}

// watchResync resyncs on SIGUSR1 until ctx is done.
func watchResync(ctx context.Context, r resyncer, logger *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				logger.Info("resync requested by signal")
				rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := r.Resync(rctx); err != nil {
					logger.Warn("resync failed", "error", err)
				}
				cancel()
			}
		}
	}()
}
