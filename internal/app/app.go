// Package app wires the listener client: configuration, shared store,
// track list, audio output and the terminal screen.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/syncradio/internal/cache"
	"github.com/llehouerou/syncradio/internal/config"
	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/fetch"
	"github.com/llehouerou/syncradio/internal/logging"
	"github.com/llehouerou/syncradio/internal/manifest"
	"github.com/llehouerou/syncradio/internal/notify"
	"github.com/llehouerou/syncradio/internal/player"
	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/radio"
	"github.com/llehouerou/syncradio/internal/stderr"
	"github.com/llehouerou/syncradio/internal/ui/nowplaying"
)

// Options controls how the client runs.
type Options struct {
	// Headless plays without the terminal screen and logs to Output.
	Headless bool
	Station  string
	// Output receives headless logs and the prefetch progress bar
	// (default: stderr).
	Output io.Writer
	// Player replaces the speaker output.
	Player player.Interface
}

// Run plays the radio until ctx is done or the listener quits. Store and
// track list problems are logged and the client keeps playing what it can.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	logger, closeLog := openLogger(cfg.Log, opts.Headless, out)
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clientCfg := cfg.GetClientConfig()
	storeCfg := cfg.GetStoreConfig()

	fetcher := fetch.New(fetch.Options{GCSCredentialsFile: cfg.GCS.CredentialsFile})
	defer fetcher.Close()

	pl := loadPlaylist(ctx, fetcher, cfg.Manifest, logger)

	trackCache, err := cache.New(clientCfg.CacheDir, fetcher, logger)
	if err != nil {
		return fmt.Errorf("track cache: %w", err)
	}
	if clientCfg.Prefetch && !pl.IsEmpty() {
		if failed := trackCache.Prefetch(ctx, pl.Tracks(), out); failed > 0 {
			logger.Warn("some tracks could not be cached", "failed", failed)
		}
	}

	p := opts.Player
	if p == nil {
		p = player.New(player.Options{
			Resolver:       trackCache,
			RequireGesture: *clientCfg.RequireGesture && !opts.Headless,
			Logger:         logger,
		})
	}
	defer p.Stop()

	st, err := OpenStore(ctx, storeCfg, logger)
	if err != nil {
		logger.Error(errmsg.Format(errmsg.OpStoreOpen, err), "url", storeCfg.URL)
		st = nil
	}
	if st != nil {
		defer st.Close()
	} else {
		logger.Info("no shared store, playing locally")
	}

	s := radio.New(radio.Options{
		Player:       p,
		Store:        st,
		Playlist:     pl,
		Mode:         clientCfg.Mode,
		ReadyTimeout: clientCfg.ReadyTimeout,
		StoreTimeout: storeCfg.Timeout,
		Logger:       logger,
	})
	defer s.Close()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if clientCfg.Notify {
		b, err := notify.New()
		if err != nil {
			logger.Debug("desktop notifications off", "error", err)
		}
		tn := notify.NewNotifier(b, trackCache, logger)
		sub := s.Subscribe()
		wg.Go(func() {
			tn.Run(ctx, sub)
			if err := tn.Close(); err != nil {
				logger.Debug("dismiss notification", "error", err)
			}
		})
	}

	watchResync(ctx, s, logger)

	if st == nil {
		if err := s.Bootstrap(ctx); err != nil {
			logger.Warn("offline start failed", "error", err)
		}
	}
	wg.Go(func() {
		if err := s.Run(ctx); err != nil {
			logger.Error("synchronizer stopped", "error", err)
		}
	})

	if opts.Headless {
		logger.Info("playing", "tracks", pl.Len(), "connected", st != nil)
		<-ctx.Done()
		return nil
	}
	return runScreen(ctx, s, opts.Station, logger)
}

func runScreen(ctx context.Context, s *radio.Synchronizer, station string, logger *slog.Logger) error {
	// Audio backends write to fd 2; keep that off the screen.
	if err := stderr.Start(); err != nil {
		logger.Debug("stderr capture unavailable", "error", err)
	}
	defer stderr.Stop()
	go stderr.Forward(ctx, logger)

	model := nowplaying.New(nowplaying.Options{
		Radio:        s,
		Subscription: s.Subscribe(),
		Station:      station,
	})
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

// loadPlaylist returns the manifest tracks, or an empty playlist when the
// manifest is missing or broken.
func loadPlaylist(ctx context.Context, r manifest.Reader, cfg config.ManifestConfig, logger *slog.Logger) *playlist.Playlist {
	loader, err := manifest.NewLoader(r, cfg.URL, cfg.BaseURL, logger)
	if err != nil {
		logger.Error(errmsg.Format(errmsg.OpManifestLoad, err))
		return playlist.NewPlaylist()
	}
	pl, err := loader.Load(ctx)
	switch {
	case errors.Is(err, manifest.ErrNoManifest):
		logger.Info("no track list configured, waiting for the shared one")
	case err != nil:
		logger.Error(errmsg.FormatWith(errmsg.OpManifestLoad, cfg.URL, err))
	default:
		logger.Info("track list loaded", "tracks", pl.Len(), "url", cfg.URL)
	}
	return pl
}

// openLogger logs to out in headless mode and to a file under the screen.
func openLogger(cfg config.LogConfig, headless bool, out io.Writer) (*slog.Logger, func()) {
	if headless {
		logger := logging.New(out, cfg)
		slog.SetDefault(logger)
		return logger, func() {}
	}
	logger, closer, err := logging.OpenFile(cfg)
	if err != nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return logger, func() {}
	}
	slog.SetDefault(logger)
	return logger, func() { _ = closer.Close() }
}
