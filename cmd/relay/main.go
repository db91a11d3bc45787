// Command syncradio-relay is the fallback relay: it keeps the playback state
// in memory, fans it out over websockets and serves the local music folder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/llehouerou/syncradio/internal/config"
	"github.com/llehouerou/syncradio/internal/discovery"
	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/fetch"
	"github.com/llehouerou/syncradio/internal/logging"
	"github.com/llehouerou/syncradio/internal/manifest"
	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/relay"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpConfigLoad, err))
		return 1
	}
	rc := cfg.GetRelayConfig()

	flag.IntVar(&rc.Port, "port", rc.Port, "listen port")
	flag.StringVar(&rc.Host, "host", rc.Host, "listen address")
	flag.StringVar(&rc.MusicDir, "music", rc.MusicDir, "music folder served under /music/")
	flag.StringVar(&rc.ArtDir, "art", rc.ArtDir, "cover art folder served under /album-art/")
	flag.StringVar(&rc.Manifest, "manifest", rc.Manifest, "track list (scans -music when empty)")
	flag.StringVar(&rc.PublicURL, "public-url", rc.PublicURL, "base URL for track links handed to clients")
	flag.BoolVar(&rc.AutoAdvance, "auto-advance", rc.AutoAdvance, "advance when a track's known duration elapses")
	flag.BoolVar(&rc.MDNS, "mdns", rc.MDNS, "advertise on the local network")
	flag.Parse()

	logger := logging.New(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.New(fetch.Options{GCSCredentialsFile: cfg.GCS.CredentialsFile})
	defer fetcher.Close()

	library := libraryFunc(rc, logger)
	tracks := initialTracks(ctx, rc, fetcher, library, logger)

	hub := relay.NewHub(relay.HubOptions{
		Tracks:      tracks,
		AutoAdvance: rc.AutoAdvance,
		Logger:      logger,
	})
	go hub.Run(ctx)

	srv := relay.NewServer(hub, relay.ServerOptions{
		MusicDir: existingDir(rc.MusicDir),
		ArtDir:   existingDir(rc.ArtDir),
		Library:  library,
		Logger:   logger,
	})

	ln, err := net.Listen("tcp", rc.Addr())
	if err != nil {
		logger.Error(errmsg.Format(errmsg.OpRelayListen, err), "addr", rc.Addr())
		return 1
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if rc.MDNS {
		port := rc.Port
		if addr, ok := ln.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
		adv, err := discovery.Advertise(rc.Name, port, logger)
		if err != nil {
			logger.Warn(errmsg.Format(errmsg.OpRelayAdvertise, err))
		} else {
			defer adv.Close()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", ln.Addr().String(), "tracks", len(tracks))
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("relay stopped", "error", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}
	return 0
}

// libraryFunc scans the music folder and returns tracks whose links point at
// this relay (or at public_url).
func libraryFunc(rc config.RelayConfig, logger *slog.Logger) relay.LibraryFunc {
	return func(context.Context) ([]playlist.Track, error) {
		tracks, err := manifest.Build(manifest.BuildOptions{
			MusicDir: rc.MusicDir,
			ArtDir:   rc.ArtDir,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		n, err := playlist.NewNormalizer(rc.PublicURL)
		if err != nil {
			return nil, err
		}
		return n.Tracks(tracks), nil
	}
}

// initialTracks loads the configured track list, falling back to a scan of
// the music folder. Failures leave the relay with an empty playlist.
func initialTracks(ctx context.Context, rc config.RelayConfig, r manifest.Reader, library relay.LibraryFunc, logger *slog.Logger) []playlist.Track {
	if rc.Manifest != "" {
		loader, err := manifest.NewLoader(r, rc.Manifest, rc.PublicURL, logger)
		if err == nil {
			var pl *playlist.Playlist
			if pl, err = loader.Load(ctx); err == nil {
				return pl.Tracks()
			}
		}
		logger.Error(errmsg.FormatWith(errmsg.OpManifestLoad, rc.Manifest, err))
		return nil
	}

	tracks, err := library(ctx)
	if err != nil {
		logger.Error(errmsg.FormatWith(errmsg.OpManifestBuild, rc.MusicDir, err))
		return nil
	}
	if len(tracks) == 0 {
		logger.Warn("no audio files found", "dir", rc.MusicDir)
	}
	logger.Info("scanned music folder", "dir", rc.MusicDir, "tracks", len(tracks))
	return tracks
}

func existingDir(dir string) string {
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}
