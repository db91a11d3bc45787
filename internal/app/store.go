package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/llehouerou/syncradio/internal/config"
	"github.com/llehouerou/syncradio/internal/discovery"
	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/store"
	"github.com/llehouerou/syncradio/internal/store/memory"
	"github.com/llehouerou/syncradio/internal/store/postgres"
	"github.com/llehouerou/syncradio/internal/store/rtdb"
	"github.com/llehouerou/syncradio/internal/store/sqlite"
	"github.com/llehouerou/syncradio/internal/store/wsrelay"
)

// ErrUnknownScheme is returned for a store URL no backend understands.
var ErrUnknownScheme = errors.New("unsupported store URL scheme")

// OpenStore connects the backend selected by the URL scheme. An empty URL
// returns a nil store: the client runs offline.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("store url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "memory":
		return memory.New(), nil

	case "sqlite":
		path, err := sqlitePath(u)
		if err != nil {
			return nil, err
		}
		logger.Info("opening sqlite store", "path", path)
		s, err := sqlite.Open(path, cfg.PollInterval, logger)
		if err != nil {
			return nil, err
		}
		return s, nil

	case "postgres", "postgresql":
		s, err := postgres.Open(ctx, raw, logger)
		if err != nil {
			return nil, err
		}
		return s, nil

	case "http", "https":
		s, err := rtdb.New(rtdb.Options{
			BaseURL: raw,
			Auth:    cfg.Auth,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case "ws", "wss":
		return wsrelay.New(wsrelay.Options{URL: raw, Timeout: cfg.Timeout, Logger: logger}), nil

	case "mdns":
		relay, err := discovery.First(ctx, discovery.DefaultTimeout)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errmsg.OpRelayDiscover, err)
		}
		logger.Info("discovered relay", "name", relay.Name, "url", relay.URL())
		return wsrelay.New(wsrelay.Options{URL: relay.URL(), Timeout: cfg.Timeout, Logger: logger}), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
}

// sqlitePath maps sqlite:///abs/radio.db, sqlite://rel/radio.db and
// sqlite:// (default location) to a file path.
func sqlitePath(u *url.URL) (string, error) {
	p := u.Host + u.Path
	if u.Opaque != "" {
		p = u.Opaque
	}
	if p == "" {
		return sqlite.DefaultPath()
	}
	if p == ":memory:" {
		return p, nil
	}
	return filepath.FromSlash(p), nil
}
