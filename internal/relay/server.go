package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/llehouerou/syncradio/internal/playlist"
)

const defaultLibraryTTL = 3 * time.Second

// LibraryFunc lists the tracks available on the server.
type LibraryFunc func(ctx context.Context) ([]playlist.Track, error)

// ServerOptions configures the HTTP surface.
type ServerOptions struct {
	// MusicDir and ArtDir are served under /music/ and /album-art/ when set.
	MusicDir string
	ArtDir   string
	// Library backs /api/tracks. Defaults to the hub's track list.
	Library    LibraryFunc
	LibraryTTL time.Duration
	Logger     *slog.Logger
}

// Server exposes a Hub over HTTP.
type Server struct {
	hub    *Hub
	opts   ServerOptions
	logger *slog.Logger
	router chi.Router

	libMu      sync.Mutex
	libTracks  []playlist.Track
	libExpires time.Time
}

// NewServer builds the router for hub.
func NewServer(hub *Hub, opts ServerOptions) *Server {
	if opts.LibraryTTL <= 0 {
		opts.LibraryTTL = defaultLibraryTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = hub.logger
	}
	s := &Server{hub: hub, opts: opts, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.serveWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/next", s.handleNext)
		r.Post("/resync", s.handleResync)
		r.Get("/tracks", s.handleTracks)
	})

	if s.opts.MusicDir != "" {
		r.Handle("/music/*", http.StripPrefix("/music/", http.FileServer(http.Dir(s.opts.MusicDir))))
	}
	if s.opts.ArtDir != "" {
		r.Handle("/album-art/*", http.StripPrefix("/album-art/", http.FileServer(http.Dir(s.opts.ArtDir))))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) hubError(w http.ResponseWriter, err error) {
	s.logger.Warn("hub unavailable", "error", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.hub.Stats(r.Context())
	if err != nil {
		s.hubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": stats.Clients,
		"tracks":  len(stats.State.Tracks),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	stats, err := s.hub.Stats(r.Context())
	if err != nil {
		s.hubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.State)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	st, err := s.hub.Next(r.Context())
	if err != nil {
		s.hubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	st, err := s.hub.Resync(r.Context())
	if err != nil {
		s.hubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.library(r.Context())
	if err != nil {
		s.logger.Warn("library listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if tracks == nil {
		tracks = []playlist.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// library returns the cached listing, refreshing it after LibraryTTL.
func (s *Server) library(ctx context.Context) ([]playlist.Track, error) {
	if s.opts.Library == nil {
		stats, err := s.hub.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return stats.State.Tracks, nil
	}

	s.libMu.Lock()
	defer s.libMu.Unlock()
	if s.libTracks != nil && time.Now().Before(s.libExpires) {
		return s.libTracks, nil
	}
	tracks, err := s.opts.Library(ctx)
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []playlist.Track{}
	}
	s.libTracks = tracks
	s.libExpires = time.Now().Add(s.opts.LibraryTTL)
	return tracks, nil
}
