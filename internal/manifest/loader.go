// Package manifest loads the track list that defines the shared play order
// and builds one from a folder of audio files.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/llehouerou/syncradio/internal/playlist"
)

// ErrNoManifest is returned when no manifest location is configured.
var ErrNoManifest = errors.New("no track list configured")

// Reader fetches a manifest by URL.
type Reader interface {
	ReadAll(ctx context.Context, ref string) ([]byte, error)
}

// Loader fetches, validates and normalizes a manifest.
type Loader struct {
	reader     Reader
	url        string
	normalizer *playlist.Normalizer
	logger     *slog.Logger
}

// NewLoader creates a loader for manifestURL. Relative entries resolve
// against baseURL, or against the manifest's own location when baseURL is
// empty.
func NewLoader(r Reader, manifestURL, baseURL string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" && manifestURL != "" {
		baseURL = locationOf(manifestURL)
	}
	n, err := playlist.NewNormalizer(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &Loader{reader: r, url: manifestURL, normalizer: n, logger: logger}, nil
}

// Load returns the playlist. On any fetch or parse error it returns an empty
// playlist together with the error, so callers can degrade to showing no
// tracks.
func (l *Loader) Load(ctx context.Context) (*playlist.Playlist, error) {
	if l.url == "" {
		return playlist.NewPlaylist(), ErrNoManifest
	}

	data, err := l.reader.ReadAll(ctx, l.url)
	if err != nil {
		return playlist.NewPlaylist(), err
	}

	tracks, err := Decode(data, l.url)
	if err != nil {
		return playlist.NewPlaylist(), fmt.Errorf("parse %s: %w", l.url, err)
	}

	valid, dropped := playlist.Validate(tracks)
	if dropped > 0 {
		l.logger.Warn("dropped invalid track list entries", "count", dropped, "manifest", l.url)
	}
	return playlist.NewPlaylist(l.normalizer.Tracks(valid)...), nil
}

// Normalizer returns the normalizer applied to loaded tracks.
func (l *Loader) Normalizer() *playlist.Normalizer {
	return l.normalizer
}

// Decode parses a manifest: a JSON array of tracks, a JSON object with a
// "tracks" array, or the YAML equivalents. name selects YAML by extension;
// otherwise JSON is tried first.
func Decode(data []byte, name string) ([]playlist.Track, error) {
	ext := strings.ToLower(path.Ext(stripQuery(name)))
	if ext == ".yaml" || ext == ".yml" {
		return decodeYAML(data)
	}

	tracks, err := decodeJSON(data)
	if err == nil || ext == ".json" {
		return tracks, err
	}
	if yamlTracks, yamlErr := decodeYAML(data); yamlErr == nil {
		return yamlTracks, nil
	}
	return nil, err
}

type wrapped struct {
	Tracks []playlist.Track `json:"tracks" yaml:"tracks"`
}

func decodeJSON(data []byte) ([]playlist.Track, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var w wrapped
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return w.Tracks, nil
	}
	var tracks []playlist.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func decodeYAML(data []byte) ([]playlist.Track, error) {
	var tracks []playlist.Track
	if err := yaml.Unmarshal(data, &tracks); err == nil {
		return tracks, nil
	}
	var w wrapped
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return w.Tracks, nil
}

// Encode writes tracks as an indented JSON array.
func Encode(w io.Writer, tracks []playlist.Track) error {
	if tracks == nil {
		tracks = []playlist.Track{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(tracks)
}

// locationOf returns the directory URL containing ref.
func locationOf(ref string) string {
	if playlist.HasScheme(ref) {
		u, err := url.Parse(ref)
		if err != nil {
			return ""
		}
		u.RawQuery = ""
		u.Fragment = ""
		u.Path = path.Dir(u.Path) + "/"
		return u.String()
	}
	dir, err := filepath.Abs(filepath.Dir(ref))
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dir) + "/"}).String()
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}
