// Package store defines the shared playback state store that keeps every
// listener on the same track.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/llehouerou/syncradio/internal/playlist"
)

// Well-known document paths.
const (
	PathState  = "radio/state"
	PathTracks = "radio/tracks"
)

var (
	// ErrUnsupported is returned by backends that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by store")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Store is a hierarchical key-value store with change subscriptions.
//
// Documents are JSON values addressed by slash-separated paths.
type Store interface {
	// Get decodes the document at path into v. It reports false when the
	// document does not exist.
	Get(ctx context.Context, path string, v any) (bool, error)

	// Set replaces the document at path.
	Set(ctx context.Context, path string, v any) error

	// Update merges fields into the document at path, leaving other fields
	// untouched. A missing document is created from fields.
	Update(ctx context.Context, path string, fields map[string]any) error

	// CreateIfAbsent writes v only if no document exists at path. It reports
	// whether this call created the document.
	CreateIfAbsent(ctx context.Context, path string, v any) (bool, error)

	// Subscribe delivers the current value of path, then every change. The
	// channel holds only the latest snapshot and is closed when ctx is done,
	// the store is closed or the connection is lost.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, error)

	Close() error
}

// Snapshot is one observed value of a document.
type Snapshot struct {
	Path string
	// Data is nil when the document does not exist.
	Data json.RawMessage
}

// Exists reports whether the document was present.
func (s Snapshot) Exists() bool {
	return len(s.Data) > 0 && string(s.Data) != "null"
}

// Decode unmarshals the snapshot into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return fmt.Errorf("%s: no data", s.Path)
	}
	return json.Unmarshal(s.Data, v)
}

// PlaybackState is the shared document at PathState.
type PlaybackState struct {
	Tracks            []playlist.Track `json:"tracks,omitempty"`
	CurrentTrackIndex int              `json:"currentTrackIndex"`
	// StartTime is in milliseconds since the Unix epoch.
	StartTime int64 `json:"startTime"`
	IsPlaying bool  `json:"isPlaying"`
}

// AdvanceFields returns the partial update that moves playback to index.
// It never touches the track list.
func AdvanceFields(index int, startTime int64) map[string]any {
	return map[string]any{
		"currentTrackIndex": index,
		"startTime":         startTime,
	}
}
