package playlist

import (
	"slices"
	"time"
)

// Track is one entry of the shared play order. Field names follow the
// manifest and store JSON.
type Track struct {
	Title      string `json:"title" yaml:"title"`
	File       string `json:"file" yaml:"file"`
	Cover      string `json:"cover,omitempty" yaml:"cover,omitempty"`
	SelectedBy string `json:"selectedBy,omitempty" yaml:"selectedBy,omitempty"`

	Artist   string  `json:"artist,omitempty" yaml:"artist,omitempty"`
	Album    string  `json:"album,omitempty" yaml:"album,omitempty"`
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"` // seconds, 0 if unknown
}

// DurationHint returns the duration carried by the manifest, if any.
func (t Track) DurationHint() (time.Duration, bool) {
	if t.Duration <= 0 {
		return 0, false
	}
	return time.Duration(t.Duration * float64(time.Second)), true
}

// Playlist holds an ordered collection of tracks. The order defines index
// addressing for the shared playback state.
type Playlist struct {
	tracks []Track
}

// NewPlaylist creates a playlist holding a copy of tracks.
func NewPlaylist(tracks ...Track) *Playlist {
	return &Playlist{
		tracks: slices.Clone(tracks),
	}
}

// Add appends tracks to the playlist.
func (p *Playlist) Add(tracks ...Track) {
	p.tracks = append(p.tracks, tracks...)
}

// Tracks returns a copy of all tracks.
func (p *Playlist) Tracks() []Track {
	result := make([]Track, p.Len())
	if p == nil {
		return result
	}
	copy(result, p.tracks)
	return result
}

// Track returns the track at the given index, or nil if out of bounds.
func (p *Playlist) Track(index int) *Track {
	if index < 0 || index >= p.Len() {
		return nil
	}
	t := p.tracks[index]
	return &t
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.tracks)
}

// IsEmpty returns true if the playlist has no tracks.
func (p *Playlist) IsEmpty() bool {
	return p.Len() == 0
}

// Equal reports whether both playlists hold the same tracks in the same order.
func (p *Playlist) Equal(other *Playlist) bool {
	if p == nil || other == nil {
		return p.Len() == other.Len()
	}
	return slices.Equal(p.tracks, other.tracks)
}
