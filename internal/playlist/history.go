package playlist

import "time"

// Play records a track that started playing.
type Play struct {
	Track     Track
	Index     int
	StartedAt time.Time
}

// PlayHistory keeps the most recently started tracks, newest last.
type PlayHistory struct {
	plays   []Play
	maxSize int
}

// NewPlayHistory creates a new history with the given maximum size.
func NewPlayHistory(maxSize int) *PlayHistory {
	return &PlayHistory{
		plays:   make([]Play, 0, maxSize),
		maxSize: maxSize,
	}
}

// Push records a play. Consecutive pushes of the same index and start time
// are collapsed, so re-applying an unchanged state does not duplicate entries.
func (h *PlayHistory) Push(p Play) {
	if n := len(h.plays); n > 0 {
		last := h.plays[n-1]
		if last.Index == p.Index && last.StartedAt.Equal(p.StartedAt) {
			return
		}
	}

	h.plays = append(h.plays, p)

	// Trim if over limit
	if len(h.plays) > h.maxSize {
		excess := len(h.plays) - h.maxSize
		h.plays = h.plays[excess:]
	}
}

// Recent returns up to n plays, newest first.
func (h *PlayHistory) Recent(n int) []Play {
	n = min(n, len(h.plays))
	result := make([]Play, 0, n)
	for i := len(h.plays) - 1; i >= len(h.plays)-n; i-- {
		result = append(result, h.plays[i])
	}
	return result
}

// Len returns the number of recorded plays.
func (h *PlayHistory) Len() int {
	return len(h.plays)
}
