package playlist

// PlayingQueue wraps a Playlist with the index of the current track.
// Advancing past the last track wraps to the first.
type PlayingQueue struct {
	playlist     *Playlist
	currentIndex int // -1 if nothing selected
}

// NewQueue creates a new empty playing queue.
func NewQueue() *PlayingQueue {
	return &PlayingQueue{
		playlist:     NewPlaylist(),
		currentIndex: -1,
	}
}

// Playlist returns the underlying playlist.
func (q *PlayingQueue) Playlist() *Playlist {
	return q.playlist
}

// Current returns the current track, or nil if none.
func (q *PlayingQueue) Current() *Track {
	return q.playlist.Track(q.currentIndex)
}

// CurrentIndex returns the index of the current track (-1 if none).
func (q *PlayingQueue) CurrentIndex() int {
	return q.currentIndex
}

// NextIndex returns the index that follows the current one, wrapping to 0
// after the last track. Returns -1 for an empty queue.
func (q *PlayingQueue) NextIndex() int {
	n := q.playlist.Len()
	if n == 0 {
		return -1
	}
	if q.currentIndex < 0 {
		return 0
	}
	return (q.currentIndex + 1) % n
}

// Advance moves to the next track, wrapping around. wrapped is true when the
// queue went from the last track back to the first.
func (q *PlayingQueue) Advance() (track *Track, wrapped bool) {
	next := q.NextIndex()
	if next < 0 {
		return nil, false
	}
	wrapped = q.currentIndex >= 0 && next <= q.currentIndex
	q.currentIndex = next
	return q.Current(), wrapped
}

// JumpTo sets the current index to the specified position.
// Returns the track at that position, or nil if invalid.
func (q *PlayingQueue) JumpTo(index int) *Track {
	if index < 0 || index >= q.playlist.Len() {
		return nil
	}
	q.currentIndex = index
	return q.Current()
}

// Clamp maps an index into the valid range. ok is false if the index had to
// be adjusted or the queue is empty.
func (q *PlayingQueue) Clamp(index int) (clamped int, ok bool) {
	n := q.playlist.Len()
	switch {
	case n == 0:
		return -1, false
	case index < 0:
		return 0, false
	case index >= n:
		return n - 1, false
	default:
		return index, true
	}
}

// Replace swaps the playlist and selects the first track.
// Returns the first track to play.
func (q *PlayingQueue) Replace(tracks ...Track) *Track {
	q.playlist = NewPlaylist(tracks...)
	q.currentIndex = -1
	if len(tracks) == 0 {
		return nil
	}
	q.currentIndex = 0
	return q.Current()
}

// SetPlaylist swaps the playlist and keeps the current index when it is still
// valid.
func (q *PlayingQueue) SetPlaylist(p *Playlist) {
	q.playlist = p
	if q.currentIndex >= p.Len() {
		q.currentIndex = p.Len() - 1
	}
}

// Tracks returns all tracks in the queue.
func (q *PlayingQueue) Tracks() []Track {
	return q.playlist.Tracks()
}

// Len returns the number of tracks in the queue.
func (q *PlayingQueue) Len() int {
	return q.playlist.Len()
}

// IsEmpty returns true if the queue has no tracks.
func (q *PlayingQueue) IsEmpty() bool {
	return q.playlist.Len() == 0
}
