package radio

import (
	"time"

	"github.com/llehouerou/syncradio/internal/playlist"
)

// View is a read-only snapshot for rendering.
type View struct {
	Status    Status
	Connected bool
	Tracks    []playlist.Track
	Index     int // -1 when nothing is selected
	Current   *playlist.Track
	StartedAt time.Time
	Position  time.Duration
	Duration  time.Duration // 0 when unknown
	Recent    []playlist.Play
}

// View returns the current snapshot. recent bounds the history length.
func (s *Synchronizer) View(recent int) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Status:    s.status,
		Connected: s.store != nil,
		Tracks:    s.queue.Tracks(),
		Index:     s.queue.CurrentIndex(),
		Position:  s.player.Position(),
		Recent:    s.history.Recent(recent),
	}
	if cur := s.queue.Current(); cur != nil {
		v.Current = cur
		v.StartedAt = time.UnixMilli(s.state.StartTime)
		d, ok := s.player.Duration()
		if !ok {
			d, _ = cur.DurationHint()
		}
		v.Duration = d
	}
	return v
}
