package radio

import (
	"time"

	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/playlist"
)

// NowPlaying is emitted on every applied state, even when the track did not
// change.
type NowPlaying struct {
	Track     playlist.Track
	Index     int
	Total     int
	StartedAt time.Time
}

// StatusChange is emitted when the indicator changes.
type StatusChange struct {
	Previous Status
	Current  Status
}

// PlaylistChange is emitted when the local play order is replaced.
type PlaylistChange struct {
	Tracks []playlist.Track
	Source string // "manifest", "store", "state" or "shuffle"
}

// ErrorEvent reports a swallowed failure.
type ErrorEvent struct {
	Operation errmsg.Op
	Err       error
}
