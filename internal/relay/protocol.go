package relay

import (
	"time"

	"github.com/llehouerou/syncradio/internal/store"
)

// Message types.
const (
	MsgState = "state" // server to client
	MsgNext  = "next"  // client to server
	MsgSync  = "sync"  // client to server
)

// Connection timing shared by the server and the client.
const (
	WriteWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	PingPeriod = 30 * time.Second
)

// Command is a client request.
type Command struct {
	Type string `json:"type"`
	// CurrentTrackIndex is the index a "next" moves to. A "next" whose
	// target is not the track after the current one is a late report of a
	// track end already handled and is ignored. Without it, "next" always
	// advances.
	CurrentTrackIndex *int `json:"currentTrackIndex,omitempty"`
}

// NextTo returns a "next" command that only advances to index.
func NextTo(index int) Command {
	return Command{Type: MsgNext, CurrentTrackIndex: &index}
}

// StateMessage carries the full playback state to clients.
type StateMessage struct {
	Type string `json:"type"`
	store.PlaybackState
}

// NewStateMessage wraps st for sending.
func NewStateMessage(st store.PlaybackState) StateMessage {
	return StateMessage{Type: MsgState, PlaybackState: st}
}
