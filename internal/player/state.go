// internal/player/state.go
package player

// State represents the media element state machine.
//
//	┌──────────┐  SetSource  ┌──────────┐   loaded    ┌──────────┐
//	│  Stopped │ ──────────▶ │  Loading │ ──────────▶ │  Paused  │
//	└──────────┘             └──────────┘             └──────────┘
//	     ▲                        │  ▲                   │    ▲
//	     │ Stop                   │  │ SetSource    Play │    │ Pause
//	     │                        ▼  │                   ▼    │
//	     └─────────────────── (any state) ◀──────── ┌──────────┐
//	                                                │  Playing │
//	                                                └──────────┘
//
// Play while Loading does not change state; playback starts when loading
// completes. A failed load moves to Stopped and Play returns the load error.
type State int

const (
	Stopped State = iota
	Loading
	Paused
	Playing
)

// String returns the state name for debugging.
func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Loading:
		return "Loading"
	case Paused:
		return "Paused"
	case Playing:
		return "Playing"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a source is loaded (Playing or Paused).
func (s State) IsActive() bool {
	return s == Playing || s == Paused
}
