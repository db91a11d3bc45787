package radio

// Status is the connection and playback indicator shown to the listener.
type Status int

const (
	// Connecting: waiting for the first snapshot from the store.
	Connecting Status = iota
	// Connected: following the shared state.
	Connected
	// Offline: no store, or the store is unreachable. Local playback goes on.
	Offline
	// Blocked: audio output waits for a user gesture.
	Blocked
	// Idle: nothing to play.
	Idle
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Offline:
		return "Offline"
	case Blocked:
		return "Blocked"
	case Idle:
		return "Idle"
	default:
		return "Unknown"
	}
}
