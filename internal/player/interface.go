// internal/player/interface.go
package player

import (
	"context"
	"time"
)

// Interface is the media element driven by the synchronizer: one source at a
// time, an asynchronous readiness signal, absolute seeks and a play call that
// may be refused until the listener interacts with the client.
type Interface interface {
	// SetSource replaces the current source and starts loading it.
	SetSource(src string)
	Source() string
	// Ready is closed once the current source has loaded or failed to load.
	Ready() <-chan struct{}
	// Play starts playback, or queues it until the source is ready.
	// Returns ErrPlaybackBlocked while the autoplay gate is closed.
	Play() error
	Pause()
	Stop()
	// SeekTo moves to an absolute position, or queues it until ready.
	// Seeking to or past the end signals FinishedChan.
	SeekTo(pos time.Duration)
	Position() time.Duration
	// Duration returns the decoded length; ok is false until known.
	Duration() (d time.Duration, ok bool)
	State() State
	// Unlock opens the autoplay gate after a user gesture.
	Unlock()
	FinishedChan() <-chan struct{}
}

// Resolver maps a source URL to a local file the decoder can open.
type Resolver interface {
	Resolve(ctx context.Context, src string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, src string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, src string) (string, error) {
	return f(ctx, src)
}

// Verify Player implements Interface at compile time.
var _ Interface = (*Player)(nil)
