package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/syncradio/internal/errmsg"
)

var (
	// ErrPlaybackBlocked is returned by Play until a user gesture unlocks
	// playback.
	ErrPlaybackBlocked = errors.New("playback blocked until user interaction")
	// ErrNoSource is returned by Play when no source is set.
	ErrNoSource = errors.New("no source")
)

// Options configures a Player.
type Options struct {
	// Resolver maps sources to local files. Defaults to treating the source
	// as a local path.
	Resolver Resolver
	// RequireGesture keeps Play refused until Unlock is called.
	RequireGesture bool
	Logger         *slog.Logger
}

// Player plays one source at a time through the system speaker.
type Player struct {
	mu sync.Mutex

	resolver       Resolver
	out            output
	open           func(path string) (beep.StreamSeekCloser, beep.Format, error)
	now            func() time.Time
	requireGesture bool
	unlocked       bool
	logger         *slog.Logger

	state   State
	src     string
	loadGen uint64
	cancel  context.CancelFunc
	ready   chan struct{}
	loadErr error

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	started  bool
	// drained is set on the speaker goroutine when the output dropped the
	// track after its last sample; the next start queues it again.
	drained atomic.Bool

	pendingSeek   time.Duration
	pendingAt     time.Time
	hasPending    bool
	playRequested bool

	finishedCh chan struct{}
}

// New creates a stopped player.
func New(opts Options) *Player {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = ResolverFunc(func(_ context.Context, src string) (string, error) {
			return src, nil
		})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ready := make(chan struct{})
	close(ready)
	return &Player{
		resolver:       resolver,
		out:            speakerOutput{},
		open:           openStream,
		now:            time.Now,
		requireGesture: opts.RequireGesture,
		logger:         logger,
		state:          Stopped,
		ready:          ready,
		finishedCh:     make(chan struct{}, 1),
	}
}

// SetSource stops the current source and loads src in the background.
func (p *Player) SetSource(src string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseLocked()

	// Wake waiters of the previous source; they see a different source.
	select {
	case <-p.ready:
	default:
		close(p.ready)
	}

	// Drain any stale finish signal from the previous track
	select {
	case <-p.finishedCh:
	default:
	}

	p.src = src
	p.loadGen++
	p.ready = make(chan struct{})
	p.loadErr = nil
	p.state = Loading

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.load(ctx, p.loadGen, src, p.ready)
}

func (p *Player) load(ctx context.Context, gen uint64, src string, ready chan struct{}) {
	path, err := p.resolver.Resolve(ctx, src)
	var streamer beep.StreamSeekCloser
	var format beep.Format
	if err == nil {
		streamer, format, err = p.open(path)
	}
	if err == nil {
		err = p.out.Init()
		if err != nil {
			streamer.Close()
			err = fmt.Errorf("audio output: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.loadGen {
		// Superseded by a newer SetSource or Stop
		if streamer != nil {
			streamer.Close()
		}
		return
	}
	defer close(ready)

	if err != nil {
		p.loadErr = err
		p.state = Stopped
		p.logger.Warn(errmsg.Format(errmsg.OpTrackLoad, err), "src", src)
		return
	}

	p.streamer = streamer
	p.format = format
	var out beep.Streamer = streamer
	if format.SampleRate != speakerRate {
		out = beep.Resample(4, format.SampleRate, speakerRate, streamer)
	}
	p.ctrl = &beep.Ctrl{Streamer: out, Paused: true}
	p.started = false
	p.drained.Store(false)
	p.state = Paused

	if p.hasPending {
		p.hasPending = false
		target := p.pendingSeek
		// A playing station kept moving while the track was loading.
		if p.playRequested {
			target += max(p.now().Sub(p.pendingAt), 0)
		}
		p.seekLocked(target)
	}
	if p.playRequested {
		p.startLocked()
	}
}

// releaseLocked drops the current source without touching the gate.
func (p *Player) releaseLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.streamer != nil {
		p.out.Clear()
		p.streamer.Close()
		p.streamer = nil
	}
	p.ctrl = nil
	p.started = false
	p.drained.Store(false)
	p.hasPending = false
	p.playRequested = false
}

func (p *Player) startLocked() {
	if !p.started || p.drained.Swap(false) {
		p.started = true
		p.out.Play(beep.Seq(p.ctrl, beep.Callback(p.onDrained)))
	}
	p.out.Lock()
	p.ctrl.Paused = false
	p.out.Unlock()
	p.state = Playing
}

// onDrained runs on the speaker goroutine; it must not take p.mu.
func (p *Player) onDrained() {
	p.drained.Store(true)
	p.signalFinished()
}

func (p *Player) signalFinished() {
	select {
	case p.finishedCh <- struct{}{}:
	default:
	}
}

// Source returns the current source URL.
func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src
}

// Ready returns a channel closed when the current source has loaded or failed.
func (p *Player) Ready() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Err returns the load error of the current source, if any.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadErr
}

// Play starts playback or queues it until the source is loaded.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.requireGesture && !p.unlocked {
		return ErrPlaybackBlocked
	}
	if p.loadErr != nil {
		return p.loadErr
	}
	if p.src == "" {
		return ErrNoSource
	}
	if p.ctrl == nil {
		p.playRequested = true
		return nil
	}
	p.startLocked()
	return nil
}

// Pause pauses playback, keeping the position.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playRequested = false
	if p.state != Playing || p.ctrl == nil {
		return
	}
	p.out.Lock()
	p.ctrl.Paused = true
	p.out.Unlock()
	p.state = Paused
}

// Stop stops playback and releases the source.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseLocked()
	p.loadGen++
	p.src = ""
	p.loadErr = nil
	p.state = Stopped
	select {
	case <-p.ready:
	default:
		close(p.ready)
	}
}

// SeekTo moves to pos, or remembers it until the source is loaded.
func (p *Player) SeekTo(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		if p.state == Loading {
			p.pendingSeek = pos
			p.pendingAt = p.now()
			p.hasPending = true
		}
		return
	}
	p.seekLocked(pos)
}

func (p *Player) seekLocked(pos time.Duration) {
	target := max(p.format.SampleRate.N(pos), 0)

	// Seeking to or past the end is a natural end of track
	if n := p.streamer.Len(); n > 0 && target >= n {
		p.signalFinished()
		return
	}

	p.out.Lock()
	err := p.streamer.Seek(target)
	p.out.Unlock()
	if err != nil {
		p.logger.Warn(errmsg.Format(errmsg.OpPlaybackSeek, err), "src", p.src, "position", pos)
	}
}

// Position returns the current playback position.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return 0
	}
	p.out.Lock()
	pos := p.format.SampleRate.D(p.streamer.Position())
	p.out.Unlock()
	return pos
}

// Duration returns the decoded track length once loaded.
func (p *Player) Duration() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil || p.streamer.Len() <= 0 {
		return 0, false
	}
	return p.format.SampleRate.D(p.streamer.Len()), true
}

// State returns the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Unlock opens the autoplay gate.
func (p *Player) Unlock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlocked = true
}

// FinishedChan signals when the current track reaches its end.
func (p *Player) FinishedChan() <-chan struct{} {
	return p.finishedCh
}
