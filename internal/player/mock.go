// internal/player/mock.go
package player

import (
	"sync"
	"time"
)

// Mock is a test double for Player. It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	state     State
	src       string
	ready     chan struct{}
	autoReady bool
	position  time.Duration
	duration  time.Duration
	hasDur    bool
	playErr   error
	gated     bool
	unlocked  bool

	sourceCalls []string
	seekCalls   []time.Duration
	playCalls   int
	finishedCh  chan struct{}
}

// NewMock creates a mock whose sources become ready immediately.
func NewMock() *Mock {
	ready := make(chan struct{})
	close(ready)
	return &Mock{
		state:      Stopped,
		ready:      ready,
		autoReady:  true,
		finishedCh: make(chan struct{}, 1),
	}
}

func (m *Mock) SetSource(src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceCalls = append(m.sourceCalls, src)
	m.src = src
	m.position = 0
	m.ready = make(chan struct{})
	if m.autoReady {
		close(m.ready)
		m.state = Paused
	} else {
		m.state = Loading
	}
}

func (m *Mock) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src
}

func (m *Mock) Ready() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *Mock) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls++
	if m.gated && !m.unlocked {
		return ErrPlaybackBlocked
	}
	if m.playErr != nil {
		return m.playErr
	}
	m.state = Playing
	return nil
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		m.state = Paused
	}
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Stopped
	m.src = ""
}

// SeekTo records the call. Like Player, a seek to or past a known duration
// signals end of track.
func (m *Mock) SeekTo(pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls = append(m.seekCalls, pos)
	m.position = pos
	if m.hasDur && pos >= m.duration {
		m.signalFinished()
	}
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration, m.hasDur
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocked = true
}

func (m *Mock) FinishedChan() <-chan struct{} {
	return m.finishedCh
}

func (m *Mock) signalFinished() {
	select {
	case m.finishedCh <- struct{}{}:
	default:
	}
}

// Test helpers

// SetAutoReady controls whether SetSource makes the source ready at once.
func (m *Mock) SetAutoReady(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReady = v
}

// MakeReady closes the ready channel of the current source.
func (m *Mock) MakeReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.ready:
	default:
		close(m.ready)
		m.state = Paused
	}
}

// SetRequireGesture makes Play return ErrPlaybackBlocked until Unlock.
func (m *Mock) SetRequireGesture(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gated = v
}

func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
	m.hasDur = true
}

func (m *Mock) SetPosition(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = d
}

func (m *Mock) SourceCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sourceCalls...)
}

func (m *Mock) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seekCalls...)
}

func (m *Mock) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

// SimulateFinished simulates a track finishing.
func (m *Mock) SimulateFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signalFinished()
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
