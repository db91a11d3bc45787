// Package radio keeps the local player in step with the shared playback
// state: every listener hears the same track at the same offset.
package radio

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/llehouerou/syncradio/internal/config"
	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/player"
	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/store"
)

var (
	// ErrSuperseded is returned by ApplyState when a newer state arrived
	// while waiting for the player.
	ErrSuperseded = errors.New("superseded by a newer state")
	// ErrIndexOutOfRange is logged when a state points past the playlist.
	ErrIndexOutOfRange = errors.New("track index out of range")
)

const (
	// Repeated identical states within this distance do not seek.
	seekTolerance = 250 * time.Millisecond

	defaultReadyTimeout = time.Second
	defaultStoreTimeout = 5 * time.Second
	defaultHistorySize  = 20
)

// Options configures a Synchronizer.
type Options struct {
	Player player.Interface
	// Store is the shared state; nil runs offline.
	Store    store.Store
	Playlist *playlist.Playlist
	// Mode is the offline play order: config.ModeShuffle or ModeSequential.
	Mode         string
	ReadyTimeout time.Duration
	StoreTimeout time.Duration
	HistorySize  int
	Now          func() time.Time
	Rand         *rand.Rand
	Logger       *slog.Logger
}

// Synchronizer drives a player from the shared playback state.
type Synchronizer struct {
	mu sync.Mutex

	player       player.Interface
	store        store.Store
	mode         string
	readyTimeout time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	rng          *rand.Rand
	logger       *slog.Logger

	manifest  []playlist.Track
	queue     *playlist.PlayingQueue
	tracksDoc bool
	history   *playlist.PlayHistory

	state    store.PlaybackState // last applied, without tracks
	hasState bool
	gen      uint64

	// Set while the store is unreachable: track ends advance locally until
	// the next shared state arrives.
	local bool

	// Set when Play was refused; cleared by a gesture or a newer state.
	blocked    bool
	blockedGen uint64

	link   Status
	status Status

	subs []*Subscription
	wg   sync.WaitGroup
}

// New creates a synchronizer. Nothing plays until Bootstrap, ApplyState or
// Run.
func New(opts Options) *Synchronizer {
	mode := opts.Mode
	if mode != config.ModeSequential {
		mode = config.ModeShuffle
	}
	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	storeTimeout := opts.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	historySize := opts.HistorySize
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var manifest []playlist.Track
	if opts.Playlist != nil {
		manifest = opts.Playlist.Tracks()
	}
	queue := playlist.NewQueue()
	queue.Replace(manifest...)

	link := Offline
	if opts.Store != nil {
		link = Connecting
	}

	s := &Synchronizer{
		player:       opts.Player,
		store:        opts.Store,
		mode:         mode,
		readyTimeout: readyTimeout,
		storeTimeout: storeTimeout,
		now:          now,
		rng:          opts.Rand,
		logger:       logger,
		manifest:     manifest,
		queue:        queue,
		history:      playlist.NewPlayHistory(historySize),
		link:         link,
	}
	s.status = s.effectiveStatusLocked()
	return s
}

// Connected reports whether a shared store is configured.
func (s *Synchronizer) Connected() bool {
	return s.store != nil
}

// Subscribe returns a new event subscription.
func (s *Synchronizer) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Close ends all subscriptions and waits for in-flight applies.
func (s *Synchronizer) Close() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	return nil
}

// Status returns the current indicator.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Synchronizer) effectiveStatusLocked() Status {
	switch {
	case s.queue.IsEmpty():
		return Idle
	case s.blocked:
		return Blocked
	default:
		return s.link
	}
}

func (s *Synchronizer) updateStatusLocked() {
	next := s.effectiveStatusLocked()
	if next == s.status {
		return
	}
	change := StatusChange{Previous: s.status, Current: next}
	s.status = next
	for _, sub := range s.subs {
		sub.sendStatus(change)
	}
}

func (s *Synchronizer) setLink(link Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link = link
	s.updateStatusLocked()
}

func (s *Synchronizer) reportLocked(op errmsg.Op, err error) {
	s.logger.Warn(errmsg.Format(op, err))
	for _, sub := range s.subs {
		sub.sendError(ErrorEvent{Operation: op, Err: err})
	}
}

func (s *Synchronizer) report(op errmsg.Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportLocked(op, err)
}

// replaceTracksLocked swaps the play order, keeping the index when valid.
func (s *Synchronizer) replaceTracksLocked(tracks []playlist.Track, source string) {
	next := playlist.NewPlaylist(tracks...)
	if next.Equal(s.queue.Playlist()) {
		return
	}
	s.queue.SetPlaylist(next)
	s.logger.Info("playlist replaced", "source", source, "tracks", next.Len())
	change := PlaylistChange{Tracks: next.Tracks(), Source: source}
	for _, sub := range s.subs {
		sub.sendPlaylist(change)
	}
	s.updateStatusLocked()
}

// SetTracks adopts the shared track list document.
func (s *Synchronizer) SetTracks(tracks []playlist.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracksDoc = true
	s.replaceTracksLocked(tracks, "store")
}
