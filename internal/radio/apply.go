package radio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/llehouerou/syncradio/internal/config"
	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/player"
	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/store"
)

// pendingApply is an applied state waiting for the player to get ready.
type pendingApply struct {
	gen           uint64
	track         playlist.Track
	ready         <-chan struct{}
	sourceChanged bool
	force         bool
}

// ApplyState makes the local player follow st. It returns ErrSuperseded
// when a newer state was applied while waiting for the player.
func (s *Synchronizer) ApplyState(ctx context.Context, st store.PlaybackState) error {
	p := s.begin(st, false)
	if p == nil {
		return nil
	}
	return s.complete(ctx, p)
}

// begin performs the synchronous part of an apply: it takes a generation,
// resolves the track, swaps the source and announces it.
func (s *Synchronizer) begin(st store.PlaybackState, force bool) *pendingApply {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.blocked = false

	if len(st.Tracks) > 0 && !s.tracksDoc {
		s.replaceTracksLocked(st.Tracks, "state")
	}
	st.Tracks = nil
	s.state = st
	s.hasState = true

	if s.queue.IsEmpty() {
		s.player.Stop()
		s.updateStatusLocked()
		return nil
	}

	idx, ok := s.queue.Clamp(st.CurrentTrackIndex)
	if !ok {
		s.logger.Warn("clamping track index",
			"error", ErrIndexOutOfRange,
			"index", st.CurrentTrackIndex,
			"tracks", s.queue.Len(),
			"using", idx)
		s.state.CurrentTrackIndex = idx
	}
	track := *s.queue.JumpTo(idx)

	changed := s.player.Source() != track.File
	if changed {
		s.player.SetSource(track.File)
	}

	startedAt := time.UnixMilli(st.StartTime)
	s.history.Push(playlist.Play{Track: track, Index: idx, StartedAt: startedAt})
	np := NowPlaying{Track: track, Index: idx, Total: s.queue.Len(), StartedAt: startedAt}
	for _, sub := range s.subs {
		sub.sendNowPlaying(np)
	}
	s.updateStatusLocked()

	return &pendingApply{
		gen:           s.gen,
		track:         track,
		ready:         s.player.Ready(),
		sourceChanged: changed,
		force:         force,
	}
}

// complete waits for readiness, then seeks and plays unless superseded.
func (s *Synchronizer) complete(ctx context.Context, p *pendingApply) error {
	timer := time.NewTimer(s.readyTimeout)
	defer timer.Stop()
	select {
	case <-p.ready:
	case <-timer.C:
		s.logger.Debug("player not ready, proceeding", "src", p.track.File, "timeout", s.readyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.gen != s.gen {
		return ErrSuperseded
	}
	return s.startLocked(p.track, p.sourceChanged || p.force)
}

// targetLocked is the position the current state asks for.
func (s *Synchronizer) targetLocked(track playlist.Track) time.Duration {
	d, known := s.player.Duration()
	if !known {
		d, known = track.DurationHint()
	}
	return ComputeSeekPosition(s.state, s.now(), d, known)
}

func (s *Synchronizer) startLocked(track playlist.Track, alwaysSeek bool) error {
	target := s.targetLocked(track)
	drift := s.player.Position() - target
	if alwaysSeek || drift > seekTolerance || drift < -seekTolerance {
		s.player.SeekTo(target)
	}

	if !s.state.IsPlaying {
		s.player.Pause()
		s.updateStatusLocked()
		return nil
	}

	err := s.player.Play()
	switch {
	case errors.Is(err, player.ErrPlaybackBlocked):
		s.blocked = true
		s.blockedGen = s.gen
		s.logger.Info("playback blocked until user gesture", "title", track.Title)
	case err != nil:
		s.reportLocked(errmsg.OpPlaybackStart, fmt.Errorf("%s: %w", track.Title, err))
		s.updateStatusLocked()
		return err
	}
	s.updateStatusLocked()
	return nil
}

// UserGesture opens the autoplay gate. If playback was blocked it resumes
// once, at the position the current state asks for.
func (s *Synchronizer) UserGesture() error {
	s.player.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.blocked {
		return nil
	}
	s.blocked = false
	if s.blockedGen != s.gen {
		s.updateStatusLocked()
		return nil
	}
	track := s.queue.Current()
	if track == nil {
		s.updateStatusLocked()
		return nil
	}
	return s.startLocked(*track, true)
}

// OnTrackEnded advances to the next track. Connected, it writes the next
// index and lets the subscription deliver it; offline or while the store is
// unreachable it plays locally.
func (s *Synchronizer) OnTrackEnded(ctx context.Context) error {
	s.mu.Lock()
	if s.queue.IsEmpty() {
		s.mu.Unlock()
		return nil
	}
	nowMs := s.now().UnixMilli()

	if s.store != nil && !s.local {
		next := s.queue.NextIndex()
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
		if err := s.store.Update(ctx, store.PathState, store.AdvanceFields(next, nowMs)); err != nil {
			s.report(errmsg.OpStoreWrite, err)
		}
		return nil
	}

	// The shared order is kept while waiting for the store.
	_, wrapped := s.queue.Advance()
	if wrapped && s.store == nil && s.mode != config.ModeSequential {
		s.queue.Replace(playlist.Shuffle(s.queue.Tracks(), s.rng)...)
		change := PlaylistChange{Tracks: s.queue.Tracks(), Source: "shuffle"}
		for _, sub := range s.subs {
			sub.sendPlaylist(change)
		}
	}
	st := store.PlaybackState{
		CurrentTrackIndex: s.queue.CurrentIndex(),
		StartTime:         nowMs,
		IsPlaying:         true,
	}
	s.mu.Unlock()

	return s.ApplyState(ctx, st)
}

// Resync re-reads the shared state and applies it with a forced seek.
// Offline it re-applies the last local state.
func (s *Synchronizer) Resync(ctx context.Context) error {
	if s.store == nil {
		s.mu.Lock()
		last, ok := s.state, s.hasState
		s.mu.Unlock()
		if !ok {
			return nil
		}
		return s.applyForced(ctx, last)
	}

	var st store.PlaybackState
	found, err := s.get(ctx, &st)
	if err != nil {
		s.report(errmsg.OpStoreRead, err)
		return err
	}
	if !found {
		return nil
	}
	s.logger.Info("resync", "index", st.CurrentTrackIndex)
	return s.applyForced(ctx, st)
}

func (s *Synchronizer) applyForced(ctx context.Context, st store.PlaybackState) error {
	p := s.begin(st, true)
	if p == nil {
		return nil
	}
	return s.complete(ctx, p)
}

func (s *Synchronizer) get(ctx context.Context, st *store.PlaybackState) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Get(ctx, store.PathState, st)
}

// Bootstrap starts playback. Offline it plays the manifest from the top
// (shuffled in shuffle mode). Connected it adopts the shared state, creating
// it from the manifest when none exists yet.
func (s *Synchronizer) Bootstrap(ctx context.Context) error {
	if s.store == nil {
		return s.startOffline(ctx)
	}

	var st store.PlaybackState
	found, err := s.get(ctx, &st)
	if err != nil {
		s.report(errmsg.OpStoreRead, err)
		return err
	}
	if found {
		return s.ApplyState(ctx, st)
	}
	st, err = s.initialize(ctx)
	if err != nil {
		return err
	}
	return s.ApplyState(ctx, st)
}

// initialize writes the initial shared state unless another client did it
// first, and returns the state that won.
func (s *Synchronizer) initialize(ctx context.Context) (store.PlaybackState, error) {
	s.mu.Lock()
	initial := store.PlaybackState{
		Tracks:    append([]playlist.Track(nil), s.manifest...),
		StartTime: s.now().UnixMilli(),
		IsPlaying: len(s.manifest) > 0,
	}
	s.mu.Unlock()

	if len(initial.Tracks) == 0 {
		return initial, nil
	}

	wctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	created, err := s.store.CreateIfAbsent(wctx, store.PathState, initial)
	if errors.Is(err, store.ErrUnsupported) {
		// Read-before-write: a concurrent initializer may still win.
		err = s.store.Set(wctx, store.PathState, initial)
		created = err == nil
	}
	if err != nil {
		s.report(errmsg.OpStoreInit, err)
		return initial, nil
	}
	if created {
		s.logger.Info("initialized shared state", "tracks", len(initial.Tracks))
		return initial, nil
	}

	var st store.PlaybackState
	found, err := s.get(ctx, &st)
	if err != nil || !found {
		if err == nil {
			err = errors.New("state vanished after concurrent init")
		}
		s.report(errmsg.OpStoreRead, err)
		return initial, nil
	}
	s.logger.Info("adopted shared state from another client")
	return st, nil
}

func (s *Synchronizer) startOffline(ctx context.Context) error {
	s.mu.Lock()
	tracks := s.manifest
	if s.mode != config.ModeSequential {
		tracks = playlist.Shuffle(tracks, s.rng)
	}
	s.queue.Replace(tracks...)
	change := PlaylistChange{Tracks: s.queue.Tracks(), Source: "manifest"}
	for _, sub := range s.subs {
		sub.sendPlaylist(change)
	}
	st := store.PlaybackState{StartTime: s.now().UnixMilli(), IsPlaying: len(tracks) > 0}
	s.mu.Unlock()

	return s.ApplyState(ctx, st)
}
