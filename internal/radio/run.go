package radio

import (
	"context"
	"errors"
	"time"

	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/store"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Run follows the shared state until ctx is done. Offline it only advances
// through the local playlist. While the store is unreachable playback goes
// on locally, starting from the top when no shared state was ever seen.
func (s *Synchronizer) Run(ctx context.Context) error {
	if s.store == nil {
		return s.runOffline(ctx)
	}

	var (
		stateCh, tracksCh <-chan store.Snapshot
		retry             <-chan time.Time
		cancelSub         = func() {}
		backoff           = minBackoff
		// Fires if the store stays silent; a hung subscribe never fails.
		fallback = time.After(s.storeTimeout)
	)
	defer func() { cancelSub() }()

	connect := func() {
		retry = nil
		s.setLink(Connecting)
		subCtx, cancel := context.WithCancel(ctx)
		st, err := s.store.Subscribe(subCtx, store.PathState)
		if err == nil {
			tracksCh, err = s.store.Subscribe(subCtx, store.PathTracks)
			if errors.Is(err, store.ErrUnsupported) {
				tracksCh, err = nil, nil
			}
		}
		if err != nil {
			cancel()
			s.report(errmsg.OpStoreSubscribe, err)
			s.setLink(Offline)
			s.playLocally(ctx)
			stateCh, tracksCh = nil, nil
			retry = time.After(backoff)
			backoff = min(backoff*2, maxBackoff)
			return
		}
		stateCh = st
		cancelSub = cancel
	}
	lost := func() {
		cancelSub()
		cancelSub = func() {}
		stateCh, tracksCh = nil, nil
		s.logger.Warn("store subscription lost, retrying", "in", backoff)
		s.setLink(Offline)
		s.playLocally(ctx)
		retry = time.After(backoff)
		backoff = min(backoff*2, maxBackoff)
	}

	connect()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil

		case <-s.player.FinishedChan():
			if err := s.OnTrackEnded(ctx); err != nil {
				s.logger.Debug("track end not applied", "error", err)
			}

		case snap, ok := <-stateCh:
			if !ok {
				lost()
				continue
			}
			backoff = minBackoff
			fallback = nil
			s.setLink(Connected)
			s.leaveLocal()
			s.onState(ctx, snap)

		case snap, ok := <-tracksCh:
			if !ok {
				tracksCh = nil
				continue
			}
			var tracks []playlist.Track
			if !snap.Exists() {
				continue
			}
			if err := snap.Decode(&tracks); err != nil {
				s.report(errmsg.OpStoreRead, err)
				continue
			}
			s.SetTracks(tracks)

		case <-retry:
			connect()

		case <-fallback:
			fallback = nil
			s.logger.Warn("no shared state yet", "waited", s.storeTimeout)
			s.playLocally(ctx)
		}
	}
}

// playLocally switches track ends to local advancing. Before any shared
// state was applied it also starts the track list from the top, so an
// unreachable store never leaves the listener in silence.
func (s *Synchronizer) playLocally(ctx context.Context) {
	s.mu.Lock()
	already := s.local
	s.local = true
	start := !already && !s.hasState
	s.mu.Unlock()
	if !start {
		return
	}

	s.logger.Warn("store unreachable, playing the local track list")
	st := store.PlaybackState{StartTime: s.now().UnixMilli(), IsPlaying: true}
	s.wg.Go(func() {
		if err := s.ApplyState(ctx, st); err != nil && ctx.Err() == nil {
			s.logger.Debug("local start not applied", "error", err)
		}
	})
}

func (s *Synchronizer) leaveLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local {
		s.local = false
		s.logger.Info("store reachable, following the shared state")
	}
}

// onState applies a state snapshot. The wait for the player happens in the
// background so a newer snapshot can supersede it.
func (s *Synchronizer) onState(ctx context.Context, snap store.Snapshot) {
	var st store.PlaybackState
	if !snap.Exists() {
		var err error
		if st, err = s.initialize(ctx); err != nil {
			return
		}
	} else if err := snap.Decode(&st); err != nil {
		s.report(errmsg.OpStoreRead, err)
		return
	}

	p := s.begin(st, false)
	if p == nil {
		return
	}
	s.wg.Go(func() {
		err := s.complete(ctx, p)
		switch {
		case errors.Is(err, ErrSuperseded):
			s.logger.Debug("apply superseded", "index", st.CurrentTrackIndex)
		case err != nil && ctx.Err() == nil:
			s.logger.Debug("apply failed", "error", err)
		}
	})
}

func (s *Synchronizer) runOffline(ctx context.Context) error {
	s.setLink(Offline)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case <-s.player.FinishedChan():
			if err := s.OnTrackEnded(ctx); err != nil {
				s.logger.Debug("track end not applied", "error", err)
			}
		}
	}
}
