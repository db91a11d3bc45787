package radio

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/llehouerou/syncradio/internal/config"
	"github.com/llehouerou/syncradio/internal/player"
	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/store"
	"github.com/llehouerou/syncradio/internal/store/memory"
)

func testTracks() []playlist.Track {
	return []playlist.Track{
		{Title: "One", File: "https://r/one.mp3", SelectedBy: "ana"},
		{Title: "Two", File: "https://r/two.mp3", SelectedBy: "ben"},
		{Title: "Three", File: "https://r/three.mp3"},
	}
}

func newTestSync(p player.Interface, st store.Store, mode string) *Synchronizer {
	return New(Options{
		Player:   p,
		Store:    st,
		Playlist: playlist.NewPlaylist(testTracks()...),
		Mode:     mode,
		Rand:     rand.New(rand.NewPCG(1, 2)),
	})
}

func stateAgo(index int, ago time.Duration) store.PlaybackState {
	return store.PlaybackState{
		CurrentTrackIndex: index,
		StartTime:         time.Now().Add(-ago).UnixMilli(),
		IsPlaying:         true,
	}
}

// recordingStore records Update calls and can fail on demand.
type recordingStore struct {
	store.Store

	mu           sync.Mutex
	updates      []map[string]any
	updateErr    error
	subscribeErr int // number of Subscribe calls to fail
}

func (r *recordingStore) Update(ctx context.Context, path string, fields map[string]any) error {
	r.mu.Lock()
	r.updates = append(r.updates, fields)
	err := r.updateErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.Store.Update(ctx, path, fields)
}

func (r *recordingStore) Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, error) {
	r.mu.Lock()
	if r.subscribeErr > 0 && path == store.PathState {
		r.subscribeErr--
		r.mu.Unlock()
		return nil, errors.New("network unreachable")
	}
	r.mu.Unlock()
	return r.Store.Subscribe(ctx, path)
}

func (r *recordingStore) Updates() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.updates...)
}

func TestApplyState_SeeksToElapsed(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		p.SetDuration(200 * time.Second)
		s := newTestSync(p, nil, config.ModeSequential)

		if err := s.ApplyState(context.Background(), stateAgo(2, 30*time.Second)); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}

		if src := p.Source(); src != "https://r/three.mp3" {
			t.Errorf("Source() = %q, want track three", src)
		}
		seeks := p.SeekCalls()
		if len(seeks) != 1 || seeks[0] != 30*time.Second {
			t.Errorf("SeekCalls() = %v, want [30s]", seeks)
		}
		if p.State() != player.Playing {
			t.Errorf("State() = %v, want Playing", p.State())
		}
	})
}

func TestApplyState_ClampsToDurationAndEnds(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		p.SetDuration(60 * time.Second)
		s := newTestSync(p, nil, config.ModeSequential)

		if err := s.ApplyState(context.Background(), stateAgo(0, 500*time.Second)); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}

		seeks := p.SeekCalls()
		if len(seeks) != 1 || seeks[0] != 60*time.Second {
			t.Errorf("SeekCalls() = %v, want [60s]", seeks)
		}
		select {
		case <-p.FinishedChan():
		default:
			t.Error("end of track not signaled")
		}
	})
}

func TestApplyState_DurationHintUsedBeforeLoad(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		tracks := testTracks()
		tracks[1].Duration = 45
		s := New(Options{Player: p, Playlist: playlist.NewPlaylist(tracks...)})

		if err := s.ApplyState(context.Background(), stateAgo(1, 10*time.Minute)); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}
		if seeks := p.SeekCalls(); len(seeks) != 1 || seeks[0] != 45*time.Second {
			t.Errorf("SeekCalls() = %v, want [45s]", seeks)
		}
	})
}

func TestApplyState_IdenticalStateDoesNotReset(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		p.SetDuration(200 * time.Second)
		s := newTestSync(p, nil, config.ModeSequential)
		sub := s.Subscribe()

		st := stateAgo(1, 30*time.Second)
		for range 2 {
			if err := s.ApplyState(context.Background(), st); err != nil {
				t.Fatalf("ApplyState() error = %v", err)
			}
		}

		if calls := p.SourceCalls(); len(calls) != 1 {
			t.Errorf("SourceCalls() = %v, want one call", calls)
		}
		if seeks := p.SeekCalls(); len(seeks) != 1 {
			t.Errorf("SeekCalls() = %v, want one seek", seeks)
		}
		// Now playing is announced for every apply.
		for i := range 2 {
			select {
			case np := <-sub.NowPlaying:
				if np.Index != 1 || np.Track.SelectedBy != "ben" {
					t.Errorf("NowPlaying #%d = %+v", i, np)
				}
			default:
				t.Fatalf("NowPlaying #%d not published", i)
			}
		}
	})
}

func TestApplyState_OutOfRangeIndexClamped(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		s := newTestSync(p, nil, config.ModeSequential)

		if err := s.ApplyState(context.Background(), stateAgo(10, 0)); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}
		if src := p.Source(); src != "https://r/three.mp3" {
			t.Errorf("Source() = %q, want last track", src)
		}
		if v := s.View(5); v.Index != 2 {
			t.Errorf("View().Index = %d, want 2", v.Index)
		}
	})
}

func TestApplyState_EmptyPlaylistIsIdle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		s := New(Options{Player: p})

		if err := s.ApplyState(context.Background(), stateAgo(0, 0)); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}
		if s.Status() != Idle {
			t.Errorf("Status() = %v, want Idle", s.Status())
		}
		if p.PlayCalls() != 0 {
			t.Errorf("PlayCalls() = %d, want 0", p.PlayCalls())
		}
	})
}

func TestApplyState_AdoptsInlineTracks(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		s := New(Options{Player: p})
		sub := s.Subscribe()

		st := stateAgo(1, time.Second)
		st.Tracks = testTracks()
		if err := s.ApplyState(context.Background(), st); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}

		if src := p.Source(); src != "https://r/two.mp3" {
			t.Errorf("Source() = %q, want track two", src)
		}
		select {
		case pc := <-sub.PlaylistChanged:
			if pc.Source != "state" || len(pc.Tracks) != 3 {
				t.Errorf("PlaylistChange = %+v", pc)
			}
		default:
			t.Error("PlaylistChange not published")
		}
	})
}

func TestApplyState_PausedState(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		s := newTestSync(p, nil, config.ModeSequential)

		st := stateAgo(0, 10*time.Second)
		st.IsPlaying = false
		if err := s.ApplyState(context.Background(), st); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}
		if p.PlayCalls() != 0 {
			t.Errorf("PlayCalls() = %d, want 0", p.PlayCalls())
		}
	})
}

func TestApplyState_ReadyTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		p.SetAutoReady(false)
		s := newTestSync(p, nil, config.ModeSequential)

		start := time.Now()
		if err := s.ApplyState(context.Background(), stateAgo(0, 5*time.Second)); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}

		if waited := time.Since(start); waited != time.Second {
			t.Errorf("ApplyState() waited %v, want 1s", waited)
		}
		if seeks := p.SeekCalls(); len(seeks) != 1 || seeks[0] != 6*time.Second {
			t.Errorf("SeekCalls() = %v, want [6s]", seeks)
		}
		if p.PlayCalls() != 1 {
			t.Errorf("PlayCalls() = %d, want 1", p.PlayCalls())
		}
	})
}

func TestApplyState_Superseded(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		p.SetAutoReady(false)
		s := newTestSync(p, nil, config.ModeSequential)

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.ApplyState(context.Background(), stateAgo(0, 0))
		}()
		synctest.Wait()

		if err := s.ApplyState(context.Background(), stateAgo(1, 0)); err != nil {
			t.Fatalf("second ApplyState() error = %v", err)
		}
		if err := <-errCh; !errors.Is(err, ErrSuperseded) {
			t.Errorf("first ApplyState() error = %v, want ErrSuperseded", err)
		}
		if seeks := p.SeekCalls(); len(seeks) != 1 {
			t.Errorf("SeekCalls() = %v, want only the newer state's seek", seeks)
		}
		if p.PlayCalls() != 1 {
			t.Errorf("PlayCalls() = %d, want 1", p.PlayCalls())
		}
		if src := p.Source(); src != "https://r/two.mp3" {
			t.Errorf("Source() = %q, want track two", src)
		}
	})
}

func TestApplyState_ContextCanceled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		p.SetAutoReady(false)
		s := newTestSync(p, nil, config.ModeSequential)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.ApplyState(ctx, stateAgo(0, 0)); !errors.Is(err, context.Canceled) {
			t.Errorf("ApplyState() error = %v, want context.Canceled", err)
		}
		if p.PlayCalls() != 0 {
			t.Errorf("PlayCalls() = %d, want 0", p.PlayCalls())
		}
	})
}

func TestUserGesture_ResumesOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		p.SetDuration(200 * time.Second)
		p.SetRequireGesture(true)
		s := newTestSync(p, nil, config.ModeSequential)

		if err := s.ApplyState(context.Background(), stateAgo(0, 10*time.Second)); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}
		if s.Status() != Blocked {
			t.Fatalf("Status() = %v, want Blocked", s.Status())
		}

		time.Sleep(5 * time.Second)
		if err := s.UserGesture(); err != nil {
			t.Fatalf("UserGesture() error = %v", err)
		}
		if err := s.UserGesture(); err != nil {
			t.Fatalf("second UserGesture() error = %v", err)
		}

		if p.PlayCalls() != 2 {
			t.Errorf("PlayCalls() = %d, want 2 (blocked + one resume)", p.PlayCalls())
		}
		seeks := p.SeekCalls()
		if len(seeks) != 2 || seeks[1] != 15*time.Second {
			t.Errorf("SeekCalls() = %v, want resume at 15s", seeks)
		}
		if p.State() != player.Playing {
			t.Errorf("State() = %v, want Playing", p.State())
		}
		if s.Status() != Offline {
			t.Errorf("Status() = %v, want Offline", s.Status())
		}
	})
}

func TestUserGesture_ResumesNewestState(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		p.SetRequireGesture(true)
		s := newTestSync(p, nil, config.ModeSequential)
		ctx := context.Background()

		_ = s.ApplyState(ctx, stateAgo(0, 0))
		_ = s.ApplyState(ctx, stateAgo(1, 0))
		if s.Status() != Blocked {
			t.Fatalf("Status() = %v, want Blocked", s.Status())
		}
		playsBefore := p.PlayCalls()

		if err := s.UserGesture(); err != nil {
			t.Fatalf("UserGesture() error = %v", err)
		}
		if got := p.PlayCalls() - playsBefore; got != 1 {
			t.Errorf("resume Play calls = %d, want 1", got)
		}
		if src := p.Source(); src != "https://r/two.mp3" {
			t.Errorf("Source() = %q, want the newer state's track", src)
		}
	})
}

func TestOnTrackEnded_ConnectedWritesIndexOnly(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		mem := memory.New()
		defer mem.Close()
		rec := &recordingStore{Store: mem}

		initial := stateAgo(2, time.Minute)
		initial.Tracks = testTracks()
		if err := mem.Set(ctx, store.PathState, initial); err != nil {
			t.Fatal(err)
		}

		p := player.NewMock()
		s := newTestSync(p, rec, config.ModeShuffle)
		if err := s.ApplyState(ctx, initial); err != nil {
			t.Fatalf("ApplyState() error = %v", err)
		}

		time.Sleep(3 * time.Second)
		if err := s.OnTrackEnded(ctx); err != nil {
			t.Fatalf("OnTrackEnded() error = %v", err)
		}

		updates := rec.Updates()
		if len(updates) != 1 {
			t.Fatalf("Update calls = %d, want 1", len(updates))
		}
		if _, ok := updates[0]["tracks"]; ok {
			t.Error("OnTrackEnded() wrote tracks")
		}

		var got store.PlaybackState
		if _, err := mem.Get(ctx, store.PathState, &got); err != nil {
			t.Fatal(err)
		}
		if got.CurrentTrackIndex != 0 {
			t.Errorf("currentTrackIndex = %d, want 0 (wrapped)", got.CurrentTrackIndex)
		}
		if got.StartTime != time.Now().UnixMilli() {
			t.Errorf("startTime = %d, want now", got.StartTime)
		}
		if len(got.Tracks) != 3 {
			t.Errorf("tracks = %d, want 3 untouched", len(got.Tracks))
		}
		// The local player waits for the subscription to deliver the change.
		if src := p.Source(); src != "https://r/three.mp3" {
			t.Errorf("Source() = %q, want unchanged until the store echoes", src)
		}
	})
}

func TestOnTrackEnded_StoreErrorSwallowed(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		mem := memory.New()
		defer mem.Close()
		rec := &recordingStore{Store: mem, updateErr: errors.New("permission denied")}

		p := player.NewMock()
		s := newTestSync(p, rec, config.ModeShuffle)
		sub := s.Subscribe()
		_ = s.ApplyState(ctx, stateAgo(0, 0))

		if err := s.OnTrackEnded(ctx); err != nil {
			t.Fatalf("OnTrackEnded() error = %v, want nil", err)
		}
		select {
		case e := <-sub.Error:
			if e.Err == nil {
				t.Error("ErrorEvent without error")
			}
		default:
			t.Error("store error not reported")
		}
		if src := p.Source(); src != "https://r/one.mp3" {
			t.Errorf("Source() = %q, want last known track", src)
		}
	})
}

func TestOnTrackEnded_OfflineSequentialLoops(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		s := newTestSync(p, nil, config.ModeSequential)
		ctx := context.Background()

		if err := s.Bootstrap(ctx); err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}
		for range 3 {
			if err := s.OnTrackEnded(ctx); err != nil {
				t.Fatalf("OnTrackEnded() error = %v", err)
			}
		}

		want := []string{"https://r/one.mp3", "https://r/two.mp3", "https://r/three.mp3", "https://r/one.mp3"}
		got := p.SourceCalls()
		if len(got) != len(want) {
			t.Fatalf("SourceCalls() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("SourceCalls()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestOnTrackEnded_OfflineShuffleReshufflesAtWrap(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := player.NewMock()
		s := newTestSync(p, nil, config.ModeShuffle)
		sub := s.Subscribe()
		ctx := context.Background()

		if err := s.Bootstrap(ctx); err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}
		first := <-sub.PlaylistChanged
		if first.Source != "manifest" || len(first.Tracks) != 3 {
			t.Fatalf("initial PlaylistChange = %+v", first)
		}

		for range 3 {
			_ = s.OnTrackEnded(ctx)
		}

		select {
		case pc := <-sub.PlaylistChanged:
			if pc.Source != "shuffle" {
				t.Errorf("PlaylistChange.Source = %q, want shuffle", pc.Source)
			}
			if !sameFiles(pc.Tracks, testTracks()) {
				t.Errorf("reshuffle is not a permutation: %v", pc.Tracks)
			}
		default:
			t.Error("no reshuffle at wrap")
		}

		// Each track of the first round plays exactly once.
		seen := map[string]int{}
		for _, src := range p.SourceCalls()[:3] {
			seen[src]++
		}
		if len(seen) != 3 {
			t.Errorf("first round played %v, want each track once", seen)
		}
	})
}

func sameFiles(a, b []playlist.Track) bool {
	if len(a) != len(b) {
		return false
	}
	count := map[string]int{}
	for _, t := range a {
		count[t.File]++
	}
	for _, t := range b {
		count[t.File]--
	}
	for _, n := range count {
		if n != 0 {
			return false
		}
	}
	return true
}

func TestResync_ForcesSeek(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		mem := memory.New()
		defer mem.Close()
		if err := mem.Set(ctx, store.PathState, stateAgo(1, 20*time.Second)); err != nil {
			t.Fatal(err)
		}

		p := player.NewMock()
		s := newTestSync(p, mem, config.ModeShuffle)
		if err := s.Bootstrap(ctx); err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}
		if err := s.Resync(ctx); err != nil {
			t.Fatalf("Resync() error = %v", err)
		}

		seeks := p.SeekCalls()
		if len(seeks) != 2 || seeks[1] != 20*time.Second {
			t.Errorf("SeekCalls() = %v, want a forced second seek to 20s", seeks)
		}
	})
}

func TestBootstrap_InitializesOnceAndSecondClientAdopts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		mem := memory.New()
		defer mem.Close()

		a := newTestSync(player.NewMock(), mem, config.ModeShuffle)
		if err := a.Bootstrap(ctx); err != nil {
			t.Fatalf("Bootstrap(a) error = %v", err)
		}

		var st store.PlaybackState
		if ok, _ := mem.Get(ctx, store.PathState, &st); !ok {
			t.Fatal("state not initialized")
		}
		if st.CurrentTrackIndex != 0 || !st.IsPlaying || len(st.Tracks) != 3 {
			t.Errorf("initial state = %+v", st)
		}

		time.Sleep(42 * time.Second)
		pb := player.NewMock()
		b := New(Options{
			Player:   pb,
			Store:    mem,
			Playlist: playlist.NewPlaylist(playlist.Track{Title: "Other", File: "https://r/other.mp3"}),
		})
		if err := b.Bootstrap(ctx); err != nil {
			t.Fatalf("Bootstrap(b) error = %v", err)
		}

		if src := pb.Source(); src != "https://r/one.mp3" {
			t.Errorf("second client Source() = %q, want shared track one", src)
		}
		if seeks := pb.SeekCalls(); len(seeks) != 1 || seeks[0] != 42*time.Second {
			t.Errorf("second client SeekCalls() = %v, want [42s]", seeks)
		}
		var again store.PlaybackState
		_, _ = mem.Get(ctx, store.PathState, &again)
		if again.StartTime != st.StartTime {
			t.Error("second client rewrote the shared state")
		}
	})
}

func TestRun_FollowsStore(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mem := memory.New()
		defer mem.Close()

		p := player.NewMock()
		s := newTestSync(p, mem, config.ModeShuffle)
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()
		synctest.Wait()

		if s.Status() != Connected {
			t.Errorf("Status() = %v, want Connected", s.Status())
		}
		if src := p.Source(); src != "https://r/one.mp3" {
			t.Errorf("Source() = %q, want first track after init", src)
		}

		// Another listener's track ended.
		time.Sleep(time.Minute)
		if err := mem.Update(ctx, store.PathState, store.AdvanceFields(1, time.Now().UnixMilli())); err != nil {
			t.Fatal(err)
		}
		synctest.Wait()
		if src := p.Source(); src != "https://r/two.mp3" {
			t.Errorf("Source() = %q, want track two", src)
		}

		// Our own track ends: the write comes back through the subscription.
		p.SimulateFinished()
		synctest.Wait()
		if src := p.Source(); src != "https://r/three.mp3" {
			t.Errorf("Source() = %q, want track three", src)
		}

		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
}

func TestRun_AdoptsTracksDocument(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mem := memory.New()
		defer mem.Close()

		shared := []playlist.Track{{Title: "Shared", File: "https://r/shared.mp3"}}
		_ = mem.Set(ctx, store.PathTracks, shared)
		_ = mem.Set(ctx, store.PathState, stateAgo(0, time.Second))

		p := player.NewMock()
		s := newTestSync(p, mem, config.ModeShuffle)
		go s.Run(ctx)
		synctest.Wait()

		// The state may be applied before the tracks document arrives.
		_ = s.Resync(ctx)
		if src := p.Source(); src != "https://r/shared.mp3" {
			t.Errorf("Source() = %q, want track from radio/tracks", src)
		}
		cancel()
		synctest.Wait()
	})
}

func TestRun_ResubscribesWithBackoff(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mem := memory.New()
		defer mem.Close()
		rec := &recordingStore{Store: mem, subscribeErr: 2}

		s := newTestSync(player.NewMock(), rec, config.ModeShuffle)
		go s.Run(ctx)
		synctest.Wait()
		if s.Status() != Offline {
			t.Errorf("Status() after failure = %v, want Offline", s.Status())
		}

		time.Sleep(time.Second) // first retry fails
		synctest.Wait()
		if s.Status() != Offline {
			t.Errorf("Status() after first retry = %v, want Offline", s.Status())
		}

		time.Sleep(2 * time.Second) // backoff doubled
		synctest.Wait()
		if s.Status() != Connected {
			t.Errorf("Status() after recovery = %v, want Connected", s.Status())
		}
		cancel()
		synctest.Wait()
	})
}

func TestRun_OfflineAdvancesLocally(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := player.NewMock()
		s := newTestSync(p, nil, config.ModeSequential)
		if err := s.Bootstrap(ctx); err != nil {
			t.Fatal(err)
		}
		go s.Run(ctx)
		synctest.Wait()

		p.SimulateFinished()
		synctest.Wait()
		if src := p.Source(); src != "https://r/two.mp3" {
			t.Errorf("Source() = %q, want track two", src)
		}
		if s.Status() != Offline {
			t.Errorf("Status() = %v, want Offline", s.Status())
		}
		cancel()
		synctest.Wait()
	})
}

func TestRun_UnreachableStorePlaysLocally(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mem := memory.New()
		defer mem.Close()
		_ = mem.Set(ctx, store.PathState, stateAgo(2, time.Second))
		rec := &recordingStore{Store: mem, subscribeErr: 2}

		p := player.NewMock()
		s := newTestSync(p, rec, config.ModeShuffle)
		go s.Run(ctx)
		synctest.Wait()

		if p.PlayCalls() == 0 {
			t.Fatal("nothing played while the store is unreachable")
		}
		if src := p.Source(); src != "https://r/one.mp3" {
			t.Errorf("Source() = %q, want the first track of the list", src)
		}

		// Track ends advance locally without writing.
		p.SimulateFinished()
		synctest.Wait()
		if src := p.Source(); src != "https://r/two.mp3" {
			t.Errorf("Source() after local advance = %q, want track two", src)
		}
		if n := len(rec.Updates()); n != 0 {
			t.Errorf("store updates while unreachable = %d, want 0", n)
		}

		// Retries at 1s (fails) and 2s later (succeeds).
		time.Sleep(3 * time.Second)
		synctest.Wait()
		if s.Status() != Connected {
			t.Errorf("Status() = %v, want Connected", s.Status())
		}
		if src := p.Source(); src != "https://r/three.mp3" {
			t.Errorf("Source() after reconnect = %q, want the shared track", src)
		}

		p.SimulateFinished()
		synctest.Wait()
		if n := len(rec.Updates()); n != 1 {
			t.Errorf("store updates after reconnect = %d, want 1", n)
		}
		cancel()
		synctest.Wait()
	})
}

// silentStore accepts subscriptions but never delivers anything.
type silentStore struct {
	store.Store
}

func (silentStore) Subscribe(ctx context.Context, _ string) (<-chan store.Snapshot, error) {
	ch := make(chan store.Snapshot)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestRun_SilentStorePlaysLocallyAfterTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mem := memory.New()
		defer mem.Close()

		p := player.NewMock()
		s := newTestSync(p, silentStore{Store: mem}, config.ModeShuffle)
		go s.Run(ctx)
		synctest.Wait()
		if n := p.PlayCalls(); n != 0 {
			t.Fatalf("PlayCalls() before timeout = %d, want 0", n)
		}

		time.Sleep(defaultStoreTimeout)
		synctest.Wait()
		if p.PlayCalls() == 0 {
			t.Error("nothing played after the store stayed silent")
		}
		if src := p.Source(); src != "https://r/one.mp3" {
			t.Errorf("Source() = %q, want the first track of the list", src)
		}
		cancel()
		synctest.Wait()
	})
}
