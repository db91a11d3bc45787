package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/store"
)

func receive(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

func TestStore_GetSet(t *testing.T) {
	s := New()
	ctx := context.Background()

	var st store.PlaybackState
	ok, err := s.Get(ctx, store.PathState, &st)
	require.NoError(t, err)
	assert.False(t, ok)

	want := store.PlaybackState{
		Tracks:            []playlist.Track{{Title: "a", File: "a.mp3"}},
		CurrentTrackIndex: 0,
		StartTime:         100,
		IsPlaying:         true,
	}
	require.NoError(t, s.Set(ctx, store.PathState, want))

	ok, err = s.Get(ctx, store.PathState, &st)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, st)
}

func TestStore_UpdateMergesFields(t *testing.T) {
	s := New()
	ctx := context.Background()
	tracks := []playlist.Track{{Title: "a", File: "a.mp3"}, {Title: "b", File: "b.mp3"}}
	require.NoError(t, s.Set(ctx, store.PathState, store.PlaybackState{Tracks: tracks, IsPlaying: true}))

	require.NoError(t, s.Update(ctx, store.PathState, store.AdvanceFields(1, 500)))

	var st store.PlaybackState
	_, err := s.Get(ctx, store.PathState, &st)
	require.NoError(t, err)
	assert.Equal(t, tracks, st.Tracks)
	assert.Equal(t, 1, st.CurrentTrackIndex)
	assert.Equal(t, int64(500), st.StartTime)
	assert.True(t, st.IsPlaying)
}

func TestStore_CreateIfAbsentIsAtomic(t *testing.T) {
	s := New()
	ctx := context.Background()

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CreateIfAbsent(ctx, store.PathState, store.PlaybackState{StartTime: int64(i)})
			if err == nil && ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Errorf("CreateIfAbsent() succeeded %d times, want 1", got)
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, store.PathState)
	require.NoError(t, err)

	first := receive(t, ch)
	assert.False(t, first.Exists())

	require.NoError(t, s.Set(ctx, store.PathState, store.PlaybackState{CurrentTrackIndex: 1}))
	require.NoError(t, s.Update(ctx, store.PathState, store.AdvanceFields(2, 9)))

	// Only the latest value is kept for a slow reader.
	var st store.PlaybackState
	require.NoError(t, receive(t, ch).Decode(&st))
	assert.Equal(t, 2, st.CurrentTrackIndex)

	// Other paths do not notify.
	require.NoError(t, s.Set(ctx, store.PathTracks, []playlist.Track{}))
	select {
	case snap := <-ch:
		t.Errorf("unexpected snapshot %s", snap.Data)
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("subscription still open after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestStore_Close(t *testing.T) {
	s := New()
	ch, err := s.Subscribe(context.Background(), store.PathState)
	require.NoError(t, err)
	receive(t, ch)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, ok := <-ch
	assert.False(t, ok)

	err = s.Set(context.Background(), store.PathState, store.PlaybackState{})
	assert.ErrorIs(t, err, store.ErrClosed)
	_, err = s.Subscribe(context.Background(), store.PathState)
	assert.ErrorIs(t, err, store.ErrClosed)
}
