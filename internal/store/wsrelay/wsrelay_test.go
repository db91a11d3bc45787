package wsrelay

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/relay"
	"github.com/llehouerou/syncradio/internal/store"
)

var tracks = []playlist.Track{
	{Title: "One", File: "http://r/music/one.mp3"},
	{Title: "Two", File: "http://r/music/two.mp3"},
}

func startRelay(t *testing.T) (*relay.Hub, string, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := relay.NewHub(relay.HubOptions{Tracks: tracks})
	go h.Run(ctx)
	srv := httptest.NewServer(relay.NewServer(h, relay.ServerOptions{}).Handler())
	stop := func() {
		cancel()
		srv.CloseClientConnections()
		srv.Close()
	}
	t.Cleanup(stop)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", stop
}

func receive(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

func TestClient_Get(t *testing.T) {
	_, url, _ := startRelay(t)
	c := New(Options{URL: url})
	defer c.Close()
	ctx := context.Background()

	var st store.PlaybackState
	ok, err := c.Get(ctx, store.PathState, &st)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tracks, st.Tracks)
	assert.Equal(t, 0, st.CurrentTrackIndex)

	var got []playlist.Track
	ok, err = c.Get(ctx, store.PathTracks, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tracks, got)

	ok, err = c.Get(ctx, "radio/other", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_UpdateSendsNext(t *testing.T) {
	h, url, _ := startRelay(t)
	c := New(Options{URL: url})
	defer c.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := c.Subscribe(ctx, store.PathState)
	require.NoError(t, err)
	receive(t, ch)

	// The relay sets the start time itself.
	require.NoError(t, c.Update(ctx, store.PathState, store.AdvanceFields(1, 1)))

	// Skip the echo of the initial sync, if still queued.
	var st store.PlaybackState
	for st.CurrentTrackIndex != 1 {
		require.NoError(t, receive(t, ch).Decode(&st))
	}
	assert.Equal(t, tracks, st.Tracks)

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.State.CurrentTrackIndex)
}

func TestClient_SameTrackEndAdvancesOnce(t *testing.T) {
	h, url, _ := startRelay(t)
	first, second := New(Options{URL: url}), New(Options{URL: url})
	defer first.Close()
	defer second.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := second.Subscribe(ctx, store.PathState)
	require.NoError(t, err)
	var st store.PlaybackState
	require.NoError(t, receive(t, ch).Decode(&st))
	require.Equal(t, 0, st.CurrentTrackIndex)

	// Both listeners reach the end of track 0 and report it.
	require.NoError(t, first.Update(ctx, store.PathState, store.AdvanceFields(1, 1)))
	for st.CurrentTrackIndex != 1 {
		require.NoError(t, receive(t, ch).Decode(&st))
	}
	require.NoError(t, second.Update(ctx, store.PathState, store.AdvanceFields(1, 2)))

	// The late report is answered with the current state, not an advance.
	require.NoError(t, receive(t, ch).Decode(&st))
	assert.Equal(t, 1, st.CurrentTrackIndex)
	deadline := time.After(300 * time.Millisecond)
	for done := false; !done; {
		select {
		case snap, ok := <-ch:
			require.True(t, ok, "subscription closed")
			require.NoError(t, snap.Decode(&st))
			assert.Equal(t, 1, st.CurrentTrackIndex)
		case <-deadline:
			done = true
		}
	}

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.State.CurrentTrackIndex)
}

func TestClient_UpdateWithoutIndexAlwaysAdvances(t *testing.T) {
	h, url, _ := startRelay(t)
	c := New(Options{URL: url})
	defer c.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := c.Subscribe(ctx, store.PathState)
	require.NoError(t, err)
	receive(t, ch)

	require.NoError(t, c.Update(ctx, store.PathState, map[string]any{"startTime": int64(1)}))
	var st store.PlaybackState
	for st.CurrentTrackIndex != 1 {
		require.NoError(t, receive(t, ch).Decode(&st))
	}

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.State.CurrentTrackIndex)
}

func TestIndexField(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   int
		wantOK bool
	}{
		{"int", map[string]any{"currentTrackIndex": 2}, 2, true},
		{"int64", map[string]any{"currentTrackIndex": int64(3)}, 3, true},
		{"float64", map[string]any{"currentTrackIndex": float64(4)}, 4, true},
		{"json number", map[string]any{"currentTrackIndex": json.Number("5")}, 5, true},
		{"missing", map[string]any{"startTime": 1}, 0, false},
		{"wrong type", map[string]any{"currentTrackIndex": "1"}, 0, false},
		{"nil map", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := indexField(tt.fields)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("indexField() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClient_Unsupported(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws"})
	defer c.Close()
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, store.PathState, store.PlaybackState{}), store.ErrUnsupported)
	_, err := c.CreateIfAbsent(ctx, store.PathState, store.PlaybackState{})
	assert.ErrorIs(t, err, store.ErrUnsupported)
	assert.ErrorIs(t, c.Update(ctx, store.PathTracks, nil), store.ErrUnsupported)
	_, err = c.Subscribe(ctx, "radio/other")
	assert.ErrorIs(t, err, store.ErrUnsupported)
}

func TestClient_DialFailure(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws", Timeout: time.Second})
	defer c.Close()

	_, err := c.Subscribe(context.Background(), store.PathState)
	assert.Error(t, err)
}

func TestClient_ConnectionLossClosesSubscriptions(t *testing.T) {
	_, url, stop := startRelay(t)
	c := New(Options{URL: url})
	defer c.Close()

	ch, err := c.Subscribe(context.Background(), store.PathTracks)
	require.NoError(t, err)
	receive(t, ch)

	stop()

	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after relay stopped")
	}
}

func TestClient_Close(t *testing.T) {
	_, url, _ := startRelay(t)
	c := New(Options{URL: url})

	ch, err := c.Subscribe(context.Background(), store.PathState)
	require.NoError(t, err)
	receive(t, ch)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	for range ch {
	}

	_, err = c.Subscribe(context.Background(), store.PathState)
	assert.ErrorIs(t, err, store.ErrClosed)
}
