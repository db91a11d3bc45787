package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/llehouerou/syncradio/internal/config"
	"github.com/llehouerou/syncradio/internal/fetch"
	"github.com/llehouerou/syncradio/internal/player"
	"github.com/llehouerou/syncradio/internal/store"
	"github.com/llehouerou/syncradio/internal/store/sqlite"
)

const testManifest = `[
  {"title": "A", "file": "music/a.mp3", "selectedBy": "ana"},
  {"title": "B", "file": "music/b.mp3"}
]`

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.json")
	if err := os.WriteFile(path, []byte(testManifest), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadPlaylist(t *testing.T) {
	f := fetch.New(fetch.Options{})
	defer f.Close()
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"manifest file", writeManifest(t), 2},
		{"not configured", "", 0},
		{"missing file", filepath.Join(t.TempDir(), "nope.json"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := loadPlaylist(ctx, f, config.ManifestConfig{URL: tt.url}, quietLogger())
			if pl == nil {
				t.Fatal("loadPlaylist() = nil")
			}
			if pl.Len() != tt.want {
				t.Errorf("loadPlaylist() len = %d, want %d", pl.Len(), tt.want)
			}
		})
	}
}

func testConfig(t *testing.T, storeURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Store.URL = storeURL
	cfg.Manifest.URL = writeManifest(t)
	cfg.Client.CacheDir = t.TempDir()
	cfg.Client.Mode = config.ModeSequential
	cfg.Log.Level = "error"
	return cfg
}

func startRun(t *testing.T, cfg *config.Config, p player.Interface) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- Run(ctx, cfg, Options{Headless: true, Output: io.Discard, Player: p})
	}()
	return func() error {
		stop()
		select {
		case err := <-result:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not return after cancel")
			return nil
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRun_OfflineHeadless(t *testing.T) {
	p := player.NewMock()
	stop := startRun(t, testConfig(t, ""), p)

	waitFor(t, "first track", func() bool {
		return strings.HasSuffix(p.Source(), "music/a.mp3")
	})
	waitFor(t, "playback", func() bool { return p.State() == player.Playing })

	if err := stop(); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRun_InitializesSharedState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "radio.db")
	p := player.NewMock()
	stop := startRun(t, testConfig(t, "sqlite://"+filepath.ToSlash(dbPath)), p)

	waitFor(t, "first track", func() bool {
		return strings.HasSuffix(p.Source(), "music/a.mp3")
	})

	peer, err := sqlite.Open(dbPath, 20*time.Millisecond, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	var st store.PlaybackState
	ok, err := peer.Get(context.Background(), store.PathState, &st)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want the initialized state", ok, err)
	}
	if st.CurrentTrackIndex != 0 || !st.IsPlaying || len(st.Tracks) != 2 {
		t.Errorf("shared state = %+v", st)
	}

	// Another listener advances the radio.
	if err := peer.Update(context.Background(), store.PathState, store.AdvanceFields(1, time.Now().UnixMilli())); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second track", func() bool {
		return strings.HasSuffix(p.Source(), "music/b.mp3")
	})

	if err := stop(); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRun_BadStoreFallsBackOffline(t *testing.T) {
	p := player.NewMock()
	stop := startRun(t, testConfig(t, "redis://localhost:6379"), p)

	waitFor(t, "local playback", func() bool {
		return strings.HasSuffix(p.Source(), "music/a.mp3")
	})
	if err := stop(); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
