// Command mkmanifest builds a track list from a music folder: one entry per
// audio file, with tags, extracted cover art and optional public URLs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/k0kubun/go-ansi"

	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/manifest"
	"github.com/llehouerou/syncradio/internal/playlist"
)

func main() {
	os.Exit(run())
}

func run() int {
	musicDir := flag.String("music", "music", "folder to scan for audio files")
	artDir := flag.String("art", "album-art", "folder receiving extracted cover art (empty to skip)")
	out := flag.String("o", "tracks.json", "output file, - for stdout")
	selectedBy := flag.String("selected-by", "Unknown", "selectedBy value for every track")
	durations := flag.Bool("durations", false, "decode every file to record its duration")
	base := flag.String("base", "", "public URL prefix for file and cover entries")
	release := flag.String("github-release", "", "GitHub release download prefix to rewrite")
	raw := flag.String("github-raw", "", "raw.githubusercontent.com prefix to rewrite to")
	verbose := flag.Bool("v", false, "log skipped tags and art")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	tracks, err := manifest.Build(manifest.BuildOptions{
		MusicDir:   *musicDir,
		ArtDir:     *artDir,
		SelectedBy: *selectedBy,
		Durations:  *durations,
		Progress:   ansi.NewAnsiStderr(),
		Logger:     logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.FormatWith(errmsg.OpManifestBuild, *musicDir, err))
		return 1
	}
	fmt.Fprintln(os.Stderr)

	if *base != "" {
		n, err := playlist.NewNormalizer(*base)
		if err != nil {
			fmt.Fprintln(os.Stderr, "mkmanifest: -base:", err)
			return 2
		}
		tracks = n.Tracks(tracks)
	}
	// GitHub page URLs do not serve audio; point them at raw content.
	for i := range tracks {
		tracks[i].File = playlist.RewriteGitHubURL(tracks[i].File, *release, *raw)
		tracks[i].Cover = playlist.RewriteGitHubURL(tracks[i].Cover, *release, *raw)
	}

	if err := write(*out, tracks); err != nil {
		fmt.Fprintln(os.Stderr, "mkmanifest:", err)
		return 1
	}
	if *out != "-" {
		fmt.Fprintf(os.Stderr, "wrote %d tracks to %s\n", len(tracks), *out)
	}
	return 0
}

func write(path string, tracks []playlist.Track) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path) //nolint:gosec // user-chosen output
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return manifest.Encode(w, tracks)
}
