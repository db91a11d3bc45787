package manifest

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/schollz/progressbar/v3"

	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/player"
	"github.com/llehouerou/syncradio/internal/playlist"
)

// BuildOptions configures Build.
type BuildOptions struct {
	MusicDir string
	// ArtDir receives extracted cover art. Extraction is skipped when empty.
	ArtDir string
	// Prefixes written in front of file and cover names (default "music"
	// and "album-art").
	MusicPrefix string
	ArtPrefix   string
	// SelectedBy is written on every track.
	SelectedBy string
	// Durations decodes every file to record its length.
	Durations bool
	// Progress receives a progress bar when set.
	Progress io.Writer
	Logger   *slog.Logger
}

// Build scans MusicDir and returns one track per audio file, in path order.
// Unreadable tags fall back to the file name; a file that fails to decode
// is still listed without a duration.
func Build(opts BuildOptions) ([]playlist.Track, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	musicPrefix := strings.Trim(opts.MusicPrefix, "/")
	if opts.MusicPrefix == "" {
		musicPrefix = "music"
	}
	artPrefix := strings.Trim(opts.ArtPrefix, "/")
	if opts.ArtPrefix == "" {
		artPrefix = "album-art"
	}

	files, err := playlist.CollectFiles(opts.MusicDir)
	if err != nil {
		return nil, err
	}
	if opts.ArtDir != "" {
		if err := os.MkdirAll(opts.ArtDir, 0o755); err != nil {
			return nil, err
		}
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(
			len(files),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("Reading tags..."),
		)
	}

	tracks := make([]playlist.Track, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(opts.MusicDir, file)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)

		t := playlist.Track{
			File:       joinPrefix(musicPrefix, rel),
			SelectedBy: opts.SelectedBy,
		}
		if info, err := player.ReadTrackInfo(file); err == nil {
			t.Title = info.Title
			t.Artist = info.Artist
			t.Album = info.Album
		} else {
			t.Title = playlist.TitleFromFile(rel)
			logger.Debug("no tags", "file", rel, "error", err)
		}

		if opts.Durations {
			if d, err := player.AudioDuration(file); err == nil {
				t.Duration = d.Seconds()
			} else {
				logger.Warn("could not read duration", "file", rel, "error", err)
			}
		}

		if opts.ArtDir != "" {
			name, err := ensureArt(file, opts.ArtDir, rel)
			switch {
			case err != nil:
				logger.Warn(errmsg.FormatWith(errmsg.OpArtExtract, rel, err))
			case name != "":
				t.Cover = joinPrefix(artPrefix, name)
			}
		}

		tracks = append(tracks, t)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return tracks, nil
}

// ensureArt returns the art file name for rel, extracting embedded art when
// no file exists yet. An empty name means the track has no art.
func ensureArt(audioPath, artDir, rel string) (string, error) {
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	for _, ext := range []string{".jpg", ".png"} {
		if _, err := os.Stat(filepath.Join(artDir, stem+ext)); err == nil {
			return stem + ext, nil
		}
	}

	data, mime, err := player.ExtractCoverArt(audioPath)
	if errors.Is(err, tag.ErrNoTagsFound) || (err == nil && len(data) == 0) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	name := stem + ".jpg"
	if mime == "image/png" {
		name = stem + ".png"
	}
	if err := os.WriteFile(filepath.Join(artDir, name), data, 0o644); err != nil { //nolint:gosec // public art
		return "", err
	}
	return name, nil
}

func joinPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
