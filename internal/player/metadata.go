package player

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
)

// TrackInfo holds tag metadata read from an audio file.
type TrackInfo struct {
	Path     string
	Title    string
	Artist   string
	Album    string
	Duration time.Duration // zero if not decoded
}

// ReadTrackInfo reads tags from path. The title falls back to the file name
// without extension when the tag has none.
func ReadTrackInfo(path string) (*TrackInfo, error) {
	f, err := os.Open(path) //nolint:gosec // library file
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(m.Title())
	if title == "" {
		title = fileStem(path)
	}

	return &TrackInfo{
		Path:   path,
		Title:  title,
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
	}, nil
}

// ExtractFullMetadata reads tags and decodes the stream header for duration.
// Missing tags are not an error; an undecodable file is.
func ExtractFullMetadata(path string) (*TrackInfo, error) {
	info, err := ReadTrackInfo(path)
	if err != nil {
		info = &TrackInfo{Path: path, Title: fileStem(path)}
	}

	d, err := AudioDuration(path)
	if err != nil {
		return info, err
	}
	info.Duration = d
	return info, nil
}

// AudioDuration decodes path far enough to report its length.
func AudioDuration(path string) (time.Duration, error) {
	streamer, format, err := openStream(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}

// ExtractCoverArt reads embedded cover art from an audio file.
// Returns the image data and MIME type, or nil if no art is embedded.
func ExtractCoverArt(path string) (data []byte, mimeType string, err error) {
	f, err := os.Open(path) //nolint:gosec // library file
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, "", err
	}

	pic := m.Picture()
	if pic == nil {
		return nil, "", nil
	}

	return pic.Data, pic.MIMEType, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
