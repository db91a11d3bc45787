package player

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
)

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
)

// ErrUnsupportedFormat is returned for files the player cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported format")

// IsMusicFile reports whether the player can decode path.
func IsMusicFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == extMP3 || ext == extFLAC
}

// openStream opens and decodes a local audio file.
func openStream(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != extMP3 && ext != extFLAC {
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path) //nolint:gosec // cached track path
	if err != nil {
		return nil, beep.Format{}, err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch ext {
	case extMP3:
		streamer, format, err = decodeMP3(f)
	case extFLAC:
		// Some taggers prepend ID3v2 to FLAC, which the decoder rejects.
		if err = skipID3v2(f); err == nil {
			streamer, format, err = flac.Decode(f)
		}
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}

// skipID3v2 positions r after a leading ID3v2 tag, or at the start if none.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	if _, err := io.ReadFull(r, header); err != nil || string(header[:3]) != "ID3" {
		_, seekErr := r.Seek(0, io.SeekStart)
		return seekErr
	}

	// Tag size is a syncsafe integer: 7 bits per byte.
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err := r.Seek(10+size, io.SeekStart)
	return err
}
