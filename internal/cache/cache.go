// Package cache keeps downloaded tracks on disk so the decoder can seek in a
// local file. Local paths and file URLs are used in place.
package cache

import (
	"context"
	"crypto/sha1" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/singleflight"

	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/fetch"
	"github.com/llehouerou/syncradio/internal/playlist"
)

const cacheSubdir = "syncradio/tracks"

// Opener opens remote resources.
type Opener interface {
	Open(ctx context.Context, ref string) (*fetch.Object, error)
}

// Cache downloads remote tracks into a directory.
type Cache struct {
	dir    string
	opener Opener
	logger *slog.Logger
	group  singleflight.Group
}

// New creates a cache in dir, or in the XDG cache directory when dir is empty.
func New(dir string, opener Opener, logger *slog.Logger) (*Cache, error) {
	if dir == "" {
		keep, err := xdg.CacheFile(filepath.Join(cacheSubdir, ".keep"))
		if err != nil {
			return nil, err
		}
		dir = filepath.Dir(keep)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{dir: dir, opener: opener, logger: logger}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// PathFor returns where src is stored once downloaded.
func (c *Cache) PathFor(src string) string {
	sum := sha1.Sum([]byte(src)) //nolint:gosec // content addressing
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+extension(src))
}

// Resolve returns a local file for src, downloading it on first use.
// Concurrent calls for the same source share one download.
func (c *Cache) Resolve(ctx context.Context, src string) (string, error) {
	if local, ok := fetch.LocalPath(src); ok {
		return local, nil
	}

	dst := c.PathFor(src)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	_, err, _ := c.group.Do(dst, func() (any, error) {
		return nil, c.download(ctx, src, dst)
	})
	if err != nil {
		return "", err
	}
	return dst, nil
}

// Has reports whether src is available without downloading.
func (c *Cache) Has(src string) bool {
	if local, ok := fetch.LocalPath(src); ok {
		_, err := os.Stat(local)
		return err == nil
	}
	_, err := os.Stat(c.PathFor(src))
	return err == nil
}

func (c *Cache) download(ctx context.Context, src, dst string) error {
	obj, err := c.opener.Open(ctx, src)
	if err != nil {
		return err
	}
	defer obj.Close()

	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	n, err := io.Copy(tmp, obj)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", src, err)
	}
	if obj.Size >= 0 && n != obj.Size {
		return fmt.Errorf("download %s: got %d of %d bytes", src, n, obj.Size)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return err
	}

	c.logger.Debug("track cached", "src", src, "size", humanize.Bytes(uint64(n))) //nolint:gosec // n >= 0
	return nil
}

// Prefetch downloads every track not yet cached, drawing progress to w.
// Failures are logged and skipped; the number of failed tracks is returned.
func (c *Cache) Prefetch(ctx context.Context, tracks []playlist.Track, w io.Writer) int {
	bar := progressbar.NewOptions(
		len(tracks),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Caching tracks..."),
	)

	failed := 0
	for _, t := range tracks {
		if ctx.Err() != nil {
			break
		}
		if _, err := c.Resolve(ctx, t.File); err != nil {
			failed++
			c.logger.Warn(errmsg.FormatWith(errmsg.OpTrackDownload, t.Title, err))
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return failed
}

// Size returns the total bytes held in the cache directory.
func (c *Cache) Size() (uint64, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, e := range entries {
		if info, err := e.Info(); err == nil && !e.IsDir() {
			total += uint64(info.Size()) //nolint:gosec // file sizes are non-negative
		}
	}
	return total, nil
}

func extension(src string) string {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 5 {
		return ".mp3"
	}
	return ext
}
