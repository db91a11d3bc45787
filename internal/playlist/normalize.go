package playlist

import (
	"net/url"
	"path"
	"strings"
)

// HasScheme reports whether ref is an absolute URL. Single-letter schemes are
// treated as Windows drive letters, not URLs.
func HasScheme(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return len(u.Scheme) > 1
}

// Normalizer resolves relative file and cover references against a base URL.
// References that already carry a scheme pass through unchanged.
type Normalizer struct {
	base *url.URL
}

// NewNormalizer parses base. An empty base yields a Normalizer that leaves
// every reference unchanged.
func NewNormalizer(base string) (*Normalizer, error) {
	if base == "" {
		return &Normalizer{}, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	// Treat the base as a directory so "music/a.mp3" lands beneath it.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Normalizer{base: u}, nil
}

// Resolve returns ref as an absolute URL.
func (n *Normalizer) Resolve(ref string) string {
	if ref == "" || n.base == nil || HasScheme(ref) {
		return ref
	}
	rel := &url.URL{Path: strings.TrimPrefix(path.Clean("/"+ref), "/")}
	if strings.HasPrefix(ref, "/") {
		rel.Path = "/" + rel.Path
	}
	return n.base.ResolveReference(rel).String()
}

// Track returns t with file and cover resolved.
func (n *Normalizer) Track(t Track) Track {
	t.File = n.Resolve(t.File)
	t.Cover = n.Resolve(t.Cover)
	return t
}

// Tracks resolves every track in place and returns the slice.
func (n *Normalizer) Tracks(tracks []Track) []Track {
	for i := range tracks {
		tracks[i] = n.Track(tracks[i])
	}
	return tracks
}
