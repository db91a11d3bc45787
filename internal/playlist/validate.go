package playlist

import (
	"net/url"
	"path"
	"strings"
)

// Validate drops tracks that have no file and fills missing titles from the
// file name. It returns the kept tracks and the number dropped.
func Validate(tracks []Track) (valid []Track, dropped int) {
	valid = make([]Track, 0, len(tracks))
	for _, t := range tracks {
		t.File = strings.TrimSpace(t.File)
		t.Title = strings.TrimSpace(t.Title)
		t.Cover = strings.TrimSpace(t.Cover)
		if t.File == "" {
			dropped++
			continue
		}
		if t.Title == "" {
			t.Title = TitleFromFile(t.File)
		}
		if t.Duration < 0 {
			t.Duration = 0
		}
		valid = append(valid, t)
	}
	return valid, dropped
}

// TitleFromFile derives a display title from a file URL or path: the last
// path element without its extension.
func TitleFromFile(file string) string {
	p := file
	if u, err := url.Parse(file); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.ReplaceAll(p, "\\", "/")
	base := path.Base(p)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
