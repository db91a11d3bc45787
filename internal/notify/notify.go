// Package notify announces the current track as a desktop notification.
package notify

import (
	"errors"
	"strings"
	"time"
)

// ErrUnavailable is returned by New when no notification service answers.
var ErrUnavailable = errors.New("desktop notifications unavailable")

// Urgency is the freedesktop urgency hint.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Card is what one notification shows.
type Card struct {
	Title string
	Lines []string
	// Cover is a local image file; empty shows the application icon.
	Cover   string
	Timeout time.Duration // 0 = server default
	Urgency Urgency
}

// Backend displays cards.
type Backend interface {
	// Show displays c, replacing notification replaces when non-zero, and
	// returns the ID now on screen.
	Show(replaces uint32, c Card) (uint32, error)
	Dismiss(id uint32) error
}

// nopBackend drops everything; used when no service is reachable.
type nopBackend struct{}

func (nopBackend) Show(uint32, Card) (uint32, error) { return 0, nil }
func (nopBackend) Dismiss(uint32) error              { return nil }

var markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// body renders the card lines for servers that parse basic markup.
func (c Card) body() string {
	lines := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, markupEscaper.Replace(l))
		}
	}
	return strings.Join(lines, "\n")
}

// expireMillis converts the timeout to the wire value, -1 meaning the server
// default.
func (c Card) expireMillis() int32 {
	if c.Timeout <= 0 {
		return -1
	}
	return int32(min(c.Timeout.Milliseconds(), int64(1<<31-1))) //nolint:gosec // clamped
}
