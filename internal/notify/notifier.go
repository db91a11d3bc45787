package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/llehouerou/syncradio/internal/radio"
)

// trackTimeout is how long a track notification stays on screen.
const trackTimeout = 5 * time.Second

// CoverResolver maps a cover URL to a local file. cache.Cache implements it.
type CoverResolver interface {
	Resolve(ctx context.Context, src string) (string, error)
}

// Notifier shows one notification per play. Each replaces the previous one
// instead of stacking up.
type Notifier struct {
	backend Backend
	covers  CoverResolver
	logger  *slog.Logger

	shownID   uint32
	lastIndex int
	lastStart time.Time
}

// NewNotifier announces through b. covers may be nil, in which case
// notifications carry no image.
func NewNotifier(b Backend, covers CoverResolver, logger *slog.Logger) *Notifier {
	if b == nil {
		b = nopBackend{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{backend: b, covers: covers, logger: logger, lastIndex: -1}
}

// Announce shows np unless it is the play already announced. The
// synchronizer repeats NowPlaying on every applied state.
func (n *Notifier) Announce(ctx context.Context, np radio.NowPlaying) error {
	if np.Index == n.lastIndex && np.StartedAt.Equal(n.lastStart) {
		return nil
	}
	n.lastIndex = np.Index
	n.lastStart = np.StartedAt

	card := trackCard(np)
	card.Cover = n.coverPath(ctx, np.Track.Cover)
	id, err := n.backend.Show(n.shownID, card)
	if err != nil {
		return err
	}
	n.shownID = id
	return nil
}

// Run announces every track change from sub until ctx is done or the
// subscription ends.
func (n *Notifier) Run(ctx context.Context, sub *radio.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case np := <-sub.NowPlaying:
			if err := n.Announce(ctx, np); err != nil {
				n.logger.Debug("notification failed", "error", err)
			}
		}
	}
}

// Close removes the notification on screen.
func (n *Notifier) Close() error {
	if n.shownID == 0 {
		return nil
	}
	id := n.shownID
	n.shownID = 0
	return n.backend.Dismiss(id)
}

func (n *Notifier) coverPath(ctx context.Context, cover string) string {
	if cover == "" || n.covers == nil {
		return ""
	}
	p, err := n.covers.Resolve(ctx, cover)
	if err != nil {
		n.logger.Debug("cover unavailable", "cover", cover, "error", err)
		return ""
	}
	return p
}

func trackCard(np radio.NowPlaying) Card {
	var credits []string
	for _, s := range []string{np.Track.Artist, np.Track.Album} {
		if s = strings.TrimSpace(s); s != "" {
			credits = append(credits, s)
		}
	}
	card := Card{
		Title:   np.Track.Title,
		Lines:   []string{strings.Join(credits, " - ")},
		Timeout: trackTimeout,
		Urgency: UrgencyLow,
	}
	if np.Track.SelectedBy != "" {
		card.Lines = append(card.Lines, "Selected by "+np.Track.SelectedBy)
	}
	if np.Total > 0 {
		card.Lines = append(card.Lines, fmt.Sprintf("Track %d of %d", np.Index+1, np.Total))
	}
	return card
}
