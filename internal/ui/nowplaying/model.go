// Package nowplaying is the terminal screen of the listener client: the
// current track, the link status and what comes next.
package nowplaying

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/syncradio/internal/errmsg"
	"github.com/llehouerou/syncradio/internal/radio"
	"github.com/llehouerou/syncradio/internal/ui/styles"
)

const (
	defaultWidth    = 64
	defaultRecent   = 5
	defaultUpcoming = 3
	errorTTL        = 10 * time.Second
	noticeTTL       = 3 * time.Second
)

// Radio is the part of the synchronizer the screen drives.
type Radio interface {
	View(recent int) radio.View
	UserGesture() error
	Resync(ctx context.Context) error
}

// Options configures the screen.
type Options struct {
	Radio        Radio
	Subscription *radio.Subscription
	// Station is shown in the header (default "SyncRadio").
	Station       string
	Recent        int
	Upcoming      int
	ResyncTimeout time.Duration
	Now           func() time.Time
}

// Model is the bubbletea model of the now-playing screen.
type Model struct {
	radio         Radio
	sub           *radio.Subscription
	station       string
	recent        int
	upcoming      int
	resyncTimeout time.Duration
	now           func() time.Time

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	view     radio.View
	errText  string
	errAt    time.Time
	notice   string
	noticeAt time.Time
	width    int
}

// New creates the screen. It reads the synchronizer once so the first frame
// is not empty.
func New(opts Options) Model {
	m := Model{
		radio:         opts.Radio,
		sub:           opts.Subscription,
		station:       opts.Station,
		recent:        opts.Recent,
		upcoming:      opts.Upcoming,
		resyncTimeout: opts.ResyncTimeout,
		now:           opts.Now,
		keys:          defaultKeys(),
		help:          help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styles.T().S().Warning),
		),
		width: defaultWidth,
	}
	if m.station == "" {
		m.station = "SyncRadio"
	}
	if m.recent <= 0 {
		m.recent = defaultRecent
	}
	if m.upcoming < 0 {
		m.upcoming = 0
	} else if m.upcoming == 0 {
		m.upcoming = defaultUpcoming
	}
	if m.resyncTimeout <= 0 {
		m.resyncTimeout = 5 * time.Second
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick, watchEvents(m.sub))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.refresh()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case nowPlayingMsg, statusMsg, playlistMsg:
		m.refresh()
		return m, watchEvents(m.sub)

	case errorMsg:
		m.setError(errmsg.Format(msg.Operation, msg.Err))
		m.refresh()
		return m, watchEvents(m.sub)

	case resyncedMsg:
		if msg.err != nil {
			m.setError(errmsg.Format(errmsg.OpStoreRead, msg.err))
		} else {
			m.notice, m.noticeAt = "Resynced", m.now()
		}
		m.refresh()
		return m, nil

	case closedMsg:
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any key press is the gesture that opens the autoplay gate.
	if err := m.radio.UserGesture(); err != nil {
		m.setError(errmsg.Format(errmsg.OpPlaybackStart, err))
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Resync):
		m.notice, m.noticeAt = "Resyncing…", m.now()
		return m, m.resyncCmd()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	m.refresh()
	return m, nil
}

func (m Model) resyncCmd() tea.Cmd {
	r, timeout := m.radio, m.resyncTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return resyncedMsg{err: r.Resync(ctx)}
	}
}

func (m *Model) refresh() {
	m.view = m.radio.View(m.recent + 1)
}

func (m *Model) setError(text string) {
	m.errText, m.errAt = text, m.now()
}
