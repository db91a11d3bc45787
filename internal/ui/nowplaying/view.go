package nowplaying

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/syncradio/internal/radio"
	"github.com/llehouerou/syncradio/internal/ui/styles"
)

const (
	filledBlock = "▓"
	emptyBlock  = "░"
)

func (m Model) View() string {
	width := max(m.width, 24)
	s := styles.T().S()

	sections := []string{m.renderHeader(width)}

	if m.view.Status == radio.Idle || m.view.Current == nil {
		sections = append(sections, "", s.Muted.Render("  No tracks in the playlist."))
	} else {
		sections = append(sections, m.renderCard(width))
		if m.view.Status == radio.Blocked {
			sections = append(sections, s.Warning.Render("  Press any key to start playback"))
		}
		if up := m.renderUpcoming(width); up != "" {
			sections = append(sections, up)
		}
		if rec := m.renderRecent(width); rec != "" {
			sections = append(sections, rec)
		}
	}

	if line := m.renderMessages(width); line != "" {
		sections = append(sections, "", line)
	}
	sections = append(sections, "", " "+m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(width int) string {
	t := styles.T()
	left := " " + styles.ApplyBoldGradient(m.station, t.Primary, t.Secondary)
	right := m.statusBadge()
	if n := len(m.view.Tracks); n > 0 && m.view.Index >= 0 {
		right = t.S().Muted.Render(fmt.Sprintf("%d/%d", m.view.Index+1, n)) + "  " + right
	}
	right += " "
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) statusBadge() string {
	s := styles.T().S()
	switch m.view.Status {
	case radio.Connected:
		return s.Live.Render("● Live")
	case radio.Connecting:
		return m.spinner.View() + s.Warning.Render("Connecting")
	case radio.Blocked:
		return s.Warning.Render("⏸ Waiting for a key")
	case radio.Idle:
		return s.Subtle.Render("○ Idle")
	default:
		if m.view.Connected {
			return s.Error.Render("○ Offline, retrying")
		}
		return s.Muted.Render("○ Local playback")
	}
}

func (m Model) renderCard(width int) string {
	t := styles.T()
	s := t.S()
	inner := max(width-6, 10) // border and padding
	track := m.view.Current

	lines := []string{
		fit(styles.ApplyBoldGradient(truncate(track.Title, inner), t.Primary, t.Secondary), inner),
	}
	var info []string
	if track.Artist != "" {
		info = append(info, track.Artist)
	}
	if track.Album != "" {
		info = append(info, track.Album)
	}
	if len(info) > 0 {
		lines = append(lines, s.Muted.Render(truncate(strings.Join(info, " · "), inner)))
	}
	if track.SelectedBy != "" {
		lines = append(lines, s.Accent.Render(truncate("Selected by "+track.SelectedBy, inner)))
	}
	lines = append(lines, "", m.renderProgress(inner))

	return s.Card.Width(width - 2).Render(strings.Join(lines, "\n"))
}

// renderProgress draws "▶  1:23  ▓▓▓░░░  3:58", or only the elapsed time
// when the duration is unknown.
func (m Model) renderProgress(width int) string {
	t := styles.T()
	s := t.S()
	status := "▶"
	if m.view.Status == radio.Blocked {
		status = "⏸"
	}
	pos := formatDuration(m.view.Position)
	if m.view.Duration <= 0 {
		return status + "  " + s.Muted.Render(pos)
	}
	dur := formatDuration(m.view.Duration)

	fixed := lipgloss.Width(status) + 2 + lipgloss.Width(pos) + 2 + 2 + lipgloss.Width(dur)
	barWidth := width - fixed
	if barWidth < 3 {
		return status + "  " + pos + " / " + dur
	}
	ratio := float64(m.view.Position) / float64(m.view.Duration)
	filled := min(max(int(float64(barWidth)*ratio), 0), barWidth)

	bar := styles.GradientFill(filledBlock, filled, t.Primary, t.Secondary) +
		s.Empty.Render(strings.Repeat(emptyBlock, barWidth-filled))
	return status + "  " + pos + "  " + bar + "  " + s.Muted.Render(dur)
}

// renderUpcoming lists the tracks after the current one, wrapping around.
func (m Model) renderUpcoming(width int) string {
	n := len(m.view.Tracks)
	if n < 2 || m.view.Index < 0 || m.upcoming == 0 {
		return ""
	}
	s := styles.T().S()
	lines := []string{s.Title.Render(" Up next")}
	for i := 1; i <= min(m.upcoming, n-1); i++ {
		idx := (m.view.Index + i) % n
		tr := m.view.Tracks[idx]
		label := strconv.Itoa(idx+1) + ". " + tr.Title
		if tr.SelectedBy != "" {
			label += " (" + tr.SelectedBy + ")"
		}
		lines = append(lines, s.Muted.Render("   "+truncate(label, width-4)))
	}
	return strings.Join(lines, "\n")
}

// renderRecent lists the plays before the current one.
func (m Model) renderRecent(width int) string {
	if len(m.view.Recent) < 2 {
		return ""
	}
	s := styles.T().S()
	now := m.now()
	lines := []string{s.Title.Render(" Recently played")}
	for _, p := range m.view.Recent[1:] {
		when := humanize.RelTime(p.StartedAt, now, "ago", "from now")
		label := truncate(p.Track.Title, max(width-lipgloss.Width(when)-8, 8))
		lines = append(lines, s.Subtle.Render("   "+label+" · "+when))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMessages(width int) string {
	s := styles.T().S()
	now := m.now()
	switch {
	case m.errText != "" && now.Sub(m.errAt) < errorTTL:
		return " " + s.Error.Render(truncate(m.errText, width-2))
	case m.notice != "" && now.Sub(m.noticeAt) < noticeTTL:
		return " " + s.Muted.Render(m.notice)
	case !m.view.StartedAt.IsZero() && m.view.Connected:
		return " " + s.Subtle.Render("Track started "+humanize.RelTime(m.view.StartedAt, now, "ago", "from now"))
	}
	return ""
}
