package nowplaying

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/syncradio/internal/radio"
)

const tickInterval = 500 * time.Millisecond

type (
	tickMsg       time.Time
	nowPlayingMsg radio.NowPlaying
	statusMsg     radio.StatusChange
	playlistMsg   radio.PlaylistChange
	errorMsg      radio.ErrorEvent
	closedMsg     struct{}
	resyncedMsg   struct{ err error }
)

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// watchEvents waits for the next synchronizer event.
func watchEvents(sub *radio.Subscription) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case e := <-sub.NowPlaying:
			return nowPlayingMsg(e)
		case e := <-sub.StatusChanged:
			return statusMsg(e)
		case e := <-sub.PlaylistChanged:
			return playlistMsg(e)
		case e := <-sub.Error:
			return errorMsg(e)
		case <-sub.Done:
			return closedMsg{}
		}
	}
}
