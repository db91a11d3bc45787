package radio

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	NowPlaying      <-chan NowPlaying
	StatusChanged   <-chan StatusChange
	PlaylistChanged <-chan PlaylistChange
	Error           <-chan ErrorEvent
	Done            <-chan struct{}

	nowPlayingCh chan NowPlaying
	statusCh     chan StatusChange
	playlistCh   chan PlaylistChange
	errorCh      chan ErrorEvent
	doneCh       chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		nowPlayingCh: make(chan NowPlaying, eventBufferSize),
		statusCh:     make(chan StatusChange, eventBufferSize),
		playlistCh:   make(chan PlaylistChange, eventBufferSize),
		errorCh:      make(chan ErrorEvent, eventBufferSize),
		doneCh:       make(chan struct{}),
	}
	s.NowPlaying = s.nowPlayingCh
	s.StatusChanged = s.statusCh
	s.PlaylistChanged = s.playlistCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() {
	close(s.doneCh)
}

// Sends never block; events are dropped when a buffer is full.

func (s *Subscription) sendNowPlaying(e NowPlaying) {
	select {
	case s.nowPlayingCh <- e:
	default:
	}
}

func (s *Subscription) sendStatus(e StatusChange) {
	select {
	case s.statusCh <- e:
	default:
	}
}

func (s *Subscription) sendPlaylist(e PlaylistChange) {
	select {
	case s.playlistCh <- e:
	default:
	}
}

func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
