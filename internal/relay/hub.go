// Package relay is the fallback state server: it holds one playback state in
// memory and pushes it to listeners over websockets.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/syncradio/internal/playlist"
	"github.com/llehouerou/syncradio/internal/store"
)

// ErrHubStopped is returned when the hub is no longer running.
var ErrHubStopped = errors.New("relay hub stopped")

const (
	sendBufferSize = 16

	// Clients report track ends themselves; the engine only covers rooms
	// where nobody is listening.
	autoAdvanceGrace = 2 * time.Second
)

// HubOptions configures a Hub.
type HubOptions struct {
	Tracks []playlist.Track
	// AutoAdvance moves to the next track once the current track's known
	// duration has elapsed.
	AutoAdvance bool
	Now         func() time.Time
	Logger      *slog.Logger
}

type command struct {
	typ    string
	target *int
	from   *client
	result chan store.PlaybackState
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	State   store.PlaybackState
	Clients int
}

// Hub owns the playback state. All access goes through Run.
type Hub struct {
	state   store.PlaybackState
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	commands   chan command
	statsReq   chan chan Stats
	done       chan struct{}

	autoAdvance bool
	now         func() time.Time
	logger      *slog.Logger
}

// NewHub creates a hub starting at the first track.
func NewHub(opts HubOptions) *Hub {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracks := append([]playlist.Track(nil), opts.Tracks...)
	return &Hub{
		state: store.PlaybackState{
			Tracks:    tracks,
			StartTime: now().UnixMilli(),
			IsPlaying: len(tracks) > 0,
		},
		clients:     make(map[*client]struct{}),
		register:    make(chan *client, 32),
		unregister:  make(chan *client, 32),
		commands:    make(chan command, 32),
		statsReq:    make(chan chan Stats, 8),
		done:        make(chan struct{}),
		autoAdvance: opts.AutoAdvance,
		now:         now,
		logger:      logger,
	}
}

// Run processes hub events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	var tick <-chan time.Time
	if h.autoAdvance {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Info("client connected", "client", c.id, "clients", len(h.clients))
			h.deliver(c, h.encodeState())
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("client disconnected", "client", c.id, "clients", len(h.clients))
			}
		case cmd := <-h.commands:
			h.handle(cmd)
		case reply := <-h.statsReq:
			reply <- Stats{State: h.copyState(), Clients: len(h.clients)}
		case t := <-tick:
			h.engineTick(t)
		}
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.typ {
	case MsgNext:
		if cmd.target != nil && *cmd.target != h.nextIndex() {
			h.logger.Debug("ignoring stale advance",
				"target", *cmd.target, "index", h.state.CurrentTrackIndex)
			if _, ok := h.clients[cmd.from]; ok {
				h.deliver(cmd.from, h.encodeState())
			}
			break
		}
		h.advance()
		h.broadcast(h.encodeState())
	case MsgSync:
		if cmd.from == nil {
			h.broadcast(h.encodeState())
		} else if _, ok := h.clients[cmd.from]; ok {
			h.deliver(cmd.from, h.encodeState())
		}
	default:
		h.logger.Warn("unknown message type", "type", cmd.typ)
	}
	if cmd.result != nil {
		cmd.result <- h.copyState()
	}
}

// nextIndex is the index an advance moves to, or -1 with no tracks.
func (h *Hub) nextIndex() int {
	n := len(h.state.Tracks)
	if n == 0 {
		return -1
	}
	return (h.state.CurrentTrackIndex + 1) % n
}

func (h *Hub) advance() {
	next := h.nextIndex()
	if next < 0 {
		return
	}
	h.state.CurrentTrackIndex = next
	h.state.StartTime = h.now().UnixMilli()
	h.state.IsPlaying = true
	h.logger.Info("advanced", "index", h.state.CurrentTrackIndex,
		"title", h.state.Tracks[h.state.CurrentTrackIndex].Title)
}

func (h *Hub) engineTick(t time.Time) {
	if len(h.state.Tracks) == 0 {
		return
	}
	d, ok := h.state.Tracks[h.state.CurrentTrackIndex].DurationHint()
	if !ok {
		return
	}
	elapsed := t.Sub(time.UnixMilli(h.state.StartTime))
	if elapsed < d+autoAdvanceGrace {
		return
	}
	h.advance()
	h.broadcast(h.encodeState())
}

func (h *Hub) copyState() store.PlaybackState {
	st := h.state
	st.Tracks = append([]playlist.Track(nil), h.state.Tracks...)
	return st
}

func (h *Hub) encodeState() []byte {
	msg, err := json.Marshal(NewStateMessage(h.state))
	if err != nil {
		h.logger.Error("encode state", "error", err)
		return nil
	}
	return msg
}

func (h *Hub) broadcast(msg []byte) {
	for c := range h.clients {
		h.deliver(c, msg)
	}
}

// deliver queues msg for c, disconnecting it when its buffer is full.
func (h *Hub) deliver(c *client, msg []byte) {
	if msg == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("client too slow, disconnecting", "client", c.id)
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) newClient() *client {
	return &client{hub: h, id: uuid.NewString(), send: make(chan []byte, sendBufferSize)}
}

func (h *Hub) do(ctx context.Context, typ string) (store.PlaybackState, error) {
	cmd := command{typ: typ, result: make(chan store.PlaybackState, 1)}
	select {
	case h.commands <- cmd:
	case <-h.done:
		return store.PlaybackState{}, ErrHubStopped
	case <-ctx.Done():
		return store.PlaybackState{}, ctx.Err()
	}
	select {
	case st := <-cmd.result:
		return st, nil
	case <-h.done:
		return store.PlaybackState{}, ErrHubStopped
	case <-ctx.Done():
		return store.PlaybackState{}, ctx.Err()
	}
}

// Next advances to the next track and broadcasts the new state.
func (h *Hub) Next(ctx context.Context) (store.PlaybackState, error) {
	return h.do(ctx, MsgNext)
}

// Resync re-broadcasts the current state to every client.
func (h *Hub) Resync(ctx context.Context) (store.PlaybackState, error) {
	return h.do(ctx, MsgSync)
}

// Stats returns the current state and client count.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.statsReq <- reply:
	case <-h.done:
		return Stats{}, ErrHubStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return Stats{}, ErrHubStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}
