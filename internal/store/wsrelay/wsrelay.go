// Package wsrelay adapts the fallback relay's websocket protocol to the
// store interface.
//
// The relay owns the state: Update on the state document sends a "next"
// command carrying the requested index, the relay sets the start time, and
// Set/CreateIfAbsent are unsupported.
package wsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/llehouerou/syncradio/internal/relay"
	"github.com/llehouerou/syncradio/internal/store"
)

var errDisconnected = errors.New("relay connection lost")

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://radio.local:3000/ws.
	URL     string
	Dialer  *websocket.Dialer
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is a store backed by one relay connection, redialed on demand.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *conn
	closed bool
}

var _ store.Store = (*Client)(nil)

// New returns a client. No connection is made until first use.
func New(opts Options) *Client {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{url: opts.URL, dialer: dialer, timeout: timeout, logger: logger}
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}

	mu      sync.Mutex
	latest  *store.PlaybackState
	subs    map[chan store.Snapshot]string
	waiters []chan store.PlaybackState
}

func (c *Client) connect(ctx context.Context) (*conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, store.ErrClosed
	}
	if c.conn != nil {
		select {
		case <-c.conn.done:
		default:
			return c.conn, nil
		}
	}

	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ws, _, err := c.dialer.DialContext(dctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	cn := &conn{
		ws:   ws,
		done: make(chan struct{}),
		subs: make(map[chan store.Snapshot]string),
	}
	c.conn = cn
	go c.readLoop(cn)
	c.logger.Info("connected to relay", "url", c.url)
	return cn, nil
}

func (c *Client) readLoop(cn *conn) {
	defer func() {
		cn.mu.Lock()
		close(cn.done)
		for ch := range cn.subs {
			close(ch)
		}
		cn.subs = nil
		cn.waiters = nil
		cn.mu.Unlock()
		_ = cn.ws.Close()
	}()

	_ = cn.ws.SetReadDeadline(time.Now().Add(relay.PongWait))
	cn.ws.SetPingHandler(func(data string) error {
		_ = cn.ws.SetReadDeadline(time.Now().Add(relay.PongWait))
		return cn.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(relay.WriteWait))
	})

	for {
		var msg relay.StateMessage
		if err := cn.ws.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("relay connection lost", "error", err)
			}
			return
		}
		if msg.Type != relay.MsgState {
			c.logger.Debug("ignoring relay message", "type", msg.Type)
			continue
		}
		cn.publish(msg.PlaybackState)
	}
}

func (cn *conn) publish(st store.PlaybackState) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.latest = &st
	for ch, path := range cn.subs {
		if data, ok := encode(st, path); ok {
			store.SendLatest(ch, store.Snapshot{Path: path, Data: data})
		}
	}
	for _, w := range cn.waiters {
		w <- st
	}
	cn.waiters = nil
}

// encode renders the document at path from a relay state.
func encode(st store.PlaybackState, path string) (json.RawMessage, bool) {
	var v any
	switch path {
	case store.PathState:
		v = st
	case store.PathTracks:
		if len(st.Tracks) == 0 {
			return nil, true
		}
		v = st.Tracks
	default:
		return nil, false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (cn *conn) send(cmd relay.Command) error {
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	_ = cn.ws.SetWriteDeadline(time.Now().Add(relay.WriteWait))
	return cn.ws.WriteJSON(cmd)
}

func (c *Client) Get(ctx context.Context, path string, v any) (bool, error) {
	cn, err := c.connect(ctx)
	if err != nil {
		return false, err
	}

	cn.mu.Lock()
	var st store.PlaybackState
	if cn.latest != nil {
		st = *cn.latest
		cn.mu.Unlock()
	} else {
		w := make(chan store.PlaybackState, 1)
		cn.waiters = append(cn.waiters, w)
		cn.mu.Unlock()
		if err := cn.send(relay.Command{Type: relay.MsgSync}); err != nil {
			return false, err
		}
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		select {
		case st = <-w:
		case <-cn.done:
			return false, errDisconnected
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	data, ok := encode(st, path)
	if !ok || data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

// Set is not supported: the relay owns the state.
func (c *Client) Set(context.Context, string, any) error {
	return store.ErrUnsupported
}

// Update asks the relay to advance. With a currentTrackIndex field the relay
// only advances if that index is the next one, so listeners reporting the
// same track end move the station once. The relay sets the start time.
func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	if path != store.PathState {
		return store.ErrUnsupported
	}
	cn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	cmd := relay.Command{Type: relay.MsgNext}
	if index, ok := indexField(fields); ok {
		cmd = relay.NextTo(index)
	}
	return cn.send(cmd)
}

func indexField(fields map[string]any) (int, bool) {
	switch v := fields["currentTrackIndex"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

// CreateIfAbsent is not supported: the relay initializes its own state.
func (c *Client) CreateIfAbsent(context.Context, string, any) (bool, error) {
	return false, store.ErrUnsupported
}

func (c *Client) Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, error) {
	if path != store.PathState && path != store.PathTracks {
		return nil, store.ErrUnsupported
	}
	cn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan store.Snapshot, 1)
	cn.mu.Lock()
	select {
	case <-cn.done:
		cn.mu.Unlock()
		return nil, errDisconnected
	default:
	}
	cn.subs[ch] = path
	latest := cn.latest
	if latest != nil {
		data, _ := encode(*latest, path)
		ch <- store.Snapshot{Path: path, Data: data}
	}
	cn.mu.Unlock()

	if latest == nil {
		if err := cn.send(relay.Command{Type: relay.MsgSync}); err != nil {
			c.logger.Warn("relay sync request failed", "error", err)
		}
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-cn.done:
			return
		}
		cn.mu.Lock()
		defer cn.mu.Unlock()
		if _, ok := cn.subs[ch]; ok {
			delete(cn.subs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Close drops the connection and ends all subscriptions.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	cn := c.conn
	cn.writeMu.Lock()
	_ = cn.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(relay.WriteWait))
	cn.writeMu.Unlock()
	return cn.ws.Close()
}
