// Package rtdb talks to a Firebase Realtime Database over its REST API and
// follows changes with server-sent events.
package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/llehouerou/syncradio/internal/store"
)

// ErrAuthRevoked is logged when the server ends a stream because the auth
// token expired.
var ErrAuthRevoked = errors.New("auth revoked")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Options configures a Store.
type Options struct {
	// BaseURL is the database root, e.g. https://radio-demo.firebaseio.com.
	BaseURL string
	// Auth is an optional database secret or ID token.
	Auth string
	// HTTPClient must not set a Timeout, it would cut event streams.
	HTTPClient *http.Client
	// Timeout bounds every non-streaming request (default 5s).
	Timeout time.Duration
	Logger  *slog.Logger
}

// Store is a Realtime Database client.
type Store struct {
	base    *url.URL
	auth    string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

var _ store.Store = (*Store)(nil)

// New validates the base URL and returns a client. No request is made.
func New(opts Options) (*Store, error) {
	u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("invalid database URL %q", opts.BaseURL)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		base:    u,
		auth:    opts.Auth,
		client:  client,
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (s *Store) endpoint(path string) string {
	u := *s.base
	u.Path = u.Path + "/" + strings.Trim(path, "/") + ".json"
	if s.auth != "" {
		q := u.Query()
		q.Set("auth", s.auth)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends one bounded request and returns the response body.
func (s *Store) do(ctx context.Context, method, path string, body any, header http.Header) ([]byte, http.Header, error) {
	if s.ctx.Err() != nil {
		return nil, nil, store.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path), r)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.Header, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return data, resp.Header, nil
}

func isNull(data []byte) bool {
	d := bytes.TrimSpace(data)
	return len(d) == 0 || string(d) == "null"
}

func (s *Store) Get(ctx context.Context, path string, v any) (bool, error) {
	data, _, err := s.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil || isNull(data) {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

func (s *Store) Set(ctx context.Context, path string, v any) error {
	_, _, err := s.do(ctx, http.MethodPut, path, v, nil)
	return err
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	_, _, err := s.do(ctx, http.MethodPatch, path, fields, nil)
	return err
}

// CreateIfAbsent uses a conditional PUT against the ETag of the empty
// location, so only one concurrent writer succeeds.
func (s *Store) CreateIfAbsent(ctx context.Context, path string, v any) (bool, error) {
	data, hdr, err := s.do(ctx, http.MethodGet, path, nil, http.Header{"X-Firebase-Etag": {"true"}})
	if err != nil {
		return false, err
	}
	if !isNull(data) {
		return false, nil
	}
	etag := hdr.Get("ETag")
	if etag == "" {
		return false, fmt.Errorf("GET %s: missing ETag", path)
	}

	_, _, err = s.do(ctx, http.MethodPut, path, v, http.Header{"If-Match": {etag}})
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusPreconditionFailed {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Subscribe opens an event stream on path. The channel closes when the
// stream ends; callers reconnect.
func (s *Store) Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, error) {
	if s.ctx.Err() != nil {
		return nil, store.ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(path), nil)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		stop()
		cancel()
		return nil, &StatusError{
			Method: http.MethodGet,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	ch := make(chan store.Snapshot, 1)
	go func() {
		defer close(ch)
		defer stop()
		defer cancel()
		defer resp.Body.Close()

		err := s.stream(resp.Body, path, ch)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("rtdb stream ended", "path", path, "error", err)
		}
	}()
	return ch, nil
}

func (s *Store) stream(body io.Reader, path string, ch chan store.Snapshot) error {
	var t tree
	return readEvents(body, func(ev event) error {
		switch ev.name {
		case "put", "patch":
			var msg struct {
				Path string          `json:"path"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(ev.data), &msg); err != nil {
				return fmt.Errorf("decode %s event: %w", ev.name, err)
			}
			var err error
			if ev.name == "put" {
				err = t.put(msg.Path, msg.Data)
			} else {
				err = t.patch(msg.Path, msg.Data)
			}
			if err != nil {
				return err
			}
			doc, err := t.json()
			if err != nil {
				return err
			}
			store.SendLatest(ch, store.Snapshot{Path: path, Data: doc})
		case "keep-alive":
		case "cancel":
			return fmt.Errorf("stream canceled by server: %s", ev.data)
		case "auth_revoked":
			return ErrAuthRevoked
		default:
			s.logger.Debug("rtdb unknown event", "event", ev.name)
		}
		return nil
	})
}

// Close ends all streams. In-flight requests fail with ErrClosed.
func (s *Store) Close() error {
	s.cancel()
	return nil
}
