// Package postgres stores shared state in PostgreSQL and pushes changes with
// LISTEN/NOTIFY.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/llehouerou/syncradio/internal/db"
	"github.com/llehouerou/syncradio/internal/store"
)

const channel = "syncradio_documents"

const schema = `
CREATE TABLE IF NOT EXISTS syncradio_documents (
	path  TEXT PRIMARY KEY,
	value JSONB NOT NULL
)`

// Store is a PostgreSQL-backed store.
type Store struct {
	db     *sqlx.DB
	dsn    string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and creates the documents table if needed.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	sctx, cancel := context.WithCancel(context.Background())
	return &Store{db: conn, dsn: dsn, logger: logger, ctx: sctx, cancel: cancel}, nil
}

func (s *Store) closed() bool {
	return s.ctx.Err() != nil
}

func (s *Store) read(ctx context.Context, path string) (json.RawMessage, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, `SELECT value FROM syncradio_documents WHERE path = $1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return value, err
}

// write runs query with (path, doc) and notifies listeners when it changed a row.
func (s *Store) write(ctx context.Context, query, path string, doc []byte) (bool, error) {
	var changed bool
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, path, string(doc))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = n > 0
		if !changed {
			return nil
		}
		_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, path)
		return err
	})
	return changed, err
}

func (s *Store) Get(ctx context.Context, path string, v any) (bool, error) {
	if s.closed() {
		return false, store.ErrClosed
	}
	doc, err := s.read(ctx, path)
	if err != nil || doc == nil {
		return false, err
	}
	return true, json.Unmarshal(doc, v)
}

func (s *Store) Set(ctx context.Context, path string, v any) error {
	if s.closed() {
		return store.ErrClosed
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.write(ctx, `
		INSERT INTO syncradio_documents (path, value) VALUES ($1, $2::jsonb)
		ON CONFLICT (path) DO UPDATE SET value = excluded.value`, path, doc)
	return err
}

// Update merges top-level fields with the jsonb concatenation operator.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if s.closed() {
		return store.ErrClosed
	}
	doc, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = s.write(ctx, `
		INSERT INTO syncradio_documents (path, value) VALUES ($1, $2::jsonb)
		ON CONFLICT (path) DO UPDATE SET value = syncradio_documents.value || excluded.value`, path, doc)
	return err
}

func (s *Store) CreateIfAbsent(ctx context.Context, path string, v any) (bool, error) {
	if s.closed() {
		return false, store.ErrClosed
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return s.write(ctx, `
		INSERT INTO syncradio_documents (path, value) VALUES ($1, $2::jsonb)
		ON CONFLICT (path) DO NOTHING`, path, doc)
}

func (s *Store) Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, error) {
	if s.closed() {
		return nil, store.ErrClosed
	}

	listener := pq.NewListener(s.dsn, time.Second, 30*time.Second, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("postgres listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, err
	}

	ch := make(chan store.Snapshot, 1)
	s.wg.Add(1)
	go s.watch(ctx, path, listener, ch)
	return ch, nil
}

func (s *Store) watch(ctx context.Context, path string, listener *pq.Listener, ch chan store.Snapshot) {
	defer s.wg.Done()
	defer close(ch)
	defer listener.Close()

	refresh := func() bool {
		doc, err := s.read(ctx, path)
		if err != nil {
			if ctx.Err() == nil && !s.closed() {
				s.logger.Warn("postgres read failed", "path", path, "error", err)
			}
			return false
		}
		store.SendLatest(ch, store.Snapshot{Path: path, Data: doc})
		return true
	}
	if !refresh() {
		return
	}

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect: notifications may have been missed.
			if n == nil || n.Extra == path {
				refresh()
			}
		case <-ping.C:
			go listener.Ping() //nolint:errcheck // reconnects on failure
		}
	}
}

// Close stops all subscriptions and closes the connection pool.
func (s *Store) Close() error {
	if s.closed() {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	return s.db.Close()
}
