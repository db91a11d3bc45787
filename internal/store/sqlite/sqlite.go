// Package sqlite stores shared state in a SQLite file, so several clients on
// one machine (or a shared volume) stay in sync.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver

	"github.com/llehouerou/syncradio/internal/db"
	"github.com/llehouerou/syncradio/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path    TEXT PRIMARY KEY,
	value   TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
)`

const upsert = `
INSERT INTO documents (path, value, version) VALUES (?, ?, 1)
ON CONFLICT(path) DO UPDATE SET value = excluded.value, version = documents.version + 1`

// DefaultPath returns the database location used when none is configured.
func DefaultPath() (string, error) {
	return xdg.DataFile("syncradio/radio.db")
}

// Store is a SQLite-backed store. Subscriptions poll a per-document version.
type Store struct {
	db     *sqlx.DB
	poll   time.Duration
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string, poll time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{db: conn, poll: poll, logger: logger, ctx: ctx, cancel: cancel}, nil
}

func (s *Store) closed() bool {
	return s.ctx.Err() != nil
}

func (s *Store) read(ctx context.Context, q sqlx.QueryerContext, path string) (json.RawMessage, int64, error) {
	var row struct {
		Value   string `db:"value"`
		Version int64  `db:"version"`
	}
	err := sqlx.GetContext(ctx, q, &row, `SELECT value, version FROM documents WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return json.RawMessage(row.Value), row.Version, nil
}

func (s *Store) Get(ctx context.Context, path string, v any) (bool, error) {
	if s.closed() {
		return false, store.ErrClosed
	}
	doc, _, err := s.read(ctx, s.db, path)
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
	_, err = s.db.ExecContext(ctx, upsert, path, string(doc))
	return err
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if s.closed() {
		return store.ErrClosed
	}
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, _, err := s.read(ctx, tx, path)
		if err != nil {
			return err
		}
		doc, err := store.Merge(current, fields)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, upsert, path, string(doc))
		return err
	})
}

func (s *Store) CreateIfAbsent(ctx context.Context, path string, v any) (bool, error) {
	if s.closed() {
		return false, store.ErrClosed
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (path, value) VALUES (?, ?) ON CONFLICT(path) DO NOTHING`,
		path, string(doc))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, error) {
	if s.closed() {
		return nil, store.ErrClosed
	}
	ch := make(chan store.Snapshot, 1)
	s.wg.Add(1)
	go s.watch(ctx, path, ch)
	return ch, nil
}

func (s *Store) watch(ctx context.Context, path string, ch chan store.Snapshot) {
	defer s.wg.Done()
	defer close(ch)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	last := int64(-1)
	for {
		doc, version, err := s.read(ctx, s.db, path)
		switch {
		case err != nil:
			if ctx.Err() == nil && !s.closed() {
				s.logger.Warn("sqlite poll failed", "path", path, "error", err)
			}
		case version != last:
			last = version
			store.SendLatest(ch, store.Snapshot{Path: path, Data: doc})
		}

		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops all subscriptions and closes the database.
func (s *Store) Close() error {
	if s.closed() {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	return s.db.Close()
}
