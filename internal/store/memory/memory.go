// Package memory is an in-process store, used for tests and single-machine
// setups.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/llehouerou/syncradio/internal/store"
)

type subscriber struct {
	ch chan store.Snapshot
}

// Store keeps documents in a map and fans changes out to subscribers.
type Store struct {
	mu     sync.Mutex
	data   map[string]json.RawMessage
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		data: make(map[string]json.RawMessage),
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

func (s *Store) Get(_ context.Context, path string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrClosed
	}
	doc, ok := s.data[path]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(doc, v)
}

func (s *Store) Set(_ context.Context, path string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.putLocked(path, doc)
	return nil
}

func (s *Store) Update(_ context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	doc, err := store.Merge(s.data[path], fields)
	if err != nil {
		return err
	}
	s.putLocked(path, doc)
	return nil
}

func (s *Store) CreateIfAbsent(_ context.Context, path string, v any) (bool, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrClosed
	}
	if _, ok := s.data[path]; ok {
		return false, nil
	}
	s.putLocked(path, doc)
	return true, nil
}

func (s *Store) Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	sub := &subscriber{ch: make(chan store.Snapshot, 1)}
	if s.subs[path] == nil {
		s.subs[path] = make(map[*subscriber]struct{})
	}
	s.subs[path][sub] = struct{}{}
	sub.ch <- store.Snapshot{Path: path, Data: s.data[path]}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[path][sub]; ok {
			delete(s.subs[path], sub)
			close(sub.ch)
		}
	}()
	return sub.ch, nil
}

// Close closes every subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for path, subs := range s.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(s.subs, path)
	}
	return nil
}

func (s *Store) putLocked(path string, doc json.RawMessage) {
	s.data[path] = doc
	for sub := range s.subs[path] {
		store.SendLatest(sub.ch, store.Snapshot{Path: path, Data: doc})
	}
}
