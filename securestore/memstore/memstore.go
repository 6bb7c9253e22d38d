package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/dropzone-client/securestore"
)

var _ securestore.Store = (*Store)(nil)

// Store is an in-memory secure store. The backing map can be shared between
// instances through Reopen to simulate a process restart.
type Store struct {
	mu     sync.RWMutex
	values map[string]string

	failMu    sync.RWMutex
	failGets  map[string]error
	failSets  map[string]error
	getHook   func(key string)
	setCalls  map[string]int
	getCalls  map[string]int
	removeLog []string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		values:   make(map[string]string),
		failGets: make(map[string]error),
		failSets: make(map[string]error),
		setCalls: make(map[string]int),
		getCalls: make(map[string]int),
	}
}

// Reopen returns a fresh Store over the same persisted values, with no
// injected failures or call counters carried across.
func (s *Store) Reopen() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := New()
	for k, v := range s.values {
		n.values[k] = v
	}
	return n
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.failMu.Lock()
	s.getCalls[key]++
	hook := s.getHook
	err := s.failGets[key]
	s.failMu.Unlock()

	if hook != nil {
		hook(key)
	}
	if err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("key is required")
	}

	s.failMu.Lock()
	s.setCalls[key]++
	err := s.failSets[key]
	s.failMu.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.failMu.Lock()
	s.removeLog = append(s.removeLog, key)
	s.failMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Snapshot returns a copy of every stored value.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// FailGet makes every Get of key return err until cleared with a nil err.
func (s *Store) FailGet(key string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failGets, key)
		return
	}
	s.failGets[key] = err
}

// FailSet makes every Set of key return err until cleared with a nil err.
func (s *Store) FailSet(key string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failSets, key)
		return
	}
	s.failSets[key] = err
}

// OnGet registers a callback invoked on every Get before the value is read.
func (s *Store) OnGet(hook func(key string)) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.getHook = hook
}

// GetCalls reports how many times key was read.
func (s *Store) GetCalls(key string) int {
	s.failMu.RLock()
	defer s.failMu.RUnlock()
	return s.getCalls[key]
}

// SetCalls reports how many times key was written.
func (s *Store) SetCalls(key string) int {
	s.failMu.RLock()
	defer s.failMu.RUnlock()
	return s.setCalls[key]
}
