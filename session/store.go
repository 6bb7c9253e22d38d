package session

import (
	"context"
	"sync"

	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
	"github.com/jrsteele09/dropzone-client/securestore"
)

var _ securestore.Store = (*Store)(nil)

// Store serialises writes per key on top of a secure store backend. Writes
// to different keys may run concurrently. A write has reached the backend
// once Set or Remove returns.
type Store struct {
	backend securestore.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(backend securestore.Store) *Store {
	return &Store{
		backend: backend,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", false, &ierrors.StorageError{Op: "get", Key: key, Err: err}
	}
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	if err := s.backend.Set(ctx, key, value); err != nil {
		return &ierrors.StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	if err := s.backend.Remove(ctx, key); err != nil {
		return &ierrors.StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}
