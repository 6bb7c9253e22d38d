package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/dropzone-client/internal/utils"
)

// Slot is one persisted session value with a loading flag distinct from
// absence. It starts loading and settles on the first Load.
type Slot struct {
	key    string
	store  *Store
	logger zerolog.Logger

	mu      sync.RWMutex
	loading bool
	value   *string
	nextID  int
	subs    map[int]func(loading bool, value *string)
}

func NewSlot(store *Store, key string, logger zerolog.Logger) *Slot {
	return &Slot{
		key:     key,
		store:   store,
		logger:  logger,
		loading: true,
		subs:    make(map[int]func(bool, *string)),
	}
}

func (s *Slot) Key() string {
	return s.key
}

// Load reads the slot from the store. A read error resolves the slot as
// absent and is only logged.
func (s *Slot) Load(ctx context.Context) {
	v, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn().Err(err).Str("slot", s.key).Msg("secure store read failed, treating slot as empty")
		ok = false
	}
	var value *string
	if ok {
		value = &v
	}
	s.settle(value)
}

func (s *Slot) State() (loading bool, value *string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading, copyValue(s.value)
}

// Value returns the current value, or "" when absent or still loading.
func (s *Slot) Value() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return utils.Value(s.value)
}

// Set persists value, or removes the slot when value is nil. The in-memory
// state only changes after the store acknowledged the write.
func (s *Slot) Set(ctx context.Context, value *string) error {
	var err error
	if value == nil {
		err = s.store.Remove(ctx, s.key)
	} else {
		err = s.store.Set(ctx, s.key, *value)
	}
	if err != nil {
		return err
	}
	s.settle(copyValue(value))
	return nil
}

// Subscribe calls fn on every change until the returned func is called.
func (s *Slot) Subscribe(fn func(loading bool, value *string)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// settle updates the cached value without touching the store.
func (s *Slot) settle(value *string) {
	s.mu.Lock()
	s.loading = false
	s.value = value
	subs := make([]func(bool, *string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(false, copyValue(value))
	}
}

func copyValue(v *string) *string {
	if v == nil {
		return nil
	}
	return utils.Ptr(*v)
}
