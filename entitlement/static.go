package entitlement

import (
	"context"
	"fmt"
	"sync"
)

var _ Collaborator = (*Static)(nil)

// Static is an in-memory Collaborator for tests and demo mode. Purchasing
// any listed package grants pro.
type Static struct {
	mu        sync.Mutex
	pro       bool
	packages  []Package
	listeners map[int]chan Info
	nextID    int
	failWith  error
}

func NewStatic(pro bool, packages ...Package) *Static {
	return &Static{
		pro:       pro,
		packages:  packages,
		listeners: make(map[int]chan Info),
	}
}

func (s *Static) IsPro(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	return s.pro, nil
}

func (s *Static) Packages(ctx context.Context) ([]Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Package(nil), s.packages...), nil
}

func (s *Static) Purchase(ctx context.Context, pkg Package) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	found := false
	for _, p := range s.packages {
		if p.ID == pkg.ID {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return Info{}, fmt.Errorf("[Static Purchase] unknown package %q", pkg.ID)
	}
	s.mu.Unlock()

	info := Info{IsPro: true, Active: []string{pkg.Entitlement}}
	s.set(info)
	return info, nil
}

func (s *Static) Updates() (<-chan Info, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan Info, 8)
	s.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			close(ch)
		})
	}
}

// SetPro changes the entitlement and notifies every listener.
func (s *Static) SetPro(pro bool) {
	info := Info{IsPro: pro}
	if pro {
		info.Active = []string{"pro"}
	}
	s.set(info)
}

// FailIsPro makes IsPro return err until cleared with nil.
func (s *Static) FailIsPro(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Listeners reports how many update listeners are registered.
func (s *Static) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Static) set(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pro = info.IsPro
	for _, ch := range s.listeners {
		select {
		case ch <- info:
		default:
		}
	}
}
