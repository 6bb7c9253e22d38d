package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/dropzone-client/session"
)

var ErrProRequired = errors.New("pro subscription required")

// SessionSource is the part of session.Provider the gate follows.
type SessionSource interface {
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// Gate tracks the entitlement of the signed-in user. It holds exactly one
// update listener per authenticated session and drops it on sign-out.
type Gate struct {
	collab Collaborator
	logger zerolog.Logger

	mu      sync.RWMutex
	info    Info
	userID  string
	updated bool
	stop    func()
	wg      sync.WaitGroup
}

type GateOption func(*Gate)

func WithLogger(l zerolog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = l
	}
}

func NewGate(c Collaborator, options ...GateOption) *Gate {
	g := &Gate{
		collab: c,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Bind follows the session: a newly authenticated user starts a listener,
// sign-out stops it. The returned func unbinds and stops any listener.
func (g *Gate) Bind(src SessionSource) (unbind func()) {
	unsubscribe := src.Subscribe(func(s session.Snapshot) {
		switch {
		case s.State == session.Authenticated && s.Session.User != nil:
			g.Start(s.Session.User.ID)
		case s.State == session.Unauthenticated:
			g.Stop()
		}
	})
	return func() {
		unsubscribe()
		g.Stop()
	}
}

// Start subscribes for userID. Calling it again for the same user is a no-op.
func (g *Gate) Start(userID string) {
	g.mu.Lock()
	if g.stop != nil && g.userID == userID {
		g.mu.Unlock()
		return
	}
	g.stopLocked()

	updates, cancel := g.collab.Updates()
	g.userID = userID
	g.updated = false
	g.stop = cancel
	g.wg.Add(2)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		for info := range updates {
			g.apply(userID, info, true)
		}
	}()
	go func() {
		defer g.wg.Done()
		pro, err := g.collab.IsPro(context.Background())
		if err != nil {
			g.logger.Warn().Err(err).Msg("failed to read entitlement")
			return
		}
		g.apply(userID, Info{IsPro: pro}, false)
	}()
}

// Stop drops the listener and forgets the entitlement.
func (g *Gate) Stop() {
	g.mu.Lock()
	g.stopLocked()
	g.mu.Unlock()
}

func (g *Gate) stopLocked() {
	if g.stop != nil {
		g.stop()
		g.stop = nil
	}
	g.userID = ""
	g.info = Info{}
}

// Wait blocks until every listener goroutine has exited.
func (g *Gate) Wait() {
	g.wg.Wait()
}

// apply stores info for userID. The initial read never overwrites a pushed
// update.
func (g *Gate) apply(userID string, info Info, pushed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.userID != userID || (!pushed && g.updated) {
		return
	}
	g.updated = g.updated || pushed
	g.info = info
}

func (g *Gate) IsPro() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.info.IsPro
}

func (g *Gate) Info() Info {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.info
}

// RequirePro returns an error wrapping ErrProRequired when feature is locked.
func (g *Gate) RequirePro(feature string) error {
	if g.IsPro() {
		return nil
	}
	return fmt.Errorf("%s: %w", feature, ErrProRequired)
}

func (g *Gate) Packages(ctx context.Context) ([]Package, error) {
	return g.collab.Packages(ctx)
}

// Purchase buys pkg for the signed-in user and applies the resulting state.
func (g *Gate) Purchase(ctx context.Context, pkg Package) (Info, error) {
	g.mu.RLock()
	userID := g.userID
	g.mu.RUnlock()
	if userID == "" {
		return Info{}, fmt.Errorf("[Gate Purchase] no signed-in user")
	}
	info, err := g.collab.Purchase(ctx, pkg)
	if err != nil {
		return Info{}, fmt.Errorf("[Gate Purchase] %w", err)
	}
	g.apply(userID, info, true)
	return info, nil
}
