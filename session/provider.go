package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/apiclient"
	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
	"github.com/jrsteele09/dropzone-client/internal/utils"
	"github.com/jrsteele09/dropzone-client/securestore"
)

type State int

const (
	Loading State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is the in-memory view of the three persisted slots.
type Session struct {
	User         *api.User
	AccessToken  string
	RefreshToken string
}

func (s Session) IsAuthenticated() bool {
	return s.User != nil && s.AccessToken != ""
}

// Snapshot is what subscribers receive on every state change.
type Snapshot struct {
	State   State
	Session Session
}

type LoginParams struct {
	User         api.User
	AccessToken  string
	RefreshToken string
}

// TokenManager is implemented by token.Utility.
type TokenManager interface {
	IsExpired(raw string) bool
	RefreshAuthToken(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}

// Provider owns the session lifecycle: startup restore, login, sign-out and
// refresh-on-expiry. Login, SignOut and refreshes are serialised.
type Provider struct {
	tokens TokenManager
	logger zerolog.Logger

	access  *Slot
	refresh *Slot
	user    *Slot

	// opMu serialises Start, Login, SignOut and refreshes.
	opMu sync.Mutex

	// refreshedToken is the access token a refresh was last run for. The
	// same token being rejected again signs out instead of refreshing.
	refreshedToken string

	mu         sync.RWMutex
	state      State
	refreshing bool
	generation int
	changed    chan struct{}
	nextSubID  int
	subs       map[int]func(Snapshot)
}

type ProviderOption func(*Provider)

func WithLogger(l zerolog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = l
	}
}

// NewProvider builds a provider in the Loading state. tokens must write
// through the same store.
func NewProvider(store *Store, tokens TokenManager, options ...ProviderOption) *Provider {
	p := &Provider{
		tokens:  tokens,
		logger:  log.Logger,
		state:   Loading,
		changed: make(chan struct{}),
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range options {
		opt(p)
	}
	p.access = NewSlot(store, securestore.KeyAuthToken, p.logger)
	p.refresh = NewSlot(store, securestore.KeyRefreshToken, p.logger)
	p.user = NewSlot(store, securestore.KeyUserData, p.logger)
	return p
}

// Start restores the persisted session. All three slots are read before
// any decision is taken. An expired access token is refreshed once; if that
// fails the session is cleared.
func (p *Provider) Start(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, slot := range []*Slot{p.access, p.refresh, p.user} {
		g.Go(func() error {
			slot.Load(gctx)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return ierrors.Wrapf(err, "[Provider Start] cancelled while loading session")
	}

	access := p.access.Value()
	switch {
	case access == "":
		if p.refresh.Value() != "" || p.user.Value() != "" {
			p.signOutLocked(ctx)
			return nil
		}
		p.setState(Unauthenticated)
		return nil
	case p.tokens.IsExpired(access):
		p.refreshLocked(ctx)
		return nil
	}

	if p.currentUser() == nil {
		p.logger.Warn().Msg("stored session has a token but no user, signing out")
		p.signOutLocked(ctx)
		return nil
	}
	p.setState(Authenticated)
	return nil
}

// Ready blocks until the provider has left the Loading state.
func (p *Provider) Ready(ctx context.Context) error {
	for {
		p.mu.RLock()
		state, ch := p.state, p.changed
		p.mu.RUnlock()
		if state != Loading {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitReady is Ready followed by an authentication check.
func (p *Provider) WaitReady(ctx context.Context) (Session, error) {
	if err := p.Ready(ctx); err != nil {
		return Session{}, err
	}
	s := p.Session()
	if !s.IsAuthenticated() {
		return Session{}, ierrors.ErrNotAuthenticated
	}
	return s, nil
}

// Login persists all three slots and then publishes a single change. If any
// write fails the slots are cleared and the provider becomes Unauthenticated.
func (p *Provider) Login(ctx context.Context, params LoginParams) error {
	if params.User.ID == "" {
		return &ierrors.ValidationError{Field: "user.id", Reason: "is required"}
	}
	if params.AccessToken == "" {
		return &ierrors.ValidationError{Field: "accessToken", Reason: "is required"}
	}
	userJSON, err := json.Marshal(params.User)
	if err != nil {
		return ierrors.Wrapf(err, "[Provider Login] failed to encode user")
	}

	p.opMu.Lock()
	defer p.opMu.Unlock()

	refresh := &params.RefreshToken
	if params.RefreshToken == "" {
		refresh = nil
	}
	writes := []struct {
		slot  *Slot
		value *string
	}{
		{p.access, &params.AccessToken},
		{p.refresh, refresh},
		{p.user, utils.Ptr(string(userJSON))},
	}

	p.mu.Lock()
	p.refreshing = true
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range writes {
		g.Go(func() error {
			return w.slot.Set(gctx, w.value)
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Error().Err(err).Msg("failed to persist session, discarding partial writes")
		for _, w := range writes {
			if rmErr := w.slot.Set(context.WithoutCancel(ctx), nil); rmErr != nil {
				p.logger.Warn().Err(rmErr).Str("slot", w.slot.Key()).Msg("failed to discard slot")
			}
		}
		p.mu.Lock()
		p.refreshing = false
		p.mu.Unlock()
		if p.State() != Unauthenticated {
			p.setState(Unauthenticated)
		}
		return ierrors.Wrapf(err, "[Provider Login] failed to persist session")
	}

	p.refreshedToken = ""
	p.mu.Lock()
	p.refreshing = false
	p.generation++
	p.mu.Unlock()
	p.setState(Authenticated)
	p.logger.Info().Str("user", params.User.ID).Msg("signed in")
	return nil
}

// SignOut clears the session. It never fails and may be called repeatedly.
func (p *Provider) SignOut(ctx context.Context) {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.signOutLocked(ctx)
}

func (p *Provider) signOutLocked(ctx context.Context) {
	if err := p.tokens.SignOut(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn().Err(err).Msg("failed to clear secure store during sign-out")
	}
	for _, slot := range []*Slot{p.access, p.refresh, p.user} {
		slot.settle(nil)
	}
	p.mu.Lock()
	p.refreshing = false
	p.mu.Unlock()
	if p.State() != Unauthenticated {
		p.logger.Info().Msg("signed out")
	}
	p.setState(Unauthenticated)
}

// HandleUnauthorized is called with API errors. A 401 triggers one refresh
// per rejected access token; it reports whether the caller should retry its
// request. A token that is rejected again after its refresh signs out.
func (p *Provider) HandleUnauthorized(ctx context.Context, err error) bool {
	if !apiclient.IsUnauthorized(err) {
		return false
	}
	p.mu.RLock()
	gen := p.generation
	p.mu.RUnlock()
	rejected := p.access.Value()

	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.RLock()
	refreshedMeanwhile := p.generation != gen
	p.mu.RUnlock()
	if refreshedMeanwhile {
		return p.State() == Authenticated
	}
	if p.State() != Authenticated {
		return false
	}
	if rejected == p.refreshedToken {
		p.logger.Warn().Msg("unauthorized after refresh, signing out")
		p.signOutLocked(ctx)
		return false
	}
	return p.refreshLocked(ctx)
}

// Foreground starts a new refresh window and refreshes an expired token.
func (p *Provider) Foreground(ctx context.Context) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.State() != Authenticated {
		return
	}
	p.refreshedToken = ""
	if p.tokens.IsExpired(p.access.Value()) {
		p.refreshLocked(ctx)
	}
}

// refreshLocked runs one refresh, keeping the state Loading while it is in
// flight. On failure the session is cleared.
func (p *Provider) refreshLocked(ctx context.Context) bool {
	p.refreshedToken = p.access.Value()
	p.mu.Lock()
	p.refreshing = true
	p.mu.Unlock()
	p.setState(Loading)

	newToken, err := p.tokens.RefreshAuthToken(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("token refresh failed, signing out")
		p.signOutLocked(ctx)
		return false
	}

	p.access.settle(&newToken)
	p.refresh.Load(ctx)
	p.mu.Lock()
	p.refreshing = false
	p.generation++
	p.mu.Unlock()
	if p.currentUser() == nil {
		p.signOutLocked(ctx)
		return false
	}
	p.setState(Authenticated)
	return true
}

func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.refreshing {
		return Loading
	}
	return p.state
}

func (p *Provider) IsAuthenticated() bool {
	return p.State() == Authenticated && p.Session().IsAuthenticated()
}

func (p *Provider) User() *api.User {
	if p.State() != Authenticated {
		return nil
	}
	return p.currentUser()
}

// UserID is "" unless a user is signed in.
func (p *Provider) UserID() string {
	if u := p.User(); u != nil {
		return u.ID
	}
	return ""
}

func (p *Provider) Session() Session {
	return Session{
		User:         p.currentUser(),
		AccessToken:  p.access.Value(),
		RefreshToken: p.refresh.Value(),
	}
}

// Subscribe calls fn after every state change. fn must not call Login,
// SignOut or Start synchronously.
func (p *Provider) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) currentUser() *api.User {
	raw := p.user.Value()
	if raw == "" {
		return nil
	}
	var u api.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		p.logger.Warn().Err(err).Msg("stored user data is unreadable")
		return nil
	}
	return &u
}

func (p *Provider) setState(s State) {
	p.mu.Lock()
	p.state = s
	close(p.changed)
	p.changed = make(chan struct{})
	subs := make([]func(Snapshot), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	snap := Snapshot{State: p.State(), Session: p.Session()}
	for _, fn := range subs {
		fn(snap)
	}
}
