package apifake

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/dropzone-client/api"
)

const (
	DefaultAPIKey = "fake-api-key"
	defaultSecret = "fake-signing-secret"
)

type account struct {
	user        api.User
	password    string
	profile     api.Profile
	saved       map[string]bool
	logbook     []api.LogbookEntry
	submissions []api.LocationSubmission
}

// RecordedRequest is one request as seen by the fake, after routing.
type RecordedRequest struct {
	Method        string
	Route         string
	Authorization string
}

// Server is an in-process implementation of the remote API for tests and
// the CLI demo mode. Route keys used by the control methods are
// "<METHOD> <chi pattern>", e.g. "DELETE /logbook/{id}".
type Server struct {
	router chi.Router
	signer *hmacSigner

	apiKey        string
	accessTTL     time.Duration
	rotateRefresh bool
	now           func() time.Time

	mu          sync.Mutex
	accounts    map[string]*account
	byEmail     map[string]string
	refresh     map[string]string
	resetTokens map[string]string
	locations   []api.Location
	calls       map[string]int
	failures    map[string][]int
	gates       map[string]chan struct{}
	requests    []RecordedRequest
	offline     bool
}

type Option func(*Server)

func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithRefreshRotation makes every refresh return a new refresh token and
// invalidate the old one.
func WithRefreshRotation() Option {
	return func(s *Server) {
		s.rotateRefresh = true
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(options ...Option) *Server {
	s := &Server{
		signer:      newHMACSigner(defaultSecret),
		apiKey:      DefaultAPIKey,
		accessTTL:   15 * time.Minute,
		now:         time.Now,
		accounts:    make(map[string]*account),
		byEmail:     make(map[string]string),
		refresh:     make(map[string]string),
		resetTokens: make(map[string]string),
		calls:       make(map[string]int),
		failures:    make(map[string][]int),
		gates:       make(map[string]chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) APIKey() string {
	return s.apiKey
}

// AddUser registers a confirmed account and returns its identity.
func (s *Server) AddUser(email, password, name string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, name, true)
}

// AddUnconfirmedUser registers an account whose sign-in is rejected with emailUnconfirmed.
func (s *Server) AddUnconfirmedUser(email, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, "", false)
}

func (s *Server) addUserLocked(email, password, name string, confirmed bool) api.User {
	id := uuid.NewString()
	u := api.User{ID: id, Email: strings.ToLower(email), Name: name, EmailConfirmed: confirmed}
	s.accounts[id] = &account{
		user:     u,
		password: password,
		profile:  api.Profile{UserID: id, Name: name, UpdatedAt: s.now()},
		saved:    make(map[string]bool),
	}
	s.byEmail[u.Email] = id
	return u
}

// AddLocation adds a location to the shared map.
func (s *Server) AddLocation(loc api.Location) api.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	loc.IsSaved = false
	s.locations = append(s.locations, loc)
	return loc
}

// MarkSaved saves a location for a user without going through the API.
func (s *Server) MarkSaved(userID, locationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[userID]; ok {
		a.saved[locationID] = true
	}
}

// IssueTokens mints an access token valid for the configured TTL and a
// refresh token, as sign-in would.
func (s *Server) IssueTokens(userID string) (access, refresh string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID)
}

// IssueAccessToken mints an access token with an explicit expiry.
func (s *Server) IssueAccessToken(userID string, expiresAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return "", errUnknownUser
	}
	return s.signLocked(a.user, expiresAt)
}

// RevokeRefreshTokens invalidates every refresh token of userID.
func (s *Server) RevokeRefreshTokens(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, uid := range s.refresh {
		if uid == userID {
			delete(s.refresh, tok)
		}
	}
}

// FailNext makes the next n requests to route answer with status.
func (s *Server) FailNext(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures[route] = append(s.failures[route], status)
	}
}

// SetOffline drops every connection without a response while on.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Gate holds every request to route until release is called.
func (s *Server) Gate(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls reports how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Requests returns every routed request in arrival order.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *Server) Profile(userID string) api.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[userID]; ok {
		return a.profile
	}
	return api.Profile{}
}

func (s *Server) Logbook(userID string) []api.LogbookEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[userID]; ok {
		return append([]api.LogbookEntry(nil), a.logbook...)
	}
	return nil
}

func (s *Server) SavedLocationIDs(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(a.saved))
	for id := range a.saved {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResetToken returns the pending password-reset token for email.
func (s *Server) ResetToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, uid := range s.resetTokens {
		if a, ok := s.accounts[uid]; ok && a.user.Email == strings.ToLower(email) {
			return tok
		}
	}
	return ""
}

func (s *Server) issueLocked(userID string) (string, string, error) {
	a, ok := s.accounts[userID]
	if !ok {
		return "", "", errUnknownUser
	}
	access, err := s.signLocked(a.user, s.now().Add(s.accessTTL))
	if err != nil {
		return "", "", err
	}
	refresh := uuid.NewString()
	s.refresh[refresh] = userID
	return access, refresh, nil
}

func (s *Server) signLocked(u api.User, expiresAt time.Time) (string, error) {
	return s.signer.sign(accessClaims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
}
