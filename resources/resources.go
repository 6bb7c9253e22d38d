package resources

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/entitlement"
	"github.com/jrsteele09/dropzone-client/querycache"
	"github.com/jrsteele09/dropzone-client/session"
)

const (
	ProfileStaleTime        = 5 * time.Minute
	LocationsStaleTime      = 5 * time.Minute
	SavedLocationsStaleTime = 2 * time.Minute
	LogbookStaleTime        = 2 * time.Minute
	SubmissionsStaleTime    = 2 * time.Minute
)

// Resource names, the first part of every cache key.
const (
	profileResource        = "profile"
	locationsResource      = "locations"
	savedLocationsResource = "savedLocations"
	logbookResource        = "logbook"
	submissionsResource    = "submissions"
)

const submissionsFeature = "location-submissions"

var ErrProRequired = entitlement.ErrProRequired

func ProfileKey(userID string) querycache.Key {
	return querycache.NewKey(profileResource, userID)
}

func LocationsKey(filter api.LocationFilter) querycache.Key {
	return querycache.NewKey(locationsResource, filter)
}

func SavedLocationsKey(userID string) querycache.Key {
	return querycache.NewKey(savedLocationsResource, userID)
}

func LogbookKey(userID string) querycache.Key {
	return querycache.NewKey(logbookResource, userID)
}

func SubmissionsKey(userID string) querycache.Key {
	return querycache.NewKey(submissionsResource, userID)
}

// Session is the part of session.Provider the resources depend on.
type Session interface {
	Ready(ctx context.Context) error
	UserID() string
	HandleUnauthorized(ctx context.Context, err error) bool
	Login(ctx context.Context, params session.LoginParams) error
	SignOut(ctx context.Context)
}

var _ Session = (*session.Provider)(nil)

// ProGate answers whether a paid feature is unlocked. entitlement.Gate
// implements it.
type ProGate interface {
	RequirePro(feature string) error
}

// Result is what a read hands back: the data, whether a refetch of that
// data is still running, and the error of the read if any.
type Result[T any] struct {
	Data      T
	IsLoading bool
	Err       error
}

// Resources binds the remote API to the query cache with the per-resource
// keys, staleness windows, invalidation edges and optimistic updates.
type Resources struct {
	api     *api.API
	session Session
	cache   *querycache.Client
	gate    ProGate
	logger  zerolog.Logger

	updateProfile  *querycache.Mutation[api.ProfileUpdate, api.Profile]
	saveLocation   *querycache.Mutation[string, struct{}]
	unsaveLocation *querycache.Mutation[string, struct{}]
	submitLocation *querycache.Mutation[api.NewLocationSubmission, api.LocationSubmission]
	addLogbook     *querycache.Mutation[api.NewLogbookEntry, api.LogbookEntry]
	deleteLogbook  *querycache.Mutation[string, struct{}]
}

type Option func(*Resources)

// WithProGate enables gated features. Without a gate they stay locked.
func WithProGate(g ProGate) Option {
	return func(r *Resources) {
		r.gate = g
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resources) {
		r.logger = l
	}
}

func New(a *api.API, sess Session, cache *querycache.Client, options ...Option) *Resources {
	r := &Resources{
		api:     a,
		session: sess,
		cache:   cache,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	r.updateProfile = querycache.NewMutation(cache, r.updateProfileOptions())
	r.saveLocation = querycache.NewMutation(cache, r.toggleSavedOptions(true))
	r.unsaveLocation = querycache.NewMutation(cache, r.toggleSavedOptions(false))
	r.submitLocation = querycache.NewMutation(cache, r.submitLocationOptions())
	r.addLogbook = querycache.NewMutation(cache, r.addLogbookOptions())
	r.deleteLogbook = querycache.NewMutation(cache, r.deleteLogbookOptions())
	return r
}

func (r *Resources) Cache() *querycache.Client {
	return r.cache
}

// userID waits for the session to settle and returns the signed-in user,
// or "" when there is none.
func (r *Resources) userID(ctx context.Context) (string, error) {
	if err := r.session.Ready(ctx); err != nil {
		return "", err
	}
	return r.session.UserID(), nil
}

func (r *Resources) requirePro() error {
	if r.gate == nil {
		return ErrProRequired
	}
	return r.gate.RequirePro(submissionsFeature)
}

// authed waits for any session refresh before sending and, when the server
// answers 401, lets the session refresh once and repeats the call.
func authed[T any](r *Resources, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var zero T
		if err := r.session.Ready(ctx); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err != nil && r.session.HandleUnauthorized(ctx, err) {
			return fn(ctx)
		}
		return v, err
	}
}

func discard(fn func(ctx context.Context, id string) error) func(ctx context.Context, id string) (struct{}, error) {
	return func(ctx context.Context, id string) (struct{}, error) {
		return struct{}{}, fn(ctx, id)
	}
}

func read[T any](ctx context.Context, r *Resources, opts querycache.QueryOptions[T]) Result[T] {
	data, err := querycache.Query(ctx, r.cache, opts)
	res := Result[T]{Data: data, Err: err}
	if st, ok := r.cache.QueryState(opts.Key); ok {
		res.IsLoading = st.Fetching
	}
	return res
}

// userQuery runs a query scoped to the signed-in user. It is disabled until
// the session has a user.
func userQuery[T any](ctx context.Context, r *Resources, key func(string) querycache.Key, stale time.Duration, fetch func(context.Context) (T, error)) Result[T] {
	uid, err := r.userID(ctx)
	if err != nil {
		return Result[T]{Err: err}
	}
	return read(ctx, r, querycache.QueryOptions[T]{
		Key:       key(uid),
		Fetch:     authed(r, fetch),
		StaleTime: stale,
		Disabled:  uid == "",
	})
}

// Reset drops every cached query. Called when the user changes.
func (r *Resources) Reset() {
	if n := r.cache.RemoveQueries(querycache.Key{}); n > 0 {
		r.logger.Debug().Int("entries", n).Msg("query cache cleared")
	}
}
