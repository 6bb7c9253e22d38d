package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/api/apifake"
	"github.com/jrsteele09/dropzone-client/apiclient"
	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
	"github.com/jrsteele09/dropzone-client/securestore"
	"github.com/jrsteele09/dropzone-client/securestore/filestore"
	"github.com/jrsteele09/dropzone-client/securestore/memstore"
	"github.com/jrsteele09/dropzone-client/session"
	"github.com/jrsteele09/dropzone-client/token"
)

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type testFixture struct {
	fake     *apifake.Server
	backend  *memstore.Store
	store    *session.Store
	api      *api.API
	tokens   *token.Utility
	provider *session.Provider
	user     api.User
}

func setupTestFixture(t *testing.T, opts ...apifake.Option) *testFixture {
	t.Helper()
	now := func() time.Time { return fixedNow }

	fake := apifake.New(append([]apifake.Option{apifake.WithNowFunc(now)}, opts...)...)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	backend := memstore.New()
	store := session.NewStore(backend)
	client, err := apiclient.New(srv.URL, fake.APIKey(), store, apiclient.WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	a := api.New(client)

	tokens := token.NewUtility(store, token.NewAPIRefresher(a), token.WithRevoker(a), token.WithNowFunc(now))
	return &testFixture{
		fake:     fake,
		backend:  backend,
		store:    store,
		api:      a,
		tokens:   tokens,
		provider: session.NewProvider(store, tokens),
		user:     fake.AddUser("jumper@example.com", "password123", "Jumper"),
	}
}

// persist writes a session straight into the backend, as a previous run would have.
func (f *testFixture) persist(t *testing.T, access, refresh string, user *api.User) {
	t.Helper()
	ctx := context.Background()
	if access != "" {
		require.NoError(t, f.backend.Set(ctx, securestore.KeyAuthToken, access))
	}
	if refresh != "" {
		require.NoError(t, f.backend.Set(ctx, securestore.KeyRefreshToken, refresh))
	}
	if user != nil {
		raw, err := json.Marshal(user)
		require.NoError(t, err)
		require.NoError(t, f.backend.Set(ctx, securestore.KeyUserData, string(raw)))
	}
}

func (f *testFixture) recordStates() *[]session.State {
	var mu sync.Mutex
	states := &[]session.State{}
	f.provider.Subscribe(func(s session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		*states = append(*states, s.State)
	})
	return states
}

func TestStart_NoStoredSessionIsUnauthenticated(t *testing.T) {
	f := setupTestFixture(t)
	require.Equal(t, session.Loading, f.provider.State())

	require.NoError(t, f.provider.Start(context.Background()))
	require.Equal(t, session.Unauthenticated, f.provider.State())
	require.Nil(t, f.provider.User())
}

func TestStart_ValidTokenRestoresSession(t *testing.T) {
	f := setupTestFixture(t)
	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	f.persist(t, access, refresh, &f.user)

	require.NoError(t, f.provider.Start(context.Background()))
	require.Equal(t, session.Authenticated, f.provider.State())
	require.Equal(t, f.user.ID, f.provider.UserID())
	require.Zero(t, f.fake.Calls("POST "+api.PathRefresh))
}

func TestStart_ExpiredTokenIsRefreshed(t *testing.T) {
	f := setupTestFixture(t)
	_, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	expired, err := f.fake.IssueAccessToken(f.user.ID, fixedNow.Add(-10*time.Minute))
	require.NoError(t, err)
	f.persist(t, expired, refresh, &f.user)
	states := f.recordStates()

	require.NoError(t, f.provider.Start(context.Background()))

	require.Equal(t, session.Authenticated, f.provider.State())
	require.Equal(t, []session.State{session.Loading, session.Authenticated}, *states)
	snap := f.backend.Snapshot()
	require.NotEqual(t, expired, snap[securestore.KeyAuthToken])
	require.False(t, f.tokens.IsExpired(snap[securestore.KeyAuthToken]))
	require.Equal(t, refresh, snap[securestore.KeyRefreshToken])
	require.Equal(t, 1, f.fake.Calls("POST "+api.PathRefresh))
}

func TestStart_RotatedRefreshTokenIsPersisted(t *testing.T) {
	f := setupTestFixture(t, apifake.WithRefreshRotation())
	_, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	expired, err := f.fake.IssueAccessToken(f.user.ID, fixedNow.Add(-time.Minute))
	require.NoError(t, err)
	f.persist(t, expired, refresh, &f.user)

	require.NoError(t, f.provider.Start(context.Background()))
	require.Equal(t, session.Authenticated, f.provider.State())
	require.NotEqual(t, refresh, f.backend.Snapshot()[securestore.KeyRefreshToken])
	require.Equal(t, f.backend.Snapshot()[securestore.KeyRefreshToken], f.provider.Session().RefreshToken)
}

func TestStart_RefreshRejectedSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	expired, err := f.fake.IssueAccessToken(f.user.ID, fixedNow.Add(-10*time.Minute))
	require.NoError(t, err)
	f.persist(t, expired, "revoked-refresh-token", &f.user)
	states := f.recordStates()

	require.NoError(t, f.provider.Start(context.Background()))

	require.Equal(t, session.Unauthenticated, f.provider.State())
	require.Equal(t, []session.State{session.Loading, session.Unauthenticated}, *states)
	require.Empty(t, f.backend.Snapshot())
	require.Equal(t, 1, f.fake.Calls("POST "+api.PathRefresh))
}

func TestStart_TokenWithoutUserSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	f.persist(t, access, refresh, nil)

	require.NoError(t, f.provider.Start(context.Background()))
	require.Equal(t, session.Unauthenticated, f.provider.State())
	require.Empty(t, f.backend.Snapshot())
}

func TestStart_StorageReadFailureResolvesAbsent(t *testing.T) {
	f := setupTestFixture(t)
	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	f.persist(t, access, refresh, &f.user)
	f.backend.FailGet(securestore.KeyAuthToken, errors.New("keychain locked"))

	require.NoError(t, f.provider.Start(context.Background()))
	require.Equal(t, session.Unauthenticated, f.provider.State())
}

func TestStart_ReadsAllSlotsBeforeDeciding(t *testing.T) {
	f := setupTestFixture(t)
	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	f.persist(t, access, refresh, &f.user)

	require.NoError(t, f.provider.Start(context.Background()))
	for _, key := range securestore.SessionKeys {
		require.Equal(t, 1, f.backend.GetCalls(key), key)
	}
}

func TestRequestsWaitForBootRefresh(t *testing.T) {
	f := setupTestFixture(t)
	_, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	expired, err := f.fake.IssueAccessToken(f.user.ID, fixedNow.Add(-10*time.Minute))
	require.NoError(t, err)
	f.persist(t, expired, refresh, &f.user)

	release := f.fake.Gate("POST " + api.PathRefresh)
	started := make(chan error, 1)
	go func() { started <- f.provider.Start(context.Background()) }()

	requested := make(chan error, 1)
	go func() {
		if _, err := f.provider.WaitReady(context.Background()); err != nil {
			requested <- err
			return
		}
		_, err := f.api.GetProfile(context.Background())
		requested <- err
	}()

	require.Eventually(t, func() bool { return f.fake.Calls("POST "+api.PathRefresh) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, f.fake.Calls("GET "+api.PathProfile))
	require.Equal(t, session.Loading, f.provider.State())

	release()
	require.NoError(t, <-started)
	require.NoError(t, <-requested)

	var profileAuth string
	for _, r := range f.fake.Requests() {
		if r.Route == "GET "+api.PathProfile {
			profileAuth = r.Authorization
		}
	}
	require.NotEqual(t, "Bearer "+expired, profileAuth)
	require.Equal(t, "Bearer "+f.backend.Snapshot()[securestore.KeyAuthToken], profileAuth)
}

func TestLogin_WritesAllSlotsThenPublishesOnce(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))

	var snaps []session.Snapshot
	f.provider.Subscribe(func(s session.Snapshot) { snaps = append(snaps, s) })

	err := f.provider.Login(context.Background(), session.LoginParams{
		User: f.user, AccessToken: "access-1", RefreshToken: "refresh-1",
	})
	require.NoError(t, err)

	require.True(t, f.provider.IsAuthenticated())
	snap := f.backend.Snapshot()
	require.Equal(t, "access-1", snap[securestore.KeyAuthToken])
	require.Equal(t, "refresh-1", snap[securestore.KeyRefreshToken])
	require.Contains(t, snap[securestore.KeyUserData], f.user.ID)

	require.Len(t, snaps, 1)
	require.Equal(t, session.Authenticated, snaps[0].State)
	require.True(t, snaps[0].Session.IsAuthenticated())
	require.Equal(t, "refresh-1", snaps[0].Session.RefreshToken)
}

func TestLogin_NeverObservablePartial(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))

	var mu sync.Mutex
	var observed []session.Snapshot
	f.provider.Subscribe(func(s session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, s)
	})

	done := make(chan error, 1)
	go func() {
		done <- f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: "a", RefreshToken: "r"})
	}()
	for finished := false; !finished; {
		select {
		case err := <-done:
			require.NoError(t, err)
			finished = true
		default:
			if u := f.provider.User(); u != nil {
				require.Equal(t, "r", f.provider.Session().RefreshToken)
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 1)
	require.Equal(t, "a", observed[0].Session.AccessToken)
	require.Equal(t, "r", observed[0].Session.RefreshToken)
	require.Equal(t, f.user.ID, observed[0].Session.User.ID)
}

func TestLogin_WriteFailureLeavesNoPartialSession(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))
	f.backend.FailSet(securestore.KeyUserData, errors.New("disk full"))

	err := f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: "a", RefreshToken: "r"})
	require.Error(t, err)
	require.False(t, f.provider.IsAuthenticated())
	require.Equal(t, session.Unauthenticated, f.provider.State())
	require.Empty(t, f.backend.Snapshot())
}

func TestLogin_WriteFailureWhileSignedInSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))
	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: access, RefreshToken: refresh}))
	require.Equal(t, session.Authenticated, f.provider.State())

	f.backend.FailSet(securestore.KeyUserData, errors.New("disk full"))
	err = f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: "a", RefreshToken: "r"})
	require.ErrorContains(t, err, "[Provider Login] failed to persist session")
	require.Equal(t, session.Unauthenticated, f.provider.State())
	require.Empty(t, f.backend.Snapshot())
}

func TestLogin_RejectsIncompleteParams(t *testing.T) {
	f := setupTestFixture(t)
	require.Error(t, f.provider.Login(context.Background(), session.LoginParams{AccessToken: "a"}))
	require.Error(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user}))
	require.Empty(t, f.backend.Snapshot())
}

func TestSignOut_IsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))
	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: access, RefreshToken: refresh}))

	f.provider.SignOut(context.Background())
	require.Equal(t, session.Unauthenticated, f.provider.State())
	require.Empty(t, f.backend.Snapshot())
	require.Equal(t, 1, f.fake.Calls("POST "+api.PathSignOut))

	f.provider.SignOut(context.Background())
	require.Equal(t, session.Unauthenticated, f.provider.State())
	require.Empty(t, f.backend.Snapshot())
}

func TestSignOut_OfflineStillClearsSlots(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))
	require.NoError(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: "a", RefreshToken: "r"}))
	f.fake.SetOffline(true)

	f.provider.SignOut(context.Background())
	require.Empty(t, f.backend.Snapshot())
	require.False(t, f.provider.IsAuthenticated())
}

func TestHandleUnauthorized_RefreshesEachRejectedToken(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))
	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: access, RefreshToken: refresh}))

	unauthorized := &apiclient.HTTPError{Status: http.StatusUnauthorized}
	require.False(t, f.provider.HandleUnauthorized(context.Background(), &apiclient.HTTPError{Status: http.StatusForbidden}))

	require.True(t, f.provider.HandleUnauthorized(context.Background(), unauthorized))
	require.Equal(t, 1, f.fake.Calls("POST "+api.PathRefresh))
	require.True(t, f.provider.IsAuthenticated())
	refreshed := f.provider.Session().AccessToken
	require.NotEqual(t, access, refreshed)

	require.True(t, f.provider.HandleUnauthorized(context.Background(), unauthorized))
	require.Equal(t, 2, f.fake.Calls("POST "+api.PathRefresh))
	require.True(t, f.provider.IsAuthenticated())
	require.NotEqual(t, refreshed, f.provider.Session().AccessToken)
}

func TestHandleUnauthorized_RefreshesAfterStartupRefresh(t *testing.T) {
	f := setupTestFixture(t)
	_, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	expired, err := f.fake.IssueAccessToken(f.user.ID, fixedNow.Add(-10*time.Minute))
	require.NoError(t, err)
	f.persist(t, expired, refresh, &f.user)

	require.NoError(t, f.provider.Start(context.Background()))
	require.Equal(t, session.Authenticated, f.provider.State())
	require.Equal(t, 1, f.fake.Calls("POST "+api.PathRefresh))

	require.True(t, f.provider.HandleUnauthorized(context.Background(), &apiclient.HTTPError{Status: http.StatusUnauthorized}))
	require.Equal(t, 2, f.fake.Calls("POST "+api.PathRefresh))
	require.Equal(t, session.Authenticated, f.provider.State())
	require.Equal(t, refresh, f.backend.Snapshot()[securestore.KeyRefreshToken])
}

// staticRefresher always hands back the same access token.
type staticRefresher struct {
	access string
	calls  atomic.Int32
}

func (r *staticRefresher) Refresh(context.Context, string) (token.Pair, error) {
	r.calls.Add(1)
	return token.Pair{AccessToken: r.access}, nil
}

func TestHandleUnauthorized_SameTokenRejectedAgainSignsOut(t *testing.T) {
	backend := memstore.New()
	store := session.NewStore(backend)
	refresher := &staticRefresher{access: "rejected-access"}
	tokens := token.NewUtility(store, refresher, token.WithNowFunc(func() time.Time { return fixedNow }))
	provider := session.NewProvider(store, tokens)
	require.NoError(t, provider.Start(context.Background()))
	user := api.User{ID: "user-1", Email: "jumper@example.com"}
	require.NoError(t, provider.Login(context.Background(), session.LoginParams{User: user, AccessToken: "first-access", RefreshToken: "refresh"}))

	unauthorized := &apiclient.HTTPError{Status: http.StatusUnauthorized}
	require.True(t, provider.HandleUnauthorized(context.Background(), unauthorized))
	require.EqualValues(t, 1, refresher.calls.Load())
	require.Equal(t, "rejected-access", provider.Session().AccessToken)

	require.True(t, provider.HandleUnauthorized(context.Background(), unauthorized))
	require.EqualValues(t, 2, refresher.calls.Load())

	require.False(t, provider.HandleUnauthorized(context.Background(), unauthorized))
	require.EqualValues(t, 2, refresher.calls.Load())
	require.Equal(t, session.Unauthenticated, provider.State())
	require.Empty(t, backend.Snapshot())
}

func TestHandleUnauthorized_ConcurrentCallersShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))
	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: access, RefreshToken: refresh}))

	release := f.fake.Gate("POST " + api.PathRefresh)
	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.provider.HandleUnauthorized(context.Background(), &apiclient.HTTPError{Status: http.StatusUnauthorized})
		}()
	}
	require.Eventually(t, func() bool { return f.fake.Calls("POST "+api.PathRefresh) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	require.Equal(t, 1, f.fake.Calls("POST "+api.PathRefresh))
	for _, r := range results {
		require.True(t, r)
	}
}

func TestForeground_RefreshesExpiredToken(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))
	_, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	expired, err := f.fake.IssueAccessToken(f.user.ID, fixedNow.Add(10*time.Second))
	require.NoError(t, err)
	require.NoError(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: expired, RefreshToken: refresh}))

	f.provider.Foreground(context.Background())
	require.Equal(t, 1, f.fake.Calls("POST "+api.PathRefresh))
	require.True(t, f.provider.IsAuthenticated())
	require.NotEqual(t, expired, f.provider.Session().AccessToken)

	f.provider.Foreground(context.Background())
	require.Equal(t, 1, f.fake.Calls("POST "+api.PathRefresh))
}

func TestTokenSource(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))

	_, err := f.provider.TokenSource(context.Background()).Token()
	require.Error(t, err)

	access, refresh, err := f.fake.IssueTokens(f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: access, RefreshToken: refresh}))

	tok, err := f.provider.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, access, tok.AccessToken)
	require.Equal(t, refresh, tok.RefreshToken)
	require.False(t, tok.Expiry.IsZero())
}

func TestTokenSource_ExpiredTokenWithoutRefresh(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.provider.Start(context.Background()))
	expired, err := f.fake.IssueAccessToken(f.user.ID, fixedNow.Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, f.provider.Login(context.Background(), session.LoginParams{User: f.user, AccessToken: expired, RefreshToken: "unknown-refresh"}))

	_, err = f.provider.TokenSource(context.Background()).Token()
	require.ErrorIs(t, err, ierrors.ErrTokenExpired)
	require.Equal(t, 1, f.fake.Calls("POST "+api.PathRefresh))
	require.Equal(t, session.Unauthenticated, f.provider.State())
}

func TestSession_DurableAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.enc")
	ctx := context.Background()

	fs, err := filestore.Open(path, "correct horse")
	require.NoError(t, err)
	store := session.NewStore(fs)
	tokens := token.NewUtility(store, token.NewAPIRefresher(nil), token.WithNowFunc(func() time.Time { return fixedNow }))
	p := session.NewProvider(store, tokens)
	require.NoError(t, p.Start(ctx))

	access := unsignedToken(t, fixedNow.Add(time.Hour))
	user := api.User{ID: "user-1", Email: "a@example.com"}
	require.NoError(t, p.Login(ctx, session.LoginParams{User: user, AccessToken: access, RefreshToken: "r"}))

	reopened, err := filestore.Open(path, "correct horse")
	require.NoError(t, err)
	store2 := session.NewStore(reopened)
	p2 := session.NewProvider(store2, token.NewUtility(store2, token.NewAPIRefresher(nil), token.WithNowFunc(func() time.Time { return fixedNow })))
	require.NoError(t, p2.Start(ctx))
	require.Equal(t, session.Authenticated, p2.State())
	require.Equal(t, "user-1", p2.UserID())

	mem := memstore.New()
	require.NoError(t, mem.Set(ctx, securestore.KeyAuthToken, access))
	require.Equal(t, access, mustGet(t, mem.Reopen(), securestore.KeyAuthToken))
}

func TestSlot_LoadingDistinctFromAbsent(t *testing.T) {
	backend := memstore.New()
	slot := session.NewSlot(session.NewStore(backend), securestore.KeyAuthToken, zerologNop())

	loading, value := slot.State()
	require.True(t, loading)
	require.Nil(t, value)

	var events []bool
	unsubscribe := slot.Subscribe(func(loading bool, value *string) { events = append(events, value != nil) })

	slot.Load(context.Background())
	loading, value = slot.State()
	require.False(t, loading)
	require.Nil(t, value)

	v := "token"
	require.NoError(t, slot.Set(context.Background(), &v))
	_, value = slot.State()
	require.Equal(t, "token", *value)
	require.Equal(t, "token", mustGet(t, backend, securestore.KeyAuthToken))

	unsubscribe()
	require.NoError(t, slot.Set(context.Background(), nil))
	require.Equal(t, []bool{false, true}, events)
	_, ok, err := backend.Get(context.Background(), securestore.KeyAuthToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSlot_FailedWriteKeepsPreviousValue(t *testing.T) {
	backend := memstore.New()
	slot := session.NewSlot(session.NewStore(backend), securestore.KeyAuthToken, zerologNop())
	slot.Load(context.Background())
	backend.FailSet(securestore.KeyAuthToken, errors.New("denied"))

	v := "token"
	require.Error(t, slot.Set(context.Background(), &v))
	_, value := slot.State()
	require.Nil(t, value)
}

func TestStore_SerialisesWritesPerKey(t *testing.T) {
	backend := memstore.New()
	store := session.NewStore(backend)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, store.Set(ctx, securestore.KeyAuthToken, "v"))
		}()
	}
	wg.Wait()
	require.Equal(t, 50, backend.SetCalls(securestore.KeyAuthToken))
}

func unsignedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	return raw
}

func mustGet(t *testing.T, s securestore.Store, key string) string {
	t.Helper()
	v, ok, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	return v
}

func zerologNop() zerolog.Logger {
	return zerolog.Nop()
}
