package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/api/apifake"
	"github.com/jrsteele09/dropzone-client/apiclient"
	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
	"github.com/jrsteele09/dropzone-client/internal/utils"
	"github.com/jrsteele09/dropzone-client/securestore"
	"github.com/jrsteele09/dropzone-client/securestore/memstore"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	fake  *apifake.Server
	store *memstore.Store
	api   *api.API
	user  api.User
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	fake := apifake.New()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store := memstore.New()
	client, err := apiclient.New(srv.URL, fake.APIKey(), store, apiclient.WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	user := fake.AddUser("jumper@example.com", "password123", "Jumper")
	return &testFixture{fake: fake, store: store, api: api.New(client), user: user}
}

func (f *testFixture) signIn(t *testing.T) api.AuthResult {
	t.Helper()
	res, err := f.api.SignIn(context.Background(), api.Credentials{Email: "jumper@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), securestore.KeyAuthToken, res.AccessToken))
	return res
}

func TestSignIn_ReturnsUserAndTokens(t *testing.T) {
	f := setupTestFixture(t)

	res := f.signIn(t)
	require.Equal(t, f.user.ID, res.User.ID)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
}

func TestSignIn_WrongPasswordIs401(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.api.SignIn(context.Background(), api.Credentials{Email: "jumper@example.com", Password: "wrong-password"})
	require.True(t, apiclient.IsUnauthorized(err))
}

func TestSignIn_UnconfirmedEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.fake.AddUnconfirmedUser("new@example.com", "password123")

	_, err := f.api.SignIn(context.Background(), api.Credentials{Email: "new@example.com", Password: "password123"})
	httpErr, ok := apiclient.AsHTTPError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, httpErr.Status)
	require.True(t, httpErr.EmailUnconfirmed)
}

func TestCall_ValidatesBeforeSending(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.api.SignIn(context.Background(), api.Credentials{Email: "not-an-email", Password: "password123"})
	require.ErrorIs(t, err, ierrors.ErrValidation)
	require.Zero(t, f.fake.Calls("POST "+api.PathSignIn))
}

func TestProtectedEndpoint_WithoutTokenIs401(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.api.GetProfile(context.Background())
	require.True(t, apiclient.IsUnauthorized(err))
}

func TestProfile_UpdateRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)

	updated, err := f.api.UpdateProfile(context.Background(), api.ProfileUpdate{Bio: utils.Ptr("Belly flyer")})
	require.NoError(t, err)
	require.Equal(t, "Belly flyer", updated.Bio)
	require.Equal(t, "Jumper", updated.Name)

	got, err := f.api.GetProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Belly flyer", got.Bio)
}

func TestLocations_FilterAndSave(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)
	eloy := f.fake.AddLocation(api.Location{Name: "Skydive Eloy", Country: "US"})
	f.fake.AddLocation(api.Location{Name: "Skydive Empuriabrava", Country: "ES"})
	ctx := context.Background()

	locs, err := f.api.ListLocations(ctx, api.LocationFilter{Country: "US"})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.False(t, locs[0].IsSaved)

	require.NoError(t, f.api.SaveLocation(ctx, eloy.ID))
	saved, err := f.api.ListSavedLocations(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.True(t, saved[0].IsSaved)

	require.NoError(t, f.api.UnsaveLocation(ctx, eloy.ID))
	require.Empty(t, f.fake.SavedLocationIDs(f.user.ID))

	err = f.api.SaveLocation(ctx, "missing")
	require.Equal(t, http.StatusNotFound, apiclient.StatusCode(err))
}

func TestLogbook_CreateAndDeleteMaintainJumpCount(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)
	ctx := context.Background()

	entry, err := f.api.CreateLogbookEntry(ctx, api.NewLogbookEntry{JumpNumber: 1, Date: time.Now()})
	require.NoError(t, err)
	require.Equal(t, 1, f.fake.Profile(f.user.ID).JumpCount)

	require.NoError(t, f.api.DeleteLogbookEntry(ctx, entry.ID))
	require.Zero(t, f.fake.Profile(f.user.ID).JumpCount)

	err = f.api.DeleteLogbookEntry(ctx, entry.ID)
	require.Equal(t, http.StatusNotFound, apiclient.StatusCode(err))
}

func TestRefresh_RotationInvalidatesOldToken(t *testing.T) {
	fake := apifake.New(apifake.WithRefreshRotation())
	srv := httptest.NewServer(fake)
	defer srv.Close()
	client, err := apiclient.New(srv.URL, fake.APIKey(), memstore.New())
	require.NoError(t, err)
	a := api.New(client)
	u := fake.AddUser("a@example.com", "password123", "")
	_, refresh, err := fake.IssueTokens(u.ID)
	require.NoError(t, err)

	pair, err := a.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, refresh, pair.RefreshToken)

	_, err = a.Refresh(context.Background(), refresh)
	require.True(t, apiclient.IsUnauthorized(err))
}

func TestPasswordReset_Flow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.api.ResetPassword(ctx, "jumper@example.com"))
	token := f.fake.ResetToken("jumper@example.com")
	require.NotEmpty(t, token)

	require.NoError(t, f.api.ConfirmPasswordReset(ctx, api.PasswordResetConfirmation{Token: token, NewPassword: "new-password"}))
	_, err := f.api.SignIn(ctx, api.Credentials{Email: "jumper@example.com", Password: "new-password"})
	require.NoError(t, err)
}

func TestFake_FailNextAndOffline(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)
	ctx := context.Background()

	f.fake.FailNext("GET "+api.PathProfile, http.StatusServiceUnavailable, 1)
	_, err := f.api.GetProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, f.fake.Calls("GET "+api.PathProfile))

	f.fake.SetOffline(true)
	_, err = f.api.GetProfile(ctx)
	require.ErrorIs(t, err, ierrors.ErrNetwork)
}
