package oidclogin_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/dropzone-client/oidclogin"
)

const (
	issuer   = "https://id.example.com"
	clientID = "dropzone-cli"
	code     = "auth-code"
)

type testFixture struct {
	key     *rsa.PrivateKey
	client  *oidclogin.Client
	request oidclogin.Request
	// idToken is what the token endpoint returns; tests overwrite it.
	idToken atomic.Value
	calls   atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	req, err := oidclogin.NewRequest()
	require.NoError(t, err)
	f := &testFixture{key: key, request: req}
	f.idToken.Store(f.sign(t, jwt.MapClaims{}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if err := r.ParseForm(); err != nil ||
			r.PostForm.Get("grant_type") != "authorization_code" ||
			r.PostForm.Get("code") != code ||
			r.PostForm.Get("code_verifier") != f.request.Verifier {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "provider-access",
			"refresh_token": "provider-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"id_token":      f.idToken.Load(),
		})
	}))
	t.Cleanup(srv.Close)

	cfg := &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: "http://127.0.0.1:8085/callback",
		Scopes:      oidclogin.DefaultScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   issuer + "/authorize",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	f.client = oidclogin.New(cfg, oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID}))
	return f
}

// sign returns an ID token for the fixture request with overrides applied.
func (f *testFixture) sign(t *testing.T, overrides jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":            issuer,
		"aud":            clientID,
		"sub":            "user-42",
		"email":          "jumper@example.com",
		"email_verified": true,
		"name":           "Jumper",
		"nonce":          f.request.Nonce,
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(f.key)
	require.NoError(t, err)
	return raw
}

func TestAuthCodeURL_UsesPKCEAndNonce(t *testing.T) {
	f := setupTestFixture(t)

	u, err := url.Parse(f.client.AuthCodeURL(f.request))
	require.NoError(t, err)
	q := u.Query()

	sum := sha256.Sum256([]byte(f.request.Verifier))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, f.request.State, q.Get("state"))
	require.Equal(t, f.request.Nonce, q.Get("nonce"))
	require.Equal(t, clientID, q.Get("client_id"))
	require.Empty(t, q.Get("code_verifier"))
}

func TestNewRequest_IsRandom(t *testing.T) {
	a, err := oidclogin.NewRequest()
	require.NoError(t, err)
	b, err := oidclogin.NewRequest()
	require.NoError(t, err)
	require.NotEqual(t, a.State, b.State)
	require.NotEqual(t, a.Nonce, b.Nonce)
	require.NotEqual(t, a.Verifier, b.Verifier)
}

func TestExchange_BuildsLoginParams(t *testing.T) {
	f := setupTestFixture(t)

	params, err := f.client.Exchange(context.Background(), code, f.request)
	require.NoError(t, err)
	require.Equal(t, "user-42", params.User.ID)
	require.Equal(t, "jumper@example.com", params.User.Email)
	require.Equal(t, "Jumper", params.User.Name)
	require.True(t, params.User.EmailConfirmed)
	require.Equal(t, "provider-access", params.AccessToken)
	require.Equal(t, "provider-refresh", params.RefreshToken)
}

func TestExchange_WrongVerifierFails(t *testing.T) {
	f := setupTestFixture(t)
	other := f.request
	other.Verifier = oauth2.GenerateVerifier()

	_, err := f.client.Exchange(context.Background(), code, other)
	require.Error(t, err)
	require.EqualValues(t, 1, f.calls.Load())
}

func TestExchange_RejectsBadIDTokens(t *testing.T) {
	tests := []struct {
		name      string
		overrides jwt.MapClaims
		wantErr   error
	}{
		{name: "wrong audience", overrides: jwt.MapClaims{"aud": "someone-else"}},
		{name: "wrong issuer", overrides: jwt.MapClaims{"iss": "https://evil.example.com"}},
		{name: "expired", overrides: jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()}},
		{name: "replayed nonce", overrides: jwt.MapClaims{"nonce": "stale"}, wantErr: oidclogin.ErrNonceMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.idToken.Store(f.sign(t, tt.overrides))

			_, err := f.client.Exchange(context.Background(), code, f.request)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestExchange_MissingIDToken(t *testing.T) {
	f := setupTestFixture(t)
	f.idToken.Store("")

	_, err := f.client.Exchange(context.Background(), code, f.request)
	require.ErrorIs(t, err, oidclogin.ErrNoIDToken)
}
