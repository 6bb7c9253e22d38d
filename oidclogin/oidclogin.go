package oidclogin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/session"
	"github.com/jrsteele09/dropzone-client/token"
)

var (
	ErrNoIDToken     = errors.New("no id_token in token response")
	ErrNonceMismatch = errors.New("id_token nonce does not match")
)

// DefaultScopes asks for an ID token with email and a refresh token.
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}

// Client signs a user in with an OpenID Connect provider using the
// authorization code flow with PKCE.
type Client struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// New builds a client from an explicit oauth2 config and ID token verifier.
func New(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *Client {
	return &Client{oauth: cfg, verifier: verifier}
}

// Discover reads the provider metadata from issuer and builds a public
// client. scopes falls back to DefaultScopes when empty.
func Discover(ctx context.Context, issuer, clientID, redirectURL string, scopes []string) (*Client, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[oidclogin Discover] failed to create OIDC provider: %w", err)
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	cfg := &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    provider.Endpoint(),
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
	return New(cfg, provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// Request holds the per-attempt secrets that must survive the redirect.
type Request struct {
	State    string
	Nonce    string
	Verifier string
}

// NewRequest generates a fresh state, nonce and PKCE verifier.
func NewRequest() (Request, error) {
	state, err := randomString(24)
	if err != nil {
		return Request{}, err
	}
	nonce, err := randomString(24)
	if err != nil {
		return Request{}, err
	}
	return Request{State: state, Nonce: nonce, Verifier: oauth2.GenerateVerifier()}, nil
}

// AuthCodeURL is the URL the user opens to sign in.
func (c *Client) AuthCodeURL(req Request) string {
	return c.oauth.AuthCodeURL(req.State, oauth2.S256ChallengeOption(req.Verifier), oidc.Nonce(req.Nonce))
}

// Exchange trades the authorization code for tokens, verifies the ID token
// and returns what session.Provider.Login needs.
func (c *Client) Exchange(ctx context.Context, code string, req Request) (session.LoginParams, error) {
	tok, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(req.Verifier))
	if err != nil {
		return session.LoginParams{}, fmt.Errorf("[oidclogin Exchange] token exchange failed: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return session.LoginParams{}, ErrNoIDToken
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return session.LoginParams{}, fmt.Errorf("[oidclogin Exchange] id_token verification failed: %w", err)
	}
	if idToken.Nonce != req.Nonce {
		return session.LoginParams{}, ErrNonceMismatch
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return session.LoginParams{}, fmt.Errorf("[oidclogin Exchange] failed to extract claims: %w", err)
	}

	return session.LoginParams{
		User: api.User{
			ID:             idToken.Subject,
			Email:          claims.Email,
			Name:           claims.Name,
			EmailConfirmed: claims.EmailVerified,
		},
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// Refresher renews sessions started through this provider.
func (c *Client) Refresher() token.Refresher {
	return token.NewOAuth2Refresher(c.oauth)
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[oidclogin] failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
