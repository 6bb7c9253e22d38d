package token

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/dropzone-client/api"
)

// Pair is the result of a refresh. RefreshToken is empty unless the server
// rotated it.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Pair, error)
}

// RefreshAPI is the part of api.API used by APIRefresher.
type RefreshAPI interface {
	Refresh(ctx context.Context, refreshToken string) (api.TokenPair, error)
}

// APIRefresher refreshes against the backend's /auth/refresh endpoint.
type APIRefresher struct {
	api RefreshAPI
}

func NewAPIRefresher(a RefreshAPI) *APIRefresher {
	return &APIRefresher{api: a}
}

func (r *APIRefresher) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	pair, err := r.api.Refresh(ctx, refreshToken)
	if err != nil {
		return Pair{}, err
	}
	if pair.AccessToken == "" {
		return Pair{}, fmt.Errorf("[APIRefresher Refresh] response carried no access token")
	}
	return Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// OAuth2Refresher runs the standard refresh_token grant against an OAuth2
// provider's token endpoint.
type OAuth2Refresher struct {
	config *oauth2.Config
}

func NewOAuth2Refresher(cfg *oauth2.Config) *OAuth2Refresher {
	return &OAuth2Refresher{config: cfg}
}

func (r *OAuth2Refresher) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	// An expired placeholder access token forces the source to hit the token endpoint.
	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Pair{}, fmt.Errorf("[OAuth2Refresher Refresh] refresh grant failed: %w", err)
	}
	out := Pair{AccessToken: tok.AccessToken}
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		out.RefreshToken = tok.RefreshToken
	}
	return out, nil
}
