package session

import (
	"context"

	"golang.org/x/oauth2"

	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
	"github.com/jrsteele09/dropzone-client/token"
)

type providerTokenSource struct {
	ctx context.Context
	p   *Provider
}

// TokenSource exposes the current session as an oauth2.TokenSource. An
// expired token is refreshed through the provider, so the once-per-detection
// rule still applies.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &providerTokenSource{ctx: ctx, p: p}
}

func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	if err := s.p.Ready(s.ctx); err != nil {
		return nil, err
	}
	if !s.p.IsAuthenticated() {
		return nil, ierrors.ErrNotAuthenticated
	}

	access := s.p.access.Value()
	if s.p.tokens.IsExpired(access) {
		if !s.p.refreshIfExpired(s.ctx) {
			return nil, ierrors.Wrapf(ierrors.ErrTokenExpired, "[Provider TokenSource] access token could not be refreshed")
		}
		access = s.p.access.Value()
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: s.p.refresh.Value(),
		TokenType:    "Bearer",
	}
	if exp, err := token.ExpiresAt(access); err == nil {
		tok.Expiry = exp
	}
	return tok, nil
}

func (p *Provider) refreshIfExpired(ctx context.Context) bool {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.State() != Authenticated {
		return false
	}
	if !p.tokens.IsExpired(p.access.Value()) {
		return true
	}
	if p.access.Value() == p.refreshedToken {
		return false
	}
	return p.refreshLocked(ctx)
}
