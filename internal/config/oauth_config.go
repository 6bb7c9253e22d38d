package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	oauthIssuerKey   = "oauth.issuer"
	oauthClientKey   = "oauth.client_id"
	oauthRedirectKey = "oauth.redirect_url"
	oauthScopesKey   = "oauth.scopes"
)

// OAuthConfig describes the optional OpenID Connect provider used for
// provider sign-in and for the refresh_token grant.
type OAuthConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetRedirectURL() string
	GetScopes() []string
}

type OAuth struct {
	v *viper.Viper
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetIssuerURL() string {
	return o.v.GetString(oauthIssuerKey)
}

func (o OAuth) GetClientID() string {
	return o.v.GetString(oauthClientKey)
}

func (o OAuth) GetRedirectURL() string {
	return o.v.GetString(oauthRedirectKey)
}

func (o OAuth) GetScopes() []string {
	return strings.Fields(o.v.GetString(oauthScopesKey))
}
