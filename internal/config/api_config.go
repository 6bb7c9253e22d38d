package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	baseURLKey        = "api.base_url"
	apiKeyKey         = "api.key"
	requestTimeoutKey = "api.timeout"
	maxGetAttemptsKey = "api.max_get_attempts"
	retryIntervalKey  = "api.retry_interval"
	tokenSkewKey      = "session.expiry_skew"
)

type API struct {
	v *viper.Viper
}

var _ APIConfig = API{}

// GetBaseURL returns the remote API root, e.g. "https://api.example.com/v1"
func (a API) GetBaseURL() string {
	return a.v.GetString(baseURLKey)
}

func (a API) GetAPIKey() string {
	return a.v.GetString(apiKeyKey)
}

func (a API) GetRequestTimeout() time.Duration {
	return a.v.GetDuration(requestTimeoutKey)
}

// GetMaxGetAttempts bounds the total attempts (first try included) for GET requests.
func (a API) GetMaxGetAttempts() int {
	return a.v.GetInt(maxGetAttemptsKey)
}

func (a API) GetRetryInitialInterval() time.Duration {
	return a.v.GetDuration(retryIntervalKey)
}

type Session struct {
	v *viper.Viper
}

var _ SessionConfig = Session{}

// GetTokenExpirySkew is how long before its exp claim an access token is treated as expired.
func (s Session) GetTokenExpirySkew() time.Duration {
	return s.v.GetDuration(tokenSkewKey)
}
