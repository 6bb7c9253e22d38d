package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	CacheConfig
	OAuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLogLevel() string
	GetStoreBackend() string
	GetStorePassphrase() string
	GetRedisAddr() string
}

type APIConfig interface {
	GetBaseURL() string
	GetAPIKey() string
	GetRequestTimeout() time.Duration
	GetMaxGetAttempts() int
	GetRetryInitialInterval() time.Duration
}

type SessionConfig interface {
	GetTokenExpirySkew() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	Session
	Cache
	OAuth
}

// New returns the configuration backed by DROPZONE_* environment variables.
func New() Config {
	return NewFromViper(newViper())
}

// NewFromViper builds a Config over an existing viper instance. Defaults are
// registered on v so callers only need to Set the values they override.
func NewFromViper(v *viper.Viper) Config {
	registerDefaults(v)
	return mainConfig{
		EnvVars: EnvVars{v: v},
		API:     API{v: v},
		Session: Session{v: v},
		Cache:   Cache{v: v},
		OAuth:   OAuth{v: v},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func registerDefaults(v *viper.Viper) {
	v.SetDefault(appNameKey, "Dropzone")
	v.SetDefault(envKey, "DEV")
	v.SetDefault(dataFolderKey, "./data")
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(storeBackendKey, StoreBackendFile)
	v.SetDefault(redisAddrKey, "localhost:6379")

	v.SetDefault(baseURLKey, "http://localhost:8080")
	v.SetDefault(requestTimeoutKey, 30*time.Second)
	v.SetDefault(maxGetAttemptsKey, 2)
	v.SetDefault(retryIntervalKey, 300*time.Millisecond)

	v.SetDefault(tokenSkewKey, 30*time.Second)

	v.SetDefault(gcTimeKey, 5*time.Minute)
	v.SetDefault(queryRetriesKey, 3)
	v.SetDefault(mutationRetriesKey, 0)

	v.SetDefault(oauthScopesKey, "openid profile email offline_access")
}
