package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/dropzone-client/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := config.NewFromViper(viper.New())

	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
	require.Equal(t, 2, c.GetMaxGetAttempts())
	require.Equal(t, 30*time.Second, c.GetTokenExpirySkew())
	require.Equal(t, 5*time.Minute, c.GetGCTime())
	require.Equal(t, 3, c.GetQueryRetries())
	require.Equal(t, 0, c.GetMutationRetries())
	require.Equal(t, config.StoreBackendFile, c.GetStoreBackend())
	require.Equal(t, []string{"openid", "profile", "email", "offline_access"}, c.GetScopes())
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	c := config.NewFromViper(viper.New())

	err := config.Validate(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "APIKey")
}

func TestValidate_RejectsMutationRetriesAboveOne(t *testing.T) {
	v := viper.New()
	v.Set("api.key", "k")
	v.Set("cache.mutation_retries", 2)

	err := config.Validate(config.NewFromViper(v))
	require.Error(t, err)
	require.Contains(t, err.Error(), "MutationRetries")
}

func TestValidate_RedisBackendNeedsAddress(t *testing.T) {
	v := viper.New()
	v.Set("api.key", "k")
	v.Set("store.backend", config.StoreBackendRedis)
	v.Set("store.redis_addr", "")

	require.Error(t, config.Validate(config.NewFromViper(v)))
}

func TestValidate_Success(t *testing.T) {
	v := viper.New()
	v.Set("api.key", "k")
	v.Set("api.base_url", "https://api.example.com")

	require.NoError(t, config.Validate(config.NewFromViper(v)))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("DROPZONE_API_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DROPZONE_API_KEY") })

	require.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env"), file))

	c := config.New()
	require.Equal(t, "from-dotenv", c.GetAPIKey())
}
