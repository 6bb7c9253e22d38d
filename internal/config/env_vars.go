package config

import (
	"github.com/spf13/viper"
)

const (
	envPrefix = "DROPZONE"

	appNameKey         = "app_name"
	envKey             = "env"
	dataFolderKey      = "data_folder"
	logLevelKey        = "log_level"
	storeBackendKey    = "store.backend"
	storePassphraseKey = "store.passphrase"
	redisAddrKey       = "store.redis_addr"
)

// Store backends understood by the CLI wiring.
const (
	StoreBackendFile   = "file"
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameKey)
}

func (e EnvVars) GetDataFolder() string {
	return e.v.GetString(dataFolderKey)
}

func (e EnvVars) GetEnv() string {
	return e.v.GetString(envKey)
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelKey)
}

// GetStoreBackend selects the secure store implementation: file, memory or redis.
func (e EnvVars) GetStoreBackend() string {
	return e.v.GetString(storeBackendKey)
}

// GetStorePassphrase is the secret the file store derives its encryption key from.
func (e EnvVars) GetStorePassphrase() string {
	return e.v.GetString(storePassphraseKey)
}

func (e EnvVars) GetRedisAddr() string {
	return e.v.GetString(redisAddrKey)
}
