package config

import "github.com/spf13/viper"

// Keys that the CLI binds to command-line flags.
const (
	KeyBaseURL      = baseURLKey
	KeyAPIKey       = apiKeyKey
	KeyDataFolder   = dataFolderKey
	KeyLogLevel     = logLevelKey
	KeyStoreBackend = storeBackendKey
	KeyPassphrase   = storePassphraseKey
)

// NewViper returns the DROPZONE_* environment-backed viper instance New uses,
// for callers that want to bind flags before building the Config.
func NewViper() *viper.Viper {
	return newViper()
}
