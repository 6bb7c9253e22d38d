package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type settings struct {
	BaseURL         string        `validate:"required,url"`
	APIKey          string        `validate:"required"`
	Timeout         time.Duration `validate:"gt=0s"`
	MaxGetAttempts  int           `validate:"min=1,max=2"`
	StoreBackend    string        `validate:"oneof=file memory redis"`
	RedisAddr       string        `validate:"required_if=StoreBackend redis"`
	Skew            time.Duration `validate:"gte=0s"`
	GCTime          time.Duration `validate:"gt=0s"`
	QueryRetries    int           `validate:"min=0,max=3"`
	MutationRetries int           `validate:"min=0,max=1"`
}

var validate = validator.New()

// Validate checks the values the core depends on before any service is built.
func Validate(c Config) error {
	s := settings{
		BaseURL:         c.GetBaseURL(),
		APIKey:          c.GetAPIKey(),
		Timeout:         c.GetRequestTimeout(),
		MaxGetAttempts:  c.GetMaxGetAttempts(),
		StoreBackend:    c.GetStoreBackend(),
		RedisAddr:       c.GetRedisAddr(),
		Skew:            c.GetTokenExpirySkew(),
		GCTime:          c.GetGCTime(),
		QueryRetries:    c.GetQueryRetries(),
		MutationRetries: c.GetMutationRetries(),
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("[config Validate] %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if isNotExist(err) {
				continue
			}
			return fmt.Errorf("[config LoadDotEnv] %s: %w", f, err)
		}
	}
	return nil
}
