package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	gcTimeKey          = "cache.gc_time"
	queryRetriesKey    = "cache.query_retries"
	mutationRetriesKey = "cache.mutation_retries"
)

type CacheConfig interface {
	GetGCTime() time.Duration
	GetQueryRetries() int
	GetMutationRetries() int
}

type Cache struct {
	v *viper.Viper
}

var _ CacheConfig = Cache{}

// GetGCTime is how long an unobserved cache entry survives before eviction.
func (c Cache) GetGCTime() time.Duration {
	return c.v.GetDuration(gcTimeKey)
}

func (c Cache) GetQueryRetries() int {
	return c.v.GetInt(queryRetriesKey)
}

// GetMutationRetries is capped at 1 by Validate; mutations must not double-apply.
func (c Cache) GetMutationRetries() int {
	return c.v.GetInt(mutationRetriesKey)
}
