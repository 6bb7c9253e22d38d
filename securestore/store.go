package securestore

import (
	"context"
)

// Slot names persisted by the session layer.
const (
	KeyAuthToken    = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyUserData     = "user_data"
)

// SessionKeys lists every slot that makes up a persisted session.
var SessionKeys = []string{KeyAuthToken, KeyRefreshToken, KeyUserData}

// Store persists string values outside the process. Implementations must be
// safe for concurrent use. Get reports ok=false for an absent key; absence is
// not an error. Remove of an absent key succeeds.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
