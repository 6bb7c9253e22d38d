package token

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
	"github.com/jrsteele09/dropzone-client/securestore"
)

// Revoker invalidates a refresh token server-side.
type Revoker interface {
	SignOut(ctx context.Context, refreshToken string) error
}

// Utility owns token lifecycle operations against the secure store.
type Utility struct {
	store     securestore.Store
	refresher Refresher
	revoker   Revoker
	skew      time.Duration
	nowFunc   func() time.Time
	logger    zerolog.Logger
}

type UtilityOption func(*Utility)

func WithSkew(skew time.Duration) UtilityOption {
	return func(u *Utility) {
		u.skew = skew
	}
}

func WithNowFunc(now func() time.Time) UtilityOption {
	return func(u *Utility) {
		u.nowFunc = now
	}
}

// WithRevoker enables the best-effort server-side revoke on sign-out.
func WithRevoker(r Revoker) UtilityOption {
	return func(u *Utility) {
		u.revoker = r
	}
}

func WithLogger(l zerolog.Logger) UtilityOption {
	return func(u *Utility) {
		u.logger = l
	}
}

// NewUtility binds token operations to store. Writes should go through a
// store that serialises per key, such as session.Store.
func NewUtility(store securestore.Store, refresher Refresher, options ...UtilityOption) *Utility {
	u := &Utility{
		store:     store,
		refresher: refresher,
		skew:      DefaultSkew,
		nowFunc:   time.Now,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(u)
	}
	if u.skew < 0 {
		u.skew = 0
	}
	return u
}

func (u *Utility) IsExpired(raw string) bool {
	return IsExpired(raw, u.skew, u.nowFunc())
}

func (u *Utility) Now() time.Time {
	return u.nowFunc()
}

// RefreshAuthToken exchanges the stored refresh token for a new access token
// and persists it. Any failure is a *RefreshError and leaves the store
// untouched.
func (u *Utility) RefreshAuthToken(ctx context.Context) (string, error) {
	refreshToken, ok, err := u.store.Get(ctx, securestore.KeyRefreshToken)
	if err != nil {
		return "", &ierrors.RefreshError{Err: err}
	}
	if !ok || refreshToken == "" {
		return "", &ierrors.RefreshError{Err: ierrors.ErrNoRefreshToken}
	}

	pair, err := u.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return "", &ierrors.RefreshError{Err: err}
	}

	if err := u.store.Set(ctx, securestore.KeyAuthToken, pair.AccessToken); err != nil {
		return "", &ierrors.RefreshError{Err: err}
	}
	if pair.RefreshToken != "" && pair.RefreshToken != refreshToken {
		if err := u.store.Set(ctx, securestore.KeyRefreshToken, pair.RefreshToken); err != nil {
			// The new access token is already durable; the old refresh token
			// stays in place and the next refresh will surface the problem.
			u.logger.Warn().Err(err).Msg("failed to persist rotated refresh token")
		}
	}

	u.logger.Debug().Msg("access token refreshed")
	return pair.AccessToken, nil
}

// SignOut revokes the refresh token when a revoker is configured, then
// removes every session slot. Revoke errors are only logged. Calling it
// on an empty store is a no-op.
func (u *Utility) SignOut(ctx context.Context) error {
	if u.revoker != nil {
		refreshToken, ok, err := u.store.Get(ctx, securestore.KeyRefreshToken)
		if err == nil && ok && refreshToken != "" {
			if err := u.revoker.SignOut(ctx, refreshToken); err != nil {
				u.logger.Warn().Err(err).Msg("server-side sign-out failed")
			}
		}
	}

	var errs []error
	for _, key := range securestore.SessionKeys {
		if err := u.store.Remove(ctx, key); err != nil {
			errs = append(errs, &ierrors.StorageError{Op: "remove", Key: key, Err: err})
		}
	}
	return errors.Join(errs...)
}
