package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
)

// DefaultSkew treats a token as expired slightly before its exp claim so a
// request does not race the expiry in flight.
const DefaultSkew = 30 * time.Second

// Claims is the subset of access-token claims the client reads.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type accessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// parse decodes the payload without verifying the signature. The server is
// the only party that verifies; the client only needs exp.
func parse(raw string) (*accessClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ierrors.ErrInvalidToken
	}
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrap(ierrors.ErrInvalidToken, err.Error())
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of raw.
func ExpiresAt(raw string) (time.Time, error) {
	claims, err := parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.Wrap(ierrors.ErrInvalidToken, "missing exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// ClaimsFromToken extracts the subject, email and timestamps of raw.
func ClaimsFromToken(raw string) (Claims, error) {
	claims, err := parse(raw)
	if err != nil {
		return Claims{}, err
	}
	out := Claims{Subject: claims.Subject, Email: claims.Email}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// IsExpired reports whether now+skew has reached the token's exp. A token
// that cannot be decoded, or has no exp, counts as expired.
func IsExpired(raw string, skew time.Duration, now time.Time) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return true
	}
	return !now.Add(skew).Before(exp)
}
