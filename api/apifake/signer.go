package apifake

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// accessClaims is the payload of every access token the fake issues.
type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// hmacSigner signs and verifies access tokens with a shared secret.
type hmacSigner struct {
	secret []byte
}

func newHMACSigner(secret string) *hmacSigner {
	return &hmacSigner{
		secret: []byte(secret),
	}
}

func (h *hmacSigner) sign(claims accessClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

func (h *hmacSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
