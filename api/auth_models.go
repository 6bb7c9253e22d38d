package api

// Credentials is the sign-in and sign-up body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name,omitempty"`
}

// AuthResult is returned by sign-in and sign-up. All three fields are
// written to the session atomically.
type AuthResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is the refresh endpoint response.
type TokenPair struct {
	// AccessToken is the bearer credential for subsequent requests.
	// Usage: "Authorization: Bearer <accessToken>"; the exp claim is authoritative.
	AccessToken string `json:"accessToken"`

	// RefreshToken is only present when the server rotated it.
	// An empty value means the stored refresh token stays valid.
	RefreshToken string `json:"refreshToken,omitempty"`

	// ExpiresIn is a hint in seconds.
	ExpiresIn int `json:"expiresIn,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetConfirmation struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type SignOutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}
