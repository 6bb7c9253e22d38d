package resources

import (
	"context"
	"fmt"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/session"
)

// SignIn authenticates with email and password and starts a session.
func (r *Resources) SignIn(ctx context.Context, creds api.Credentials) (api.User, error) {
	res, err := r.api.SignIn(ctx, creds)
	if err != nil {
		return api.User{}, err
	}
	return r.login(ctx, res)
}

// SignUp registers an account. The server may return tokens straight away;
// otherwise the user has to confirm their email and sign in.
func (r *Resources) SignUp(ctx context.Context, creds api.Credentials) (api.User, error) {
	res, err := r.api.SignUp(ctx, creds)
	if err != nil {
		return api.User{}, err
	}
	if res.AccessToken == "" {
		return res.User, nil
	}
	return r.login(ctx, res)
}

func (r *Resources) login(ctx context.Context, res api.AuthResult) (api.User, error) {
	r.Reset()
	err := r.session.Login(ctx, session.LoginParams{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
	if err != nil {
		return api.User{}, fmt.Errorf("[Resources SignIn] %w", err)
	}
	return res.User, nil
}

func (r *Resources) ResendConfirmation(ctx context.Context, email string) error {
	return r.api.ResendConfirmation(ctx, email)
}

func (r *Resources) ResetPassword(ctx context.Context, email string) error {
	return r.api.ResetPassword(ctx, email)
}

func (r *Resources) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return r.api.ConfirmPasswordReset(ctx, api.PasswordResetConfirmation{Token: token, NewPassword: newPassword})
}

// SignOut ends the session and drops everything cached for the user.
func (r *Resources) SignOut(ctx context.Context) {
	r.session.SignOut(ctx)
	r.Reset()
}

// DeleteAccount deletes the account on the server, then signs out.
func (r *Resources) DeleteAccount(ctx context.Context) error {
	_, err := authed(r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.api.DeleteAccount(ctx)
	})(ctx)
	if err != nil {
		return err
	}
	r.SignOut(ctx)
	return nil
}
