package api

import (
	"context"
)

// API is the typed remote API. Screens never call it directly; they go
// through the resources package so cache policies apply.
type API struct {
	c Doer
}

func New(c Doer) *API {
	return &API{c: c}
}

func (a *API) SignIn(ctx context.Context, creds Credentials) (AuthResult, error) {
	return SignIn.Call(ctx, a.c, creds)
}

func (a *API) SignUp(ctx context.Context, creds Credentials) (AuthResult, error) {
	return SignUp.Call(ctx, a.c, creds)
}

func (a *API) ResendConfirmation(ctx context.Context, email string) error {
	_, err := ResendConfirmation.Call(ctx, a.c, EmailRequest{Email: email})
	return err
}

func (a *API) ResetPassword(ctx context.Context, email string) error {
	_, err := ResetPassword.Call(ctx, a.c, EmailRequest{Email: email})
	return err
}

func (a *API) ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirmation) error {
	_, err := ConfirmReset.Call(ctx, a.c, req)
	return err
}

func (a *API) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return Refresh.Call(ctx, a.c, RefreshRequest{RefreshToken: refreshToken})
}

func (a *API) SignOut(ctx context.Context, refreshToken string) error {
	_, err := SignOut.Call(ctx, a.c, SignOutRequest{RefreshToken: refreshToken})
	return err
}

func (a *API) DeleteAccount(ctx context.Context) error {
	_, err := DeleteAccount.Call(ctx, a.c, Empty{})
	return err
}

func (a *API) GetProfile(ctx context.Context) (Profile, error) {
	return GetProfile.Call(ctx, a.c, Empty{})
}

func (a *API) UpdateProfile(ctx context.Context, update ProfileUpdate) (Profile, error) {
	return PatchProfile.Call(ctx, a.c, update)
}

func (a *API) ListLocations(ctx context.Context, filter LocationFilter) ([]Location, error) {
	return ListLocations.Call(ctx, a.c, filter)
}

func (a *API) ListSavedLocations(ctx context.Context) ([]Location, error) {
	return ListSavedLocations.Call(ctx, a.c, Empty{})
}

func (a *API) SaveLocation(ctx context.Context, locationID string) error {
	_, err := SaveLocation.Call(ctx, a.c, Empty{}, locationID)
	return err
}

func (a *API) UnsaveLocation(ctx context.Context, locationID string) error {
	_, err := UnsaveLocation.Call(ctx, a.c, Empty{}, locationID)
	return err
}

func (a *API) SubmitLocation(ctx context.Context, sub NewLocationSubmission) (LocationSubmission, error) {
	return SubmitLocation.Call(ctx, a.c, sub)
}

func (a *API) ListSubmissions(ctx context.Context) ([]LocationSubmission, error) {
	return ListSubmissions.Call(ctx, a.c, Empty{})
}

func (a *API) ListLogbook(ctx context.Context) ([]LogbookEntry, error) {
	return ListLogbook.Call(ctx, a.c, Empty{})
}

func (a *API) CreateLogbookEntry(ctx context.Context, entry NewLogbookEntry) (LogbookEntry, error) {
	return CreateLogbookEntry.Call(ctx, a.c, entry)
}

func (a *API) DeleteLogbookEntry(ctx context.Context, entryID string) error {
	_, err := DeleteLogbookEntry.Call(ctx, a.c, Empty{}, entryID)
	return err
}
