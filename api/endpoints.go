package api

import (
	"net/http"
)

const (
	PathSignIn             = "/auth/signin"
	PathSignUp             = "/auth/signup"
	PathResendConfirmation = "/auth/resend-confirmation"
	PathResetPassword      = "/auth/reset-password"
	PathConfirmReset       = "/auth/reset-password/confirm"
	PathRefresh            = "/auth/refresh"
	PathSignOut            = "/auth/signout"
	PathAccount            = "/auth/account"
	PathProfile            = "/profile"
	PathLocations          = "/locations"
	PathSavedLocations     = "/locations/saved"
	PathLocationSave       = "/locations/{id}/save"
	PathSubmissions        = "/locations/submissions"
	PathLogbook            = "/logbook"
	PathLogbookEntry       = "/logbook/{id}"
)

var (
	SignIn             = Endpoint[Credentials, AuthResult]{http.MethodPost, PathSignIn}
	SignUp             = Endpoint[Credentials, AuthResult]{http.MethodPost, PathSignUp}
	ResendConfirmation = Endpoint[EmailRequest, Empty]{http.MethodPost, PathResendConfirmation}
	ResetPassword      = Endpoint[EmailRequest, Empty]{http.MethodPost, PathResetPassword}
	ConfirmReset       = Endpoint[PasswordResetConfirmation, Empty]{http.MethodPost, PathConfirmReset}
	Refresh            = Endpoint[RefreshRequest, TokenPair]{http.MethodPost, PathRefresh}
	SignOut            = Endpoint[SignOutRequest, Empty]{http.MethodPost, PathSignOut}
	DeleteAccount      = Endpoint[Empty, Empty]{http.MethodDelete, PathAccount}

	GetProfile   = Endpoint[Empty, Profile]{http.MethodGet, PathProfile}
	PatchProfile = Endpoint[ProfileUpdate, Profile]{http.MethodPatch, PathProfile}

	ListLocations      = Endpoint[LocationFilter, []Location]{http.MethodGet, PathLocations}
	ListSavedLocations = Endpoint[Empty, []Location]{http.MethodGet, PathSavedLocations}
	SaveLocation       = Endpoint[Empty, Empty]{http.MethodPost, PathLocationSave}
	UnsaveLocation     = Endpoint[Empty, Empty]{http.MethodDelete, PathLocationSave}
	SubmitLocation     = Endpoint[NewLocationSubmission, LocationSubmission]{http.MethodPost, PathSubmissions}
	ListSubmissions    = Endpoint[Empty, []LocationSubmission]{http.MethodGet, PathSubmissions}

	ListLogbook        = Endpoint[Empty, []LogbookEntry]{http.MethodGet, PathLogbook}
	CreateLogbookEntry = Endpoint[NewLogbookEntry, LogbookEntry]{http.MethodPost, PathLogbook}
	DeleteLogbookEntry = Endpoint[Empty, Empty]{http.MethodDelete, PathLogbookEntry}
)
