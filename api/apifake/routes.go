package apifake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/internal/utils"
)

var errUnknownUser = errors.New("unknown user")

type ctxKey struct{}

func (s *Server) initRoutes() {
	r := chi.NewRouter()

	public := func(method, pattern string, h http.HandlerFunc) {
		r.Method(method, pattern, s.instrument(method+" "+pattern, s.requireAPIKey(h)))
	}
	private := func(method, pattern string, h http.HandlerFunc) {
		r.Method(method, pattern, s.instrument(method+" "+pattern, s.requireAPIKey(s.requireBearer(h))))
	}

	public(http.MethodPost, api.PathSignIn, s.signIn)
	public(http.MethodPost, api.PathSignUp, s.signUp)
	public(http.MethodPost, api.PathResendConfirmation, s.acknowledge)
	public(http.MethodPost, api.PathResetPassword, s.resetPassword)
	public(http.MethodPost, api.PathConfirmReset, s.confirmReset)
	public(http.MethodPost, api.PathRefresh, s.refreshToken)
	public(http.MethodPost, api.PathSignOut, s.signOut)
	private(http.MethodDelete, api.PathAccount, s.deleteAccount)

	private(http.MethodGet, api.PathProfile, s.getProfile)
	private(http.MethodPatch, api.PathProfile, s.patchProfile)

	private(http.MethodGet, api.PathLocations, s.listLocations)
	private(http.MethodGet, api.PathSavedLocations, s.listSaved)
	private(http.MethodPost, api.PathLocationSave, s.saveLocation)
	private(http.MethodDelete, api.PathLocationSave, s.unsaveLocation)
	private(http.MethodGet, api.PathSubmissions, s.listSubmissions)
	private(http.MethodPost, api.PathSubmissions, s.submitLocation)

	private(http.MethodGet, api.PathLogbook, s.listLogbook)
	private(http.MethodPost, api.PathLogbook, s.createLogbookEntry)
	private(http.MethodDelete, api.PathLogbookEntry, s.deleteLogbookEntry)

	s.router = r
}

// instrument applies the offline switch, gates and queued failures before
// the real handler runs.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	method, _, _ := strings.Cut(route, " ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		s.requests = append(s.requests, RecordedRequest{
			Method:        method,
			Route:         route,
			Authorization: r.Header.Get("Authorization"),
		})
		offline := s.offline
		gate := s.gates[route]
		var failWith int
		if queued := s.failures[route]; len(queued) > 0 {
			failWith = queued[0]
			s.failures[route] = queued[1:]
		}
		s.mu.Unlock()

		if offline {
			dropConnection(w)
			return
		}
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if failWith != 0 {
			writeError(w, failWith, http.StatusText(failWith))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	_ = conn.Close()
}

func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != s.apiKey {
			writeError(w, http.StatusForbidden, "invalid api key")
			return
		}
		next(w, r)
	}
}

func (s *Server) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	}
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return "", errors.New("missing bearer token")
	}
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.signer.verificationKey,
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("token expired")
		}
		return "", errors.New("invalid token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[claims.Subject]; !ok {
		return "", errUnknownUser
	}
	return claims.Subject, nil
}

func userFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

type errorResponse struct {
	Success          bool                   `json:"success"`
	Error            string                 `json:"error"`
	EmailUnconfirmed bool                   `json:"emailUnconfirmed,omitempty"`
	Details          []validationDetailBody `json:"details,omitempty"`
}

type validationDetailBody struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData[T any](w http.ResponseWriter, status int, data T) {
	writeJSON(w, status, api.Envelope[T]{Success: true, Data: &data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return false
	}
	return true
}

func (s *Server) acknowledge(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, api.Empty{})
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if !decode(w, r, &creds) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(creds.Email)]
	if !ok || s.accounts[id].password != creds.Password {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	a := s.accounts[id]
	if !a.user.EmailConfirmed {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "email not confirmed", EmailUnconfirmed: true})
		return
	}
	access, refresh, err := s.issueLocked(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, api.AuthResult{User: a.user, AccessToken: access, RefreshToken: refresh})
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if !decode(w, r, &creds) {
		return
	}
	var details []validationDetailBody
	if !strings.Contains(creds.Email, "@") {
		details = append(details, validationDetailBody{Field: "email", Message: "must be a valid email"})
	}
	if len(creds.Password) < 8 {
		details = append(details, validationDetailBody{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: details})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[strings.ToLower(creds.Email)]; exists {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	u := s.addUserLocked(creds.Email, creds.Password, creds.Name, true)
	access, refresh, err := s.issueLocked(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusCreated, api.AuthResult{User: u, AccessToken: access, RefreshToken: refresh})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req api.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	if id, ok := s.byEmail[strings.ToLower(req.Email)]; ok {
		s.resetTokens[uuid.NewString()] = id
	}
	s.mu.Unlock()
	// Unknown addresses are acknowledged too.
	writeData(w, http.StatusOK, api.Empty{})
}

func (s *Server) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req api.PasswordResetConfirmation
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resetTokens[req.Token]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid or expired reset token")
		return
	}
	delete(s.resetTokens, req.Token)
	if a, ok := s.accounts[id]; ok {
		a.password = req.NewPassword
	}
	writeData(w, http.StatusOK, api.Empty{})
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refresh[req.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	a, ok := s.accounts[id]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	access, err := s.signLocked(a.user, s.now().Add(s.accessTTL))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pair := api.TokenPair{AccessToken: access, ExpiresIn: int(s.accessTTL.Seconds())}
	if s.rotateRefresh {
		delete(s.refresh, req.RefreshToken)
		pair.RefreshToken = uuid.NewString()
		s.refresh[pair.RefreshToken] = id
	}
	writeData(w, http.StatusOK, pair)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	var req api.SignOutRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if req.RefreshToken != "" {
		s.mu.Lock()
		delete(s.refresh, req.RefreshToken)
		s.mu.Unlock()
	}
	writeData(w, http.StatusOK, api.Empty{})
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id := userFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	delete(s.byEmail, a.user.Email)
	delete(s.accounts, id)
	for tok, uid := range s.refresh {
		if uid == id {
			delete(s.refresh, tok)
		}
	}
	writeData(w, http.StatusOK, api.Empty{})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p := s.accounts[userFrom(r)].profile
	s.mu.Unlock()
	writeData(w, http.StatusOK, p)
}

func (s *Server) patchProfile(w http.ResponseWriter, r *http.Request) {
	var upd api.ProfileUpdate
	if !decode(w, r, &upd) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &s.accounts[userFrom(r)].profile
	p.Name = utils.ValueOr(upd.Name, p.Name)
	p.Bio = utils.ValueOr(upd.Bio, p.Bio)
	p.HomeDropzone = utils.ValueOr(upd.HomeDropzone, p.HomeDropzone)
	p.LicenseNumber = utils.ValueOr(upd.LicenseNumber, p.LicenseNumber)
	p.AvatarURL = utils.ValueOr(upd.AvatarURL, p.AvatarURL)
	p.UpdatedAt = s.now()
	writeData(w, http.StatusOK, *p)
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country := strings.ToLower(q.Get("country"))
	kind := strings.ToLower(q.Get("type"))
	search := strings.ToLower(q.Get("search"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[userFrom(r)]
	out := make([]api.Location, 0, len(s.locations))
	for _, loc := range s.locations {
		if country != "" && strings.ToLower(loc.Country) != country {
			continue
		}
		if kind != "" && strings.ToLower(loc.Type) != kind {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(loc.Name), search) {
			continue
		}
		loc.IsSaved = a.saved[loc.ID]
		out = append(out, loc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) listSaved(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[userFrom(r)]
	out := make([]api.Location, 0, len(a.saved))
	for _, loc := range s.locations {
		if a.saved[loc.ID] {
			loc.IsSaved = true
			out = append(out, loc)
		}
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) setSaved(w http.ResponseWriter, r *http.Request, saved bool) {
	locID := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locationExistsLocked(locID) {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}
	a := s.accounts[userFrom(r)]
	if saved {
		a.saved[locID] = true
	} else {
		delete(a.saved, locID)
	}
	writeData(w, http.StatusOK, api.Empty{})
}

func (s *Server) saveLocation(w http.ResponseWriter, r *http.Request) {
	s.setSaved(w, r, true)
}

func (s *Server) unsaveLocation(w http.ResponseWriter, r *http.Request) {
	s.setSaved(w, r, false)
}

func (s *Server) locationExistsLocked(id string) bool {
	for _, loc := range s.locations {
		if loc.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := append([]api.LocationSubmission{}, s.accounts[userFrom(r)].submissions...)
	writeData(w, http.StatusOK, subs)
}

func (s *Server) submitLocation(w http.ResponseWriter, r *http.Request) {
	var req api.NewLocationSubmission
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation failed",
			Details: []validationDetailBody{{Field: "name", Message: "is required"}},
		})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := api.LocationSubmission{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Country:   req.Country,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Website:   req.Website,
		Status:    "pending",
		CreatedAt: s.now(),
	}
	a := s.accounts[userFrom(r)]
	a.submissions = append(a.submissions, sub)
	writeData(w, http.StatusCreated, sub)
}

func (s *Server) listLogbook(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := append([]api.LogbookEntry{}, s.accounts[userFrom(r)].logbook...)
	s.mu.Unlock()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].JumpNumber > entries[j].JumpNumber
	})
	writeData(w, http.StatusOK, entries)
}

// createLogbookEntry stores the entry and bumps the profile jump count in
// the same critical section.
func (s *Server) createLogbookEntry(w http.ResponseWriter, r *http.Request) {
	var req api.NewLogbookEntry
	if !decode(w, r, &req) {
		return
	}
	if req.JumpNumber < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation failed",
			Details: []validationDetailBody{{Field: "jumpNumber", Message: "must be positive"}},
		})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[userFrom(r)]
	entry := api.LogbookEntry{
		ID:              uuid.NewString(),
		UserID:          a.user.ID,
		JumpNumber:      req.JumpNumber,
		Date:            req.Date,
		LocationID:      req.LocationID,
		Aircraft:        req.Aircraft,
		ExitAltitude:    req.ExitAltitude,
		FreefallSeconds: req.FreefallSeconds,
		Notes:           req.Notes,
		CreatedAt:       s.now(),
	}
	a.logbook = append(a.logbook, entry)
	a.profile.JumpCount = len(a.logbook)
	writeData(w, http.StatusCreated, entry)
}

func (s *Server) deleteLogbookEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[userFrom(r)]
	for i, e := range a.logbook {
		if e.ID == entryID {
			a.logbook = append(a.logbook[:i], a.logbook[i+1:]...)
			a.profile.JumpCount = len(a.logbook)
			writeData(w, http.StatusOK, api.Empty{})
			return
		}
	}
	writeError(w, http.StatusNotFound, "logbook entry not found")
}
