// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/access"
	"github.com/trailhead/trailhead/internal/auth"
	"github.com/trailhead/trailhead/internal/observability"
)

// userView is the public representation of a credential. It never carries
// hashes or reset state.
type userView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewOf(c *auth.Credential) userView {
	return userView{
		ID:        c.ID.String(),
		Name:      c.Name,
		Email:     c.Email,
		Role:      string(c.Role),
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
	}
}

type userData struct {
	User userView `json:"user"`
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// updateMeRequest accepts the password fields only to refuse them.
type updateMeRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

// decodeJSON reads a single JSON object into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return auth.WrapError(auth.KindInvalidInput, "REQUEST_TOO_LARGE", "Request body is too large.", err)
		case errors.Is(err, io.EOF):
			return auth.NewError(auth.KindInvalidInput, "REQUEST_EMPTY", "Request body is required.")
		default:
			return auth.WrapError(auth.KindInvalidInput, "REQUEST_MALFORMED", "Request body is not valid JSON.", err)
		}
	}
	return nil
}

// record counts the operation outcome and passes err through.
func record(operation string, err error) error {
	result := "success"
	if err != nil {
		result = auth.KindOf(err).String()
	}
	observability.RecordAuthOperation(operation, result)
	return err
}

// sendSession sets the session cookie and writes the token envelope.
func sendSession(w http.ResponseWriter, status int, cred *auth.Credential, session *auth.Session) {
	http.SetCookie(w, session.Cookie)
	writeJSON(w, status, envelope{
		Status: statusSuccess,
		Token:  session.Token,
		Data:   userData{User: viewOf(cred)},
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cred, session, err := s.accounts.Signup(r.Context(), auth.SignupInput(req))
	if record("signup", err) != nil {
		s.writeError(w, r, err)
		return
	}
	sendSession(w, http.StatusCreated, cred, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cred, session, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if record("login", err) != nil {
		s.writeError(w, r, err)
		return
	}
	sendSession(w, http.StatusOK, cred, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	session := s.accounts.EndSession()
	record("logout", nil)
	http.SetCookie(w, session.Cookie)
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := s.resets.RequestPasswordReset(r.Context(), req.Email)
	if record("forgot_password", err) != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Message: "Token sent to email!"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cred, session, err := s.resets.CompletePasswordReset(r.Context(), chi.URLParam(r, "token"), req.Password, req.PasswordConfirm)
	if record("reset_password", err) != nil {
		s.writeError(w, r, err)
		return
	}
	sendSession(w, http.StatusOK, cred, session)
}

func (s *Server) handleUpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.accounts.ChangePassword(r.Context(), id.SubjectID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if record("change_password", err) != nil {
		s.writeError(w, r, err)
		return
	}
	cred, err := s.accounts.Get(r.Context(), id.SubjectID, auth.ActiveOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendSession(w, http.StatusOK, cred, session)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	cred, err := s.accounts.Get(r.Context(), mustIdentity(r).SubjectID, auth.ActiveOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Data: userData{User: viewOf(cred)}})
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Password != nil || req.PasswordConfirm != nil {
		s.writeError(w, r, auth.NewError(auth.KindInvalidInput, "PROFILE_PASSWORD_FIELD",
			"This route is not for password updates. Please use /updateMyPassword."))
		return
	}
	cred, err := s.accounts.UpdateProfile(r.Context(), mustIdentity(r).SubjectID,
		auth.ProfileUpdate{Name: req.Name, Email: req.Email})
	if record("update_profile", err) != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Data: userData{User: viewOf(cred)}})
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	err := s.accounts.Deactivate(r.Context(), mustIdentity(r).SubjectID)
	if record("deactivate", err) != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cred, err := s.accounts.Get(r.Context(), id, auth.AnyState)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Data: userData{User: viewOf(cred)}})
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cred, err := s.accounts.AssignRole(r.Context(), id, role)
	if record("assign_role", err) != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "role assigned", "credential_id", cred.ID.String(), "role", string(role))
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Data: userData{User: viewOf(cred)}})
}

type sessionData struct {
	Authenticated bool   `json:"authenticated"`
	SubjectID     string `json:"subjectId,omitempty"`
	Role          string `json:"role,omitempty"`
}

// handleSession reports who the caller is without ever rejecting them.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	data := sessionData{}
	if id, ok := access.IdentityFrom(r.Context()); ok {
		data = sessionData{Authenticated: true, SubjectID: id.SubjectID.String(), Role: string(id.Role)}
	}
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Data: data})
}

func pathID(r *http.Request) (ulid.ULID, error) {
	raw := chi.URLParam(r, "id")
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.With("id", raw).
			Wrap(auth.WrapError(auth.KindInvalidInput, "INVALID_ID", "Invalid user id.", err))
	}
	return id, nil
}

// mustIdentity returns the identity attached by Gate.Require. Routes using
// it are only mounted behind Require.
func mustIdentity(r *http.Request) access.Identity {
	id, ok := access.IdentityFrom(r.Context())
	if !ok {
		panic("api: handler mounted without access.Gate.Require")
	}
	return id
}
