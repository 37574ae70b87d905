// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trailhead/trailhead/pkg/errutil"
)

// Service provides account and session operations.
type Service struct {
	repo     CredentialRepository
	hasher   PasswordHasher
	sessions *SessionIssuer
	mailer   Mailer
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used for best-effort failures.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceMailer enables the signup welcome email.
func WithServiceMailer(mailer Mailer) ServiceOption {
	return func(s *Service) {
		s.mailer = mailer
	}
}

// WithServiceClock overrides the clock used for password-change stamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewAuthService creates a new Service.
func NewAuthService(repo CredentialRepository, hasher PasswordHasher, sessions *SessionIssuer, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("credential repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("session issuer is required")
	}
	s := &Service{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// dummyPasswordHash is verified when the account doesn't exist so response
// time does not reveal which emails are registered.
//
//nolint:gosec // G101: intentionally fake hash for timing equalization, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SignupInput is the self-registration payload.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// Signup creates an account with the default role and starts a session.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Credential, *Session, error) {
	if err := ValidateName(in.Name); err != nil {
		return nil, nil, err
	}
	if err := ValidateEmail(NormalizeEmail(in.Email)); err != nil {
		return nil, nil, err
	}
	if err := ValidatePassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "hash password").Wrap(err)
	}

	cred, err := NewCredential(in.Name, in.Email, hash)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Create(ctx, cred); err != nil {
		if KindOf(err) == KindEmailTaken {
			return nil, nil, err
		}
		return nil, nil, StoreUnavailable("create credential", err)
	}

	s.sendWelcome(ctx, cred)

	session, err := s.sessions.IssueSession(cred.ID)
	if err != nil {
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "issue session").Wrap(err)
	}
	return cred, session, nil
}

func (s *Service) sendWelcome(ctx context.Context, cred *Credential) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.Send(ctx, Message{
		To:      cred.Email,
		Subject: "Welcome to Trailhead!",
		Body:    "Hi " + cred.Name + ",\n\nWelcome aboard. We're glad to have you.\n",
	})
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "welcome email failed",
			oops.Code("AUTH_WELCOME_FAILED").With("credential_id", cred.ID.String()).Wrap(err))
	}
}

// Login checks email and password and starts a session.
// Unknown email and wrong password produce the same KindInvalidLogin error.
func (s *Service) Login(ctx context.Context, email, password string) (*Credential, *Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, NewError(KindInvalidInput, "AUTH_MISSING_CREDENTIALS", "Please provide email and password!")
	}

	cred, lookupErr := s.repo.FindByEmail(ctx, email, ActiveOnly)

	var targetHash string
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = cred.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, nil, StoreUnavailable("find by email", lookupErr)
	}

	// Always verify so missing accounts cost the same as wrong passwords.
	valid := s.hasher.Verify(password, targetHash)
	if !exists || !valid {
		return nil, nil, NewError(KindInvalidLogin, "AUTH_INVALID_CREDENTIALS", MsgInvalidLogin)
	}

	if s.hasher.NeedsUpgrade(cred.PasswordHash) {
		s.upgradeHash(ctx, cred, password)
	}

	session, err := s.sessions.IssueSession(cred.ID)
	if err != nil {
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue session").Wrap(err)
	}
	return cred, session, nil
}

// upgradeHash re-hashes with the current parameters. PasswordChangedAt is
// left alone so existing sessions stay valid.
func (s *Service) upgradeHash(ctx context.Context, cred *Credential, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		return
	}
	previous := cred.PasswordHash
	cred.PasswordHash = newHash
	cred.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, cred, SaveOptions{}); err != nil {
		cred.PasswordHash = previous
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed",
			oops.Code("AUTH_HASH_UPGRADE_FAILED").With("credential_id", cred.ID.String()).Wrap(err))
	}
}

// ChangePassword replaces the password of an authenticated subject after
// checking the current one, and returns a fresh session. Sessions issued
// before the change become stale.
func (s *Service) ChangePassword(ctx context.Context, subjectID ulid.ULID, current, newPassword, confirm string) (*Session, error) {
	cred, err := s.findActive(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	if current == "" || !s.hasher.Verify(current, cred.PasswordHash) {
		return nil, NewError(KindWrongCurrentPassword, "AUTH_WRONG_CURRENT_PASSWORD", MsgWrongCurrent)
	}
	if err := ValidatePassword(newPassword, confirm); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	cred.SetPassword(hash, s.now())
	if err := s.repo.Save(ctx, cred, SaveOptions{}); err != nil {
		return nil, StoreUnavailable("save credential", err)
	}

	session, err := s.sessions.IssueSession(cred.ID)
	if err != nil {
		return nil, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "issue session").Wrap(err)
	}
	return session, nil
}

// Get returns the credential for id.
func (s *Service) Get(ctx context.Context, id ulid.ULID, filter LookupFilter) (*Credential, error) {
	cred, err := s.repo.FindByID(ctx, id, filter)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, WrapError(KindNotFound, "CREDENTIAL_NOT_FOUND", "No user found with that ID.", err)
		}
		return nil, StoreUnavailable("find by id", err)
	}
	return cred, nil
}

// Deactivate soft-deletes the subject's account. Later gate checks see SubjectGone.
func (s *Service) Deactivate(ctx context.Context, subjectID ulid.ULID) error {
	cred, err := s.findActive(ctx, subjectID)
	if err != nil {
		return err
	}
	cred.Active = false
	cred.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, cred, SaveOptions{SkipValidation: true}); err != nil {
		return StoreUnavailable("save credential", err)
	}
	return nil
}

// ProfileUpdate carries the self-service profile fields. A nil field is left unchanged.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// UpdateProfile changes the subject's own name and email. The email is
// normalised and must stay unique; a collision is KindEmailTaken.
func (s *Service) UpdateProfile(ctx context.Context, subjectID ulid.ULID, in ProfileUpdate) (*Credential, error) {
	cred, err := s.findActive(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if in.Name == nil && in.Email == nil {
		return cred, nil
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		cred.Name = name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
		cred.Email = email
	}

	cred.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, cred, SaveOptions{}); err != nil {
		if KindOf(err) == KindEmailTaken {
			return nil, err
		}
		return nil, StoreUnavailable("save credential", err)
	}
	return cred, nil
}

// AssignRole changes the role of any account, active or not.
func (s *Service) AssignRole(ctx context.Context, id ulid.ULID, role Role) (*Credential, error) {
	if !role.Valid() {
		return nil, NewError(KindInvalidInput, "AUTH_INVALID_ROLE", "Role must be one of: user, guide, lead-guide, admin.")
	}
	cred, err := s.Get(ctx, id, AnyState)
	if err != nil {
		return nil, err
	}
	cred.Role = role
	cred.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, cred, SaveOptions{SkipValidation: true}); err != nil {
		return nil, StoreUnavailable("save credential", err)
	}
	return cred, nil
}

// IssueSession starts a session for subjectID.
func (s *Service) IssueSession(subjectID ulid.ULID) (*Session, error) {
	return s.sessions.IssueSession(subjectID)
}

// EndSession returns the logout cookie.
func (s *Service) EndSession() *Session {
	cookie := s.sessions.EndSession()
	return &Session{Token: cookie.Value, Cookie: cookie}
}

func (s *Service) findActive(ctx context.Context, id ulid.ULID) (*Credential, error) {
	cred, err := s.repo.FindByID(ctx, id, ActiveOnly)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, WrapError(KindSubjectGone, "AUTH_SUBJECT_GONE", MsgSubjectGone, err)
		}
		return nil, StoreUnavailable("find by id", err)
	}
	return cred, nil
}
