// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/observability"
	"github.com/trailhead/trailhead/pkg/errutil"
)

// ResetPathPrefix is the route a reset link points at; the secret is appended.
const ResetPathPrefix = "/api/v1/users/resetPassword/"

// PasswordResetService handles the forgot-password and reset-password flows.
type PasswordResetService struct {
	repo     CredentialRepository
	hasher   PasswordHasher
	manager  *ResetTokenManager
	mailer   Mailer
	sessions *SessionIssuer
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

// ResetServiceConfig holds the collaborators of a PasswordResetService.
type ResetServiceConfig struct {
	Repo     CredentialRepository
	Hasher   PasswordHasher
	Manager  *ResetTokenManager
	Mailer   Mailer
	Sessions *SessionIssuer
	// BaseURL is the public origin used to build reset links.
	BaseURL string
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(cfg ResetServiceConfig) (*PasswordResetService, error) {
	switch {
	case cfg.Repo == nil:
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("credential repository is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("password hasher is required")
	case cfg.Manager == nil:
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("reset token manager is required")
	case cfg.Mailer == nil:
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("mailer is required")
	case cfg.Sessions == nil:
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("session issuer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PasswordResetService{
		repo:     cfg.Repo,
		hasher:   cfg.Hasher,
		manager:  cfg.Manager,
		mailer:   cfg.Mailer,
		sessions: cfg.Sessions,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// RequestPasswordReset mints a reset secret for the account registered under
// email, persists its hash, and mails the plaintext. If delivery fails the
// persisted hash is cleared before the error is returned.
func (s *PasswordResetService) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}

	cred, err := s.repo.FindByEmail(ctx, email, ActiveOnly)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return WrapError(KindNotFound, "RESET_EMAIL_NOT_FOUND", MsgNoSuchEmail, err)
		}
		return StoreUnavailable("find by email", err)
	}

	secret, err := s.manager.Generate()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "generate secret").Wrap(err)
	}

	cred.SetReset(secret.Hash, secret.ExpiresAt)
	if err := s.repo.Save(ctx, cred, SaveOptions{SkipValidation: true}); err != nil {
		return StoreUnavailable("persist reset secret", err)
	}

	sendErr := s.mailer.Send(ctx, s.resetMessage(cred, secret))
	if sendErr == nil {
		return nil
	}

	// An undelivered secret must not stay valid.
	observability.RecordResetRollback()
	cred.ClearReset()
	if err := s.repo.Save(ctx, cred, SaveOptions{SkipValidation: true}); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "reset secret rollback failed",
			oops.Code("RESET_ROLLBACK_FAILED").With("credential_id", cred.ID.String()).Wrap(err))
	}

	return WrapError(KindDeliveryFailed, "RESET_DELIVERY_FAILED", MsgDeliveryFailed,
		oops.With("credential_id", cred.ID.String()).Wrap(sendErr))
}

func (s *PasswordResetService) resetMessage(cred *Credential, secret ResetSecret) Message {
	link := s.baseURL + ResetPathPrefix + secret.Plaintext
	return Message{
		To:      cred.Email,
		Subject: fmt.Sprintf("Your password reset token (valid for %s)", formatValidity(s.manager.TTL())),
		Body: fmt.Sprintf(
			"Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n"+
				"If you didn't forget your password, please ignore this email!\n", link),
	}
}

// formatValidity renders whole minutes as "N min" and anything else as a Go duration.
func formatValidity(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
	return d.String()
}

// CompletePasswordReset sets a new password using a reset secret. The secret
// is cleared in the same conditional write as the password, so a concurrent or
// later replay finds nothing to consume. On failure the secret is left untouched.
func (s *PasswordResetService) CompletePasswordReset(ctx context.Context, secret, newPassword, confirm string) (*Credential, *Session, error) {
	if err := ValidatePassword(newPassword, confirm); err != nil {
		return nil, nil, err
	}

	cred, err := s.manager.Consume(ctx, secret)
	if err != nil {
		return nil, nil, err
	}
	resetHash := *cred.ResetTokenHash

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, nil, oops.Code("RESET_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	now := s.now()
	cred.ClearReset()
	cred.SetPassword(hash, now)
	if err := s.repo.ConsumeReset(ctx, cred, resetHash, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, WrapError(KindInvalidOrExpired, "RESET_TOKEN_CONSUMED", MsgInvalidOrExpired, err)
		}
		return nil, nil, StoreUnavailable("consume reset secret", err)
	}

	session, err := s.sessions.IssueSession(cred.ID)
	if err != nil {
		return nil, nil, oops.Code("RESET_PASSWORD_FAILED").With("operation", "issue session").Wrap(err)
	}
	return cred, session, nil
}
