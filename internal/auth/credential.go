// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the closed set of account roles.
type Role string

// Account roles.
const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role in ascending order of privilege.
func Roles() []Role {
	return []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", NewError(KindInvalidInput, "AUTH_INVALID_ROLE", "Role must be one of: user, guide, lead-guide, admin.")
	}
	return r, nil
}

// Password and name constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MaxNameLength     = 100
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Credential is the durable login material and security metadata of one account.
type Credential struct {
	ID                ulid.ULID
	Name              string
	Email             string
	PasswordHash      string
	Role              Role
	PasswordChangedAt *time.Time
	ResetTokenHash    *string
	ResetExpiresAt    *time.Time
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewCredential creates an active credential with the default role.
// Email is normalized to lower case.
func NewCredential(name, email, passwordHash string) (*Credential, error) {
	now := time.Now()
	c := &Credential{
		ID:           ulid.Make(),
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the record invariants.
func (c *Credential) Validate() error {
	if c.ID.Compare(ulid.ULID{}) == 0 {
		return oops.Code("CREDENTIAL_INVALID").Errorf("credential ID cannot be zero")
	}
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}
	if !c.Role.Valid() {
		return oops.Code("CREDENTIAL_INVALID").With("role", string(c.Role)).Errorf("unknown role")
	}
	if c.Active && c.PasswordHash == "" {
		return oops.Code("CREDENTIAL_INVALID").Errorf("active credential must have a password hash")
	}
	if (c.ResetTokenHash == nil) != (c.ResetExpiresAt == nil) {
		return oops.Code("CREDENTIAL_INVALID").Errorf("reset token hash and expiry must be set together")
	}
	return nil
}

// SetReset records an outstanding reset secret. Both fields change together.
func (c *Credential) SetReset(hash string, expiresAt time.Time) {
	c.ResetTokenHash = &hash
	c.ResetExpiresAt = &expiresAt
	c.UpdatedAt = time.Now()
}

// ClearReset drops any outstanding reset secret.
func (c *Credential) ClearReset() {
	c.ResetTokenHash = nil
	c.ResetExpiresAt = nil
	c.UpdatedAt = time.Now()
}

// HasPendingReset reports whether a reset secret is outstanding at now.
func (c *Credential) HasPendingReset(now time.Time) bool {
	return c.ResetTokenHash != nil && c.ResetExpiresAt != nil && c.ResetExpiresAt.After(now)
}

// SetPassword replaces the password hash and stamps PasswordChangedAt.
func (c *Credential) SetPassword(hash string, now time.Time) {
	changedAt := ChangedAtStamp(now)
	c.PasswordHash = hash
	c.PasswordChangedAt = &changedAt
	c.UpdatedAt = now
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email looks like an address.
func ValidateEmail(email string) error {
	if email == "" {
		return NewError(KindInvalidInput, "AUTH_INVALID_EMAIL", "Please provide your email.")
	}
	if !emailRegex.MatchString(email) {
		return NewError(KindInvalidInput, "AUTH_INVALID_EMAIL", "Please provide a valid email.")
	}
	return nil
}

// ValidateName checks the display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewError(KindInvalidInput, "AUTH_INVALID_NAME", "Please tell us your name!")
	}
	if len(name) > MaxNameLength {
		return NewError(KindInvalidInput, "AUTH_INVALID_NAME", "Name must be at most 100 characters.")
	}
	return nil
}

// ValidatePassword checks a new password and its confirmation.
func ValidatePassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return NewError(KindInvalidInput, "AUTH_INVALID_PASSWORD", "Password must be at least 8 characters.")
	}
	if len(password) > MaxPasswordLength {
		return NewError(KindInvalidInput, "AUTH_INVALID_PASSWORD", "Password must be at most 72 characters.")
	}
	if password != confirm {
		return NewError(KindInvalidInput, "AUTH_PASSWORD_MISMATCH", "Passwords are not the same!")
	}
	return nil
}

// LookupFilter selects which records a repository lookup may return.
// The zero value excludes inactive credentials.
type LookupFilter struct {
	IncludeInactive bool
}

// ActiveOnly is the default lookup filter.
var ActiveOnly = LookupFilter{}

// AnyState includes deactivated credentials.
var AnyState = LookupFilter{IncludeInactive: true}

// SaveOptions controls how a credential is persisted.
type SaveOptions struct {
	// SkipValidation persists the record without running Validate.
	SkipValidation bool
}

// CredentialRepository manages credential persistence.
// Lookups return ErrNotFound (wrapped) when no record matches.
type CredentialRepository interface {
	// Create stores a new credential. Returns an EmailTaken error on a duplicate email.
	Create(ctx context.Context, c *Credential) error

	// FindByID retrieves a credential by ID.
	FindByID(ctx context.Context, id ulid.ULID, filter LookupFilter) (*Credential, error)

	// FindByEmail retrieves a credential by email (case-insensitive).
	FindByEmail(ctx context.Context, email string, filter LookupFilter) (*Credential, error)

	// FindByResetHash retrieves the credential whose outstanding reset hash
	// matches and whose reset expiry is after notExpiredBefore.
	FindByResetHash(ctx context.Context, hash string, notExpiredBefore time.Time, filter LookupFilter) (*Credential, error)

	// Save updates every mutable field of an existing credential in one statement.
	Save(ctx context.Context, c *Credential, opts SaveOptions) error

	// ConsumeReset persists c's new password and cleared reset fields, but only
	// while the stored reset hash still equals resetHash and expires after
	// notExpiredBefore. Returns ErrNotFound (wrapped) once the secret is spent.
	ConsumeReset(ctx context.Context, c *Credential, resetHash string, notExpiredBefore time.Time) error
}
