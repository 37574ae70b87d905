// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

// Package postgres implements the credential store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/auth"
)

// poolIface is the part of *pgxpool.Pool the repository uses.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const credentialColumns = `id, name, email, password_hash, role, password_changed_at,
	       reset_token_hash, reset_expires_at, active, created_at, updated_at`

// CredentialRepository implements auth.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool poolIface
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(pool poolIface) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// Create inserts a new credential.
func (r *CredentialRepository) Create(ctx context.Context, c *auth.Credential) error {
	if err := c.Validate(); err != nil {
		return oops.Code("CREDENTIAL_CREATE_FAILED").With("operation", "validate").Wrap(err)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO credentials (
			id, name, email, password_hash, role, password_changed_at,
			reset_token_hash, reset_expires_at, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		c.ID.String(),
		c.Name,
		c.Email,
		c.PasswordHash,
		string(c.Role),
		c.PasswordChangedAt,
		c.ResetTokenHash,
		c.ResetExpiresAt,
		c.Active,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.WrapError(auth.KindEmailTaken, "CREDENTIAL_EMAIL_TAKEN", auth.MsgEmailTaken, err)
		}
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("id", c.ID.String()).
			Wrap(err)
	}
	return nil
}

// FindByID retrieves a credential by ID.
func (r *CredentialRepository) FindByID(ctx context.Context, id ulid.ULID, filter auth.LookupFilter) (*auth.Credential, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE id = $1 AND (active OR $2)
	`, id.String(), filter.IncludeInactive)

	c, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_FIND_FAILED").
			With("operation", "find by id").
			With("id", id.String()).
			Wrap(err)
	}
	return c, nil
}

// FindByEmail retrieves a credential by email, ignoring case.
func (r *CredentialRepository) FindByEmail(ctx context.Context, email string, filter auth.LookupFilter) (*auth.Credential, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE LOWER(email) = LOWER($1) AND (active OR $2)
	`, email, filter.IncludeInactive)

	c, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_FIND_FAILED").
			With("operation", "find by email").
			With("email", email).
			Wrap(err)
	}
	return c, nil
}

// FindByResetHash retrieves the credential holding an unexpired reset hash.
func (r *CredentialRepository) FindByResetHash(ctx context.Context, hash string, notExpiredBefore time.Time, filter auth.LookupFilter) (*auth.Credential, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE reset_token_hash = $1 AND reset_expires_at > $2 AND (active OR $3)
	`, hash, notExpiredBefore, filter.IncludeInactive)

	c, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// The hash is a bearer secret; keep it out of error context.
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").With("lookup", "reset hash").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_FIND_FAILED").With("operation", "find by reset hash").Wrap(err)
	}
	return c, nil
}

// Save writes every mutable column of c in a single UPDATE.
func (r *CredentialRepository) Save(ctx context.Context, c *auth.Credential, opts auth.SaveOptions) error {
	if !opts.SkipValidation {
		if err := c.Validate(); err != nil {
			return oops.Code("CREDENTIAL_SAVE_FAILED").With("operation", "validate").Wrap(err)
		}
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE credentials SET
			name = $2,
			email = $3,
			password_hash = $4,
			role = $5,
			password_changed_at = $6,
			reset_token_hash = $7,
			reset_expires_at = $8,
			active = $9,
			updated_at = $10
		WHERE id = $1
	`,
		c.ID.String(),
		c.Name,
		c.Email,
		c.PasswordHash,
		string(c.Role),
		c.PasswordChangedAt,
		c.ResetTokenHash,
		c.ResetExpiresAt,
		c.Active,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.WrapError(auth.KindEmailTaken, "CREDENTIAL_EMAIL_TAKEN", auth.MsgEmailTaken, err)
		}
		return oops.Code("CREDENTIAL_SAVE_FAILED").
			With("operation", "update credential").
			With("id", c.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").With("id", c.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeReset stores the new password and clears the reset columns in one
// conditional UPDATE. Of two concurrent resets with the same secret only the
// first matches the row; the second sees zero rows and gets ErrNotFound.
func (r *CredentialRepository) ConsumeReset(ctx context.Context, c *auth.Credential, resetHash string, notExpiredBefore time.Time) error {
	if err := c.Validate(); err != nil {
		return oops.Code("CREDENTIAL_RESET_FAILED").With("operation", "validate").Wrap(err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE credentials SET
			password_hash = $2,
			password_changed_at = $3,
			reset_token_hash = NULL,
			reset_expires_at = NULL,
			updated_at = $4
		WHERE id = $1
		  AND active
		  AND reset_token_hash = $5
		  AND reset_expires_at > $6
	`,
		c.ID.String(),
		c.PasswordHash,
		c.PasswordChangedAt,
		c.UpdatedAt,
		resetHash,
		notExpiredBefore,
	)
	if err != nil {
		return oops.Code("CREDENTIAL_RESET_FAILED").
			With("operation", "consume reset").
			With("id", c.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", c.ID.String()).
			With("lookup", "pending reset").
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// scanCredential scans one row. pgx.ErrNoRows is returned unwrapped.
func scanCredential(row pgx.Row) (*auth.Credential, error) {
	var (
		idStr             string
		name              string
		email             string
		passwordHash      string
		role              string
		passwordChangedAt *time.Time
		resetTokenHash    *string
		resetExpiresAt    *time.Time
		active            bool
		createdAt         time.Time
		updatedAt         time.Time
	)

	err := row.Scan(
		&idStr,
		&name,
		&email,
		&passwordHash,
		&role,
		&passwordChangedAt,
		&resetTokenHash,
		&resetExpiresAt,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add lookup context
		}
		return nil, oops.Code("CREDENTIAL_SCAN_FAILED").With("operation", "scan credential").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_ID").With("id", idStr).Wrap(err)
	}

	return &auth.Credential{
		ID:                id,
		Name:              name,
		Email:             email,
		PasswordHash:      passwordHash,
		Role:              auth.Role(role),
		PasswordChangedAt: passwordChangedAt,
		ResetTokenHash:    resetTokenHash,
		ResetExpiresAt:    resetExpiresAt,
		Active:            active,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.CredentialRepository = (*CredentialRepository)(nil)
