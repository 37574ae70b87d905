// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/auth"
)

// memRepo is an in-memory CredentialRepository with row-at-a-time semantics:
// every read returns a copy and every write replaces the stored row.
type memRepo struct {
	mu   sync.Mutex
	rows map[ulid.ULID]auth.Credential

	// afterResetRead runs after FindByResetHash has read, outside the lock.
	afterResetRead func()
}

func newMemRepo(creds ...*auth.Credential) *memRepo {
	r := &memRepo{rows: make(map[ulid.ULID]auth.Credential)}
	for _, c := range creds {
		r.rows[c.ID] = *c
	}
	return r
}

func (r *memRepo) get(id ulid.ULID) auth.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func notFoundErr() error {
	return oops.Code("CREDENTIAL_NOT_FOUND").Wrap(auth.ErrNotFound)
}

func visible(c auth.Credential, filter auth.LookupFilter) bool {
	return c.Active || filter.IncludeInactive
}

func (r *memRepo) Create(_ context.Context, c *auth.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if strings.EqualFold(row.Email, c.Email) {
			return auth.NewError(auth.KindEmailTaken, "CREDENTIAL_EMAIL_TAKEN", auth.MsgEmailTaken)
		}
	}
	r.rows[c.ID] = *c
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id ulid.ULID, filter auth.LookupFilter) (*auth.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !visible(row, filter) {
		return nil, notFoundErr()
	}
	return &row, nil
}

func (r *memRepo) FindByEmail(_ context.Context, email string, filter auth.LookupFilter) (*auth.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if strings.EqualFold(row.Email, email) && visible(row, filter) {
			return &row, nil
		}
	}
	return nil, notFoundErr()
}

func (r *memRepo) FindByResetHash(_ context.Context, hash string, notExpiredBefore time.Time, filter auth.LookupFilter) (*auth.Credential, error) {
	found, ok := r.findByResetHash(hash, notExpiredBefore, filter)
	if r.afterResetRead != nil {
		r.afterResetRead()
	}
	if !ok {
		return nil, notFoundErr()
	}
	return &found, nil
}

func (r *memRepo) findByResetHash(hash string, notExpiredBefore time.Time, filter auth.LookupFilter) (auth.Credential, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if pendingMatch(row, hash, notExpiredBefore) && visible(row, filter) {
			return row, true
		}
	}
	return auth.Credential{}, false
}

func pendingMatch(row auth.Credential, hash string, notExpiredBefore time.Time) bool {
	return row.ResetTokenHash != nil && *row.ResetTokenHash == hash &&
		row.ResetExpiresAt != nil && row.ResetExpiresAt.After(notExpiredBefore)
}

func (r *memRepo) Save(_ context.Context, c *auth.Credential, _ auth.SaveOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[c.ID]; !ok {
		return notFoundErr()
	}
	r.rows[c.ID] = *c
	return nil
}

func (r *memRepo) ConsumeReset(_ context.Context, c *auth.Credential, resetHash string, notExpiredBefore time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[c.ID]
	if !ok || !row.Active || !pendingMatch(row, resetHash, notExpiredBefore) {
		return notFoundErr()
	}
	row.PasswordHash = c.PasswordHash
	row.PasswordChangedAt = c.PasswordChangedAt
	row.ResetTokenHash = nil
	row.ResetExpiresAt = nil
	row.UpdatedAt = c.UpdatedAt
	r.rows[c.ID] = row
	return nil
}

// mailerFunc adapts a function to auth.Mailer.
type mailerFunc func(ctx context.Context, msg auth.Message) error

func (f mailerFunc) Send(ctx context.Context, msg auth.Message) error {
	return f(ctx, msg)
}

var _ auth.CredentialRepository = (*memRepo)(nil)
