// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32               // 32 bytes = 64 hex chars
	ResetTokenExpiry = 10 * time.Minute // 10 minute expiry
)

// ResetSecret is a freshly minted reset secret. Plaintext goes to the user
// exactly once; only Hash is persisted.
type ResetSecret struct {
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashResetToken(token)

	return token, hash, nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// HashResetToken computes the hex SHA-256 digest of a token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetLookup is the slice of CredentialRepository the manager needs.
type ResetLookup interface {
	FindByResetHash(ctx context.Context, hash string, notExpiredBefore time.Time, filter LookupFilter) (*Credential, error)
}

// ResetTokenManager mints and consumes single-use reset secrets.
type ResetTokenManager struct {
	lookup ResetLookup
	ttl    time.Duration
	now    func() time.Time
}

// ResetOption configures a ResetTokenManager.
type ResetOption func(*ResetTokenManager)

// WithResetClock overrides the clock used for expiry.
func WithResetClock(now func() time.Time) ResetOption {
	return func(m *ResetTokenManager) {
		m.now = now
	}
}

// WithResetTTL overrides ResetTokenExpiry.
func WithResetTTL(ttl time.Duration) ResetOption {
	return func(m *ResetTokenManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewResetTokenManager creates a ResetTokenManager backed by lookup.
func NewResetTokenManager(lookup ResetLookup, opts ...ResetOption) (*ResetTokenManager, error) {
	if lookup == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("reset lookup is required")
	}
	m := &ResetTokenManager{lookup: lookup, ttl: ResetTokenExpiry, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns how long a minted secret stays valid.
func (m *ResetTokenManager) TTL() time.Duration {
	return m.ttl
}

// Generate mints a new secret expiring TTL from now.
func (m *ResetTokenManager) Generate() (ResetSecret, error) {
	token, hash, err := GenerateResetToken()
	if err != nil {
		return ResetSecret{}, err
	}
	return ResetSecret{
		Plaintext: token,
		Hash:      hash,
		ExpiresAt: m.now().Add(m.ttl),
	}, nil
}

// Consume resolves a plaintext secret to the credential holding it.
// The caller must clear the reset fields in the same write as the password
// update. Unknown, expired, and already-used secrets all yield KindInvalidOrExpired.
func (m *ResetTokenManager) Consume(ctx context.Context, plaintext string) (*Credential, error) {
	if plaintext == "" {
		return nil, NewError(KindInvalidOrExpired, "RESET_TOKEN_EMPTY", MsgInvalidOrExpired)
	}

	hash := HashResetToken(plaintext)
	now := m.now()

	cred, err := m.lookup.FindByResetHash(ctx, hash, now, ActiveOnly)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, WrapError(KindInvalidOrExpired, "RESET_TOKEN_INVALID", MsgInvalidOrExpired, err)
		}
		return nil, StoreUnavailable("find by reset hash", err)
	}

	if cred.ResetTokenHash == nil || !VerifyResetToken(plaintext, *cred.ResetTokenHash) {
		return nil, NewError(KindInvalidOrExpired, "RESET_TOKEN_INVALID", MsgInvalidOrExpired)
	}
	if !cred.HasPendingReset(now) {
		return nil, NewError(KindInvalidOrExpired, "RESET_TOKEN_EXPIRED", MsgInvalidOrExpired)
	}

	return cred, nil
}
