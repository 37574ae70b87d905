// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trailhead/trailhead/internal/auth"
)

var testSecret = bytes.Repeat([]byte("s"), auth.MinTokenSecretLength)

// clock is a settable time source shared by the services under test.
type clock struct {
	t time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func cheapHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasherWithParams(auth.HashParams{Memory: 1024, Time: 1, Threads: 1})
	require.NoError(t, err)
	return h
}

func newTokens(t *testing.T, c *clock) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: testSecret, TTL: time.Hour}, auth.WithTokenClock(c.Now))
	require.NoError(t, err)
	return tokens
}

func newIssuer(t *testing.T, c *clock) *auth.SessionIssuer {
	t.Helper()
	issuer, err := auth.NewSessionIssuer(newTokens(t, c), auth.SessionConfig{CookieTTL: 24 * time.Hour})
	require.NoError(t, err)
	return issuer
}

func newCredential(t *testing.T, hasher auth.PasswordHasher, password string) *auth.Credential {
	t.Helper()
	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	cred, err := auth.NewCredential("Jonas Schmedtmann", "jonas@example.com", hash)
	require.NoError(t, err)
	return cred
}

func assertKind(t *testing.T, err error, want auth.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, auth.KindOf(err), "error: %v", err)
}
