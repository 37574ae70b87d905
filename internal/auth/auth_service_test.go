// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trailhead/trailhead/internal/auth"
	"github.com/trailhead/trailhead/internal/auth/mocks"
)

type serviceFixture struct {
	clock  *clock
	repo   *mocks.MockCredentialRepository
	hasher *auth.Argon2idHasher
	tokens *auth.TokenService
	svc    *auth.Service
}

func newServiceFixture(t *testing.T, opts ...auth.ServiceOption) *serviceFixture {
	t.Helper()
	c := newClock()
	tokens := newTokens(t, c)
	issuer, err := auth.NewSessionIssuer(tokens, auth.SessionConfig{CookieTTL: 24 * time.Hour})
	require.NoError(t, err)

	f := &serviceFixture{
		clock:  c,
		repo:   mocks.NewMockCredentialRepository(t),
		hasher: cheapHasher(t),
		tokens: tokens,
	}
	opts = append([]auth.ServiceOption{auth.WithServiceClock(c.Now)}, opts...)
	f.svc, err = auth.NewAuthService(f.repo, f.hasher, issuer, opts...)
	require.NoError(t, err)
	return f
}

var notFound = oops.Code("CREDENTIAL_NOT_FOUND").Wrap(auth.ErrNotFound)

func TestNewAuthService_NilDependencies(t *testing.T) {
	repo := mocks.NewMockCredentialRepository(t)
	hasher := cheapHasher(t)
	issuer := newIssuer(t, newClock())

	tests := []struct {
		name    string
		repo    auth.CredentialRepository
		hasher  auth.PasswordHasher
		issuer  *auth.SessionIssuer
		message string
	}{
		{"nil repo", nil, hasher, issuer, "credential repository is required"},
		{"nil hasher", repo, nil, issuer, "password hasher is required"},
		{"nil issuer", repo, hasher, nil, "session issuer is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewAuthService(tt.repo, tt.hasher, tt.issuer)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestService_Signup(t *testing.T) {
	ctx := context.Background()
	in := auth.SignupInput{
		Name:            "Laura Wilson",
		Email:           "Laura@Example.com",
		Password:        "pass1234",
		PasswordConfirm: "pass1234",
	}

	t.Run("creates user and starts session", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("Create", ctx, mock.AnythingOfType("*auth.Credential")).Return(nil)

		cred, session, err := f.svc.Signup(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, "laura@example.com", cred.Email)
		assert.Equal(t, auth.RoleUser, cred.Role)
		assert.True(t, f.hasher.Verify("pass1234", cred.PasswordHash))
		claims, err := f.tokens.Verify(session.Token)
		require.NoError(t, err)
		assert.Equal(t, cred.ID, claims.SubjectID)
	})

	t.Run("welcome mail failure does not fail signup", func(t *testing.T) {
		mailer := mocks.NewMockMailer(t)
		f := newServiceFixture(t, auth.WithServiceMailer(mailer))
		f.repo.On("Create", ctx, mock.Anything).Return(nil)
		mailer.On("Send", ctx, mock.MatchedBy(func(m auth.Message) bool {
			return m.To == "laura@example.com"
		})).Return(errors.New("smtp down"))

		_, _, err := f.svc.Signup(ctx, in)

		require.NoError(t, err)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("Create", ctx, mock.Anything).
			Return(auth.NewError(auth.KindEmailTaken, "CREDENTIAL_EMAIL_TAKEN", auth.MsgEmailTaken))

		_, _, err := f.svc.Signup(ctx, in)

		assertKind(t, err, auth.KindEmailTaken)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("Create", ctx, mock.Anything).Return(errors.New("connection reset"))

		_, _, err := f.svc.Signup(ctx, in)

		assertKind(t, err, auth.KindStoreUnavailable)
	})

	t.Run("invalid input never reaches the store", func(t *testing.T) {
		f := newServiceFixture(t)
		bad := in
		bad.PasswordConfirm = "different"

		_, _, err := f.svc.Signup(ctx, bad)

		assertKind(t, err, auth.KindInvalidInput)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("correct password", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByEmail", ctx, "jonas@example.com", auth.ActiveOnly).Return(cred, nil)

		got, session, err := f.svc.Login(ctx, " JONAS@example.com", "pass1234")
		require.NoError(t, err)

		assert.Same(t, cred, got)
		claims, err := f.tokens.Verify(session.Token)
		require.NoError(t, err)
		assert.Equal(t, cred.ID, claims.SubjectID)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByEmail", ctx, "jonas@example.com", auth.ActiveOnly).Return(cred, nil)

		_, _, err := f.svc.Login(ctx, "jonas@example.com", "wrong-password")

		assertKind(t, err, auth.KindInvalidLogin)
		assert.Equal(t, auth.MsgInvalidLogin, auth.MessageOf(err))
	})

	t.Run("unknown email still verifies a hash", func(t *testing.T) {
		c := newClock()
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewAuthService(repo, hasher, newIssuer(t, c))
		require.NoError(t, err)

		repo.On("FindByEmail", ctx, "ghost@example.com", auth.ActiveOnly).Return(nil, notFound)
		hasher.On("Verify", "pass1234", mock.MatchedBy(func(h string) bool {
			return strings.HasPrefix(h, "$argon2id$")
		})).Return(false).Once()

		_, _, err = svc.Login(ctx, "ghost@example.com", "pass1234")

		assertKind(t, err, auth.KindInvalidLogin)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newServiceFixture(t)

		_, _, err := f.svc.Login(ctx, "", "pass1234")
		assertKind(t, err, auth.KindInvalidInput)

		_, _, err = f.svc.Login(ctx, "jonas@example.com", "")
		assertKind(t, err, auth.KindInvalidInput)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("FindByEmail", ctx, "jonas@example.com", auth.ActiveOnly).Return(nil, errors.New("timeout"))

		_, _, err := f.svc.Login(ctx, "jonas@example.com", "pass1234")

		assertKind(t, err, auth.KindStoreUnavailable)
	})

	t.Run("upgrades outdated hash without invalidating sessions", func(t *testing.T) {
		f := newServiceFixture(t)
		old, err := auth.NewArgon2idHasherWithParams(auth.HashParams{Memory: 2048, Time: 1, Threads: 1})
		require.NoError(t, err)
		cred := newCredential(t, old, "pass1234")
		f.repo.On("FindByEmail", ctx, "jonas@example.com", auth.ActiveOnly).Return(cred, nil)
		f.repo.On("Save", ctx, cred, auth.SaveOptions{}).Return(nil)

		_, _, err = f.svc.Login(ctx, "jonas@example.com", "pass1234")
		require.NoError(t, err)

		assert.False(t, f.hasher.NeedsUpgrade(cred.PasswordHash))
		assert.Nil(t, cred.PasswordChangedAt)
	})

	t.Run("failed upgrade is logged and login succeeds", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		f := newServiceFixture(t, auth.WithServiceLogger(logger))
		old, err := auth.NewArgon2idHasherWithParams(auth.HashParams{Memory: 2048, Time: 1, Threads: 1})
		require.NoError(t, err)
		cred := newCredential(t, old, "pass1234")
		previous := cred.PasswordHash
		f.repo.On("FindByEmail", ctx, "jonas@example.com", auth.ActiveOnly).Return(cred, nil)
		f.repo.On("Save", ctx, cred, auth.SaveOptions{}).Return(errors.New("read-only replica"))

		_, _, err = f.svc.Login(ctx, "jonas@example.com", "pass1234")
		require.NoError(t, err)

		assert.Equal(t, previous, cred.PasswordHash)
		assert.Contains(t, buf.String(), "password hash upgrade failed")
		assert.Contains(t, buf.String(), "AUTH_HASH_UPGRADE_FAILED")
	})
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("old sessions become stale and new one is fresh", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		oldToken, err := f.tokens.Issue(cred.ID)
		require.NoError(t, err)

		f.clock.Advance(time.Minute)
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)
		f.repo.On("Save", ctx, cred, auth.SaveOptions{}).Return(nil)

		session, err := f.svc.ChangePassword(ctx, cred.ID, "pass1234", "newpass123", "newpass123")
		require.NoError(t, err)

		assert.True(t, f.hasher.Verify("newpass123", cred.PasswordHash))
		oldClaims, err := f.tokens.Verify(oldToken)
		require.NoError(t, err)
		assert.True(t, auth.IsStale(oldClaims.IssuedAt, cred.PasswordChangedAt))
		newClaims, err := f.tokens.Verify(session.Token)
		require.NoError(t, err)
		assert.False(t, auth.IsStale(newClaims.IssuedAt, cred.PasswordChangedAt))
	})

	t.Run("wrong current password", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)

		_, err := f.svc.ChangePassword(ctx, cred.ID, "nope-nope", "newpass123", "newpass123")

		assertKind(t, err, auth.KindWrongCurrentPassword)
		assert.Equal(t, auth.MsgWrongCurrent, auth.MessageOf(err))
	})

	t.Run("invalid new password", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)

		_, err := f.svc.ChangePassword(ctx, cred.ID, "pass1234", "short", "short")

		assertKind(t, err, auth.KindInvalidInput)
		assert.Nil(t, cred.PasswordChangedAt)
	})

	t.Run("subject gone", func(t *testing.T) {
		f := newServiceFixture(t)
		id := ulid.Make()
		f.repo.On("FindByID", ctx, id, auth.ActiveOnly).Return(nil, notFound)

		_, err := f.svc.ChangePassword(ctx, id, "pass1234", "newpass123", "newpass123")

		assertKind(t, err, auth.KindSubjectGone)
	})

	t.Run("store failure on save", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)
		f.repo.On("Save", ctx, cred, auth.SaveOptions{}).Return(errors.New("disk full"))

		_, err := f.svc.ChangePassword(ctx, cred.ID, "pass1234", "newpass123", "newpass123")

		assertKind(t, err, auth.KindStoreUnavailable)
	})
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	cred := newCredential(t, f.hasher, "pass1234")
	missing := ulid.Make()
	f.repo.On("FindByID", ctx, cred.ID, auth.AnyState).Return(cred, nil)
	f.repo.On("FindByID", ctx, missing, auth.AnyState).Return(nil, notFound)

	got, err := f.svc.Get(ctx, cred.ID, auth.AnyState)
	require.NoError(t, err)
	assert.Same(t, cred, got)

	_, err = f.svc.Get(ctx, missing, auth.AnyState)
	assertKind(t, err, auth.KindNotFound)
}

func TestService_Deactivate(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	cred := newCredential(t, f.hasher, "pass1234")
	f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil).Once()
	f.repo.On("Save", ctx, cred, auth.SaveOptions{SkipValidation: true}).Return(nil)

	require.NoError(t, f.svc.Deactivate(ctx, cred.ID))
	assert.False(t, cred.Active)

	f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(nil, notFound).Once()
	assertKind(t, f.svc.Deactivate(ctx, cred.ID), auth.KindSubjectGone)
}

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	ptr := func(s string) *string { return &s }

	t.Run("updates name and normalised email", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)
		f.repo.On("Save", ctx, cred, auth.SaveOptions{}).Return(nil)

		got, err := f.svc.UpdateProfile(ctx, cred.ID, auth.ProfileUpdate{
			Name:  ptr("  Jonas S. "),
			Email: ptr(" Jonas.S@Example.COM"),
		})
		require.NoError(t, err)

		assert.Equal(t, "Jonas S.", got.Name)
		assert.Equal(t, "jonas.s@example.com", got.Email)
		assert.Equal(t, f.clock.Now(), got.UpdatedAt)
		assert.Nil(t, got.PasswordChangedAt, "profile edits leave sessions valid")
	})

	t.Run("empty update writes nothing", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)

		got, err := f.svc.UpdateProfile(ctx, cred.ID, auth.ProfileUpdate{})
		require.NoError(t, err)
		assert.Same(t, cred, got)
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid fields", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)

		_, err := f.svc.UpdateProfile(ctx, cred.ID, auth.ProfileUpdate{Email: ptr("not-an-email")})
		assertKind(t, err, auth.KindInvalidInput)
		_, err = f.svc.UpdateProfile(ctx, cred.ID, auth.ProfileUpdate{Name: ptr("   ")})
		assertKind(t, err, auth.KindInvalidInput)
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("email collision", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)
		f.repo.On("Save", ctx, cred, auth.SaveOptions{}).
			Return(auth.NewError(auth.KindEmailTaken, "CREDENTIAL_EMAIL_TAKEN", auth.MsgEmailTaken))

		_, err := f.svc.UpdateProfile(ctx, cred.ID, auth.ProfileUpdate{Email: ptr("taken@example.com")})
		assertKind(t, err, auth.KindEmailTaken)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newServiceFixture(t)
		cred := newCredential(t, f.hasher, "pass1234")
		f.repo.On("FindByID", ctx, cred.ID, auth.ActiveOnly).Return(cred, nil)
		f.repo.On("Save", ctx, cred, auth.SaveOptions{}).Return(errors.New("conn closed"))

		_, err := f.svc.UpdateProfile(ctx, cred.ID, auth.ProfileUpdate{Name: ptr("New Name")})
		assertKind(t, err, auth.KindStoreUnavailable)
	})
}

func TestService_AssignRole(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	cred := newCredential(t, f.hasher, "pass1234")
	f.repo.On("FindByID", ctx, cred.ID, auth.AnyState).Return(cred, nil)
	f.repo.On("Save", ctx, cred, auth.SaveOptions{SkipValidation: true}).Return(nil)

	got, err := f.svc.AssignRole(ctx, cred.ID, auth.RoleLeadGuide)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleLeadGuide, got.Role)

	_, err = f.svc.AssignRole(ctx, cred.ID, auth.Role("captain"))
	assertKind(t, err, auth.KindInvalidInput)
}

func TestService_EndSession(t *testing.T) {
	f := newServiceFixture(t)

	first := f.svc.EndSession()
	second := f.svc.EndSession()

	assert.Equal(t, auth.LoggedOutValue, first.Token)
	assert.Equal(t, first.Cookie, second.Cookie)
}
