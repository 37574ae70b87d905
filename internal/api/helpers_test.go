// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/trailhead/trailhead/internal/access"
	"github.com/trailhead/trailhead/internal/api"
	"github.com/trailhead/trailhead/internal/auth"
)

var apiSecret = bytes.Repeat([]byte("a"), auth.MinTokenSecretLength)

// fakeAccounts is an AccountService whose behaviour each test sets.
type fakeAccounts struct {
	signup         func(context.Context, auth.SignupInput) (*auth.Credential, *auth.Session, error)
	login          func(context.Context, string, string) (*auth.Credential, *auth.Session, error)
	changePassword func(context.Context, ulid.ULID, string, string, string) (*auth.Session, error)
	get            func(context.Context, ulid.ULID, auth.LookupFilter) (*auth.Credential, error)
	updateProfile  func(context.Context, ulid.ULID, auth.ProfileUpdate) (*auth.Credential, error)
	deactivate     func(context.Context, ulid.ULID) error
	assignRole     func(context.Context, ulid.ULID, auth.Role) (*auth.Credential, error)
	endSession     func() *auth.Session
}

func (f *fakeAccounts) Signup(ctx context.Context, in auth.SignupInput) (*auth.Credential, *auth.Session, error) {
	return f.signup(ctx, in)
}

func (f *fakeAccounts) Login(ctx context.Context, email, password string) (*auth.Credential, *auth.Session, error) {
	return f.login(ctx, email, password)
}

func (f *fakeAccounts) ChangePassword(ctx context.Context, id ulid.ULID, current, next, confirm string) (*auth.Session, error) {
	return f.changePassword(ctx, id, current, next, confirm)
}

func (f *fakeAccounts) Get(ctx context.Context, id ulid.ULID, filter auth.LookupFilter) (*auth.Credential, error) {
	return f.get(ctx, id, filter)
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, id ulid.ULID, in auth.ProfileUpdate) (*auth.Credential, error) {
	return f.updateProfile(ctx, id, in)
}

func (f *fakeAccounts) Deactivate(ctx context.Context, id ulid.ULID) error {
	return f.deactivate(ctx, id)
}

func (f *fakeAccounts) AssignRole(ctx context.Context, id ulid.ULID, role auth.Role) (*auth.Credential, error) {
	return f.assignRole(ctx, id, role)
}

func (f *fakeAccounts) EndSession() *auth.Session {
	return f.endSession()
}

type fakeResets struct {
	request  func(context.Context, string) error
	complete func(context.Context, string, string, string) (*auth.Credential, *auth.Session, error)
}

func (f *fakeResets) RequestPasswordReset(ctx context.Context, email string) error {
	return f.request(ctx, email)
}

func (f *fakeResets) CompletePasswordReset(ctx context.Context, secret, next, confirm string) (*auth.Credential, *auth.Session, error) {
	return f.complete(ctx, secret, next, confirm)
}

// subjects resolves gate lookups from a fixed set of credentials.
type subjects map[ulid.ULID]*auth.Credential

func (s subjects) FindByID(_ context.Context, id ulid.ULID, filter auth.LookupFilter) (*auth.Credential, error) {
	c, ok := s[id]
	if !ok || (!c.Active && !filter.IncludeInactive) {
		return nil, auth.ErrNotFound
	}
	return c, nil
}

type harness struct {
	accounts *fakeAccounts
	resets   *fakeResets
	subjects subjects
	tokens   *auth.TokenService
	issuer   *auth.SessionIssuer
	gate     *access.Gate
	handler  http.Handler
}

func newHarness(t *testing.T, opts ...func(*api.Deps)) *harness {
	t.Helper()
	h := &harness{
		accounts: &fakeAccounts{},
		resets:   &fakeResets{},
		subjects: subjects{},
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: apiSecret, TTL: time.Hour})
	require.NoError(t, err)
	h.tokens = tokens
	issuer, err := auth.NewSessionIssuer(tokens, auth.SessionConfig{CookieTTL: 24 * time.Hour})
	require.NoError(t, err)
	h.issuer = issuer
	h.accounts.endSession = func() *auth.Session {
		c := issuer.EndSession()
		return &auth.Session{Token: c.Value, Cookie: c}
	}

	gate, err := access.NewGate(access.GateConfig{
		Tokens:     tokens,
		Subjects:   h.subjects,
		Policy:     access.NewStaticPolicy(nil),
		WriteError: api.NewErrorWriter(nil),
	})
	require.NoError(t, err)
	h.gate = gate

	deps := api.Deps{
		Accounts:       h.accounts,
		Resets:         h.resets,
		Gate:           gate,
		AllowedOrigins: []string{"https://*.trailhead.test"},
		Version:        "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}
	srv, err := api.New(deps)
	require.NoError(t, err)
	h.handler = srv.Handler()
	return h
}

// member registers an active credential and returns it with a valid token.
func (h *harness) member(t *testing.T, role auth.Role) (*auth.Credential, string) {
	t.Helper()
	cred := &auth.Credential{
		ID:        ulid.Make(),
		Name:      "Leo Gillespie",
		Email:     "leo@example.com",
		Role:      role,
		Active:    true,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	h.subjects[cred.ID] = cred
	token, err := h.tokens.Issue(cred.ID)
	require.NoError(t, err)
	return cred, token
}

func (h *harness) session(t *testing.T, id ulid.ULID) *auth.Session {
	t.Helper()
	s, err := h.issuer.IssueSession(id)
	require.NoError(t, err)
	return s
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, _ := json.Marshal(b)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

type response struct {
	Status  string          `json:"status"`
	Token   string          `json:"token"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

func userOf(t *testing.T, r response) map[string]any {
	t.Helper()
	var data struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(r.Data, &data))
	return data.User
}
