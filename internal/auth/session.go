// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import (
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session cookie defaults.
const (
	DefaultCookieName = "jwt"
	LoggedOutValue    = "loggedout"
	LogoutCookieTTL   = 10 * time.Second
)

// SessionConfig describes the cookie that carries the bearer token.
type SessionConfig struct {
	CookieName string
	CookieTTL  time.Duration
	// Secure marks the cookie HTTPS-only; set in production.
	Secure bool
}

// Session is an issued bearer token and the cookie that carries it.
type Session struct {
	Token  string
	Cookie *http.Cookie
}

// SessionIssuer turns a subject into a session and produces logout cookies.
type SessionIssuer struct {
	tokens *TokenService
	cfg    SessionConfig
	now    func() time.Time
}

// NewSessionIssuer creates a SessionIssuer.
func NewSessionIssuer(tokens *TokenService, cfg SessionConfig) (*SessionIssuer, error) {
	if tokens == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("token service is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookieTTL <= 0 {
		return nil, oops.Code("SESSION_INVALID_CONFIG").
			With("cookie_ttl", cfg.CookieTTL.String()).
			Errorf("cookie TTL must be positive")
	}
	return &SessionIssuer{tokens: tokens, cfg: cfg, now: tokens.now}, nil
}

// CookieName returns the name of the session cookie.
func (s *SessionIssuer) CookieName() string {
	return s.cfg.CookieName
}

// IssueSession signs a token for subjectID and wraps it in an HttpOnly cookie
// expiring CookieTTL from now.
func (s *SessionIssuer) IssueSession(subjectID ulid.ULID) (*Session, error) {
	token, err := s.tokens.Issue(subjectID)
	if err != nil {
		return nil, oops.Code("SESSION_ISSUE_FAILED").With("subject", subjectID.String()).Wrap(err)
	}
	return &Session{
		Token:  token,
		Cookie: s.cookie(token, s.now().Add(s.cfg.CookieTTL)),
	}, nil
}

// EndSession returns a placeholder cookie that supersedes the session cookie.
// It carries no credential, so repeating it changes nothing.
func (s *SessionIssuer) EndSession() *http.Cookie {
	return s.cookie(LoggedOutValue, s.now().Add(LogoutCookieTTL))
}

func (s *SessionIssuer) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
