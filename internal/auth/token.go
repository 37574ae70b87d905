// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinTokenSecretLength is the minimum HS256 signing secret size in bytes.
const MinTokenSecretLength = 32

// TokenConfig holds the process-wide signing secret and token lifetime.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Claims is the verified content of a bearer token.
type Claims struct {
	SubjectID ulid.ULID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies HS256-signed bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock overrides the clock used for issuance and expiry checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a TokenService from cfg.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.Secret) < MinTokenSecretLength {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("min_length", MinTokenSecretLength).
			Errorf("token secret must be at least %d bytes", MinTokenSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").With("ttl", cfg.TTL.String()).Errorf("token TTL must be positive")
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	s := &TokenService{secret: secret, ttl: cfg.TTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for subjectID valid from now until now + TTL.
func (s *TokenService) Issue(subjectID ulid.ULID) (string, error) {
	if subjectID.Compare(ulid.ULID{}) == 0 {
		return "", oops.Code("TOKEN_ISSUE_FAILED").Errorf("subject ID cannot be zero")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").With("subject", subjectID.String()).Wrap(err)
	}
	return signed, nil
}

// Verify checks the signature first and the claims second. A bad signature
// or malformed token yields KindInvalidCredential; an expired one KindExpired.
// A token is still valid at the instant it expires.
func (s *TokenService) Verify(token string) (Claims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, WrapError(KindInvalidCredential, "TOKEN_INVALID_SIGNATURE", MsgInvalidCredential, err)
	}

	now := s.now()
	if claims.ExpiresAt == nil {
		return Claims{}, NewError(KindInvalidCredential, "TOKEN_MISSING_EXP", MsgInvalidCredential)
	}
	if claims.IssuedAt == nil {
		return Claims{}, NewError(KindInvalidCredential, "TOKEN_MISSING_IAT", MsgInvalidCredential)
	}
	if claims.IssuedAt.After(now) {
		return Claims{}, NewError(KindInvalidCredential, "TOKEN_ISSUED_IN_FUTURE", MsgInvalidCredential)
	}
	if now.After(claims.ExpiresAt.Time) {
		return Claims{}, WrapError(KindExpired, "TOKEN_EXPIRED", MsgExpired, jwt.ErrTokenExpired)
	}

	subjectID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return Claims{}, WrapError(KindInvalidCredential, "TOKEN_INVALID_SUBJECT", MsgInvalidCredential, err)
	}

	return Claims{
		SubjectID: subjectID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
