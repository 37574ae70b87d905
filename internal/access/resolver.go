// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package access

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/trailhead/trailhead/internal/auth"
)

// TokenVerifier checks a bearer token. *auth.TokenService implements it.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// SubjectResolver loads the current credential for a token's subject.
// auth.CredentialRepository implementations satisfy it.
type SubjectResolver interface {
	FindByID(ctx context.Context, id ulid.ULID, filter auth.LookupFilter) (*auth.Credential, error)
}
