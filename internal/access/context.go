// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package access

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/trailhead/trailhead/internal/auth"
)

// Identity is the admitted caller of a request.
type Identity struct {
	SubjectID ulid.ULID
	Role      auth.Role
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity admitted for this request. ok is false
// for anonymous callers.
func IdentityFrom(ctx context.Context) (id Identity, ok bool) {
	id, ok = ctx.Value(identityKey{}).(Identity)
	return id, ok
}
