// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

// Package access admits HTTP requests based on the caller's session token
// and authorizes them by role.
//
// Permissions are "action:resource" strings matched with ':' separated globs:
//   - action: "read", "write", "delete", "grant"
//   - resource: "user:01ABC", "role", "booking:*"
//
// The token $self in a pattern is replaced by the caller's subject ID.
package access

import "context"

// Authorizer decides whether an admitted identity may act on a resource.
type Authorizer interface {
	// Check reports whether id may perform action on resource.
	// Unknown roles and anonymous identities are denied.
	Check(ctx context.Context, id Identity, action, resource string) bool
}
