// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

// Package auth provides the session-security core for Trailhead.
//
// # Domain Types
//
// A Credential is the durable login material of one account. Construct new
// accounts with NewCredential so the record invariants hold;
// repositories receive credentials that already passed Validate.
//
// # Primitives
//
//   - Argon2idHasher - adaptive password hashing with constant-time verify
//   - TokenService - signed, time-bounded bearer tokens
//   - ResetTokenManager - single-use recovery secrets, hashed at rest
//   - IsStale / ChangedAtStamp - token invalidation after a password change
//   - SessionIssuer - bearer token plus cookie for the transport layer
//
// # Services
//
//   - Service - signup, login, password change, deactivation, role changes
//   - PasswordResetService - forgot-password and reset-password flows
//
// Services are created with New*Service constructors that validate dependencies.
//
// # Errors
//
// Every expected failure carries a Kind (see errors.go). Callers branch on
// KindOf(err) rather than on messages or codes.
package auth
