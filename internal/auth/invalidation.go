// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import "time"

// ChangedAtSkew is subtracted from the write time when stamping
// PasswordChangedAt, so a token issued in the same second as the change
// is not classified as stale.
const ChangedAtSkew = time.Second

// ChangedAtStamp returns the PasswordChangedAt value for a change written at now.
func ChangedAtStamp(now time.Time) time.Time {
	return now.Add(-ChangedAtSkew)
}

// IsStale reports whether a token issued at issuedAt predates the last
// password change. Comparison is in whole seconds, the token's resolution.
func IsStale(issuedAt time.Time, changedAt *time.Time) bool {
	if changedAt == nil {
		return false
	}
	return issuedAt.Unix() < changedAt.Unix()
}
