// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import "context"

// Message is an outbound transactional email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers transactional email.
type Mailer interface {
	// Send delivers msg, returning an error if delivery was not accepted.
	Send(ctx context.Context, msg Message) error
}
