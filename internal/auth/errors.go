// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by repositories when a requested credential does not exist.
var ErrNotFound = errors.New("not found")

// Kind classifies an operational failure. The zero value means the error is
// not operational and must not be shown to callers.
type Kind int

// Operational error kinds.
const (
	KindUnknown Kind = iota
	KindNoCredential
	KindInvalidCredential
	KindExpired
	KindSubjectGone
	KindCredentialChanged
	KindForbidden
	KindInvalidOrExpired
	KindWrongCurrentPassword
	KindStoreUnavailable
	KindInvalidInput
	KindInvalidLogin
	KindEmailTaken
	KindNotFound
	KindDeliveryFailed
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindNoCredential:         "no_credential",
	KindInvalidCredential:    "invalid_credential",
	KindExpired:              "expired",
	KindSubjectGone:          "subject_gone",
	KindCredentialChanged:    "credential_changed",
	KindForbidden:            "forbidden",
	KindInvalidOrExpired:     "invalid_or_expired",
	KindWrongCurrentPassword: "wrong_current_password",
	KindStoreUnavailable:     "store_unavailable",
	KindInvalidInput:         "invalid_input",
	KindInvalidLogin:         "invalid_login",
	KindEmailTaken:           "email_taken",
	KindNotFound:             "not_found",
	KindDeliveryFailed:       "delivery_failed",
}

// String returns the snake_case name used in logs and metric labels.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Operational reports whether errors of this kind are expected and safe to surface.
func (k Kind) Operational() bool {
	return k != KindUnknown
}

// Error is an operational failure. Message is safe to show to the caller;
// Err holds the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the safe message of the outermost *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// NewError builds an operational error tagged with an oops code.
func NewError(kind Kind, code, message string) error {
	return oops.Code(code).Wrap(&Error{Kind: kind, Message: message})
}

// WrapError builds an operational error around cause.
func WrapError(kind Kind, code, message string, cause error) error {
	return oops.Code(code).Wrap(&Error{Kind: kind, Message: message, Err: cause})
}

// StoreUnavailable marks a repository failure as fatal for the current request.
// Operation names the failing step in the oops context.
func StoreUnavailable(operation string, cause error) error {
	return oops.Code("STORE_UNAVAILABLE").
		With("operation", operation).
		Wrap(&Error{
			Kind:    KindStoreUnavailable,
			Message: "Service temporarily unavailable. Please try again later.",
			Err:     cause,
		})
}

// Safe messages shared by services and the access gate.
const (
	MsgNoCredential      = "You are not logged in! Please log in to get access."
	MsgInvalidCredential = "Invalid token. Please log in again!"
	MsgExpired           = "Your token has expired! Please log in again."
	MsgSubjectGone       = "The user belonging to this token no longer exists."
	MsgCredentialChanged = "User recently changed password! Please log in again."
	MsgForbidden         = "You do not have permission to perform this action."
	MsgInvalidOrExpired  = "Token is invalid or has expired."
	MsgWrongCurrent      = "Your current password is wrong."
	MsgInvalidLogin      = "Incorrect email or password."
	MsgEmailTaken        = "An account with that email address already exists."
	MsgNoSuchEmail       = "There is no user with that email address."
	MsgDeliveryFailed    = "There was an error sending the email. Try again later!"
)
