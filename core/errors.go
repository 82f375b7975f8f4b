// SPDX-License-Identifier: BUSL-1.1
package core

import (
	"errors"
	"fmt"
)

// Kind tags an Error with the taxonomy callers of admit, call, query
// and resolver operations must be able to switch on.
type Kind string

const (
	KindBadInput            Kind = "bad_input"
	KindNotFound            Kind = "not_found"
	KindAlreadyExists       Kind = "already_exists"
	KindUnauthorized        Kind = "unauthorized"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindInsufficientGas     Kind = "insufficient_gas"
	KindSoulNonTransferable Kind = "soul_non_transferable"
	KindOutOfGas            Kind = "out_of_gas"
	KindStateCorruption     Kind = "state_corruption"
	KindBackendUnavailable  Kind = "backend_unavailable"
	KindBackendTimeout      Kind = "backend_timeout"
	KindBackendReadOnly     Kind = "backend_read_only"
	KindNotImplemented      Kind = "not_implemented"
)

// Error carries a taxonomy Kind plus a human-readable message and an
// optional wrapped cause, so callers can branch with errors.Is/As while
// daemon hosts still get a readable message for logs and API responses.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, core.NewError(core.KindNotFound, "")) style checks.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// NewError constructs a taxonomy-tagged error with no wrapped cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapErr tags err with kind and message, preserving it as the cause.
func WrapErr(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
