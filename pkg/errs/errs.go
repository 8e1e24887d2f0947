// Package errs defines the machine-readable failure taxonomy shared by the
// transfer pipeline. Every terminal failure carries a Kind plus a
// human-readable detail; callers branch on Kind, humans read Detail.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a transfer failure.
type Kind string

const (
	// Resolution failures. Never retried: retrying a deterministic lookup
	// validation cannot change its outcome.
	CreatorNotFound        Kind = "CREATOR_NOT_FOUND"
	InvalidTokenFormat     Kind = "INVALID_TOKEN_FORMAT"
	RecipientNotResolvable Kind = "RECIPIENT_NOT_RESOLVABLE"

	// Amount computation failures. Never retried.
	InvalidAmount    Kind = "INVALID_AMOUNT"
	PriceUnavailable Kind = "PRICE_UNAVAILABLE"

	// Pre-flight failures.
	InsufficientBalance   Kind = "INSUFFICIENT_BALANCE"
	InsufficientLiquidity Kind = "INSUFFICIENT_LIQUIDITY"
	BuyTokenNotAuthorized Kind = "BUY_TOKEN_NOT_AUTHORIZED"
	AllowanceFailure      Kind = "ALLOWANCE_FAILURE"

	// Execution failures.
	SubmissionFailed     Kind = "SUBMISSION_FAILED"
	InsufficientGasFunds Kind = "INSUFFICIENT_GAS_FUNDS"
	ConfirmationTimeout  Kind = "CONFIRMATION_TIMEOUT"
	Reverted             Kind = "REVERTED"
)

// Error is a classified transfer failure.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// E builds a classified error.
func E(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Ef builds a classified error with a formatted detail string.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error keeping the underlying cause for diagnostics.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// KindOf returns the Kind of err, or the empty Kind when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
