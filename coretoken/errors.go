package coretoken

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of failure reported by the engine
type ErrorCode string

const (
	ErrEncoding            ErrorCode = "ENCODING"
	ErrMalformed           ErrorCode = "MALFORMED"
	ErrAlgorithmNotAllowed ErrorCode = "ALGORITHM_NOT_ALLOWED"
	ErrInvalidSignature    ErrorCode = "INVALID_SIGNATURE"
	ErrExpired             ErrorCode = "EXPIRED"
	ErrNotActive           ErrorCode = "NOT_ACTIVE"
	ErrInvalidKey          ErrorCode = "INVALID_KEY"
	ErrMissingClaim        ErrorCode = "MISSING_CLAIM"
	ErrClaimMismatch       ErrorCode = "CLAIM_MISMATCH"
)

// Error is returned by every failing engine operation.
// Messages never contain key material or raw token text.
type Error struct {
	Code     ErrorCode
	Field    string // header field or claim involved, if any
	Message  string
	Internal error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Internal
}

func newError(code ErrorCode, field, message string, internal error) *Error {
	return &Error{
		Code:     code,
		Field:    field,
		Message:  message,
		Internal: internal,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// errSignatureMismatch is returned by algorithm implementations when a
// signature does not verify. Verify turns it into ErrInvalidSignature.
var errSignatureMismatch = errors.New("signature mismatch")
