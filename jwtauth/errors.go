package jwtauth

import (
	"errors"
	"fmt"

	"github.com/Wang-tianhao/coretoken/coretoken"
)

// ErrorCode is the reason reported to clients for a rejected request
type ErrorCode string

const (
	ErrExpired                  ErrorCode = "EXPIRED"
	ErrNotYetValid              ErrorCode = "NOT_YET_VALID"
	ErrInvalidSignature         ErrorCode = "INVALID_SIGNATURE"
	ErrMissingToken             ErrorCode = "MISSING_TOKEN"
	ErrMalformed                ErrorCode = "MALFORMED"
	ErrNoneAlgorithm            ErrorCode = "NONE_ALGORITHM"
	ErrConfigError              ErrorCode = "CONFIG_ERROR"
	ErrUnsupportedAlgorithm     ErrorCode = "UNSUPPORTED_ALGORITHM"
	ErrMalformedAlgorithmHeader ErrorCode = "MALFORMED_ALGORITHM_HEADER"
	ErrClaimMismatch            ErrorCode = "CLAIM_MISMATCH"

	// errUnknown is reported for errors that did not come from this package
	errUnknown ErrorCode = "UNKNOWN"
)

// engineReasons is the default reason for each engine error code.
// translateError refines ALGORITHM_NOT_ALLOWED and MALFORMED further.
var engineReasons = map[coretoken.ErrorCode]ErrorCode{
	coretoken.ErrEncoding:            ErrMalformed,
	coretoken.ErrMalformed:           ErrMalformed,
	coretoken.ErrAlgorithmNotAllowed: ErrUnsupportedAlgorithm,
	coretoken.ErrInvalidSignature:    ErrInvalidSignature,
	coretoken.ErrInvalidKey:          ErrInvalidSignature,
	coretoken.ErrExpired:             ErrExpired,
	coretoken.ErrNotActive:           ErrNotYetValid,
	coretoken.ErrMissingClaim:        ErrMalformed,
	coretoken.ErrClaimMismatch:       ErrClaimMismatch,
}

// ValidationError is a rejected credential. Field names the header member or
// claim at fault when one is known. Internal holds the engine error, if any.
type ValidationError struct {
	Code     ErrorCode
	Field    string
	Message  string
	Internal error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Internal
}

// NewValidationError creates a validation error without a field
func NewValidationError(code ErrorCode, message string, internal error) *ValidationError {
	return &ValidationError{
		Code:     code,
		Message:  message,
		Internal: internal,
	}
}

// CodeOf returns the reason code carried by err, or "UNKNOWN" when err is
// not a *ValidationError
func CodeOf(err error) ErrorCode {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Code
	}
	return errUnknown
}
