// Package domainerrors defines the typed error taxonomy shared by every
// service and transport in the module.
//
// Services create errors with New or Wrap and callers branch on HasCode.
// Stores never return these directly; they return pkg/platform/sentinel
// errors which the owning service translates.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error. The string form is the stable
// machine-readable value written to API responses.
type Code string

// Ledger control-layer codes.
const (
	CodeUnauthorized          Code = "unauthorized"
	CodeInvariantViolation    Code = "invariant_violation"
	CodeBadConfirmation       Code = "bad_confirmation"
	CodeInvalidCandidate      Code = "invalid_candidate"
	CodeAlreadyBanned         Code = "already_banned"
	CodeNotBanned             Code = "not_banned"
	CodeZeroAddress           Code = "zero_address"
	CodeZeroValue             Code = "zero_value"
	CodeInsufficientBalance   Code = "insufficient_balance"
	CodeInsufficientAllowance Code = "insufficient_allowance"
	CodeEnforcedPause         Code = "enforced_pause"
	CodeExpectedPause         Code = "expected_pause"
	CodePrecisionLoss         Code = "precision_loss"
	CodeNotAllowed            Code = "not_allowed"
	CodeInvalidInitialization Code = "invalid_initialization"
	CodeNoPeer                Code = "no_peer"
)

// Generic codes.
const (
	CodeInternal      Code = "internal_error"
	CodeValidation    Code = "validation_error"
	CodeInvalidInput  Code = "invalid_input"
	CodeBadRequest    Code = "bad_request"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "conflict"
	CodeForbidden     Code = "forbidden"
	CodeTimeout       Code = "timeout"
	CodeUnavailable   Code = "unavailable"
	CodeInvalidRecord Code = "invalid_record"
)

// Error is a coded domain error. Msg is safe to show to API callers except
// for CodeInternal, whose message is logged but never returned.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code so errors.Is(err, New(code, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Wrap attaches a code and message to an underlying cause. Wrapping nil
// returns nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: msg, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost domain error in err's chain, or
// CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is is errors.Is re-exported so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As re-exported so callers need a single import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Message returns the caller-facing message, hiding internal details.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Msg
	}
	return "internal error"
}

var statusByCode = map[Code]int{
	CodeUnauthorized:          http.StatusUnauthorized,
	CodeForbidden:             http.StatusForbidden,
	CodeInvariantViolation:    http.StatusForbidden,
	CodeBadConfirmation:       http.StatusForbidden,
	CodeInvalidCandidate:      http.StatusForbidden,
	CodeNotAllowed:            http.StatusForbidden,
	CodeAlreadyBanned:         http.StatusConflict,
	CodeNotBanned:             http.StatusConflict,
	CodeEnforcedPause:         http.StatusConflict,
	CodeExpectedPause:         http.StatusConflict,
	CodeInvalidInitialization: http.StatusConflict,
	CodeConflict:              http.StatusConflict,
	CodeZeroAddress:           http.StatusUnprocessableEntity,
	CodeZeroValue:             http.StatusUnprocessableEntity,
	CodeInsufficientBalance:   http.StatusUnprocessableEntity,
	CodeInsufficientAllowance: http.StatusUnprocessableEntity,
	CodePrecisionLoss:         http.StatusUnprocessableEntity,
	CodeNoPeer:                http.StatusUnprocessableEntity,
	CodeValidation:            http.StatusBadRequest,
	CodeInvalidInput:          http.StatusBadRequest,
	CodeBadRequest:            http.StatusBadRequest,
	CodeInvalidRecord:         http.StatusBadRequest,
	CodeNotFound:              http.StatusNotFound,
	CodeTimeout:               http.StatusGatewayTimeout,
	CodeUnavailable:           http.StatusServiceUnavailable,
}

// ToHTTPStatus maps an error to the HTTP status written by transports.
func ToHTTPStatus(err error) int {
	if status, ok := statusByCode[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
