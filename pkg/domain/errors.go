package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a domain error so transport layers can map it without
// inspecting messages.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeInvalidState ErrorCode = "INVALID_TRANSITION"
	CodeBusy         ErrorCode = "SERVICE_BUSY"

	// CodeBookingConflict is a reservation rejected because its period
	// overlaps an active one. Distinct from CodeConflict (lost write race).
	CodeBookingConflict ErrorCode = "BOOKING_CONFLICT"
)

// Sentinel errors usable with errors.Is against any *Error of the same code.
var (
	ErrValidation   = &Error{Code: CodeValidation}
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrConflict     = &Error{Code: CodeConflict}
	ErrInvalidState = &Error{Code: CodeInvalidState}
	ErrBusy         = &Error{Code: CodeBusy}

	ErrBookingConflict = &Error{Code: CodeBookingConflict}
)

// Error is the common error type returned by domain and application code.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Is reports whether target is a domain error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewValidationError reports malformed or inconsistent input.
func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewConflictError reports a write that lost against concurrent or existing state.
func NewConflictError(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// NewInvalidStateError reports a state transition that is not permitted.
func NewInvalidStateError(from, to string) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}

// NewServiceBusyError reports contention that may clear on retry.
func NewServiceBusyError(message string) *Error {
	return &Error{Code: CodeBusy, Message: message}
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}
