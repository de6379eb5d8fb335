package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same error code, so predefined
// errors survive Clone/Wrap round trips through errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrAccountLocked      = New("ACCOUNT_LOCKED", http.StatusForbidden, "account temporarily locked after repeated failures")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Placement lifecycle errors. Each is a deterministic, synchronous failure
// of a single operation and is surfaced to the caller unchanged.
var (
	ErrNotEligible            = New("NOT_ELIGIBLE", http.StatusUnprocessableEntity, "student does not meet the eligibility criteria")
	ErrRegistrationClosed     = New("REGISTRATION_CLOSED", http.StatusUnprocessableEntity, "applications are no longer being accepted")
	ErrInvalidTransition      = New("INVALID_TRANSITION", http.StatusConflict, "status transition not permitted")
	ErrApplicationNotSelected = New("APPLICATION_NOT_SELECTED", http.StatusUnprocessableEntity, "application is not in selected status")
	ErrDuplicatePendingOffer  = New("DUPLICATE_PENDING_OFFER", http.StatusConflict, "a pending offer already exists for this application")
	ErrOfferExpired           = New("OFFER_EXPIRED", http.StatusGone, "offer has expired")
	ErrConcurrentModification = New("CONCURRENT_MODIFICATION", http.StatusConflict, "entity was modified concurrently, reload and retry")
)

// InvalidTransition builds an InvalidTransition error carrying the attempted pair.
func InvalidTransition(from, to string) *Error {
	return Wrap(fmt.Errorf("from %q to %q", from, to), ErrInvalidTransition.Code, ErrInvalidTransition.Status,
		fmt.Sprintf("cannot transition from %s to %s", from, to))
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
