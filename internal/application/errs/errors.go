package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrDataConflict       = errors.New("data conflict")
	ErrDiscountInvalid    = errors.New("discount invalid")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrCodeSpaceExhausted = errors.New("discount code space exhausted")
)

// Wire codes of the error taxonomy.
const (
	CodeValidation    = "validation_error"
	CodeAuthorization = "authorization_error"
	CodeDiscount      = "discount_invalid"
	CodeSignature     = "signature_invalid"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeInternal      = "internal_error"
)

// Type just for marshalling purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// ValidationError names the request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRequest, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// NewValidationError is a shorthand for the field level validation failure.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
