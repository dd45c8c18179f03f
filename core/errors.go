package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrAuthenticationFailed = NewAuthError("invalid credentials")
	ErrSessionInvalid       = NewAuthError("session expired or invalid")
	ErrPermissionDenied     = NewPermissionError("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(field + ": " + msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

// AuthError is returned for bad credentials or a missing/expired session.
// The message never tells which part of the credentials was wrong.
type AuthError struct {
	message string
}

func NewAuthError(msg string) error {
	return &AuthError{message: msg}
}

func (err AuthError) Error() string { return err.message }

type PermissionError struct {
	message string
}

func NewPermissionError(msg string) error {
	return &PermissionError{message: msg}
}

func (err PermissionError) Error() string { return err.message }

type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string { return err.Resource + " not found" }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// ConstraintError wraps a violated storage constraint (unique key, foreign key...).
type ConstraintError struct {
	Constraint string
	Err        error
}

func NewConstraintError(constraint string, err error) error {
	return &ConstraintError{Constraint: constraint, Err: err}
}

func (err ConstraintError) Error() string {
	return fmt.Sprintf("constraint %q violated: %v", err.Constraint, err.Err)
}

func IsConstraint(err error) bool {
	_, ok := errors.Cause(err).(*ConstraintError)
	return ok
}

// TransportError is a failed call to an outbound transport (email, WhatsApp...).
// It is logged, never propagated to the caller of a business operation.
type TransportError struct {
	Channel   string
	Recipient string
	Err       error
}

func NewTransportError(channel, recipient string, err error) error {
	return &TransportError{Channel: channel, Recipient: recipient, Err: err}
}

func (err TransportError) Error() string {
	return fmt.Sprintf("%s to %s: %v", err.Channel, err.Recipient, err.Err)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
