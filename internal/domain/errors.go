package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks client-input defects
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced entity that does not exist or was deleted
	ErrNotFound = errors.New("not found")

	// ErrChannelUnavailable marks a publish-time transport failure
	ErrChannelUnavailable = errors.New("notification channel unavailable")

	// ErrStoreUnavailable marks a persistence-time transport failure
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAccountNotFound is returned when a notification references a broker without an account
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an account for a broker that already has one
	ErrAccountExists = errors.New("account already exists")

	// ErrValueRejected marks a value the store refused, such as a balance that
	// would leave its column's range; retrying the same value cannot succeed
	ErrValueRejected = errors.New("value rejected by store")

	// ErrMalformedNotification marks a notification payload that cannot be applied
	ErrMalformedNotification = errors.New("malformed account notification")
)

// ValidationError carries the offending field and a human-readable reason
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError identifies the missing entity
type NotFoundError struct {
	Resource string
	ID       string
}

// NewTransactionNotFound creates a NotFoundError for a transaction id
func NewTransactionNotFound(id int64) *NotFoundError {
	return &NotFoundError{Resource: "transaction", ID: fmt.Sprintf("%d", id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("The provided id %s %s was not found", e.ID, e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
