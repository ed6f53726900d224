package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation marks malformed or missing input. Nothing is persisted.
	ErrValidation = errors.New("validation failed")
	// ErrOutOfStock indicates a requested quantity exceeds available stock.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInvalidTransition indicates an unknown or disallowed status change.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrAmbiguousIdentifier indicates a partial identifier matched more than one record.
	ErrAmbiguousIdentifier = errors.New("ambiguous identifier")
	// ErrMergeConflict indicates a guest cart could not be merged as a whole batch.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrForbidden indicates the caller's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates the caller is not authenticated.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrIdempotencyMismatch indicates an idempotency key was reused for a different request.
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StockError reports which product could not cover the requested quantity.
type StockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrOutOfStock
}
