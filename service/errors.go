package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/absolute0github/band-contract-plugin/model"
)

var (
	// ErrDuplicate is returned by stores when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStale is returned by stores when a conditional update matched no row.
	ErrStale = errors.New("contract state changed")
)

// ValidationError means the caller sent unusable input.
type ValidationError struct {
	Message string
	Fields  model.FieldErrors
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return e.Message + ": " + e.Fields.Error()
	}
	return e.Message
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// StateConflictError means a lifecycle precondition failed. Reason is client facing.
type StateConflictError struct {
	Reason string
}

func (e *StateConflictError) Error() string { return e.Reason }

type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Message }

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsStateConflict(err error) bool {
	var target *StateConflictError
	return errors.As(err, &target)
}

func IsRateLimited(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

// persistence wraps err as a PersistenceError unless it already carries a domain type.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsStateConflict(err) || IsValidation(err) || IsPersistence(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func contractNotFound() error {
	return &NotFoundError{Message: "Contract not found."}
}
