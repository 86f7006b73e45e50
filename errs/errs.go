// Package errs classifies the failures the optimizers can return.
//
// Validation failures mean the caller sent something the algorithms cannot work with
// and retrying the same input is pointless. Computation failures mean the algorithm
// itself broke; they carry the operation name and the original message. Neither kind
// is retried by the engine: hosts fall back to an unoptimized default.
package errs

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrComputation  = errors.New("computation failed")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Op     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid input: %s %s", e.Op, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidInput) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Invalid builds a ValidationError. reason may use fmt verbs.
func Invalid(op, field, reason string, args ...any) error {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &ValidationError{Op: op, Field: field, Reason: reason}
}

// ComputationError wraps an unexpected failure inside an optimizer.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrComputation, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrComputation) hold.
func (e *ComputationError) Is(target error) bool {
	return target == ErrComputation
}

// Wrap classifies err as a computation failure of op. Validation errors and errors
// that are already classified pass through unchanged; nil stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var ce *ComputationError
	if errors.As(err, &ve) || errors.As(err, &ce) {
		return err
	}
	return &ComputationError{Op: op, Err: err}
}

// FromPanic turns a recovered panic value into a computation error.
func FromPanic(op string, r any) error {
	switch v := r.(type) {
	case error:
		return &ComputationError{Op: op, Err: fmt.Errorf("panic: %w", v)}
	default:
		return &ComputationError{Op: op, Err: fmt.Errorf("panic: %v", v)}
	}
}

// IsInvalid reports whether err is a validation failure.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsComputation reports whether err is a computation failure.
func IsComputation(err error) bool {
	return errors.Is(err, ErrComputation)
}
