package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrComponentNotFound is returned by a Store for an unknown component
	ErrComponentNotFound = errors.New("component not found")
	// ErrVersionConflict is returned by a Store when the record changed underneath an update
	ErrVersionConflict = errors.New("running hours were changed by another update")
	// ErrNotMonotonic marks an update that would lower the running hours
	ErrNotMonotonic = errors.New("running hours would decrease")
	// ErrInvalidNumber marks a value that is not a number
	ErrInvalidNumber = errors.New("invalid number")
	// ErrComputationFailure marks a utilization rate that could not be derived
	ErrComputationFailure = errors.New("utilization rate computation failed")
)

// MsgNotMonotonic is shown when an update would lower the running hours
const MsgNotMonotonic = "new hours must be ≥ previous hours; use meter-replaced flag if counter was reset"

// MsgOutOfRange is shown when the resulting running hours cannot be stored
const MsgOutOfRange = "running hours exceed the largest value that can be stored"

// ValidationError is a user-correctable input problem detected before any mutation
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failure of the external store
type PersistenceError struct {
	Op          string
	ComponentID string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s running hours for component %s: %v", e.Op, e.ComponentID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPersistence reports whether err is a PersistenceError
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// FailureKindOf classifies an update error for reporting
func FailureKindOf(err error) FailureKind {
	switch {
	case errors.Is(err, ErrInvalidNumber):
		return FailureInvalidNumber
	case errors.Is(err, ErrNotMonotonic):
		return FailureMonotonicity
	case errors.Is(err, ErrComponentNotFound):
		return FailureNotFound
	case IsPersistence(err):
		return FailurePersistence
	default:
		return FailureValidation
	}
}
