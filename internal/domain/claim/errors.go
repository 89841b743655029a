package claim

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrLocked          = errors.New("claim is locked for editing")
	ErrNotFound        = errors.New("claim not found")
	ErrConflict        = errors.New("claim already exists")
	ErrVersionConflict = errors.New("claim was modified by another request")
	ErrDivisionByZero  = errors.New("initial headcount must be positive to compute rates")
	ErrUnavailable     = errors.New("service unavailable")
)

// ValidationError carries one message per offending field or ledger entry.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Details, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Details = append(e.Details, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Details) == 0 {
		return nil
	}
	return e
}

// Invalid returns a ValidationError with a single detail.
func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Details: []string{fmt.Sprintf(format, args...)}}
}

// Details returns the per-field causes attached to err, if any.
func Details(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Details
	}
	return nil
}
