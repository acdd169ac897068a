package queryir

import (
	"errors"
	"fmt"
)

// QueryError reports a malformed query detected before any I/O.
//
// QueryError includes structured fields for diagnostics.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// Field is the payload path or structural field involved, if any.
	Field string

	// Op is the operator involved, if any.
	Op Op
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeUnknownOperator indicates an operator outside the vocabulary.
	ErrCodeUnknownOperator QueryErrorCode = "UNKNOWN_OPERATOR"

	// ErrCodeUnknownField indicates a structural field outside the closed set.
	ErrCodeUnknownField QueryErrorCode = "UNKNOWN_FIELD"

	// ErrCodeInvalidValue indicates an operand of the wrong shape.
	ErrCodeInvalidValue QueryErrorCode = "INVALID_VALUE"

	// ErrCodeEmptyField indicates a query item without a field path.
	ErrCodeEmptyField QueryErrorCode = "EMPTY_FIELD"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	switch {
	case e.Field != "" && e.Op != "":
		return fmt.Sprintf("%s: %s (field=%s, op=%s)", e.Code, e.Message, e.Field, e.Op)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsQueryError returns true if err is or wraps a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// IsInvalidValue returns true if err is a QueryError about an operand.
func IsInvalidValue(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeInvalidValue
	}
	return false
}

func newInvalidValue(field string, op Op, format string, args ...any) *QueryError {
	return &QueryError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
		Op:      op,
	}
}
