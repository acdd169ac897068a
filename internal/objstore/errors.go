package objstore

import (
	"errors"
	"fmt"
)

// ParamError reports invalid operation parameters, detected before any
// backend call is made.
type ParamError struct {
	// Code identifies the error category.
	Code ParamErrorCode

	// Op is the store operation that rejected the parameters.
	Op string

	// Field is the offending parameter, when known.
	Field string

	// Message is a human-readable description.
	Message string
}

// ParamErrorCode categorizes parameter errors.
type ParamErrorCode string

const (
	// ErrCodeInvalidParams indicates a missing or out-of-range parameter.
	ErrCodeInvalidParams ParamErrorCode = "INVALID_PARAMS"

	// ErrCodeUnknownStrategy indicates a merge strategy name outside the
	// supported set.
	ErrCodeUnknownStrategy ParamErrorCode = "UNKNOWN_STRATEGY"

	// ErrCodeInvalidConflictPolicy indicates an onConflict value that is
	// neither ignore, fail, nor a merge strategy.
	ErrCodeInvalidConflictPolicy ParamErrorCode = "INVALID_CONFLICT_POLICY"
)

// Error implements the error interface.
func (e *ParamError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s (field=%s)", e.Op, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// IsParamError returns true if err is or wraps a *ParamError.
func IsParamError(err error) bool {
	var pe *ParamError
	return errors.As(err, &pe)
}

// IsUnknownStrategy returns true if err reports an unknown merge strategy.
func IsUnknownStrategy(err error) bool {
	var pe *ParamError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeUnknownStrategy
	}
	return false
}
