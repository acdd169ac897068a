package objstore

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/softkave/fimidx-sub001/internal/merge"
)

// validate checks parameter structs. It is safe for concurrent use once
// the custom validations are registered.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("merge_strategy", validateMergeStrategy)
	_ = v.RegisterValidation("on_conflict", validateOnConflict)
	return v
}

// validateMergeStrategy accepts the five strategy names.
func validateMergeStrategy(fl validator.FieldLevel) bool {
	return merge.Strategy(fl.Field().String()).Valid()
}

// validateOnConflict accepts ignore, fail, or a strategy name.
func validateOnConflict(fl validator.FieldLevel) bool {
	c := ConflictPolicy(fl.Field().String())
	if c == OnConflictIgnore || c == OnConflictFail {
		return true
	}
	_, ok := c.Strategy()
	return ok
}

// checkParams validates p and converts the first failure to a *ParamError.
func checkParams(op string, p any) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ParamError{Code: ErrCodeInvalidParams, Op: op, Message: err.Error()}
	}

	fe := fieldErrs[0]
	pe := &ParamError{
		Code:    ErrCodeInvalidParams,
		Op:      op,
		Field:   fe.Field(),
		Message: fmt.Sprintf("failed %q validation", fe.Tag()),
	}
	switch fe.Tag() {
	case "merge_strategy":
		pe.Code = ErrCodeUnknownStrategy
		pe.Message = fmt.Sprintf("unknown merge strategy %q", fe.Value())
	case "on_conflict":
		pe.Code = ErrCodeInvalidConflictPolicy
		pe.Message = fmt.Sprintf("onConflict must be ignore, fail, or a merge strategy, got %q", fe.Value())
	}
	return pe
}

// orDefault returns n, or def when n is not positive.
func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
