package queryir

import (
	"fmt"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// Validate checks a query against the DSL vocabulary and operand shapes.
//
// Validation rules:
//  1. Every partQuery item names a field and uses a partQuery operator
//  2. metaQuery and topLevelFields keys are structural field names
//  3. in/not_in take arrays, between takes a two-element array
//  4. exists takes a boolean, like takes a string
//  5. fieldsToIndex only supports equality and set membership
//
// Validate is a pure function with no side effects. It returns the first
// problem found as a *QueryError.
func Validate(q Query) error {
	if q.PartQuery != nil {
		for _, item := range q.PartQuery.And {
			if err := validateItem(item); err != nil {
				return err
			}
		}
		for _, item := range q.PartQuery.Or {
			if err := validateItem(item); err != nil {
				return err
			}
		}
	}
	if err := validateMeta(q.MetaQuery); err != nil {
		return fmt.Errorf("metaQuery: %w", err)
	}
	if err := validateMeta(q.TopLevelFields); err != nil {
		return fmt.Errorf("topLevelFields: %w", err)
	}
	return nil
}

func validateItem(item QueryItem) error {
	if len(ir.ParsePath(item.Field)) == 0 {
		return &QueryError{Code: ErrCodeEmptyField, Message: "query item has no field", Op: item.Op}
	}
	if !partOps[item.Op] {
		return &QueryError{
			Code:    ErrCodeUnknownOperator,
			Message: fmt.Sprintf("unknown operator %q", item.Op),
			Field:   item.Field,
			Op:      item.Op,
		}
	}
	return validateOperand(item.Field, item.Op, item.Value)
}

func validateMeta(mq MetaQuery) error {
	for field, ops := range mq {
		kind, ok := LookupMetaField(field)
		if !ok {
			return &QueryError{
				Code:    ErrCodeUnknownField,
				Message: fmt.Sprintf("unknown structural field %q", field),
				Field:   field,
			}
		}
		for op, value := range ops {
			if !metaOps[op] {
				return &QueryError{
					Code:    ErrCodeUnknownOperator,
					Message: fmt.Sprintf("unknown operator %q", op),
					Field:   field,
					Op:      op,
				}
			}
			if kind == MetaList && op.IsRange() {
				return newInvalidValue(field, op, "list field supports eq, neq, in, not_in only")
			}
			if err := validateOperand(field, op, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateOperand(field string, op Op, value ir.IRValue) error {
	switch op {
	case OpIn, OpNotIn:
		if _, ok := value.(ir.IRArray); !ok {
			return newInvalidValue(field, op, "expected array, got %s", ir.Kind(value))
		}
	case OpBetween:
		arr, ok := value.(ir.IRArray)
		if !ok || len(arr) != 2 {
			return newInvalidValue(field, op, "expected [min, max]")
		}
	case OpExists:
		if _, ok := value.(ir.IRBool); !ok {
			return newInvalidValue(field, op, "expected boolean, got %s", ir.Kind(value))
		}
	case OpLike:
		if _, ok := value.(ir.IRString); !ok {
			return newInvalidValue(field, op, "expected string, got %s", ir.Kind(value))
		}
	}
	return nil
}
