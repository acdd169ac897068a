package querysql

import (
	"fmt"
	"strings"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// compileMetaGroup conjoins the comparisons of one metaQuery or
// topLevelFields block. An empty block yields an empty clause.
func compileMetaGroup(cmps []queryir.MetaComparison) (Clause, error) {
	if len(cmps) == 0 {
		return Clause{}, nil
	}
	clauses := make([]Clause, 0, len(cmps))
	for _, mc := range cmps {
		cl, err := compileMeta(mc)
		if err != nil {
			return Clause{}, err
		}
		clauses = append(clauses, cl)
	}
	return And(clauses...), nil
}

func compileMeta(mc queryir.MetaComparison) (Clause, error) {
	col := columns[mc.Field]
	clauses := make([]Clause, 0, len(mc.Conds))
	for _, c := range mc.Conds {
		var cl Clause
		var err error
		if mc.Kind == queryir.MetaList {
			cl, err = listCond(col, mc.Field, c)
		} else {
			cl, err = columnCond(col, mc.Field, c)
		}
		if err != nil {
			return Clause{}, err
		}
		clauses = append(clauses, cl)
	}
	return And(clauses...), nil
}

// columnCond compiles one condition on a scalar column. NULL columns
// follow document-store semantics: eq null matches them, neq and not_in
// with a non-null operand include them.
func columnCond(col, field string, c queryir.Condition) (Clause, error) {
	switch c.Op {
	case queryir.OpEq, queryir.OpNeq:
		eq := c.Op == queryir.OpEq
		if ir.IsNull(c.Operand.Value) && !c.Operand.IsTime {
			if eq {
				return Clause{SQL: col + " IS NULL"}, nil
			}
			return Clause{SQL: col + " IS NOT NULL"}, nil
		}
		p, err := metaParam(field, c.Op, c.Operand)
		if err != nil {
			return Clause{}, err
		}
		if eq {
			return Clause{SQL: col + " = ?", Args: []any{p}}, nil
		}
		return Clause{SQL: "(" + col + " IS NULL OR " + col + " <> ?)", Args: []any{p}}, nil

	case queryir.OpIn, queryir.OpNotIn:
		params, hasNull, err := listParams(field, c)
		if err != nil {
			return Clause{}, err
		}
		in := c.Op == queryir.OpIn
		switch {
		case len(params) == 0 && !hasNull:
			if in {
				return MatchNone(), nil
			}
			return MatchAll(), nil
		case len(params) == 0:
			if in {
				return Clause{SQL: col + " IS NULL"}, nil
			}
			return Clause{SQL: col + " IS NOT NULL"}, nil
		}
		marks := placeholders(len(params))
		switch {
		case in && hasNull:
			return Clause{SQL: "(" + col + " IS NULL OR " + col + " IN (" + marks + "))", Args: params}, nil
		case in:
			return Clause{SQL: col + " IN (" + marks + ")", Args: params}, nil
		case hasNull:
			return Clause{SQL: "(" + col + " IS NOT NULL AND " + col + " NOT IN (" + marks + "))", Args: params}, nil
		default:
			return Clause{SQL: "(" + col + " IS NULL OR " + col + " NOT IN (" + marks + "))", Args: params}, nil
		}

	case queryir.OpGt, queryir.OpGte, queryir.OpLt, queryir.OpLte:
		if ir.IsNull(c.Operand.Value) && !c.Operand.IsTime {
			return Clause{}, &queryir.QueryError{
				Code:    queryir.ErrCodeInvalidValue,
				Message: "cannot order by a null operand",
				Field:   field,
				Op:      c.Op,
			}
		}
		p, err := metaParam(field, c.Op, c.Operand)
		if err != nil {
			return Clause{}, err
		}
		return Clause{SQL: col + " " + rangeSymbols[c.Op] + " ?", Args: []any{p}}, nil
	}
	return Clause{}, &queryir.QueryError{
		Code:    queryir.ErrCodeUnknownOperator,
		Message: fmt.Sprintf("unsupported operator %q", c.Op),
		Field:   field,
		Op:      c.Op,
	}
}

// listCond compiles a membership condition on a JSON list column.
func listCond(col, field string, c queryir.Condition) (Clause, error) {
	exists := func(where string, args []any) Clause {
		return Clause{SQL: "EXISTS (SELECT 1 FROM json_each(" + col + ") WHERE " + where + ")", Args: args}
	}

	switch c.Op {
	case queryir.OpEq, queryir.OpNeq:
		var cl Clause
		if ir.IsNull(c.Operand.Value) {
			cl = Clause{SQL: col + " IS NULL"}
		} else {
			p, err := metaParam(field, c.Op, c.Operand)
			if err != nil {
				return Clause{}, err
			}
			cl = exists("value = ?", []any{p})
		}
		if c.Op == queryir.OpNeq {
			return Not(cl), nil
		}
		return cl, nil

	case queryir.OpIn, queryir.OpNotIn:
		params, hasNull, err := listParams(field, c)
		if err != nil {
			return Clause{}, err
		}
		var parts []Clause
		if hasNull {
			parts = append(parts, Clause{SQL: col + " IS NULL"})
		}
		if len(params) > 0 {
			parts = append(parts, exists("value IN ("+placeholders(len(params))+")", params))
		}
		cl := Or(parts...)
		if c.Op == queryir.OpNotIn {
			return Not(cl), nil
		}
		return cl, nil
	}
	return Clause{}, &queryir.QueryError{
		Code:    queryir.ErrCodeInvalidValue,
		Message: "list field supports eq, neq, in, not_in only",
		Field:   field,
		Op:      c.Op,
	}
}

func listParams(field string, c queryir.Condition) ([]any, bool, error) {
	var params []any
	var hasNull bool
	for _, o := range c.List {
		if ir.IsNull(o.Value) && !o.IsTime {
			hasNull = true
			continue
		}
		p, err := metaParam(field, c.Op, o)
		if err != nil {
			return nil, false, err
		}
		params = append(params, p)
	}
	return params, hasNull, nil
}

// metaParam converts an operand to a column bind value. Dates are stored
// as epoch milliseconds.
func metaParam(field string, op queryir.Op, o queryir.Operand) (any, error) {
	if o.IsTime {
		return o.Time.UnixMilli(), nil
	}
	switch v := o.Value.(type) {
	case ir.IRString:
		return string(v), nil
	case ir.IRNumber:
		return float64(v), nil
	case ir.IRBool:
		return bool(v), nil
	default:
		return nil, &queryir.QueryError{
			Code:    queryir.ErrCodeInvalidValue,
			Message: fmt.Sprintf("cannot compare a structural field with a %s operand", ir.Kind(v)),
			Field:   field,
			Op:      op,
		}
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
