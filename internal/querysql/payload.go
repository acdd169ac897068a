package querysql

import (
	"fmt"
	"strings"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// target is the value a condition is evaluated against: a JSON type
// expression and a value expression that share the same bind arguments.
type target struct {
	typ  string
	val  string
	args []any
}

// directTarget addresses a payload path of the current row.
func directTarget(p ir.Path) target {
	return target{
		typ:  "json_type(" + PayloadColumn + ", ?)",
		val:  "json_extract(" + PayloadColumn + ", ?)",
		args: []any{JSONPath(p)},
	}
}

// elementTarget addresses a value inside the current json_each element.
// With no element path the element itself is compared.
func elementTarget(elem ir.Path) target {
	if len(elem) == 0 {
		return target{typ: "je.type", val: "je.value"}
	}
	var b strings.Builder
	writeJSONPath(&b, elem)
	return target{
		typ:  "json_type(" + PayloadColumn + ", je.fullkey || ?)",
		val:  "json_extract(" + PayloadColumn + ", je.fullkey || ?)",
		args: []any{b.String()},
	}
}

// expand renders a template in which {T} and {V} stand for the type and
// value expressions and each ? consumes one of extra, keeping Args in
// placeholder order.
func (t target) expand(tmpl string, extra ...any) Clause {
	var b strings.Builder
	var args []any
	next := 0
	for i := 0; i < len(tmpl); {
		switch {
		case strings.HasPrefix(tmpl[i:], "{T}"):
			b.WriteString(t.typ)
			args = append(args, t.args...)
			i += 3
		case strings.HasPrefix(tmpl[i:], "{V}"):
			b.WriteString(t.val)
			args = append(args, t.args...)
			i += 3
		case tmpl[i] == '?':
			b.WriteByte('?')
			args = append(args, extra[next])
			next++
			i++
		default:
			b.WriteByte(tmpl[i])
			i++
		}
	}
	return Clause{SQL: b.String(), Args: args}
}

// compileComparison compiles every condition on one payload path.
func compileComparison(cmp queryir.Comparison) (Clause, error) {
	if cmp.Class.Array {
		return compileArray(cmp)
	}
	t := directTarget(cmp.Class.Path)
	clauses := make([]Clause, 0, len(cmp.Conds))
	for _, c := range cmp.Conds {
		cl, err := condClause(t, cmp.Field, c)
		if err != nil {
			return Clause{}, err
		}
		clauses = append(clauses, cl)
	}
	return And(clauses...), nil
}

// compileArray compiles membership conditions. Positive conditions must
// hold for the same element; negative ones require that no element
// matches.
func compileArray(cmp queryir.Comparison) (Clause, error) {
	arrPath := JSONPath(cmp.Class.ArrayPath)
	elem := elementTarget(cmp.Class.ElemPath)

	var positives, rest []Clause
	for _, c := range cmp.Conds {
		switch c.Op {
		case queryir.OpNeq:
			eq, err := eqClause(elem, cmp.Field, c.Operand)
			if err != nil {
				return Clause{}, err
			}
			rest = append(rest, Not(anyElement(arrPath, eq)))
		case queryir.OpNotIn:
			in, err := inClause(elem, cmp.Field, c.List)
			if err != nil {
				return Clause{}, err
			}
			rest = append(rest, Not(anyElement(arrPath, in)))
		case queryir.OpExists:
			if len(cmp.Class.ElemPath) == 0 {
				cl := nonEmptyArray(arrPath)
				if !c.Exists {
					cl = Not(cl)
				}
				rest = append(rest, cl)
				continue
			}
			present := elem.expand("{T} IS NOT NULL")
			if c.Exists {
				positives = append(positives, present)
			} else {
				rest = append(rest, Not(anyElement(arrPath, present)))
			}
		default:
			cl, err := condClause(elem, cmp.Field, c)
			if err != nil {
				return Clause{}, err
			}
			positives = append(positives, cl)
		}
	}

	var out []Clause
	if len(positives) > 0 {
		out = append(out, anyElement(arrPath, And(positives...)))
	}
	return And(append(out, rest...)...), nil
}

// anyElement is true when the path holds an array with an element
// satisfying cond.
func anyElement(arrPath string, cond Clause) Clause {
	sql := fmt.Sprintf(
		"(json_type(%[1]s, ?) = 'array' AND EXISTS (SELECT 1 FROM json_each(%[1]s, ?) je WHERE %[2]s))",
		PayloadColumn, cond.SQL)
	args := append([]any{arrPath, arrPath}, cond.Args...)
	return Clause{SQL: sql, Args: args}
}

// nonEmptyArray is true when the path holds an array with elements.
func nonEmptyArray(arrPath string) Clause {
	sql := fmt.Sprintf("(json_type(%[1]s, ?) = 'array' AND json_array_length(%[1]s, ?) > 0)", PayloadColumn)
	return Clause{SQL: sql, Args: []any{arrPath, arrPath}}
}

func condClause(t target, field string, c queryir.Condition) (Clause, error) {
	switch c.Op {
	case queryir.OpEq:
		return eqClause(t, field, c.Operand)
	case queryir.OpNeq:
		eq, err := eqClause(t, field, c.Operand)
		if err != nil {
			return Clause{}, err
		}
		return Not(eq), nil
	case queryir.OpGt, queryir.OpGte, queryir.OpLt, queryir.OpLte:
		return rangeClause(t, field, c.Op, c.Operand)
	case queryir.OpLike:
		return likeClause(t, c.Operand, c.CaseSensitive), nil
	case queryir.OpIn:
		return inClause(t, field, c.List)
	case queryir.OpNotIn:
		in, err := inClause(t, field, c.List)
		if err != nil {
			return Clause{}, err
		}
		return Not(in), nil
	case queryir.OpExists:
		if c.Exists {
			return t.expand("{T} IS NOT NULL"), nil
		}
		return t.expand("{T} IS NULL"), nil
	default:
		return Clause{}, &queryir.QueryError{
			Code:    queryir.ErrCodeUnknownOperator,
			Message: fmt.Sprintf("unsupported operator %q", c.Op),
			Field:   field,
			Op:      c.Op,
		}
	}
}

// eqClause tests JSON equality. The type guard keeps 1 and "1" distinct;
// null matches both JSON null and a missing path.
func eqClause(t target, field string, o queryir.Operand) (Clause, error) {
	switch v := o.Value.(type) {
	case nil, ir.IRNull:
		return t.expand("COALESCE({T}, 'null') = 'null'"), nil
	case ir.IRBool:
		if v {
			return t.expand("{T} = 'true'"), nil
		}
		return t.expand("{T} = 'false'"), nil
	case ir.IRNumber:
		return t.expand("({T} IN ('integer', 'real') AND {V} = ?)", float64(v)), nil
	case ir.IRString:
		return t.expand("({T} = 'text' AND {V} = ?)", string(v)), nil
	case ir.IRArray, ir.IRObject:
		data, err := ir.MarshalCanonical(v)
		if err != nil {
			return Clause{}, fmt.Errorf("field %s: %w", field, err)
		}
		return t.expand("({T} = '"+ir.Kind(v)+"' AND {V} = ?)", string(data)), nil
	default:
		return Clause{}, fmt.Errorf("field %s: unsupported operand type %T", field, v)
	}
}

var rangeSymbols = map[queryir.Op]string{
	queryir.OpGt:  ">",
	queryir.OpGte: ">=",
	queryir.OpLt:  "<",
	queryir.OpLte: "<=",
}

// isoDatePrefix admits text that starts like an ISO-8601 date. It keeps
// SQLite's other time-value forms ("now", bare times, Julian day numbers)
// from being read as dates.
const isoDatePrefix = "[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]*"

// normalizedTime renders a stored ISO-8601 string in ir.TimeLayout, so
// that different spellings of one instant compare equal. It is NULL for
// text that is not a date.
const normalizedTime = "strftime('%Y-%m-%dT%H:%M:%fZ', {V})"

// rangeClause orders values of the operand's JSON type only. Resolved
// dates compare as instants against text holding an ISO-8601 date.
func rangeClause(t target, field string, op queryir.Op, o queryir.Operand) (Clause, error) {
	sym := rangeSymbols[op]
	if o.IsTime {
		return t.expand("({T} = 'text' AND {V} GLOB '"+isoDatePrefix+"' AND "+normalizedTime+" "+sym+" ?)",
			ir.FormatTime(o.Time)), nil
	}
	switch v := o.Value.(type) {
	case ir.IRNumber:
		return t.expand("({T} IN ('integer', 'real') AND {V} "+sym+" ?)", float64(v)), nil
	case ir.IRString:
		return t.expand("({T} = 'text' AND {V} "+sym+" ?)", string(v)), nil
	case ir.IRBool:
		return t.expand("({T} IN ('true', 'false') AND {V} "+sym+" ?)", bool(v)), nil
	default:
		return Clause{}, &queryir.QueryError{
			Code:    queryir.ErrCodeInvalidValue,
			Message: fmt.Sprintf("cannot order by a %s operand", ir.Kind(o.Value)),
			Field:   field,
			Op:      op,
		}
	}
}

// likeClause is a substring match. Case-insensitive matching compares
// both sides through FoldFunc, which applies Unicode case folding.
func likeClause(t target, o queryir.Operand, caseSensitive bool) Clause {
	s, _ := o.Value.(ir.IRString)
	if caseSensitive {
		return t.expand("({T} = 'text' AND instr({V}, ?) > 0)", string(s))
	}
	return t.expand("({T} = 'text' AND instr("+FoldFunc+"({V}), "+FoldFunc+"(?)) > 0)", string(s))
}

// inClause is the union of equality tests. An empty set matches nothing.
func inClause(t target, field string, list []queryir.Operand) (Clause, error) {
	eqs := make([]Clause, 0, len(list))
	for _, o := range list {
		eq, err := eqClause(t, field, o)
		if err != nil {
			return Clause{}, err
		}
		eqs = append(eqs, eq)
	}
	return Or(eqs...), nil
}
