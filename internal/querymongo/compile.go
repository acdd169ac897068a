package querymongo

import (
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// Pagination is a skip/limit pair. A zero Limit means unpaginated.
type Pagination struct {
	Skip  int64
	Limit int64
}

// Compiler compiles the query DSL to MongoDB documents.
type Compiler struct{}

var _ queryir.Emitter[bson.D, bson.D, Pagination] = (*Compiler)(nil)

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Key returns the document key of a structural field.
func Key(field string) string {
	if field == queryir.FieldID {
		return "_id"
	}
	return field
}

// payloadKey returns the document key of a payload path.
func payloadKey(p ir.Path) string {
	return PayloadField + "." + p.String()
}

// CompileFilter compiles q into a filter document. A query with no
// clauses compiles to the empty document, which matches everything.
func (c *Compiler) CompileFilter(q queryir.Query, ref time.Time, fields queryir.FieldSet) (bson.D, error) {
	plan, err := queryir.PlanFilter(q, ref, fields)
	if err != nil {
		return nil, err
	}
	if plan.IsEmpty() {
		return bson.D{}, nil
	}

	var parts []bson.D
	if plan.AppID != "" {
		parts = append(parts, AppFilter(plan.AppID))
	}

	part, err := compilePart(plan.Part)
	if err != nil {
		return nil, fmt.Errorf("compile partQuery: %w", err)
	}
	parts = append(parts, part)

	meta, err := compileMetaGroup(plan.Meta)
	if err != nil {
		return nil, fmt.Errorf("compile metaQuery: %w", err)
	}
	parts = append(parts, meta)

	top, err := compileMetaGroup(plan.TopLevel)
	if err != nil {
		return nil, fmt.Errorf("compile topLevelFields: %w", err)
	}
	parts = append(parts, top)

	return And(parts...), nil
}

func compilePart(p queryir.PartPlan) (bson.D, error) {
	if p.IsEmpty() {
		return bson.D{}, nil
	}

	var and bson.D
	if len(p.And) > 0 {
		filters := make([]bson.D, 0, len(p.And))
		for _, cmp := range p.And {
			f, err := compileComparison(cmp)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
		and = And(filters...)
	}
	if len(p.Or) == 0 {
		return and, nil
	}

	union := []bson.D{and}
	for _, cmp := range p.Or {
		f, err := compileComparison(cmp)
		if err != nil {
			return nil, err
		}
		union = append(union, f)
	}
	return Or(union...), nil
}

// CompileSort compiles sort items. Payload paths sort natively, so only
// array paths are dropped.
func (c *Compiler) CompileSort(items []queryir.SortItem, fields queryir.FieldSet) (bson.D, error) {
	keys, err := queryir.PlanSort(items, fields)
	if err != nil {
		return nil, err
	}

	kept := keys[:0:0]
	for _, k := range keys {
		if k.Meta || !k.Path.HasArrayMarker() {
			kept = append(kept, k)
		}
	}

	var sort bson.D
	for _, k := range queryir.FinishSort(kept) {
		dir := 1
		if k.Desc {
			dir = -1
		}
		key := Key(k.Field)
		if !k.Meta {
			key = payloadKey(k.Path)
		}
		sort = append(sort, bson.E{Key: key, Value: dir})
	}
	return sort, nil
}

// CompilePagination compiles a zero-based page into skip/limit.
func (c *Compiler) CompilePagination(page, limit int) Pagination {
	if limit <= 0 {
		return Pagination{}
	}
	return Pagination{Skip: int64(queryir.Offset(page, limit)), Limit: int64(limit)}
}

var mongoOps = map[queryir.Op]string{
	queryir.OpEq:    "$eq",
	queryir.OpNeq:   "$ne",
	queryir.OpGt:    "$gt",
	queryir.OpGte:   "$gte",
	queryir.OpLt:    "$lt",
	queryir.OpLte:   "$lte",
	queryir.OpIn:    "$in",
	queryir.OpNotIn: "$nin",
}

// compileComparison compiles every condition on one payload path.
func compileComparison(cmp queryir.Comparison) (bson.D, error) {
	if cmp.Class.Array {
		return compileArray(cmp)
	}
	key := payloadKey(cmp.Class.Path)
	plain, dated := splitDated(cmp.Conds)
	var out []bson.D
	if len(plain) > 0 {
		ops, err := operatorDoc(cmp.Field, plain)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.D{{Key: key, Value: ops}})
	}
	if len(dated) > 0 {
		out = append(out, datedFilter(key, dated))
	}
	return And(out...), nil
}

// operatorDoc renders conditions as one operator document.
func operatorDoc(field string, conds []queryir.Condition) (bson.D, error) {
	ops := make(bson.D, 0, len(conds))
	for _, c := range conds {
		e, err := operatorElem(field, c)
		if err != nil {
			return nil, err
		}
		ops = append(ops, e)
	}
	return ops, nil
}

func operatorElem(field string, c queryir.Condition) (bson.E, error) {
	switch c.Op {
	case queryir.OpEq, queryir.OpNeq, queryir.OpGt, queryir.OpGte, queryir.OpLt, queryir.OpLte:
		if c.Op.IsRange() {
			if err := checkOrderable(field, c.Op, c.Operand); err != nil {
				return bson.E{}, err
			}
		}
		return bson.E{Key: mongoOps[c.Op], Value: ToBSON(c.Operand.Value)}, nil
	case queryir.OpIn, queryir.OpNotIn:
		list := make(bson.A, len(c.List))
		for i, o := range c.List {
			list[i] = ToBSON(o.Value)
		}
		return bson.E{Key: mongoOps[c.Op], Value: list}, nil
	case queryir.OpLike:
		return bson.E{Key: "$regex", Value: likeRegex(c.Operand, c.CaseSensitive)}, nil
	case queryir.OpExists:
		return bson.E{Key: "$exists", Value: c.Exists}, nil
	}
	return bson.E{}, &queryir.QueryError{
		Code:    queryir.ErrCodeUnknownOperator,
		Message: fmt.Sprintf("unsupported operator %q", c.Op),
		Field:   field,
		Op:      c.Op,
	}
}

// checkOrderable rejects range operands that have no meaningful order,
// keeping both backends in agreement.
func checkOrderable(field string, op queryir.Op, o queryir.Operand) error {
	switch o.Value.(type) {
	case ir.IRNumber, ir.IRString, ir.IRBool:
		return nil
	}
	return &queryir.QueryError{
		Code:    queryir.ErrCodeInvalidValue,
		Message: fmt.Sprintf("cannot order by a %s operand", ir.Kind(o.Value)),
		Field:   field,
		Op:      op,
	}
}

// likeRegex is an escaped substring match.
func likeRegex(o queryir.Operand, caseSensitive bool) primitive.Regex {
	s, _ := o.Value.(ir.IRString)
	re := primitive.Regex{Pattern: regexp.QuoteMeta(string(s))}
	if !caseSensitive {
		re.Options = "i"
	}
	return re
}

// compileArray compiles membership conditions over an array path.
func compileArray(cmp queryir.Comparison) (bson.D, error) {
	arrKey := payloadKey(cmp.Class.ArrayPath)
	elem := cmp.Class.ElemPath

	// elemDoc wraps element operators in the element path, if any.
	elemDoc := func(ops bson.D) bson.D {
		if len(elem) == 0 {
			return ops
		}
		return bson.D{{Key: elem.String(), Value: ops}}
	}
	noneMatch := func(ops bson.D) bson.D {
		return bson.D{{Key: arrKey, Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$elemMatch", Value: elemDoc(ops)}}}}}}
	}

	var positives []queryir.Condition
	var rest []bson.D
	for _, c := range cmp.Conds {
		switch c.Op {
		case queryir.OpNeq:
			e, err := operatorElem(cmp.Field, queryir.Condition{Op: queryir.OpEq, Operand: c.Operand})
			if err != nil {
				return nil, err
			}
			rest = append(rest, noneMatch(bson.D{e}))
		case queryir.OpNotIn:
			e, err := operatorElem(cmp.Field, queryir.Condition{Op: queryir.OpIn, List: c.List})
			if err != nil {
				return nil, err
			}
			rest = append(rest, noneMatch(bson.D{e}))
		case queryir.OpExists:
			if len(elem) == 0 {
				rest = append(rest, bson.D{{Key: arrKey + ".0", Value: bson.D{{Key: "$exists", Value: c.Exists}}}})
				continue
			}
			if c.Exists {
				positives = append(positives, c)
			} else {
				rest = append(rest, noneMatch(bson.D{{Key: "$exists", Value: true}}))
			}
		default:
			positives = append(positives, c)
		}
	}

	// Dated conditions cannot sit inside $elemMatch. They must hold for one
	// element together, but not necessarily the element matching the
	// other positive conditions.
	positives, dated := splitDated(positives)
	var out []bson.D
	if len(positives) > 0 {
		ops, err := operatorDoc(cmp.Field, positives)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.D{{Key: arrKey, Value: bson.D{{Key: "$elemMatch", Value: elemDoc(ops)}}}})
	}
	if len(dated) > 0 {
		out = append(out, datedElementFilter(arrKey, elem.String(), dated))
	}
	return And(append(out, rest...)...), nil
}
