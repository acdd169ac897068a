package queryir

import (
	"fmt"
	"sort"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// Emitter is the per-backend strategy over the three compiler entry points.
// F, S, and P are the backend's native filter, sort, and pagination forms.
type Emitter[F, S, P any] interface {
	CompileFilter(q Query, ref time.Time, fields FieldSet) (F, error)
	CompileSort(items []SortItem, fields FieldSet) (S, error)
	CompilePagination(page, limit int) P
}

// Condition is one resolved operator on a field. Between never appears
// here; it is expanded into gte and lte.
type Condition struct {
	Op            Op
	Operand       Operand   // eq, neq, gt, gte, lt, lte, like
	List          []Operand // in, not_in
	Exists        bool      // exists
	CaseSensitive bool      // like
}

// Comparison is every condition applied to one payload path. All
// conditions must hold at once; for array fields they must hold for the
// same element.
type Comparison struct {
	Field string
	Class FieldClass
	Conds []Condition
}

// MetaComparison is every condition applied to one structural field.
type MetaComparison struct {
	Field string
	Kind  MetaKind
	Conds []Condition
}

// PartPlan is a compiled partQuery. A non-empty And compiles to one
// conjunction; each Or entry stands alone.
type PartPlan struct {
	And []Comparison
	Or  []Comparison
}

// IsEmpty reports whether the plan has no comparisons.
func (p PartPlan) IsEmpty() bool {
	return len(p.And) == 0 && len(p.Or) == 0
}

// FilterPlan is a fully resolved query. Emitters conjoin whichever parts
// are non-empty.
type FilterPlan struct {
	AppID    string
	Part     PartPlan
	Meta     []MetaComparison
	TopLevel []MetaComparison
}

// IsEmpty reports whether the plan has no clauses at all, in which case
// emitters return their match-everything filter.
func (p FilterPlan) IsEmpty() bool {
	return p.AppID == "" && p.Part.IsEmpty() && len(p.Meta) == 0 && len(p.TopLevel) == 0
}

// PlanFilter validates q and resolves it into a FilterPlan.
// ref anchors relative durations; fields drives array classification.
func PlanFilter(q Query, ref time.Time, fields FieldSet) (FilterPlan, error) {
	if err := Validate(q); err != nil {
		return FilterPlan{}, err
	}

	plan := FilterPlan{AppID: q.AppID}

	if q.PartQuery != nil {
		and, err := groupAnd(q.PartQuery.And, ref, fields)
		if err != nil {
			return FilterPlan{}, err
		}
		plan.Part.And = and

		for _, item := range q.PartQuery.Or {
			conds, err := itemConditions(item, ref)
			if err != nil {
				return FilterPlan{}, err
			}
			plan.Part.Or = append(plan.Part.Or, Comparison{
				Field: item.Field,
				Class: fields.Classify(item.Field),
				Conds: conds,
			})
		}
	}

	meta, err := planMeta(q.MetaQuery, ref)
	if err != nil {
		return FilterPlan{}, fmt.Errorf("metaQuery: %w", err)
	}
	plan.Meta = meta

	top, err := planMeta(q.TopLevelFields, ref)
	if err != nil {
		return FilterPlan{}, fmt.Errorf("topLevelFields: %w", err)
	}
	plan.TopLevel = top

	return plan, nil
}

// groupAnd merges AND items sharing a field into one comparison. Fields
// keep the order they were first seen in; a repeated operator on the same
// field keeps its first position and takes the last value.
func groupAnd(items []QueryItem, ref time.Time, fields FieldSet) ([]Comparison, error) {
	type group struct {
		field string
		order []Op
		conds map[Op]Condition
	}
	var groups []*group
	byField := make(map[string]*group)

	for _, item := range items {
		key := ir.ParsePath(item.Field).String()
		g, ok := byField[key]
		if !ok {
			g = &group{field: item.Field, conds: make(map[Op]Condition)}
			byField[key] = g
			groups = append(groups, g)
		}
		conds, err := itemConditions(item, ref)
		if err != nil {
			return nil, err
		}
		for _, c := range conds {
			if _, seen := g.conds[c.Op]; !seen {
				g.order = append(g.order, c.Op)
			}
			g.conds[c.Op] = c
		}
	}

	out := make([]Comparison, 0, len(groups))
	for _, g := range groups {
		cmp := Comparison{Field: g.field, Class: fields.Classify(g.field)}
		for _, op := range g.order {
			cmp.Conds = append(cmp.Conds, g.conds[op])
		}
		out = append(out, cmp)
	}
	return out, nil
}

// itemConditions resolves one partQuery item.
func itemConditions(item QueryItem, ref time.Time) ([]Condition, error) {
	switch item.Op {
	case OpBetween:
		arr := item.Value.(ir.IRArray)
		return []Condition{
			{Op: OpGte, Operand: resolvePayload(arr[0], BoundLower, ref)},
			{Op: OpLte, Operand: resolvePayload(arr[1], BoundUpper, ref)},
		}, nil
	case OpIn, OpNotIn:
		arr := item.Value.(ir.IRArray)
		list := make([]Operand, len(arr))
		for i, v := range arr {
			list[i] = Literal(v)
		}
		return []Condition{{Op: item.Op, List: list}}, nil
	case OpExists:
		return []Condition{{Op: OpExists, Exists: bool(item.Value.(ir.IRBool))}}, nil
	case OpLike:
		return []Condition{{Op: OpLike, Operand: Literal(item.Value), CaseSensitive: item.IsCaseSensitive()}}, nil
	default:
		return []Condition{{Op: item.Op, Operand: resolvePayload(item.Value, boundOf(item.Op), ref)}}, nil
	}
}

// metaOpOrder is the fixed processing order of structural operators.
// between comes last, so it overrides an explicit gte or lte.
var metaOpOrder = []Op{OpEq, OpNeq, OpIn, OpNotIn, OpGt, OpGte, OpLt, OpLte, OpBetween}

// planMeta resolves a metaQuery or topLevelFields map. Fields are emitted
// in name order for deterministic output.
func planMeta(mq MetaQuery, ref time.Time) ([]MetaComparison, error) {
	names := make([]string, 0, len(mq))
	for name := range mq {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []MetaComparison
	for _, name := range names {
		ops := mq[name]
		if len(ops) == 0 {
			// A null literal compiles to nothing. For deletedAt this leaves
			// delete visibility to the store.
			continue
		}
		kind, _ := LookupMetaField(name)
		conds, err := metaConditions(name, kind, ops, ref)
		if err != nil {
			return nil, err
		}
		if len(conds) > 0 {
			out = append(out, MetaComparison{Field: name, Kind: kind, Conds: conds})
		}
	}
	return out, nil
}

func metaConditions(field string, kind MetaKind, ops MetaOps, ref time.Time) ([]Condition, error) {
	_, hasIn := ops[OpIn]
	_, hasNotIn := ops[OpNotIn]
	suppressEq := hasIn || hasNotIn

	resolve := func(op Op, v ir.IRValue, b Bound) (Operand, error) {
		if kind == MetaDate {
			return resolveDate(field, op, v, b, ref)
		}
		return Literal(v), nil
	}

	order := make([]Op, 0, len(ops))
	conds := make(map[Op]Condition, len(ops))
	set := func(c Condition) {
		if _, seen := conds[c.Op]; !seen {
			order = append(order, c.Op)
		}
		conds[c.Op] = c
	}

	for _, op := range metaOpOrder {
		v, ok := ops[op]
		if !ok {
			continue
		}
		switch op {
		case OpEq, OpNeq:
			if suppressEq {
				continue
			}
			operand, err := resolve(op, v, BoundNone)
			if err != nil {
				return nil, err
			}
			set(Condition{Op: op, Operand: operand})
		case OpIn, OpNotIn:
			arr := v.(ir.IRArray)
			list := make([]Operand, len(arr))
			for i, elem := range arr {
				operand, err := resolve(op, elem, BoundNone)
				if err != nil {
					return nil, err
				}
				list[i] = operand
			}
			set(Condition{Op: op, List: list})
		case OpBetween:
			arr := v.(ir.IRArray)
			lo, err := resolve(op, arr[0], BoundLower)
			if err != nil {
				return nil, err
			}
			hi, err := resolve(op, arr[1], BoundUpper)
			if err != nil {
				return nil, err
			}
			set(Condition{Op: OpGte, Operand: lo})
			set(Condition{Op: OpLte, Operand: hi})
		default:
			operand, err := resolve(op, v, boundOf(op))
			if err != nil {
				return nil, err
			}
			set(Condition{Op: op, Operand: operand})
		}
	}

	out := make([]Condition, 0, len(order))
	for _, op := range order {
		out = append(out, conds[op])
	}
	return out, nil
}

// SortKey is one planned ordering term.
type SortKey struct {
	// Field is the structural field name when Meta is set, otherwise the
	// payload path as written.
	Field string
	Meta  bool
	Path  ir.Path
	Desc  bool

	// Info is the payload field metadata, nil when unknown.
	Info *ir.ObjField
}

// PlanSort validates sort items and classifies each as structural or
// payload. A payload path may be written with an "objRecord." prefix.
func PlanSort(items []SortItem, fields FieldSet) ([]SortKey, error) {
	keys := make([]SortKey, 0, len(items))
	for _, item := range items {
		var desc bool
		switch item.Direction {
		case Asc, "":
		case Desc:
			desc = true
		default:
			return nil, newInvalidValue(item.Field, "", "unknown sort direction %q", item.Direction)
		}

		if _, ok := LookupMetaField(item.Field); ok {
			keys = append(keys, SortKey{Field: item.Field, Meta: true, Desc: desc})
			continue
		}

		path := trimPayloadPrefix(item.Field)
		p := ir.ParsePath(path)
		if len(p) == 0 {
			return nil, &QueryError{Code: ErrCodeEmptyField, Message: "sort item has no field"}
		}
		key := SortKey{Field: path, Path: p, Desc: desc}
		if f, ok := fields.Lookup(path); ok {
			key.Info = &f
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// FinishSort applies the default and the id tiebreaker to the keys an
// emitter kept. No keys means newest first. An id key is appended unless
// one is already present, in the direction of the last key.
func FinishSort(keys []SortKey) []SortKey {
	if len(keys) == 0 {
		keys = []SortKey{{Field: FieldCreatedAt, Meta: true, Desc: true}}
	}
	for _, k := range keys {
		if k.Meta && k.Field == FieldID {
			return keys
		}
	}
	out := make([]SortKey, len(keys), len(keys)+1)
	copy(out, keys)
	return append(out, SortKey{Field: FieldID, Meta: true, Desc: keys[len(keys)-1].Desc})
}

// Offset returns the row offset of a zero-based page.
func Offset(page, limit int) int {
	if page < 0 || limit <= 0 {
		return 0
	}
	return page * limit
}
