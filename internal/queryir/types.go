package queryir

import (
	"encoding/json"
	"fmt"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// Op is a comparison operator token. The string values are part of the
// external DSL and must not change.
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpLike    Op = "like"
	OpIn      Op = "in"
	OpNotIn   Op = "not_in"
	OpBetween Op = "between"
	OpExists  Op = "exists"
)

// partOps is the operator vocabulary of partQuery items.
var partOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpLike: true, OpIn: true, OpNotIn: true, OpBetween: true, OpExists: true,
}

// metaOps is the operator vocabulary of metaQuery and topLevelFields.
var metaOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpIn: true, OpNotIn: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpBetween: true,
}

// IsRange reports whether o orders values rather than testing equality.
func (o Op) IsRange() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte, OpBetween:
		return true
	}
	return false
}

// Query is the top-level DSL value.
//
// Every present part is conjoined. AppID is the tenant filter; an empty
// AppID omits the tenant clause.
type Query struct {
	AppID          string        `json:"appId,omitempty"`
	PartQuery      *LogicalQuery `json:"partQuery,omitempty"`
	MetaQuery      MetaQuery     `json:"metaQuery,omitempty"`
	TopLevelFields MetaQuery     `json:"topLevelFields,omitempty"`
}

// NamesDeletedAt reports whether the caller's topLevelFields constrain
// deletedAt with at least one operator. A null literal does not count: it
// leaves delete visibility to the store.
func (q Query) NamesDeletedAt() bool {
	return len(q.TopLevelFields[FieldDeletedAt]) > 0
}

// LogicalQuery is an AND/OR block over payload paths.
type LogicalQuery struct {
	And []QueryItem `json:"and,omitempty"`
	Or  []QueryItem `json:"or,omitempty"`
}

// IsEmpty reports whether neither block has items.
func (lq *LogicalQuery) IsEmpty() bool {
	return lq == nil || (len(lq.And) == 0 && len(lq.Or) == 0)
}

// QueryItem is one comparison over a payload path.
type QueryItem struct {
	Field         string     `json:"field"`
	Op            Op         `json:"op"`
	Value         ir.IRValue `json:"value"`
	CaseSensitive *bool      `json:"caseSensitive,omitempty"`
}

// queryItemJSON mirrors QueryItem with a raw value so it can be decoded
// into the sealed IRValue tree.
type queryItemJSON struct {
	Field         string          `json:"field"`
	Op            Op              `json:"op"`
	Value         json.RawMessage `json:"value"`
	CaseSensitive *bool           `json:"caseSensitive,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for QueryItem.
// A missing value decodes as IRNull.
func (qi *QueryItem) UnmarshalJSON(data []byte) error {
	var raw queryItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	qi.Field = raw.Field
	qi.Op = raw.Op
	qi.CaseSensitive = raw.CaseSensitive
	qi.Value = ir.IRNull{}
	if len(raw.Value) > 0 {
		v, err := ir.UnmarshalIRValue(raw.Value)
		if err != nil {
			return fmt.Errorf("query item %q value: %w", raw.Field, err)
		}
		qi.Value = v
	}
	return nil
}

// MarshalJSON implements json.Marshaler for QueryItem.
func (qi QueryItem) MarshalJSON() ([]byte, error) {
	value, err := ir.MarshalIRValue(qi.Value)
	if err != nil {
		return nil, fmt.Errorf("query item %q value: %w", qi.Field, err)
	}
	return json.Marshal(queryItemJSON{
		Field:         qi.Field,
		Op:            qi.Op,
		Value:         value,
		CaseSensitive: qi.CaseSensitive,
	})
}

// IsCaseSensitive reports the like-matching mode. Matching is
// case-insensitive unless explicitly requested.
func (qi QueryItem) IsCaseSensitive() bool {
	return qi.CaseSensitive != nil && *qi.CaseSensitive
}

// MetaOps maps operators to operands for one structural field.
// A nil MetaOps is the JSON null literal.
type MetaOps map[Op]ir.IRValue

// UnmarshalJSON implements json.Unmarshaler for MetaOps.
func (m *MetaOps) UnmarshalJSON(data []byte) error {
	var raw map[Op]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	*m = make(MetaOps, len(raw))
	for op, v := range raw {
		val, err := ir.UnmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("operator %q: %w", op, err)
		}
		(*m)[op] = val
	}
	return nil
}

// MarshalJSON implements json.Marshaler for MetaOps.
func (m MetaOps) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	obj := make(ir.IRObject, len(m))
	for op, v := range m {
		obj[string(op)] = v
	}
	return obj.MarshalJSON()
}

// MetaQuery maps structural field names to their operators.
type MetaQuery map[string]MetaOps

// Direction is a sort direction token.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortItem orders results by a structural field or a payload path.
type SortItem struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// PageFromOneBased converts a collaborator-facing one-based page number to
// the zero-based page used by the compiler and the store. Values below 1
// map to the first page.
func PageFromOneBased(page int) int {
	if page < 1 {
		return 0
	}
	return page - 1
}
