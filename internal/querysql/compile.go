package querysql

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// PayloadColumn holds each record's objRecord as canonical JSON text.
const PayloadColumn = "obj_record"

// FoldFunc is the SQL function that case-folds text for case-insensitive
// matching. The sqlstore driver registers it on every connection; it
// returns NULL for non-text input.
const FoldFunc = "objstore_fold"

// columns maps structural field names to their SQL columns.
var columns = map[string]string{
	queryir.FieldID:            "id",
	queryir.FieldTag:           "tag",
	queryir.FieldGroupID:       "group_id",
	queryir.FieldCreatedAt:     "created_at",
	queryir.FieldCreatedBy:     "created_by",
	queryir.FieldCreatedByType: "created_by_type",
	queryir.FieldUpdatedAt:     "updated_at",
	queryir.FieldUpdatedBy:     "updated_by",
	queryir.FieldUpdatedByType: "updated_by_type",
	queryir.FieldDeletedAt:     "deleted_at",
	queryir.FieldDeletedBy:     "deleted_by",
	queryir.FieldDeletedByType: "deleted_by_type",
	queryir.FieldShouldIndex:   "should_index",
	queryir.FieldFieldsToIndex: "fields_to_index",
}

// Column returns the SQL column of a structural field.
func Column(field string) (string, bool) {
	c, ok := columns[field]
	return c, ok
}

// Compiler compiles the query DSL to parameterized SQLite SQL over the
// JSON1 functions.
//
// CRITICAL: All values are parameterized, never interpolated.
// CRITICAL: Every compiled sort ends with an id tiebreaker.
type Compiler struct{}

var _ queryir.Emitter[Clause, Clause, Clause] = (*Compiler)(nil)

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// CompileFilter compiles q into a WHERE body. ref anchors relative
// durations; fields supplies array classification metadata.
func (c *Compiler) CompileFilter(q queryir.Query, ref time.Time, fields queryir.FieldSet) (Clause, error) {
	plan, err := queryir.PlanFilter(q, ref, fields)
	if err != nil {
		return Clause{}, err
	}
	if plan.IsEmpty() {
		return MatchAll(), nil
	}

	var parts []Clause
	if plan.AppID != "" {
		parts = append(parts, AppClause(plan.AppID))
	}

	part, err := compilePart(plan.Part)
	if err != nil {
		return Clause{}, fmt.Errorf("compile partQuery: %w", err)
	}
	parts = append(parts, part)

	meta, err := compileMetaGroup(plan.Meta)
	if err != nil {
		return Clause{}, fmt.Errorf("compile metaQuery: %w", err)
	}
	parts = append(parts, meta)

	top, err := compileMetaGroup(plan.TopLevel)
	if err != nil {
		return Clause{}, fmt.Errorf("compile topLevelFields: %w", err)
	}
	parts = append(parts, top)

	return And(parts...), nil
}

// compilePart compiles (AND group) OR each OR item.
func compilePart(p queryir.PartPlan) (Clause, error) {
	if p.IsEmpty() {
		return Clause{}, nil
	}

	var and Clause
	if len(p.And) > 0 {
		clauses := make([]Clause, 0, len(p.And))
		for _, cmp := range p.And {
			cl, err := compileComparison(cmp)
			if err != nil {
				return Clause{}, err
			}
			clauses = append(clauses, cl)
		}
		and = And(clauses...)
	}
	if len(p.Or) == 0 {
		return and, nil
	}

	union := []Clause{and}
	for _, cmp := range p.Or {
		cl, err := compileComparison(cmp)
		if err != nil {
			return Clause{}, err
		}
		union = append(union, cl)
	}
	return Or(union...), nil
}

// CompileSort compiles sort items into an ORDER BY body.
//
// Payload paths sort through a cast chosen from field metadata: REAL for
// numeric fields, TEXT otherwise. Payload items without metadata, and
// array paths, are dropped here.
func (c *Compiler) CompileSort(items []queryir.SortItem, fields queryir.FieldSet) (Clause, error) {
	keys, err := queryir.PlanSort(items, fields)
	if err != nil {
		return Clause{}, err
	}

	kept := keys[:0:0]
	for _, k := range keys {
		if k.Meta || (k.Info != nil && !k.Path.HasArrayMarker()) {
			kept = append(kept, k)
		}
	}

	var parts []string
	var args []any
	for _, k := range queryir.FinishSort(kept) {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		if k.Meta {
			parts = append(parts, columns[k.Field]+" "+dir)
			continue
		}
		cast := "TEXT"
		if k.Info.IsNumeric() {
			cast = "REAL"
		}
		parts = append(parts, fmt.Sprintf("CAST(json_extract(%s, ?) AS %s) %s", PayloadColumn, cast, dir))
		args = append(args, JSONPath(k.Path))
	}
	return Clause{SQL: strings.Join(parts, ", "), Args: args}, nil
}

// CompilePagination compiles a zero-based page into LIMIT/OFFSET.
// A limit of zero or less means unpaginated and yields an empty clause.
func (c *Compiler) CompilePagination(page, limit int) Clause {
	if limit <= 0 {
		return Clause{}
	}
	return Clause{SQL: "LIMIT ? OFFSET ?", Args: []any{limit, queryir.Offset(page, limit)}}
}

var simpleKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
var indexKey = regexp.MustCompile(`^[0-9]+$`)

// JSONPath renders a payload path in SQLite JSON path syntax. Numeric
// segments index arrays; other non-identifier keys are quoted.
func JSONPath(p ir.Path) string {
	var b strings.Builder
	b.WriteString("$")
	writeJSONPath(&b, p)
	return b.String()
}

func writeJSONPath(b *strings.Builder, p ir.Path) {
	for _, seg := range p {
		switch {
		case indexKey.MatchString(seg):
			b.WriteString("[" + seg + "]")
		case simpleKey.MatchString(seg):
			b.WriteString("." + seg)
		default:
			b.WriteString(`."` + seg + `"`)
		}
	}
}
