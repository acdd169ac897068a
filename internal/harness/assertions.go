package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateAssertions checks every assertion and returns failure messages.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertIDs:
		objs, err := h.find(ctx, a)
		if err != nil {
			return err
		}
		got := objstore.IDs(objs)
		if !equalStrings(a.IDs, got) {
			return &AssertionError{
				Type:     AssertIDs,
				Expected: fmt.Sprintf("%s ids %v", scopeName(a.Scope), a.IDs),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	case AssertCount:
		objs, err := h.find(ctx, a)
		if err != nil {
			return err
		}
		if len(objs) != a.Count {
			return &AssertionError{
				Type:     AssertCount,
				Expected: fmt.Sprintf("%d %s records", a.Count, scopeName(a.Scope)),
				Actual:   fmt.Sprintf("%d", len(objs)),
			}
		}
	case AssertRecord:
		want, err := convertArgsToIRObject(a.Record)
		if err != nil {
			return err
		}
		objs, err := h.backend.Find(ctx, objstore.FindSpec{
			Query: queryir.Query{MetaQuery: queryir.MetaQuery{
				queryir.FieldID: queryir.MetaOps{queryir.OpEq: ir.IRString(a.ID)},
			}},
			Scope:         objstore.ScopeAll,
			ReferenceDate: h.clock.Current(),
		})
		if err != nil {
			return err
		}
		if len(objs) != 1 {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("record %s", a.ID),
				Actual:   fmt.Sprintf("%d records", len(objs)),
			}
		}
		if !ir.Equal(want, objs[0].ObjRecord) {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("%s = %s", a.ID, render(want)),
				Actual:   render(objs[0].ObjRecord),
			}
		}
	}
	return nil
}

// find lists the records of (App, Tag) in the assertion's scope, newest
// first.
func (h *Harness) find(ctx context.Context, a Assertion) ([]ir.Obj, error) {
	return h.backend.Find(ctx, objstore.FindSpec{
		Query:         queryir.Query{AppID: a.App},
		Tag:           a.Tag,
		Scope:         parseScope(a.Scope),
		ReferenceDate: h.clock.Current(),
	})
}

func parseScope(s string) objstore.Scope {
	switch s {
	case "all":
		return objstore.ScopeAll
	case "deleted":
		return objstore.ScopeDeleted
	}
	return objstore.ScopeLive
}

func scopeName(s string) string {
	return parseScope(s).String()
}

func render(obj ir.IRObject) string {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return fmt.Sprintf("%v", obj)
	}
	return string(data)
}
