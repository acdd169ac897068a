package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/merge"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/queryir"
	"github.com/softkave/fimidx-sub001/internal/testutil"
)

// Actor is the audit identity the harness writes with.
const (
	Actor     = "tester"
	ActorType = "user"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and ids.
type Harness struct {
	backend objstore.Backend
	store   *objstore.Engine
	clock   *testutil.DeterministicClock
	logger  *slog.Logger
}

// New creates a harness over a fresh, empty backend.
func New(b objstore.Backend) *Harness {
	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	return &Harness{
		backend: b,
		store: objstore.New(b,
			objstore.WithClock(clock),
			objstore.WithIDGenerator(testutil.NewSequentialIDs("")),
			objstore.WithLogger(logger),
		),
		clock:  clock,
		logger: logger,
	}
}

// Store returns the engine the harness drives.
func (h *Harness) Store() *objstore.Engine { return h.store }

// Clock returns the harness clock.
func (h *Harness) Clock() *testutil.DeterministicClock { return h.clock }

// Run executes a scenario against a fresh, empty backend.
//
// Execution flow:
// 1. Insert setup records and field metadata
// 2. Execute steps, checking each expect clause
// 3. Evaluate final-state assertions
func Run(ctx context.Context, scenario *Scenario, b objstore.Backend) (*Result, error) {
	return New(b).Run(ctx, scenario)
}

// Run executes a scenario.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := h.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		out, err := h.executeStep(ctx, step)
		if err != nil && step.Expect == nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		if err != nil {
			out.Error = err.Error()
		}
		result.Steps = append(result.Steps, out.StepOutcome)
		for _, msg := range checkExpect(step.Expect, out, err) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Op, msg))
		}
		h.logger.Info("step completed", "step", i, "op", step.Op, "count", out.Count)
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	if len(scenario.Setup) > 0 {
		objs := make([]ir.Obj, 0, len(scenario.Setup))
		for i, s := range scenario.Setup {
			o, err := h.seedObj(s)
			if err != nil {
				return fmt.Errorf("setup[%d]: %w", i, err)
			}
			objs = append(objs, o)
		}
		if _, err := h.store.Create(ctx, objs); err != nil {
			return err
		}
	}

	if len(scenario.Fields) > 0 {
		now := h.clock.Now()
		fields := make([]ir.ObjField, 0, len(scenario.Fields))
		for _, f := range scenario.Fields {
			fields = append(fields, ir.ObjField{
				AppID:             f.App,
				Tag:               f.Tag,
				Path:              f.Path,
				ValueTypes:        f.Types,
				IsArrayCompressed: f.Array,
				CreatedAt:         now,
				UpdatedAt:         now,
			})
		}
		if err := h.store.UpsertFields(ctx, fields); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) seedObj(s SeedObj) (ir.Obj, error) {
	record, err := convertArgsToIRObject(s.Record)
	if err != nil {
		return ir.Obj{}, err
	}

	created := h.clock.Now()
	if s.CreatedAt != "" {
		if created, err = parseTime(s.CreatedAt); err != nil {
			return ir.Obj{}, err
		}
	}

	o := ir.Obj{
		ID:            s.ID,
		AppID:         s.App,
		GroupID:       s.Group,
		Tag:           s.Tag,
		ObjRecord:     record,
		CreatedAt:     created,
		CreatedBy:     Actor,
		CreatedByType: ActorType,
		UpdatedAt:     created,
		UpdatedBy:     Actor,
		UpdatedByType: ActorType,
		ShouldIndex:   s.ShouldIndex,
		FieldsToIndex: ir.NormalizeFieldsToIndex(s.FieldsToIndex),
	}
	if s.DeletedAt != "" {
		at, err := parseTime(s.DeletedAt)
		if err != nil {
			return ir.Obj{}, err
		}
		by, byType := Actor, ActorType
		o.DeletedAt, o.DeletedBy, o.DeletedByType = &at, &by, &byType
	}
	return o, nil
}

// outcome carries the step result plus counters for expect checks.
type outcome struct {
	StepOutcome
	hasMore                         bool
	newN, updatedN, ignoredN, failN int
}

func (h *Harness) executeStep(ctx context.Context, step Step) (outcome, error) {
	out := outcome{StepOutcome: StepOutcome{Op: step.Op}}

	q, err := buildQuery(step)
	if err != nil {
		return out, err
	}
	var ref time.Time
	if step.ReferenceDate != "" {
		if ref, err = parseTime(step.ReferenceDate); err != nil {
			return out, err
		}
	}

	var fields queryir.FieldSet
	if step.UseFields {
		list, err := h.store.ReadFields(ctx, step.App, step.Tag)
		if err != nil {
			return out, err
		}
		fields = queryir.NewFieldSet(list)
	}

	switch step.Op {
	case OpRead:
		sortItems, err := buildSort(step.Sort)
		if err != nil {
			return out, err
		}
		res, err := h.store.Read(ctx, objstore.ReadParams{
			Query:          q,
			Tag:            step.Tag,
			Fields:         fields,
			Sort:           sortItems,
			Page:           step.Page,
			Limit:          step.Limit,
			IncludeDeleted: step.IncludeDeleted,
			ReferenceDate:  ref,
		})
		if err != nil {
			return out, err
		}
		out.Count, out.IDs, out.hasMore = len(res.Objs), objstore.IDs(res.Objs), res.HasMore

	case OpUpdate:
		update, err := convertArgsToIRObject(step.Update)
		if err != nil {
			return out, err
		}
		res, err := h.store.Update(ctx, objstore.UpdateParams{
			Query:         q,
			Tag:           step.Tag,
			Fields:        fields,
			Update:        update,
			By:            Actor,
			ByType:        ActorType,
			MergeStrategy: merge.Strategy(step.Strategy),
			ReferenceDate: ref,
		})
		if err != nil {
			return out, err
		}
		out.Count, out.IDs = res.Count, objstore.IDs(res.Objs)

	case OpDelete:
		n, err := h.store.Delete(ctx, objstore.DeleteParams{
			Query:         q,
			Tag:           step.Tag,
			Fields:        fields,
			ReferenceDate: ref,
			DeletedBy:     Actor,
			DeletedByType: ActorType,
		})
		if err != nil {
			return out, err
		}
		out.Count = n

	case OpBulkUpsert:
		items := make([]ir.IRObject, 0, len(step.Items))
		for i, raw := range step.Items {
			item, err := convertArgsToIRObject(raw)
			if err != nil {
				return out, fmt.Errorf("items[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		res, err := h.store.BulkUpsert(ctx, objstore.BulkUpsertParams{
			Items:          items,
			ConflictOnKeys: step.ConflictOnKeys,
			OnConflict:     objstore.ConflictPolicy(step.OnConflict),
			Tag:            step.Tag,
			AppID:          step.App,
			CreatedBy:      Actor,
			CreatedByType:  ActorType,
			BatchSize:      step.BatchSize,
		})
		if err != nil {
			return out, err
		}
		out.Count = res.TotalProcessed
		out.IDs = append(objstore.IDs(res.NewObjs), objstore.IDs(res.UpdatedObjs)...)
		out.newN, out.updatedN = len(res.NewObjs), len(res.UpdatedObjs)
		out.ignoredN, out.failN = len(res.IgnoredItems), len(res.FailedItems)

	case OpBulkUpdate:
		update, err := convertArgsToIRObject(step.Update)
		if err != nil {
			return out, err
		}
		n, err := h.store.BulkUpdate(ctx, objstore.BulkUpdateParams{
			Query:         q,
			Tag:           step.Tag,
			Fields:        fields,
			Update:        update,
			By:            Actor,
			ByType:        ActorType,
			MergeStrategy: merge.Strategy(step.Strategy),
			Count:         step.Count,
			BatchSize:     step.BatchSize,
			ReferenceDate: ref,
		})
		if err != nil {
			return out, err
		}
		out.Count = n

	case OpBulkDelete:
		n, err := h.store.BulkDelete(ctx, objstore.BulkDeleteParams{
			Query:         q,
			Tag:           step.Tag,
			Fields:        fields,
			ReferenceDate: ref,
			DeletedBy:     Actor,
			DeletedByType: ActorType,
			DeleteMany:    step.DeleteMany,
			BatchSize:     step.BatchSize,
			HardDelete:    step.HardDelete,
		})
		if err != nil {
			return out, err
		}
		out.Count = n

	case OpCleanup:
		n, err := h.store.CleanupDeletedObjs(ctx, objstore.CleanupParams{BatchSize: step.BatchSize})
		if err != nil {
			return out, err
		}
		out.Count = n
	}
	return out, nil
}

// checkExpect compares a step outcome with its expect clause.
func checkExpect(exp *StepExpect, out outcome, err error) []string {
	if exp == nil {
		return nil
	}
	if exp.ErrorCode != "" {
		if got := errorCode(err); got != exp.ErrorCode {
			return []string{fmt.Sprintf("expected error code %s, got %q (err=%v)", exp.ErrorCode, got, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var msgs []string
	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			msgs = append(msgs, fmt.Sprintf("%s: expected %d, got %d", name, *want, got))
		}
	}
	checkInt("count", exp.Count, out.Count)
	checkInt("new", exp.New, out.newN)
	checkInt("updated", exp.Updated, out.updatedN)
	checkInt("ignored", exp.Ignored, out.ignoredN)
	checkInt("failed", exp.Failed, out.failN)
	if exp.HasMore != nil && *exp.HasMore != out.hasMore {
		msgs = append(msgs, fmt.Sprintf("hasMore: expected %v, got %v", *exp.HasMore, out.hasMore))
	}
	if exp.IDs != nil && !equalStrings(exp.IDs, out.IDs) {
		msgs = append(msgs, fmt.Sprintf("ids: expected %v, got %v", exp.IDs, out.IDs))
	}
	return msgs
}

// errorCode extracts a QueryError or ParamError code.
func errorCode(err error) string {
	var qe *queryir.QueryError
	if errors.As(err, &qe) {
		return string(qe.Code)
	}
	var pe *objstore.ParamError
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	return ""
}

// buildQuery decodes the step's Query DSL through its JSON form.
func buildQuery(step Step) (queryir.Query, error) {
	var q queryir.Query
	if step.Query != nil {
		data, err := json.Marshal(step.Query)
		if err != nil {
			return q, fmt.Errorf("encode query: %w", err)
		}
		if err := json.Unmarshal(data, &q); err != nil {
			return q, fmt.Errorf("decode query: %w", err)
		}
	}
	if q.AppID == "" {
		q.AppID = step.App
	}
	return q, nil
}

func buildSort(raw []map[string]any) ([]queryir.SortItem, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode sort: %w", err)
	}
	var items []queryir.SortItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode sort: %w", err)
	}
	return items, nil
}

func parseTime(s string) (time.Time, error) {
	t, ok := queryir.ParseISO(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t.Truncate(time.Millisecond), nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// convertArgsToIRObject converts a YAML-parsed map to ir.IRObject.
func convertArgsToIRObject(args map[string]any) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}

	result := make(ir.IRObject, len(args))
	for key, val := range args {
		irVal, err := convertToIRValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = irVal
	}
	return result, nil
}

// convertToIRValue converts a YAML-parsed value to an IRValue.
func convertToIRValue(val any) (ir.IRValue, error) {
	switch v := val.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(v), nil
	case int:
		return ir.IRNumber(v), nil
	case int64:
		return ir.IRNumber(v), nil
	case uint64:
		return ir.IRNumber(v), nil
	case float64:
		return ir.IRNumber(v), nil
	case bool:
		return ir.IRBool(v), nil
	case time.Time:
		return ir.IRString(ir.FormatTime(v)), nil
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		return convertArgsToIRObject(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
