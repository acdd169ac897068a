package harness

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/merge"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// Factory opens a fresh, empty backend for one test.
type Factory func(t *testing.T) objstore.Backend

// Conformance runs every built-in scenario and the programmatic checks
// against backends produced by open.
func Conformance(t *testing.T, open Factory) {
	t.Helper()

	scenarios, err := Builtin()
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s, open(t))
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed:\n%s", joinLines(result.Errors))
		})
	}

	checks := []struct {
		name string
		fn   func(t *testing.T, h *Harness)
	}{
		{"transaction_rollback", checkTransactionRollback},
		{"transaction_commit", checkTransactionCommit},
		{"bulk_update_count_and_progress", checkBulkUpdateCount},
		{"cleanup_progress", checkCleanupProgress},
		{"default_merge_strategy", checkDefaultMergeStrategy},
		{"field_metadata", checkFieldMetadata},
		{"param_errors", checkParamErrors},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			c.fn(t, New(open(t)))
		})
	}
}

func joinLines(lines []string) string {
	var out string
	for _, l := range lines {
		out += "  " + l + "\n"
	}
	return out
}

// seedItems inserts n live records of app-1/item with {"n": i}.
func seedItems(t *testing.T, h *Harness, n int) []ir.Obj {
	t.Helper()
	objs := make([]ir.Obj, n)
	for i := range objs {
		now := h.clock.Now()
		objs[i] = ir.Obj{
			ID:            fmt.Sprintf("item-%02d", i),
			AppID:         "app-1",
			Tag:           "item",
			ObjRecord:     ir.IRObject{"n": ir.IRNumber(i), "status": ir.IRString("new")},
			CreatedAt:     now,
			CreatedBy:     Actor,
			CreatedByType: ActorType,
			UpdatedAt:     now,
			UpdatedBy:     Actor,
			UpdatedByType: ActorType,
		}
	}
	_, err := h.store.Create(context.Background(), objs)
	require.NoError(t, err)
	return objs
}

func readAll(t *testing.T, s objstore.Store, includeDeleted bool) []ir.Obj {
	t.Helper()
	res, err := s.Read(context.Background(), objstore.ReadParams{
		Query:          queryir.Query{AppID: "app-1"},
		Tag:            "item",
		IncludeDeleted: includeDeleted,
	})
	require.NoError(t, err)
	return res.Objs
}

var errAbort = errors.New("abort")

func checkTransactionRollback(t *testing.T, h *Harness) {
	ctx := context.Background()
	seedItems(t, h, 1)

	err := h.store.WithTransaction(ctx, func(ctx context.Context, tx objstore.Store) error {
		res, err := tx.Update(ctx, objstore.UpdateParams{
			Query:         queryir.Query{AppID: "app-1"},
			Tag:           "item",
			Update:        ir.IRObject{"status": ir.IRString("changed")},
			By:            Actor,
			ByType:        ActorType,
			MergeStrategy: merge.Merge,
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Count)

		_, err = tx.BulkUpsert(ctx, objstore.BulkUpsertParams{
			Items:         []ir.IRObject{{"n": ir.IRNumber(99)}},
			OnConflict:    objstore.OnConflictIgnore,
			Tag:           "item",
			AppID:         "app-1",
			CreatedBy:     Actor,
			CreatedByType: ActorType,
		})
		require.NoError(t, err)

		// Writes are visible inside the transaction.
		require.Len(t, readAll(t, tx, false), 2)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	objs := readAll(t, h.store, true)
	require.Len(t, objs, 1)
	assert.Equal(t, ir.IRString("new"), objs[0].ObjRecord["status"])
}

func checkTransactionCommit(t *testing.T, h *Harness) {
	ctx := context.Background()
	seedItems(t, h, 2)

	err := h.store.WithTransaction(ctx, func(ctx context.Context, tx objstore.Store) error {
		n, err := tx.Delete(ctx, objstore.DeleteParams{
			Query: queryir.Query{AppID: "app-1", MetaQuery: queryir.MetaQuery{
				queryir.FieldID: queryir.MetaOps{queryir.OpEq: ir.IRString("item-00")},
			}},
			Tag:           "item",
			DeletedBy:     Actor,
			DeletedByType: ActorType,
		})
		if err != nil {
			return err
		}
		require.Equal(t, 1, n)

		// Nested transactions join the outer one.
		return tx.WithTransaction(ctx, func(ctx context.Context, inner objstore.Store) error {
			_, err := inner.Update(ctx, objstore.UpdateParams{
				Query:         queryir.Query{AppID: "app-1"},
				Tag:           "item",
				Update:        ir.IRObject{"status": ir.IRString("kept")},
				By:            Actor,
				ByType:        ActorType,
				MergeStrategy: merge.Merge,
			})
			return err
		})
	})
	require.NoError(t, err)

	live := readAll(t, h.store, false)
	require.Len(t, live, 1)
	assert.Equal(t, "item-01", live[0].ID)
	assert.Equal(t, ir.IRString("kept"), live[0].ObjRecord["status"])
	assert.Len(t, readAll(t, h.store, true), 2)
}

func checkBulkUpdateCount(t *testing.T, h *Harness) {
	ctx := context.Background()
	seedItems(t, h, 10)

	var progress []int
	n, err := h.store.BulkUpdate(ctx, objstore.BulkUpdateParams{
		Query:         queryir.Query{AppID: "app-1"},
		Tag:           "item",
		Update:        ir.IRObject{"status": ir.IRString("done")},
		By:            Actor,
		ByType:        ActorType,
		MergeStrategy: merge.Merge,
		Count:         5,
		BatchSize:     2,
		OnProgress: func(processed, target int) {
			assert.Equal(t, 5, target)
			progress = append(progress, processed)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 4, 5}, progress)

	changed := 0
	for _, o := range readAll(t, h.store, false) {
		if o.ObjRecord["status"] == ir.IRString("done") {
			changed++
			assert.Equal(t, Actor, o.UpdatedBy)
		}
	}
	assert.Equal(t, 5, changed)
}

func checkCleanupProgress(t *testing.T, h *Harness) {
	ctx := context.Background()
	seedItems(t, h, 5)

	n, err := h.store.BulkDelete(ctx, objstore.BulkDeleteParams{
		Query:         queryir.Query{AppID: "app-1"},
		Tag:           "item",
		DeletedBy:     Actor,
		DeletedByType: ActorType,
		DeleteMany:    true,
		BatchSize:     2,
	})
	require.NoError(t, err)
	require.Equal(t, 5, n)

	var progress []int
	n, err = h.store.CleanupDeletedObjs(ctx, objstore.CleanupParams{
		BatchSize: 2,
		OnProgress: func(processed, target int) {
			assert.Zero(t, target)
			progress = append(progress, processed)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 4, 5}, progress)
	assert.Empty(t, readAll(t, h.store, true))
}

func checkDefaultMergeStrategy(t *testing.T, h *Harness) {
	ctx := context.Background()
	seedItems(t, h, 1)

	update := ir.IRObject{"extra": ir.IRBool(true)}
	res, err := h.store.Update(ctx, objstore.UpdateParams{
		Query:  queryir.Query{AppID: "app-1"},
		Tag:    "item",
		Update: update,
		By:     Actor,
		ByType: ActorType,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)

	want, err := merge.Apply(
		ir.IRObject{"n": ir.IRNumber(0), "status": ir.IRString("new")},
		update,
		h.backend.DefaultMergeStrategy(),
	)
	require.NoError(t, err)

	objs := readAll(t, h.store, false)
	require.Len(t, objs, 1)
	assert.True(t, ir.Equal(want, objs[0].ObjRecord), "got %s", render(objs[0].ObjRecord))
}

func checkFieldMetadata(t *testing.T, h *Harness) {
	ctx := context.Background()
	now := h.clock.Now()

	fields := []ir.ObjField{
		{AppID: "app-1", Tag: "item", Path: "price", ValueTypes: []string{ir.KindNumber}, CreatedAt: now, UpdatedAt: now},
		{AppID: "app-1", Tag: "item", Path: "tags", ValueTypes: []string{ir.KindString}, IsArrayCompressed: true, CreatedAt: now, UpdatedAt: now},
		{AppID: "app-2", Tag: "item", Path: "other", ValueTypes: []string{ir.KindString}, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, h.store.UpsertFields(ctx, fields))

	// Re-upserting a path updates it in place.
	fields[0].ValueTypes = []string{ir.KindNumber, ir.KindString}
	require.NoError(t, h.store.UpsertFields(ctx, fields[:1]))

	got, err := h.store.ReadFields(ctx, "app-1", "item")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "price", got[0].Path)
	assert.Equal(t, []string{ir.KindNumber, ir.KindString}, got[0].ValueTypes)
	assert.Equal(t, "tags", got[1].Path)
	assert.True(t, got[1].IsArrayCompressed)
	assert.NotEmpty(t, got[1].ID)

	none, err := h.store.ReadFields(ctx, "app-1", "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func checkParamErrors(t *testing.T, h *Harness) {
	ctx := context.Background()

	_, err := h.store.Update(ctx, objstore.UpdateParams{Update: ir.IRObject{}})
	assert.True(t, objstore.IsParamError(err), "missing by: %v", err)

	_, err = h.store.Update(ctx, objstore.UpdateParams{
		By: Actor, ByType: ActorType, MergeStrategy: "deepest",
	})
	assert.True(t, objstore.IsUnknownStrategy(err), "bad strategy: %v", err)

	_, err = h.store.BulkUpsert(ctx, objstore.BulkUpsertParams{
		OnConflict: "overwrite", Tag: "item", AppID: "app-1", CreatedBy: Actor, CreatedByType: ActorType,
	})
	var pe *objstore.ParamError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, objstore.ErrCodeInvalidConflictPolicy, pe.Code)

	_, err = h.store.Read(ctx, objstore.ReadParams{Limit: -1})
	assert.True(t, objstore.IsParamError(err), "negative limit: %v", err)

	// Hard deletes need no audit identity.
	_, err = h.store.BulkDelete(ctx, objstore.BulkDeleteParams{HardDelete: true})
	assert.NoError(t, err)
	_, err = h.store.BulkDelete(ctx, objstore.BulkDeleteParams{})
	assert.True(t, objstore.IsParamError(err), "soft delete without deletedBy: %v", err)
}
