package objstore

import (
	"context"
	"fmt"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// BulkUpsert processes p.Items in batches of p.BatchSize.
//
// An item conflicts with the most recent live record of the same tenant
// and tag whose payload equals the item at every conflict key the item
// defines. An item that defines none of the keys is always new. New items
// are inserted once per batch; an item that conflicts with a new item
// still pending in its batch flushes the pending inserts first, so the
// batch size never changes the outcome.
func (e *Engine) BulkUpsert(ctx context.Context, p BulkUpsertParams) (res BulkUpsertResult, err error) {
	defer e.observe(OpBulkUpsert, time.Now(), &err)

	if err := checkParams(OpBulkUpsert, p); err != nil {
		return BulkUpsertResult{}, err
	}

	res = BulkUpsertResult{
		NewObjs:      []ir.Obj{},
		UpdatedObjs:  []ir.Obj{},
		IgnoredItems: []SkippedItem{},
		FailedItems:  []SkippedItem{},
	}
	batchSize := orDefault(p.BatchSize, DefaultUpsertBatchSize)
	fieldsToIndex := ir.NormalizeFieldsToIndex(p.FieldsToIndex)

	for start, batch := 0, 0; start < len(p.Items); start, batch = start+batchSize, batch+1 {
		end := min(start+batchSize, len(p.Items))

		var pending []ir.Obj
		flush := func() error {
			if len(pending) == 0 {
				return nil
			}
			if err := e.backend.Insert(ctx, pending); err != nil {
				return err
			}
			res.NewObjs = append(res.NewObjs, pending...)
			pending = nil
			return nil
		}

		for _, item := range p.Items[start:end] {
			conds := conflictConditions(item, p.ConflictOnKeys)
			if len(conds) > 0 && matchesAny(pending, conds) {
				if err := flush(); err != nil {
					return res, fmt.Errorf("bulk upsert: %w", err)
				}
			}

			var existing *ir.Obj
			if len(conds) > 0 {
				existing, err = e.findConflict(ctx, p.AppID, p.Tag, conds)
				if err != nil {
					return res, fmt.Errorf("bulk upsert: %w", err)
				}
			}

			res.TotalProcessed++
			if existing == nil {
				now := e.clock.Now()
				pending = append(pending, ir.Obj{
					ID:            e.ids.NewID(),
					AppID:         p.AppID,
					GroupID:       p.GroupID,
					Tag:           p.Tag,
					ObjRecord:     cloneRecord(item),
					CreatedAt:     now,
					CreatedBy:     p.CreatedBy,
					CreatedByType: p.CreatedByType,
					UpdatedAt:     now,
					UpdatedBy:     p.CreatedBy,
					UpdatedByType: p.CreatedByType,
					ShouldIndex:   p.ShouldIndex,
					FieldsToIndex: fieldsToIndex,
				})
				continue
			}

			switch p.OnConflict {
			case OnConflictIgnore:
				res.IgnoredItems = append(res.IgnoredItems, SkippedItem{Item: item, ExistingID: existing.ID})
			case OnConflictFail:
				res.FailedItems = append(res.FailedItems, SkippedItem{Item: item, ExistingID: existing.ID})
			default:
				strategy, _ := p.OnConflict.Strategy()
				shouldIndex := p.ShouldIndex
				updated, err := e.applyChange(ctx, []ir.Obj{*existing}, change{
					update:        item,
					strategy:      strategy,
					by:            p.CreatedBy,
					byType:        p.CreatedByType,
					shouldIndex:   &shouldIndex,
					fieldsToIndex: fieldsToIndex,
				})
				if err != nil {
					return res, fmt.Errorf("bulk upsert: %w", err)
				}
				res.UpdatedObjs = append(res.UpdatedObjs, updated...)
			}
		}

		if err := flush(); err != nil {
			return res, fmt.Errorf("bulk upsert: %w", err)
		}
		e.logger.Debug("bulk upsert batch", "batch", batch, "size", end-start, "processed", res.TotalProcessed)
	}

	name := e.backend.Name()
	e.observer.AddItems(name, OpBulkUpsert, OutcomeNew, len(res.NewObjs))
	e.observer.AddItems(name, OpBulkUpsert, OutcomeUpdated, len(res.UpdatedObjs))
	e.observer.AddItems(name, OpBulkUpsert, OutcomeIgnored, len(res.IgnoredItems))
	e.observer.AddItems(name, OpBulkUpsert, OutcomeFailed, len(res.FailedItems))
	e.logger.Info("bulk upsert done",
		"tag", p.Tag,
		"new", len(res.NewObjs),
		"updated", len(res.UpdatedObjs),
		"ignored", len(res.IgnoredItems),
		"failed", len(res.FailedItems))
	return res, nil
}

// conflictConditions returns an equality item for each conflict key the
// item defines.
func conflictConditions(item ir.IRObject, keys []string) []queryir.QueryItem {
	var out []queryir.QueryItem
	for _, k := range keys {
		v, ok := item.Get(k)
		if !ok {
			continue
		}
		out = append(out, queryir.QueryItem{Field: k, Op: queryir.OpEq, Value: v})
	}
	return out
}

// matchesAny reports whether any pending record satisfies every condition.
func matchesAny(pending []ir.Obj, conds []queryir.QueryItem) bool {
	for _, o := range pending {
		match := true
		for _, c := range conds {
			v, ok := o.ObjRecord.Get(c.Field)
			if !ok || !ir.Equal(v, c.Value) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// findConflict returns the most recent live record matching conds, or nil.
func (e *Engine) findConflict(ctx context.Context, appID, tag string, conds []queryir.QueryItem) (*ir.Obj, error) {
	objs, err := e.backend.Find(ctx, FindSpec{
		Query: queryir.Query{
			AppID:     appID,
			PartQuery: &queryir.LogicalQuery{And: conds},
		},
		Tag:           tag,
		Limit:         1,
		Scope:         ScopeLive,
		ReferenceDate: e.clock.Now(),
	})
	if err != nil || len(objs) == 0 {
		return nil, err
	}
	return &objs[0], nil
}

func cloneRecord(obj ir.IRObject) ir.IRObject {
	out := obj.Clone()
	if out == nil {
		out = ir.IRObject{}
	}
	return out
}

// BulkUpdate updates live matches in batches until p.Count records are
// updated or the matches run out. Records updated earlier in the run are
// excluded from later batches.
func (e *Engine) BulkUpdate(ctx context.Context, p BulkUpdateParams) (total int, err error) {
	defer e.observe(OpBulkUpdate, time.Now(), &err)

	if err := checkParams(OpBulkUpdate, p); err != nil {
		return 0, err
	}

	batchSize := orDefault(p.BatchSize, DefaultBulkBatchSize)
	ch := change{
		update:        p.Update,
		strategy:      e.strategyOrDefault(p.MergeStrategy),
		by:            p.By,
		byType:        p.ByType,
		shouldIndex:   p.ShouldIndex,
		fieldsToIndex: p.FieldsToIndex,
	}
	ref := e.refDate(p.ReferenceDate)

	var done []string
	for batch := 0; ; batch++ {
		limit := batchSize
		if p.Count > 0 {
			limit = min(limit, p.Count-total)
		}
		if limit <= 0 {
			break
		}

		objs, err := e.backend.Find(ctx, FindSpec{
			Query:         p.Query,
			Tag:           p.Tag,
			Fields:        p.Fields,
			Limit:         limit,
			Scope:         ScopeLive,
			ExcludeIDs:    done,
			ReferenceDate: ref,
		})
		if err != nil {
			return total, fmt.Errorf("bulk update: %w", err)
		}

		updated, err := e.applyChange(ctx, objs, ch)
		total += len(updated)
		done = append(done, IDs(updated)...)
		if err != nil {
			return total, fmt.Errorf("bulk update: %w", err)
		}

		e.logger.Debug("bulk update batch", "batch", batch, "size", len(objs), "processed", total)
		if p.OnProgress != nil {
			p.OnProgress(total, p.Count)
		}
		if len(objs) < limit {
			break
		}
	}

	e.observer.AddItems(e.backend.Name(), OpBulkUpdate, OutcomeUpdated, total)
	e.logger.Info("bulk update done", "tag", p.Tag, "processed", total)
	return total, nil
}

// BulkDelete deletes live matches, most recently created first. Without
// DeleteMany exactly one match is deleted. Each batch is removed or
// soft-deleted by a single backend call.
func (e *Engine) BulkDelete(ctx context.Context, p BulkDeleteParams) (total int, err error) {
	defer e.observe(OpBulkDelete, time.Now(), &err)

	if err := checkParams(OpBulkDelete, p); err != nil {
		return 0, err
	}

	batchSize := 1
	if p.DeleteMany {
		batchSize = orDefault(p.BatchSize, DefaultBulkBatchSize)
	}
	ref := e.refDate(p.ReferenceDate)
	newest := []queryir.SortItem{{Field: queryir.FieldCreatedAt, Direction: queryir.Desc}}

	for batch := 0; ; batch++ {
		objs, err := e.backend.Find(ctx, FindSpec{
			Query:         p.Query,
			Tag:           p.Tag,
			Fields:        p.Fields,
			Sort:          newest,
			Limit:         batchSize,
			Scope:         ScopeLive,
			ReferenceDate: ref,
		})
		if err != nil {
			return total, fmt.Errorf("bulk delete: %w", err)
		}
		if len(objs) == 0 {
			break
		}

		var n int
		if p.HardDelete {
			n, err = e.backend.HardDelete(ctx, IDs(objs))
		} else {
			n, err = e.backend.SoftDelete(ctx, IDs(objs), Deletion{
				At:     e.clock.Now(),
				By:     p.DeletedBy,
				ByType: p.DeletedByType,
			})
		}
		if err != nil {
			return total, fmt.Errorf("bulk delete: %w", err)
		}
		total += n

		e.logger.Debug("bulk delete batch", "batch", batch, "size", len(objs), "processed", total, "hard", p.HardDelete)
		// n == 0 means a concurrent writer got there first; stop rather
		// than refetch the same records.
		if !p.DeleteMany || len(objs) < batchSize || n == 0 {
			break
		}
	}

	e.observer.AddItems(e.backend.Name(), OpBulkDelete, OutcomeDeleted, total)
	e.logger.Info("bulk delete done", "tag", p.Tag, "processed", total, "hard", p.HardDelete)
	return total, nil
}

// CleanupDeletedObjs physically removes soft-deleted records in batches,
// across every tenant and tag.
func (e *Engine) CleanupDeletedObjs(ctx context.Context, p CleanupParams) (total int, err error) {
	defer e.observe(OpCleanup, time.Now(), &err)

	if err := checkParams(OpCleanup, p); err != nil {
		return 0, err
	}

	batchSize := orDefault(p.BatchSize, DefaultBulkBatchSize)
	for batch := 0; ; batch++ {
		objs, err := e.backend.Find(ctx, FindSpec{
			Limit:         batchSize,
			Scope:         ScopeDeleted,
			ReferenceDate: e.clock.Now(),
		})
		if err != nil {
			return total, fmt.Errorf("cleanup: %w", err)
		}
		if len(objs) == 0 {
			break
		}

		n, err := e.backend.HardDelete(ctx, IDs(objs))
		if err != nil {
			return total, fmt.Errorf("cleanup: %w", err)
		}
		total += n

		e.logger.Debug("cleanup batch", "batch", batch, "size", len(objs), "processed", total)
		if p.OnProgress != nil {
			p.OnProgress(total, 0)
		}
		if len(objs) < batchSize || n == 0 {
			break
		}
	}

	e.observer.AddItems(e.backend.Name(), OpCleanup, OutcomeDeleted, total)
	e.logger.Info("cleanup done", "processed", total)
	return total, nil
}

