package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/querymongo"
)

// filterFor builds the filter document for spec.
func (s *Store) filterFor(spec objstore.FindSpec) (bson.D, error) {
	filter, err := s.compiler.CompileFilter(spec.Query, spec.ReferenceDate, spec.Fields)
	if err != nil {
		return nil, err
	}

	var tag, scope bson.D
	if spec.Tag != "" {
		tag = querymongo.TagFilter(spec.Tag)
	}
	switch spec.Scope {
	case objstore.ScopeLive:
		scope = querymongo.LiveFilter()
	case objstore.ScopeDeleted:
		scope = querymongo.DeletedFilter()
	}
	return querymongo.And(filter, tag, scope, querymongo.ExcludeIDsFilter(spec.ExcludeIDs)), nil
}

// Find implements objstore.Backend.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, spec objstore.FindSpec) ([]ir.Obj, error) {
	filter, err := s.filterFor(spec)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	sort, err := s.compiler.CompileSort(spec.Sort, spec.Fields)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	opts := options.Find().SetSort(sort)
	if page := s.compiler.CompilePagination(spec.Page, spec.Limit); page.Limit > 0 {
		opts.SetSkip(page.Skip).SetLimit(page.Limit)
	}

	ctx = s.opCtx(ctx)
	cur, err := s.objs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query objs: %w", err)
	}
	var docs []objDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("iterate objs: %w", err)
	}

	objs := make([]ir.Obj, 0, len(docs))
	for _, d := range docs {
		o, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, nil
}

// Insert implements objstore.Backend with one ordered InsertMany. Outside
// a transaction, documents before a failing one stay inserted.
func (s *Store) Insert(ctx context.Context, objs []ir.Obj) error {
	if len(objs) == 0 {
		return nil
	}
	docs := make([]any, len(objs))
	for i, o := range objs {
		docs[i] = toDoc(o)
	}
	if _, err := s.objs.InsertMany(s.opCtx(ctx), docs); err != nil {
		return fmt.Errorf("insert objs: %w", err)
	}
	return nil
}

// UpdateObj implements objstore.Backend.
func (s *Store) UpdateObj(ctx context.Context, o ir.Obj) error {
	d := toDoc(o)
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "objRecord", Value: d.ObjRecord},
		{Key: "updatedAt", Value: d.UpdatedAt},
		{Key: "updatedBy", Value: d.UpdatedBy},
		{Key: "updatedByType", Value: d.UpdatedByType},
		{Key: "shouldIndex", Value: d.ShouldIndex},
		{Key: "fieldsToIndex", Value: d.FieldsToIndex},
	}}}
	if _, err := s.objs.UpdateByID(s.opCtx(ctx), o.ID, update); err != nil {
		return fmt.Errorf("update obj %s: %w", o.ID, err)
	}
	return nil
}

// SoftDelete implements objstore.Backend with a single UpdateMany.
func (s *Store) SoftDelete(ctx context.Context, ids []string, d objstore.Deletion) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := querymongo.And(querymongo.IDsFilter(ids), querymongo.LiveFilter())
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "deletedAt", Value: d.At.UTC()},
		{Key: "deletedBy", Value: d.By},
		{Key: "deletedByType", Value: d.ByType},
	}}}

	res, err := s.objs.UpdateMany(s.opCtx(ctx), filter, update)
	if err != nil {
		return 0, fmt.Errorf("soft delete: %w", err)
	}
	return int(res.ModifiedCount), nil
}

// HardDelete implements objstore.Backend with a single DeleteMany.
func (s *Store) HardDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.objs.DeleteMany(s.opCtx(ctx), querymongo.IDsFilter(ids))
	if err != nil {
		return 0, fmt.Errorf("hard delete: %w", err)
	}
	return int(res.DeletedCount), nil
}
