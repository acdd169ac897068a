package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// UpsertFields implements objstore.Backend. Fields are keyed by
// (appId, tag, path); an existing document keeps its id and creation time.
func (s *Store) UpsertFields(ctx context.Context, fields []ir.ObjField) error {
	ctx = s.opCtx(ctx)
	for _, f := range fields {
		id := f.ID
		if id == "" {
			var err error
			if id, err = ir.FieldID(f.AppID, f.GroupID, f.Tag, f.Path); err != nil {
				return fmt.Errorf("upsert field %q: %w", f.Path, err)
			}
		}
		types := f.ValueTypes
		if types == nil {
			types = []string{}
		}

		filter := bson.D{{Key: "appId", Value: f.AppID}, {Key: "tag", Value: f.Tag}, {Key: "path", Value: f.Path}}
		update := bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "valueTypes", Value: types},
				{Key: "isArrayCompressed", Value: f.IsArrayCompressed},
				{Key: "updatedAt", Value: f.UpdatedAt.UTC()},
			}},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "_id", Value: id},
				{Key: "groupId", Value: f.GroupID},
				{Key: "createdAt", Value: f.CreatedAt.UTC()},
			}},
		}
		if _, err := s.fields.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			return fmt.Errorf("upsert field %q: %w", f.Path, err)
		}
	}
	return nil
}

// ReadFields implements objstore.Backend.
// Returns an empty slice (not nil) when no fields are known.
func (s *Store) ReadFields(ctx context.Context, appID, tag string) ([]ir.ObjField, error) {
	ctx = s.opCtx(ctx)
	filter := bson.D{{Key: "appId", Value: appID}, {Key: "tag", Value: tag}}
	cur, err := s.fields.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "path", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	var docs []fieldDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}

	fields := make([]ir.ObjField, 0, len(docs))
	for _, d := range docs {
		fields = append(fields, ir.ObjField{
			ID:                d.ID,
			AppID:             d.AppID,
			GroupID:           d.GroupID,
			Tag:               d.Tag,
			Path:              d.Path,
			ValueTypes:        d.ValueTypes,
			IsArrayCompressed: d.IsArrayCompressed,
			CreatedAt:         d.CreatedAt.UTC(),
			UpdatedAt:         d.UpdatedAt.UTC(),
		})
	}
	return fields, nil
}
