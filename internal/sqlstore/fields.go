package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// UpsertFields implements objstore.Backend. Fields are keyed by
// (app_id, tag, path); an existing row keeps its id and creation time.
func (s *Store) UpsertFields(ctx context.Context, fields []ir.ObjField) error {
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
		typesJSON, err := json.Marshal(types)
		if err != nil {
			return fmt.Errorf("upsert field %q: %w", f.Path, err)
		}

		_, err = s.q.ExecContext(ctx, `
			INSERT INTO obj_fields
			(id, app_id, group_id, tag, path, value_types, is_array_compressed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(app_id, tag, path) DO UPDATE SET
				value_types = excluded.value_types,
				is_array_compressed = excluded.is_array_compressed,
				updated_at = excluded.updated_at
		`,
			id, f.AppID, f.GroupID, f.Tag, f.Path, string(typesJSON), f.IsArrayCompressed,
			toMillis(f.CreatedAt), toMillis(f.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert field %q: %w", f.Path, err)
		}
	}
	return nil
}

// ReadFields implements objstore.Backend.
// Returns an empty slice (not nil) when no fields are known.
func (s *Store) ReadFields(ctx context.Context, appID, tag string) ([]ir.ObjField, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, app_id, group_id, tag, path, value_types, is_array_compressed, created_at, updated_at
		FROM obj_fields
		WHERE app_id = ? AND tag = ?
		ORDER BY path ASC
	`, appID, tag)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	fields := []ir.ObjField{}
	for rows.Next() {
		var (
			f                    ir.ObjField
			types                string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&f.ID, &f.AppID, &f.GroupID, &f.Tag, &f.Path, &types,
			&f.IsArrayCompressed, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		if err := json.Unmarshal([]byte(types), &f.ValueTypes); err != nil {
			return nil, fmt.Errorf("field %q: value types: %w", f.Path, err)
		}
		f.CreatedAt = fromMillis(createdAt)
		f.UpdatedAt = fromMillis(updatedAt)
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}
	return fields, nil
}
