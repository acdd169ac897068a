package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/querysql"
)

// selectSQL builds the statement for spec.
func (s *Store) selectSQL(spec objstore.FindSpec) (string, []any, error) {
	filter, err := s.compiler.CompileFilter(spec.Query, spec.ReferenceDate, spec.Fields)
	if err != nil {
		return "", nil, err
	}

	var tag querysql.Clause
	if spec.Tag != "" {
		tag = querysql.TagClause(spec.Tag)
	}
	var scope querysql.Clause
	switch spec.Scope {
	case objstore.ScopeLive:
		scope = querysql.LiveClause()
	case objstore.ScopeDeleted:
		scope = querysql.DeletedClause()
	}
	where := querysql.And(filter, tag, scope, querysql.ExcludeIDsClause(spec.ExcludeIDs))

	order, err := s.compiler.CompileSort(spec.Sort, spec.Fields)
	if err != nil {
		return "", nil, err
	}
	page := s.compiler.CompilePagination(spec.Page, spec.Limit)

	var b strings.Builder
	b.WriteString("SELECT " + objColumns + " FROM objs WHERE " + where.SQL + " ORDER BY " + order.SQL)
	args := append(append([]any{}, where.Args...), order.Args...)
	if !page.IsEmpty() {
		b.WriteString(" " + page.SQL)
		args = append(args, page.Args...)
	}
	return b.String(), args, nil
}

// Find implements objstore.Backend.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, spec objstore.FindSpec) ([]ir.Obj, error) {
	query, args, err := s.selectSQL(spec)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query objs: %w", err)
	}
	defer rows.Close()

	objs := []ir.Obj{}
	for rows.Next() {
		o, err := scanObj(rows)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objs: %w", err)
	}
	return objs, nil
}

// Insert implements objstore.Backend. All rows are written in one
// transaction, joining the caller's if there is one.
func (s *Store) Insert(ctx context.Context, objs []ir.Obj) error {
	if len(objs) == 0 {
		return nil
	}
	return s.InTx(ctx, func(ctx context.Context, b objstore.Backend) error {
		tx := b.(*Store)
		for _, o := range objs {
			if err := tx.insertOne(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insertOne(ctx context.Context, o ir.Obj) error {
	record, err := marshalRecord(o.ObjRecord)
	if err != nil {
		return fmt.Errorf("insert obj %s: %w", o.ID, err)
	}
	fieldsToIndex, err := marshalStrings(o.FieldsToIndex)
	if err != nil {
		return fmt.Errorf("insert obj %s: %w", o.ID, err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO objs
		(id, app_id, group_id, tag, obj_record,
		 created_at, created_by, created_by_type,
		 updated_at, updated_by, updated_by_type,
		 deleted_at, deleted_by, deleted_by_type,
		 should_index, fields_to_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.AppID, o.GroupID, o.Tag, record,
		toMillis(o.CreatedAt), o.CreatedBy, o.CreatedByType,
		toMillis(o.UpdatedAt), o.UpdatedBy, o.UpdatedByType,
		nullMillis(o.DeletedAt), nullString(o.DeletedBy), nullString(o.DeletedByType),
		o.ShouldIndex, fieldsToIndex,
	)
	if err != nil {
		return fmt.Errorf("insert obj %s: %w", o.ID, err)
	}
	return nil
}

// UpdateObj implements objstore.Backend.
func (s *Store) UpdateObj(ctx context.Context, o ir.Obj) error {
	record, err := marshalRecord(o.ObjRecord)
	if err != nil {
		return fmt.Errorf("update obj %s: %w", o.ID, err)
	}
	fieldsToIndex, err := marshalStrings(o.FieldsToIndex)
	if err != nil {
		return fmt.Errorf("update obj %s: %w", o.ID, err)
	}

	_, err = s.q.ExecContext(ctx, `
		UPDATE objs
		SET obj_record = ?, updated_at = ?, updated_by = ?, updated_by_type = ?,
		    should_index = ?, fields_to_index = ?
		WHERE id = ?
	`,
		record, toMillis(o.UpdatedAt), o.UpdatedBy, o.UpdatedByType,
		o.ShouldIndex, fieldsToIndex,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("update obj %s: %w", o.ID, err)
	}
	return nil
}

// SoftDelete implements objstore.Backend with a single UPDATE.
func (s *Store) SoftDelete(ctx context.Context, ids []string, d objstore.Deletion) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	where := querysql.And(querysql.IDsClause(ids), querysql.LiveClause())
	args := append([]any{toMillis(d.At), d.By, d.ByType}, where.Args...)

	res, err := s.q.ExecContext(ctx,
		"UPDATE objs SET deleted_at = ?, deleted_by = ?, deleted_by_type = ? WHERE "+where.SQL,
		args...)
	if err != nil {
		return 0, fmt.Errorf("soft delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("soft delete: %w", err)
	}
	return int(n), nil
}

// HardDelete implements objstore.Backend with a single DELETE.
func (s *Store) HardDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	where := querysql.IDsClause(ids)

	res, err := s.q.ExecContext(ctx, "DELETE FROM objs WHERE "+where.SQL, where.Args...)
	if err != nil {
		return 0, fmt.Errorf("hard delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("hard delete: %w", err)
	}
	return int(n), nil
}
