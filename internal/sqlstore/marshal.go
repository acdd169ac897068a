package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// objColumns is the select list scanObj expects, in order.
const objColumns = `id, app_id, group_id, tag, obj_record,
	created_at, created_by, created_by_type,
	updated_at, updated_by, updated_by_type,
	deleted_at, deleted_by, deleted_by_type,
	should_index, fields_to_index`

// marshalRecord converts a payload to canonical JSON TEXT for storage.
// Canonical bytes let object- and array-valued comparisons use text
// equality.
func marshalRecord(rec ir.IRObject) (string, error) {
	if rec == nil {
		rec = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(rec)
	if err != nil {
		return "", fmt.Errorf("marshal objRecord: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses stored JSON TEXT into an IRObject.
func unmarshalRecord(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := obj.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal objRecord: %w", err)
	}
	return obj, nil
}

// marshalStrings stores a string list as a JSON array; nil is NULL.
func marshalStrings(ss []string) (sql.NullString, error) {
	if ss == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalStrings(ns sql.NullString) ([]string, error) {
	if !ns.Valid {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(ns.String), &ss); err != nil {
		return nil, err
	}
	return ss, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanObj scans one row selected with objColumns.
func scanObj(row rowScanner) (ir.Obj, error) {
	var (
		o                        ir.Obj
		record                   string
		createdAt, updatedAt     int64
		deletedAt                sql.NullInt64
		deletedBy, deletedByType sql.NullString
		fieldsToIndex            sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.AppID, &o.GroupID, &o.Tag, &record,
		&createdAt, &o.CreatedBy, &o.CreatedByType,
		&updatedAt, &o.UpdatedBy, &o.UpdatedByType,
		&deletedAt, &deletedBy, &deletedByType,
		&o.ShouldIndex, &fieldsToIndex,
	)
	if err != nil {
		return ir.Obj{}, fmt.Errorf("scan obj: %w", err)
	}

	if o.ObjRecord, err = unmarshalRecord(record); err != nil {
		return ir.Obj{}, fmt.Errorf("obj %s: %w", o.ID, err)
	}
	if o.FieldsToIndex, err = unmarshalStrings(fieldsToIndex); err != nil {
		return ir.Obj{}, fmt.Errorf("obj %s: fieldsToIndex: %w", o.ID, err)
	}
	o.CreatedAt = fromMillis(createdAt)
	o.UpdatedAt = fromMillis(updatedAt)
	if deletedAt.Valid {
		t := fromMillis(deletedAt.Int64)
		o.DeletedAt = &t
	}
	if deletedBy.Valid {
		o.DeletedBy = &deletedBy.String
	}
	if deletedByType.Valid {
		o.DeletedByType = &deletedByType.String
	}
	return o, nil
}
