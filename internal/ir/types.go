package ir

import "time"

// Obj is the generic stored record. Every business entity is an Obj whose
// Tag names the entity type and whose ObjRecord carries the payload.
type Obj struct {
	ID            string     `json:"id"`    // Time-ordered, immutable
	AppID         string     `json:"appId"` // Tenant
	GroupID       string     `json:"groupId"`
	Tag           string     `json:"tag"`
	ObjRecord     IRObject   `json:"objRecord"` // Opaque payload, never validated here
	CreatedAt     time.Time  `json:"createdAt"`
	CreatedBy     string     `json:"createdBy"`
	CreatedByType string     `json:"createdByType"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	UpdatedBy     string     `json:"updatedBy"`
	UpdatedByType string     `json:"updatedByType"`
	DeletedAt     *time.Time `json:"deletedAt"` // nil means live
	DeletedBy     *string    `json:"deletedBy"`
	DeletedByType *string    `json:"deletedByType"`
	ShouldIndex   bool       `json:"shouldIndex"`
	FieldsToIndex []string   `json:"fieldsToIndex"` // nil means null
}

// IsDeleted reports whether the record is soft-deleted.
func (o Obj) IsDeleted() bool {
	return o.DeletedAt != nil
}

// NormalizeFieldsToIndex deduplicates paths preserving first occurrence.
// An empty list becomes nil so it is stored as null.
func NormalizeFieldsToIndex(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ObjField describes one known payload path for a (tenant, tag).
//
// The query compilers use it to decide between a direct path comparison and
// an array-membership comparison, and the relational sort compiler uses
// ValueTypes to pick a numeric or text cast.
type ObjField struct {
	ID                string    `json:"id"`
	AppID             string    `json:"appId"`
	GroupID           string    `json:"groupId"`
	Tag               string    `json:"tag"`
	Path              string    `json:"path"`
	ValueTypes        []string  `json:"valueTypes"` // Kind names, sorted
	IsArrayCompressed bool      `json:"isArrayCompressed"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// IsNumeric reports whether every observed value type is a number.
func (f ObjField) IsNumeric() bool {
	if len(f.ValueTypes) == 0 {
		return false
	}
	for _, t := range f.ValueTypes {
		if t != KindNumber {
			return false
		}
	}
	return true
}
