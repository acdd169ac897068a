package queryir

import (
	"strings"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// Structural field names accepted by metaQuery, topLevelFields, and sort.
const (
	FieldID            = "id"
	FieldTag           = "tag"
	FieldGroupID       = "groupId"
	FieldCreatedAt     = "createdAt"
	FieldCreatedBy     = "createdBy"
	FieldCreatedByType = "createdByType"
	FieldUpdatedAt     = "updatedAt"
	FieldUpdatedBy     = "updatedBy"
	FieldUpdatedByType = "updatedByType"
	FieldDeletedAt     = "deletedAt"
	FieldDeletedBy     = "deletedBy"
	FieldDeletedByType = "deletedByType"
	FieldShouldIndex   = "shouldIndex"
	FieldFieldsToIndex = "fieldsToIndex"
)

// MetaKind is the storage type of a structural field.
type MetaKind int

const (
	MetaString MetaKind = iota
	MetaDate
	MetaBool
	MetaList // list of strings, compared by membership
)

var metaFields = map[string]MetaKind{
	FieldID:            MetaString,
	FieldTag:           MetaString,
	FieldGroupID:       MetaString,
	FieldCreatedAt:     MetaDate,
	FieldCreatedBy:     MetaString,
	FieldCreatedByType: MetaString,
	FieldUpdatedAt:     MetaDate,
	FieldUpdatedBy:     MetaString,
	FieldUpdatedByType: MetaString,
	FieldDeletedAt:     MetaDate,
	FieldDeletedBy:     MetaString,
	FieldDeletedByType: MetaString,
	FieldShouldIndex:   MetaBool,
	FieldFieldsToIndex: MetaList,
}

// LookupMetaField reports the kind of a structural field.
func LookupMetaField(name string) (MetaKind, bool) {
	k, ok := metaFields[name]
	return k, ok
}

// payloadPrefix may be written in front of payload paths in sort items.
const payloadPrefix = "objRecord."

// FieldSet indexes field metadata by normalized path.
type FieldSet map[string]ir.ObjField

// NewFieldSet builds a FieldSet. Later entries for the same path win.
func NewFieldSet(fields []ir.ObjField) FieldSet {
	fs := make(FieldSet, len(fields))
	for _, f := range fields {
		fs[ir.ParsePath(f.Path).String()] = f
	}
	return fs
}

// Lookup returns metadata for a payload path.
func (fs FieldSet) Lookup(path string) (ir.ObjField, bool) {
	if fs == nil {
		return ir.ObjField{}, false
	}
	f, ok := fs[ir.ParsePath(path).String()]
	return f, ok
}

// FieldClass says how a payload path is compared.
type FieldClass struct {
	Path ir.Path

	// Array is set for array-membership comparisons. ArrayPath addresses
	// the array; ElemPath addresses the compared value inside each element
	// and is empty when elements are compared directly.
	Array     bool
	ArrayPath ir.Path
	ElemPath  ir.Path
}

// Classify decides between direct and array-membership comparison.
//
// An explicit array marker always selects membership. Without a marker,
// metadata marking the path array-compressed selects membership over the
// whole path. Everything else, including unknown paths, is direct.
func (fs FieldSet) Classify(field string) FieldClass {
	p := ir.ParsePath(field)
	if arr, elem, ok := p.SplitArray(); ok {
		return FieldClass{Path: p, Array: true, ArrayPath: arr, ElemPath: elem}
	}
	if f, ok := fs.Lookup(field); ok && f.IsArrayCompressed {
		return FieldClass{Path: p, Array: true, ArrayPath: p}
	}
	return FieldClass{Path: p}
}

// trimPayloadPrefix strips an optional "objRecord." prefix.
func trimPayloadPrefix(field string) string {
	return strings.TrimPrefix(field, payloadPrefix)
}
