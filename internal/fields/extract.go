// Package fields derives payload field metadata and caches it per
// (appId, tag).
//
// The query compilers need to know which payload paths hold arrays and
// what types they hold. Registry keeps that metadata current as records
// are written and serves it from an ARC cache on reads.
package fields

import (
	"sort"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// Extract walks rec and returns one ObjField per leaf path, sorted by path.
//
// Objects are descended into. An array of scalars yields the array path
// itself, array-compressed, typed by its elements. An array of objects
// yields "<array>.[].<subpath>" entries, also array-compressed. Empty
// objects and arrays yield no entries.
func Extract(appID, groupID, tag string, rec ir.IRObject, now time.Time) []ir.ObjField {
	acc := make(map[string]*ir.ObjField)
	walk(acc, nil, rec, false)

	out := make([]ir.ObjField, 0, len(acc))
	for _, f := range acc {
		f.AppID, f.GroupID, f.Tag = appID, groupID, tag
		f.CreatedAt, f.UpdatedAt = now, now
		out = append(out, *f)
	}
	sortByPath(out)
	return out
}

func sortByPath(fields []ir.ObjField) {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
}

func walk(acc map[string]*ir.ObjField, prefix ir.Path, v ir.IRValue, inArray bool) {
	switch val := v.(type) {
	case ir.IRObject:
		for _, k := range val.SortedKeys() {
			walk(acc, append(append(ir.Path{}, prefix...), k), val[k], inArray)
		}
	case ir.IRArray:
		for _, elem := range val {
			switch e := elem.(type) {
			case ir.IRObject:
				walk(acc, append(append(ir.Path{}, prefix...), ir.ArrayMarker), e, true)
			case ir.IRArray:
				// Nested arrays are recorded by type only.
				record(acc, prefix, ir.KindArray, true)
			default:
				record(acc, prefix, ir.Kind(e), true)
			}
		}
	default:
		record(acc, prefix, ir.Kind(val), inArray)
	}
}

func record(acc map[string]*ir.ObjField, p ir.Path, kind string, array bool) {
	if len(p) == 0 {
		return
	}
	key := p.String()
	f, ok := acc[key]
	if !ok {
		f = &ir.ObjField{Path: key}
		acc[key] = f
	}
	f.ValueTypes = addType(f.ValueTypes, kind)
	f.IsArrayCompressed = f.IsArrayCompressed || array
}

// addType inserts kind into the sorted set types.
func addType(types []string, kind string) []string {
	i := sort.SearchStrings(types, kind)
	if i < len(types) && types[i] == kind {
		return types
	}
	types = append(types, "")
	copy(types[i+1:], types[i:])
	types[i] = kind
	return types
}

// mergeField folds next into prev. It reports whether prev changed.
func mergeField(prev *ir.ObjField, next ir.ObjField) bool {
	changed := false
	for _, t := range next.ValueTypes {
		before := len(prev.ValueTypes)
		prev.ValueTypes = addType(prev.ValueTypes, t)
		changed = changed || len(prev.ValueTypes) != before
	}
	if next.IsArrayCompressed && !prev.IsArrayCompressed {
		prev.IsArrayCompressed = true
		changed = true
	}
	return changed
}
