package ir

import (
	"strconv"
	"strings"
)

// ArrayMarker is the path segment that marks "any element of this array".
// "tags.[]" addresses the elements of tags; "items.[].name" addresses the
// name of any element of items.
const ArrayMarker = "[]"

// Path is a dotted payload path split into segments.
type Path []string

// ParsePath splits a dotted path. Empty segments are dropped, so "a..b"
// and "a.b" are the same path.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			p = append(p, part)
		}
	}
	return p
}

// String joins the segments back with dots.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// HasArrayMarker reports whether any segment is the array marker.
func (p Path) HasArrayMarker() bool {
	for _, seg := range p {
		if seg == ArrayMarker {
			return true
		}
	}
	return false
}

// SplitArray splits p at the first array marker.
// arr is the path of the array itself; elem is the path inside each element,
// with any further markers removed. ok is false when p has no marker.
func (p Path) SplitArray() (arr Path, elem Path, ok bool) {
	for i, seg := range p {
		if seg != ArrayMarker {
			continue
		}
		arr = append(Path{}, p[:i]...)
		for _, rest := range p[i+1:] {
			if rest != ArrayMarker {
				elem = append(elem, rest)
			}
		}
		return arr, elem, true
	}
	return p, nil, false
}

// Get walks v along p. Object segments select keys; numeric segments index
// into arrays. The second result is false when any segment is missing.
func Get(v IRValue, p Path) (IRValue, bool) {
	cur := v
	for _, seg := range p {
		switch node := cur.(type) {
		case IRObject:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case IRArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Get looks up a dotted path in the object.
func (obj IRObject) Get(path string) (IRValue, bool) {
	return Get(obj, ParsePath(path))
}

// Set writes value at p, creating intermediate objects as needed.
// Intermediate non-object values are replaced by objects.
func (obj IRObject) Set(p Path, value IRValue) {
	if len(p) == 0 {
		return
	}
	cur := obj
	for _, seg := range p[:len(p)-1] {
		next, ok := cur[seg].(IRObject)
		if !ok {
			next = IRObject{}
			cur[seg] = next
		}
		cur = next
	}
	cur[p[len(p)-1]] = value
}
