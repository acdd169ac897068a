// Package merge combines an update payload with an existing payload.
//
// Five strategies are supported. Replace takes the update wholesale. Merge
// is shallow. The three MergeBut* strategies merge nested objects
// recursively and differ only in how a key holding an array on both sides
// is combined.
//
// Scalar leaves always take the update's value, including null. Inputs are
// never mutated; the result shares no containers with either input.
package merge

import (
	"errors"
	"fmt"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// Strategy names a merge policy. The values are the wire tokens.
type Strategy string

const (
	Replace               Strategy = "replace"
	Merge                 Strategy = "merge"
	MergeButReplaceArrays Strategy = "mergeButReplaceArrays"
	MergeButConcatArrays  Strategy = "mergeButConcatArrays"
	MergeButKeepArrays    Strategy = "mergeButKeepArrays"
)

// ErrUnknownStrategy is returned for a strategy name outside the five.
var ErrUnknownStrategy = errors.New("unknown merge strategy")

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{Replace, Merge, MergeButReplaceArrays, MergeButConcatArrays, MergeButKeepArrays}
}

// Valid reports whether s is one of the five strategies.
func (s Strategy) Valid() bool {
	switch s {
	case Replace, Merge, MergeButReplaceArrays, MergeButConcatArrays, MergeButKeepArrays:
		return true
	}
	return false
}

// ParseStrategy converts a token into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	return st, nil
}

// Apply merges update into existing under strategy s.
func Apply(existing, update ir.IRObject, s Strategy) (ir.IRObject, error) {
	switch s {
	case Replace:
		out := update.Clone()
		if out == nil {
			out = ir.IRObject{}
		}
		return out, nil
	case Merge:
		out := existing.Clone()
		if out == nil {
			out = ir.IRObject{}
		}
		for k, v := range update {
			out[k] = ir.Clone(v)
		}
		return out, nil
	case MergeButReplaceArrays, MergeButConcatArrays, MergeButKeepArrays:
		return deep(existing, update, s), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// deep merges objects recursively. Keys only in existing survive.
func deep(existing, update ir.IRObject, s Strategy) ir.IRObject {
	out := existing.Clone()
	if out == nil {
		out = ir.IRObject{}
	}
	for k, uv := range update {
		out[k] = deepValue(existing[k], uv, s)
	}
	return out
}

func deepValue(ev, uv ir.IRValue, s Strategy) ir.IRValue {
	switch u := uv.(type) {
	case ir.IRObject:
		if e, ok := ev.(ir.IRObject); ok {
			return deep(e, u, s)
		}
	case ir.IRArray:
		e, ok := ev.(ir.IRArray)
		if !ok {
			break
		}
		switch s {
		case MergeButConcatArrays:
			out := make(ir.IRArray, 0, len(e)+len(u))
			out = append(out, e.Clone()...)
			return append(out, u.Clone()...)
		case MergeButKeepArrays:
			return e.Clone()
		}
	}
	return ir.Clone(uv)
}
