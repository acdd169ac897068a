package fields

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

func TestExtract(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	rec := ir.IRObject{
		"name":  ir.IRString("widget"),
		"price": ir.IRNumber(5),
		"meta":  ir.IRObject{"color": ir.IRString("red"), "weight": ir.IRNull{}},
		"tags":  ir.IRArray{ir.IRString("a"), ir.IRNumber(1)},
		"items": ir.IRArray{
			ir.IRObject{"sku": ir.IRString("A"), "qty": ir.IRNumber(1)},
			ir.IRObject{"sku": ir.IRNumber(7)},
		},
		"grid":  ir.IRArray{ir.IRArray{ir.IRNumber(1)}},
		"empty": ir.IRArray{},
		"blank": ir.IRObject{},
	}

	got := Extract("app-1", "g", "item", rec, now)

	type row struct {
		path  string
		types []string
		array bool
	}
	want := []row{
		{"grid", []string{ir.KindArray}, true},
		{"items.[].qty", []string{ir.KindNumber}, true},
		{"items.[].sku", []string{ir.KindNumber, ir.KindString}, true},
		{"meta.color", []string{ir.KindString}, false},
		{"meta.weight", []string{ir.KindNull}, false},
		{"name", []string{ir.KindString}, false},
		{"price", []string{ir.KindNumber}, false},
		{"tags", []string{ir.KindNumber, ir.KindString}, true},
	}

	if assert.Len(t, got, len(want)) {
		for i, w := range want {
			assert.Equal(t, w.path, got[i].Path)
			assert.Equal(t, w.types, got[i].ValueTypes, w.path)
			assert.Equal(t, w.array, got[i].IsArrayCompressed, w.path)
			assert.Equal(t, "app-1", got[i].AppID)
			assert.Equal(t, "g", got[i].GroupID)
			assert.Equal(t, "item", got[i].Tag)
			assert.Equal(t, now, got[i].CreatedAt)
		}
	}
}

func TestExtract_Empty(t *testing.T) {
	assert.Empty(t, Extract("a", "", "t", nil, time.Time{}))
	assert.Empty(t, Extract("a", "", "t", ir.IRObject{}, time.Time{}))
}

func TestMergeField(t *testing.T) {
	prev := ir.ObjField{Path: "p", ValueTypes: []string{ir.KindString}}

	assert.False(t, mergeField(&prev, ir.ObjField{ValueTypes: []string{ir.KindString}}))
	assert.True(t, mergeField(&prev, ir.ObjField{ValueTypes: []string{ir.KindNumber}}))
	assert.Equal(t, []string{ir.KindNumber, ir.KindString}, prev.ValueTypes)
	assert.True(t, mergeField(&prev, ir.ObjField{IsArrayCompressed: true}))
	assert.False(t, mergeField(&prev, ir.ObjField{IsArrayCompressed: false}))
	assert.True(t, prev.IsArrayCompressed)
}
