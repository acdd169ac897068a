package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePath(t *testing.T) {
	assert.Nil(t, ParsePath(""))
	assert.Equal(t, Path{"a", "b"}, ParsePath("a..b"))
	assert.Equal(t, "a.[].b", ParsePath("a.[].b").String())
}

func TestPathSplitArray(t *testing.T) {
	tests := []struct {
		path     string
		wantArr  Path
		wantElem Path
		wantOK   bool
	}{
		{"tags", Path{"tags"}, nil, false},
		{"tags.[]", Path{"tags"}, nil, true},
		{"items.[].name", Path{"items"}, Path{"name"}, true},
		{"a.b.[].c.[].d", Path{"a", "b"}, Path{"c", "d"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			arr, elem, ok := ParsePath(tt.path).SplitArray()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantArr, arr)
			assert.Equal(t, tt.wantElem, elem)
		})
	}
}

func TestGet(t *testing.T) {
	obj := IRObject{
		"a":    IRObject{"b": IRNumber(1)},
		"list": IRArray{IRString("x"), IRObject{"y": IRBool(true)}},
	}

	v, ok := obj.Get("a.b")
	assert.True(t, ok)
	assert.Equal(t, IRNumber(1), v)

	v, ok = obj.Get("list.1.y")
	assert.True(t, ok)
	assert.Equal(t, IRBool(true), v)

	_, ok = obj.Get("a.c")
	assert.False(t, ok)

	_, ok = obj.Get("list.9")
	assert.False(t, ok)

	_, ok = obj.Get("a.b.c")
	assert.False(t, ok)
}

func TestSet(t *testing.T) {
	obj := IRObject{"a": IRString("scalar")}
	obj.Set(ParsePath("a.b.c"), IRNumber(3))

	v, ok := obj.Get("a.b.c")
	assert.True(t, ok)
	assert.Equal(t, IRNumber(3), v)
}
