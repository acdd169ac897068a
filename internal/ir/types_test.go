package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFieldsToIndex(t *testing.T) {
	assert.Nil(t, NormalizeFieldsToIndex(nil))
	assert.Nil(t, NormalizeFieldsToIndex([]string{}))
	assert.Equal(t, []string{"a", "b"}, NormalizeFieldsToIndex([]string{"a", "b", "a"}))
}

func TestObjFieldIsNumeric(t *testing.T) {
	assert.True(t, ObjField{ValueTypes: []string{KindNumber}}.IsNumeric())
	assert.False(t, ObjField{ValueTypes: []string{KindNumber, KindString}}.IsNumeric())
	assert.False(t, ObjField{}.IsNumeric())
}
