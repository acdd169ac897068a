package queryir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

func TestQueryUnmarshal(t *testing.T) {
	data := `{
		"appId": "app-1",
		"partQuery": {
			"and": [
				{"field": "price", "op": "between", "value": [1, 10]},
				{"field": "name", "op": "like", "value": "widget", "caseSensitive": true}
			],
			"or": [{"field": "tags", "op": "in", "value": ["a", "b"]}]
		},
		"metaQuery": {"createdBy": {"eq": "user-1"}},
		"topLevelFields": {"deletedAt": null}
	}`

	var q Query
	require.NoError(t, json.Unmarshal([]byte(data), &q))

	assert.Equal(t, "app-1", q.AppID)
	require.NotNil(t, q.PartQuery)
	require.Len(t, q.PartQuery.And, 2)
	assert.Equal(t, OpBetween, q.PartQuery.And[0].Op)
	assert.Equal(t, ir.IRArray{ir.IRNumber(1), ir.IRNumber(10)}, q.PartQuery.And[0].Value)
	assert.True(t, q.PartQuery.And[1].IsCaseSensitive())
	assert.Equal(t, OpIn, q.PartQuery.Or[0].Op)
	assert.Equal(t, ir.IRString("user-1"), q.MetaQuery["createdBy"][OpEq])

	ops, present := q.TopLevelFields["deletedAt"]
	assert.True(t, present)
	assert.Nil(t, ops)
	assert.False(t, q.NamesDeletedAt())
}

func TestQueryItem_MissingValueIsNull(t *testing.T) {
	var item QueryItem
	require.NoError(t, json.Unmarshal([]byte(`{"field":"a","op":"eq"}`), &item))
	assert.Equal(t, ir.IRNull{}, item.Value)
	assert.False(t, item.IsCaseSensitive())
}

func TestQueryItem_MarshalRoundTrip(t *testing.T) {
	yes := true
	item := QueryItem{Field: "a.b", Op: OpLike, Value: ir.IRString("x"), CaseSensitive: &yes}

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"field":"a.b","op":"like","value":"x","caseSensitive":true}`, string(data))

	var back QueryItem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, item, back)
}

func TestMetaOps_Marshal(t *testing.T) {
	data, err := json.Marshal(MetaOps{OpGte: ir.IRNumber(5), OpEq: ir.IRNull{}})
	require.NoError(t, err)
	assert.Equal(t, `{"eq":null,"gte":5}`, string(data))
}

func TestNamesDeletedAt(t *testing.T) {
	q := Query{TopLevelFields: MetaQuery{FieldDeletedAt: MetaOps{OpNeq: ir.IRNull{}}}}
	assert.True(t, q.NamesDeletedAt())

	q = Query{MetaQuery: MetaQuery{FieldDeletedAt: MetaOps{OpNeq: ir.IRNull{}}}}
	assert.False(t, q.NamesDeletedAt())
}

func TestPageFromOneBased(t *testing.T) {
	assert.Equal(t, 0, PageFromOneBased(0))
	assert.Equal(t, 0, PageFromOneBased(1))
	assert.Equal(t, 4, PageFromOneBased(5))
	assert.Equal(t, 0, PageFromOneBased(-3))
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(0, 20))
	assert.Equal(t, 40, Offset(2, 20))
	assert.Equal(t, 0, Offset(3, 0))
}
