package querymongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

var refTime = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func compile(t *testing.T, q queryir.Query, fields queryir.FieldSet) bson.D {
	t.Helper()
	f, err := NewCompiler().CompileFilter(q, refTime, fields)
	require.NoError(t, err)
	return f
}

func TestCompileFilter_Empty(t *testing.T) {
	assert.Equal(t, bson.D{}, compile(t, queryir.Query{}, nil))
}

func TestCompileFilter_TenantOnly(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "appId", Value: "app-1"}}, compile(t, queryir.Query{AppID: "app-1"}, nil))
}

func TestCompileFilter_Between(t *testing.T) {
	q := queryir.Query{
		AppID: "app-1",
		PartQuery: &queryir.LogicalQuery{And: []queryir.QueryItem{
			{Field: "price", Op: queryir.OpBetween, Value: ir.IRArray{ir.IRNumber(1), ir.IRNumber(10)}},
		}},
	}

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "appId", Value: "app-1"}},
		bson.D{{Key: "objRecord.price", Value: bson.D{
			{Key: "$gte", Value: float64(1)},
			{Key: "$lte", Value: float64(10)},
		}}},
	}}}
	assert.Equal(t, want, compile(t, q, nil))
}

func TestCompileFilter_AndOr(t *testing.T) {
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{
		And: []queryir.QueryItem{
			{Field: "status", Op: queryir.OpEq, Value: ir.IRString("active")},
			{Field: "kind", Op: queryir.OpEq, Value: ir.IRString("a")},
		},
		Or: []queryir.QueryItem{
			{Field: "priority", Op: queryir.OpGt, Value: ir.IRNumber(5)},
			{Field: "owner", Op: queryir.OpEq, Value: ir.IRString("bob")},
		},
	}}

	want := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "objRecord.status", Value: bson.D{{Key: "$eq", Value: "active"}}}},
			bson.D{{Key: "objRecord.kind", Value: bson.D{{Key: "$eq", Value: "a"}}}},
		}}},
		bson.D{{Key: "objRecord.priority", Value: bson.D{{Key: "$gt", Value: float64(5)}}}},
		bson.D{{Key: "objRecord.owner", Value: bson.D{{Key: "$eq", Value: "bob"}}}},
	}}}
	assert.Equal(t, want, compile(t, q, nil))
}

func TestCompileFilter_ArrayMembership(t *testing.T) {
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{And: []queryir.QueryItem{
		{Field: "tags.[]", Op: queryir.OpEq, Value: ir.IRString("red")},
		{Field: "items.[].sku", Op: queryir.OpNotIn, Value: ir.IRArray{ir.IRString("a")}},
		{Field: "items.[].qty", Op: queryir.OpGte, Value: ir.IRNumber(2)},
		{Field: "items.[].qty", Op: queryir.OpLt, Value: ir.IRNumber(5)},
	}}}

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "objRecord.tags", Value: bson.D{{Key: "$elemMatch", Value: bson.D{{Key: "$eq", Value: "red"}}}}}},
		bson.D{{Key: "objRecord.items", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "sku", Value: bson.D{{Key: "$in", Value: bson.A{"a"}}}},
		}}}}}}},
		bson.D{{Key: "objRecord.items", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "qty", Value: bson.D{{Key: "$gte", Value: float64(2)}, {Key: "$lt", Value: float64(5)}}},
		}}}}},
	}}}
	assert.Equal(t, want, compile(t, q, nil))
}

func TestCompileFilter_ArrayCompressedExists(t *testing.T) {
	fields := queryir.NewFieldSet([]ir.ObjField{{Path: "tags", IsArrayCompressed: true}})
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{And: []queryir.QueryItem{
		{Field: "tags", Op: queryir.OpExists, Value: ir.IRBool(true)},
	}}}

	want := bson.D{{Key: "objRecord.tags.0", Value: bson.D{{Key: "$exists", Value: true}}}}
	assert.Equal(t, want, compile(t, q, fields))
}

func TestCompileFilter_Like(t *testing.T) {
	yes := true
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{Or: []queryir.QueryItem{
		{Field: "name", Op: queryir.OpLike, Value: ir.IRString("a.b*")},
		{Field: "name", Op: queryir.OpLike, Value: ir.IRString("Go"), CaseSensitive: &yes},
	}}}

	want := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "objRecord.name", Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: `a\.b\*`, Options: "i"}}}}},
		bson.D{{Key: "objRecord.name", Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: "Go"}}}}},
	}}}
	assert.Equal(t, want, compile(t, q, nil))
}

// parsedAt is the expression for ref parsed as an ISO-8601 date, or null.
func parsedAt(ref string) bson.D {
	return bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: ref}}, "string"}}},
			bson.D{{Key: "$regexMatch", Value: bson.D{{Key: "input", Value: ref}, {Key: "regex", Value: `^\d{4}-\d{2}-\d{2}`}}}},
		}}},
		bson.D{{Key: "$dateFromString", Value: bson.D{{Key: "dateString", Value: ref}, {Key: "onError", Value: nil}}}},
		nil,
	}}}
}

func dateOf(s string) primitive.DateTime {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return primitive.NewDateTimeFromTime(t)
}

func TestCompileFilter_DurationOnPayloadComparesInstants(t *testing.T) {
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{And: []queryir.QueryItem{
		{Field: "expiresAt", Op: queryir.OpLt, Value: ir.IRString("1d")},
	}}}

	want := bson.D{{Key: "$expr", Value: bson.D{{Key: "$let", Value: bson.D{
		{Key: "vars", Value: bson.D{{Key: "d", Value: parsedAt("$objRecord.expiresAt")}}},
		{Key: "in", Value: bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$ne", Value: bson.A{"$$d", nil}}},
			bson.D{{Key: "$lt", Value: bson.A{"$$d", dateOf("2024-06-14T12:00:00Z")}}},
		}}}},
	}}}}}
	assert.Equal(t, want, compile(t, q, nil))
}

func TestCompileFilter_ISOBetweenOnPayloadKeepsOtherConditions(t *testing.T) {
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{And: []queryir.QueryItem{
		{Field: "when", Op: queryir.OpBetween, Value: ir.IRArray{ir.IRString("2024-01-01T00:00:00Z"), ir.IRString("2024-01-01")}},
		{Field: "when", Op: queryir.OpExists, Value: ir.IRBool(true)},
	}}}

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "objRecord.when", Value: bson.D{{Key: "$exists", Value: true}}}},
		bson.D{{Key: "$expr", Value: bson.D{{Key: "$let", Value: bson.D{
			{Key: "vars", Value: bson.D{{Key: "d", Value: parsedAt("$objRecord.when")}}},
			{Key: "in", Value: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "$ne", Value: bson.A{"$$d", nil}}},
				bson.D{{Key: "$gte", Value: bson.A{"$$d", dateOf("2024-01-01T00:00:00Z")}}},
				bson.D{{Key: "$lte", Value: bson.A{"$$d", dateOf("2024-01-01T00:00:00Z")}}},
			}}}},
		}}}}},
	}}}
	assert.Equal(t, want, compile(t, q, nil))
}

func TestCompileFilter_DatedArrayElement(t *testing.T) {
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{And: []queryir.QueryItem{
		{Field: "visits.[].at", Op: queryir.OpGte, Value: ir.IRString("2024-01-01T00:00:00Z")},
	}}}

	want := bson.D{{Key: "$expr", Value: bson.D{{Key: "$anyElementTrue", Value: bson.A{
		bson.D{{Key: "$map", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$isArray", Value: "$objRecord.visits"}}, "$objRecord.visits", bson.A{},
			}}}},
			{Key: "as", Value: "e"},
			{Key: "in", Value: bson.D{{Key: "$let", Value: bson.D{
				{Key: "vars", Value: bson.D{{Key: "d", Value: parsedAt("$$e.at")}}},
				{Key: "in", Value: bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$ne", Value: bson.A{"$$d", nil}}},
					bson.D{{Key: "$gte", Value: bson.A{"$$d", dateOf("2024-01-01T00:00:00Z")}}},
				}}}},
			}}}},
		}}},
	}}}}}
	assert.Equal(t, want, compile(t, q, nil))
}

func TestCompileFilter_Meta(t *testing.T) {
	q := queryir.Query{
		AppID: "app-1",
		MetaQuery: queryir.MetaQuery{
			queryir.FieldTag:       queryir.MetaOps{queryir.OpIn: ir.IRArray{ir.IRString("a"), ir.IRString("b")}, queryir.OpEq: ir.IRString("z")},
			queryir.FieldCreatedAt: queryir.MetaOps{queryir.OpGte: ir.IRNumber(1700000000000)},
			queryir.FieldID:        queryir.MetaOps{queryir.OpNeq: ir.IRString("x")},
		},
		TopLevelFields: queryir.MetaQuery{queryir.FieldDeletedAt: nil},
	}

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "appId", Value: "app-1"}},
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: time.UnixMilli(1700000000000).UTC()}}}},
			bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: "x"}}}},
			bson.D{{Key: "tag", Value: bson.D{{Key: "$in", Value: bson.A{"a", "b"}}}}},
		}}},
	}}}
	assert.Equal(t, want, compile(t, q, nil))
}

func TestCompileFilter_MetaDeletedAtNull(t *testing.T) {
	q := queryir.Query{MetaQuery: queryir.MetaQuery{queryir.FieldDeletedAt: queryir.MetaOps{queryir.OpEq: ir.IRNull{}}}}
	assert.Equal(t, bson.D{{Key: "deletedAt", Value: bson.D{{Key: "$eq", Value: nil}}}}, compile(t, q, nil))
}

func TestCompileFilter_ObjectOperandSorted(t *testing.T) {
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{And: []queryir.QueryItem{
		{Field: "dims", Op: queryir.OpEq, Value: ir.IRObject{"w": ir.IRNumber(2), "h": ir.IRNumber(1)}},
	}}}
	want := bson.D{{Key: "objRecord.dims", Value: bson.D{{Key: "$eq", Value: bson.D{
		{Key: "h", Value: float64(1)},
		{Key: "w", Value: float64(2)},
	}}}}}
	assert.Equal(t, want, compile(t, q, nil))
}

func TestCompileFilter_RangeRejectsArray(t *testing.T) {
	q := queryir.Query{PartQuery: &queryir.LogicalQuery{And: []queryir.QueryItem{
		{Field: "a", Op: queryir.OpGt, Value: ir.IRArray{}},
	}}}
	_, err := NewCompiler().CompileFilter(q, refTime, nil)
	assert.True(t, queryir.IsInvalidValue(err))
}

func TestCompileSort(t *testing.T) {
	c := NewCompiler()

	sort, err := c.CompileSort([]queryir.SortItem{
		{Field: "price", Direction: queryir.Asc},
		{Field: "tags.[]", Direction: queryir.Desc},
		{Field: queryir.FieldUpdatedAt, Direction: queryir.Desc},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "objRecord.price", Value: 1},
		{Key: "updatedAt", Value: -1},
		{Key: "_id", Value: -1},
	}, sort)

	sort, err = c.CompileSort(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, sort)
}

func TestCompilePagination(t *testing.T) {
	c := NewCompiler()
	assert.Equal(t, Pagination{Skip: 40, Limit: 20}, c.CompilePagination(2, 20))
	assert.Equal(t, Pagination{}, c.CompilePagination(2, 0))
}

func TestFilterHelpers(t *testing.T) {
	assert.Equal(t, bson.D{}, And(bson.D{}, nil))
	assert.Equal(t, TagFilter("x"), And(bson.D{}, TagFilter("x")))
	assert.Equal(t, bson.D{}, ExcludeIDsFilter(nil))
	assert.Equal(t,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$nin", Value: bson.A{"a"}}}}},
		ExcludeIDsFilter([]string{"a"}))
}

func TestBSONRoundTrip(t *testing.T) {
	obj := ir.IRObject{
		"s": ir.IRString("x"),
		"n": ir.IRNumber(1.5),
		"b": ir.IRBool(true),
		"z": ir.IRNull{},
		"l": ir.IRArray{ir.IRNumber(1), ir.IRObject{"k": ir.IRString("v")}},
	}

	data, err := bson.Marshal(ObjectToBSON(obj))
	require.NoError(t, err)

	var decoded bson.D
	require.NoError(t, bson.Unmarshal(data, &decoded))

	back, err := FromBSON(decoded)
	require.NoError(t, err)
	assert.True(t, ir.Equal(obj, back), "got %#v", back)
}

func TestFromBSON_Scalars(t *testing.T) {
	v, err := FromBSON(int32(3))
	require.NoError(t, err)
	assert.Equal(t, ir.IRNumber(3), v)

	v, err = FromBSON(primitive.NewDateTimeFromTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("2024-01-01T00:00:00.000Z"), v)

	_, err = FromBSON(struct{}{})
	assert.Error(t, err)
}
