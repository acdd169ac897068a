package queryir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

func TestPlanFilter_EmptyQuery(t *testing.T) {
	plan, err := PlanFilter(Query{}, refTime, nil)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())

	plan, err = PlanFilter(Query{AppID: "app"}, refTime, nil)
	require.NoError(t, err)
	assert.False(t, plan.IsEmpty())
	assert.True(t, plan.Part.IsEmpty())
}

func TestPlanFilter_GroupsAndItemsByField(t *testing.T) {
	q := Query{PartQuery: &LogicalQuery{And: []QueryItem{
		{Field: "price", Op: OpGt, Value: ir.IRNumber(1)},
		{Field: "name", Op: OpEq, Value: ir.IRString("a")},
		{Field: "price", Op: OpLt, Value: ir.IRNumber(10)},
		{Field: "price", Op: OpGt, Value: ir.IRNumber(2)},
	}}}

	plan, err := PlanFilter(q, refTime, nil)
	require.NoError(t, err)
	require.Len(t, plan.Part.And, 2)

	price := plan.Part.And[0]
	assert.Equal(t, "price", price.Field)
	require.Len(t, price.Conds, 2)
	assert.Equal(t, OpGt, price.Conds[0].Op)
	assert.Equal(t, Literal(ir.IRNumber(2)), price.Conds[0].Operand, "last value wins")
	assert.Equal(t, OpLt, price.Conds[1].Op)

	assert.Equal(t, "name", plan.Part.And[1].Field)
}

func TestPlanFilter_OrItemsStayIsolated(t *testing.T) {
	q := Query{PartQuery: &LogicalQuery{
		And: []QueryItem{{Field: "a", Op: OpEq, Value: ir.IRNumber(1)}},
		Or: []QueryItem{
			{Field: "b", Op: OpEq, Value: ir.IRNumber(2)},
			{Field: "b", Op: OpEq, Value: ir.IRNumber(3)},
		},
	}}

	plan, err := PlanFilter(q, refTime, nil)
	require.NoError(t, err)
	assert.Len(t, plan.Part.And, 1)
	require.Len(t, plan.Part.Or, 2)
	assert.Equal(t, Literal(ir.IRNumber(2)), plan.Part.Or[0].Conds[0].Operand)
	assert.Equal(t, Literal(ir.IRNumber(3)), plan.Part.Or[1].Conds[0].Operand)
}

func TestPlanFilter_BetweenExpands(t *testing.T) {
	q := Query{PartQuery: &LogicalQuery{And: []QueryItem{
		{Field: "when", Op: OpBetween, Value: ir.IRArray{ir.IRString("1d"), ir.IRString("1d")}},
	}}}

	plan, err := PlanFilter(q, refTime, nil)
	require.NoError(t, err)
	conds := plan.Part.And[0].Conds
	require.Len(t, conds, 2)
	assert.Equal(t, OpGte, conds[0].Op)
	assert.Equal(t, refTime.Add(24*time.Hour), conds[0].Operand.Time)
	assert.Equal(t, OpLte, conds[1].Op)
	assert.Equal(t, refTime.Add(-24*time.Hour), conds[1].Operand.Time)
}

func TestPlanFilter_ClassifiesArrays(t *testing.T) {
	fields := NewFieldSet([]ir.ObjField{
		{Path: "tags", IsArrayCompressed: true, ValueTypes: []string{ir.KindString}},
	})
	q := Query{PartQuery: &LogicalQuery{And: []QueryItem{
		{Field: "tags", Op: OpEq, Value: ir.IRString("x")},
		{Field: "items.[].sku", Op: OpEq, Value: ir.IRString("y")},
		{Field: "name", Op: OpEq, Value: ir.IRString("z")},
	}}}

	plan, err := PlanFilter(q, refTime, fields)
	require.NoError(t, err)

	tags := plan.Part.And[0].Class
	assert.True(t, tags.Array)
	assert.Equal(t, ir.Path{"tags"}, tags.ArrayPath)
	assert.Empty(t, tags.ElemPath)

	items := plan.Part.And[1].Class
	assert.True(t, items.Array)
	assert.Equal(t, ir.Path{"items"}, items.ArrayPath)
	assert.Equal(t, ir.Path{"sku"}, items.ElemPath)

	assert.False(t, plan.Part.And[2].Class.Array)
}

func TestPlanFilter_MetaInSuppressesEq(t *testing.T) {
	q := Query{MetaQuery: MetaQuery{
		FieldTag: MetaOps{
			OpEq:  ir.IRString("a"),
			OpNeq: ir.IRString("b"),
			OpIn:  ir.IRArray{ir.IRString("c"), ir.IRString("d")},
		},
	}}

	plan, err := PlanFilter(q, refTime, nil)
	require.NoError(t, err)
	require.Len(t, plan.Meta, 1)
	require.Len(t, plan.Meta[0].Conds, 1)
	assert.Equal(t, OpIn, plan.Meta[0].Conds[0].Op)
	assert.Len(t, plan.Meta[0].Conds[0].List, 2)
}

func TestPlanFilter_MetaDatesCoerced(t *testing.T) {
	q := Query{MetaQuery: MetaQuery{
		FieldCreatedAt: MetaOps{OpGte: ir.IRString("7d"), OpLt: ir.IRNumber(1700000000000)},
		FieldCreatedBy: MetaOps{OpEq: ir.IRString("7d")},
	}}

	plan, err := PlanFilter(q, refTime, nil)
	require.NoError(t, err)
	require.Len(t, plan.Meta, 2)

	created := plan.Meta[0]
	assert.Equal(t, FieldCreatedAt, created.Field)
	assert.Equal(t, MetaDate, created.Kind)
	assert.Equal(t, OpGte, created.Conds[0].Op)
	assert.Equal(t, refTime.Add(7*24*time.Hour), created.Conds[0].Operand.Time)
	assert.Equal(t, OpLt, created.Conds[1].Op)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), created.Conds[1].Operand.Time)

	by := plan.Meta[1]
	assert.Equal(t, FieldCreatedBy, by.Field)
	assert.Equal(t, Literal(ir.IRString("7d")), by.Conds[0].Operand)
}

func TestPlanFilter_TopLevelNullDeletedAtSkipped(t *testing.T) {
	q := Query{TopLevelFields: MetaQuery{FieldDeletedAt: nil}}

	plan, err := PlanFilter(q, refTime, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.TopLevel)
	assert.True(t, plan.IsEmpty())
}

func TestPlanFilter_InvalidQuery(t *testing.T) {
	q := Query{MetaQuery: MetaQuery{"bogus": MetaOps{OpEq: ir.IRString("x")}}}
	_, err := PlanFilter(q, refTime, nil)
	assert.True(t, IsQueryError(err))
}

func TestPlanSort(t *testing.T) {
	fields := NewFieldSet([]ir.ObjField{{Path: "price", ValueTypes: []string{ir.KindNumber}}})

	keys, err := PlanSort([]SortItem{
		{Field: FieldUpdatedAt, Direction: Desc},
		{Field: "objRecord.price", Direction: Asc},
		{Field: "name"},
	}, fields)
	require.NoError(t, err)
	require.Len(t, keys, 3)

	assert.True(t, keys[0].Meta)
	assert.True(t, keys[0].Desc)

	assert.False(t, keys[1].Meta)
	assert.Equal(t, ir.Path{"price"}, keys[1].Path)
	require.NotNil(t, keys[1].Info)
	assert.True(t, keys[1].Info.IsNumeric())

	assert.Nil(t, keys[2].Info)
	assert.False(t, keys[2].Desc)

	_, err = PlanSort([]SortItem{{Field: "a", Direction: "up"}}, nil)
	assert.True(t, IsInvalidValue(err))
}

func TestFinishSort(t *testing.T) {
	keys := FinishSort(nil)
	assert.Equal(t, []SortKey{
		{Field: FieldCreatedAt, Meta: true, Desc: true},
		{Field: FieldID, Meta: true, Desc: true},
	}, keys)

	keys = FinishSort([]SortKey{{Field: FieldTag, Meta: true}})
	require.Len(t, keys, 2)
	assert.Equal(t, SortKey{Field: FieldID, Meta: true}, keys[1])

	withID := []SortKey{{Field: FieldID, Meta: true}}
	assert.Equal(t, withID, FinishSort(withID))
}
