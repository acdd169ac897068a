package querymongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// compileMetaGroup conjoins the comparisons of one metaQuery or
// topLevelFields block.
func compileMetaGroup(cmps []queryir.MetaComparison) (bson.D, error) {
	filters := make([]bson.D, 0, len(cmps))
	for _, mc := range cmps {
		ops := make(bson.D, 0, len(mc.Conds))
		for _, c := range mc.Conds {
			e, err := metaElem(mc.Field, c)
			if err != nil {
				return nil, err
			}
			ops = append(ops, e)
		}
		filters = append(filters, bson.D{{Key: Key(mc.Field), Value: ops}})
	}
	return And(filters...), nil
}

// metaElem renders one structural condition. Dates are BSON dates.
func metaElem(field string, c queryir.Condition) (bson.E, error) {
	op, ok := mongoOps[c.Op]
	if !ok {
		return bson.E{}, &queryir.QueryError{
			Code:    queryir.ErrCodeUnknownOperator,
			Message: fmt.Sprintf("unsupported operator %q", c.Op),
			Field:   field,
			Op:      c.Op,
		}
	}
	if c.Op == queryir.OpIn || c.Op == queryir.OpNotIn {
		list := make(bson.A, len(c.List))
		for i, o := range c.List {
			v, err := metaValue(field, c.Op, o)
			if err != nil {
				return bson.E{}, err
			}
			list[i] = v
		}
		return bson.E{Key: op, Value: list}, nil
	}
	if c.Op.IsRange() && ir.IsNull(c.Operand.Value) && !c.Operand.IsTime {
		return bson.E{}, &queryir.QueryError{
			Code:    queryir.ErrCodeInvalidValue,
			Message: "cannot order by a null operand",
			Field:   field,
			Op:      c.Op,
		}
	}
	v, err := metaValue(field, c.Op, c.Operand)
	if err != nil {
		return bson.E{}, err
	}
	return bson.E{Key: op, Value: v}, nil
}

func metaValue(field string, op queryir.Op, o queryir.Operand) (any, error) {
	if o.IsTime {
		return o.Time, nil
	}
	switch v := o.Value.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(v), nil
	case ir.IRNumber:
		return float64(v), nil
	case ir.IRBool:
		return bool(v), nil
	default:
		return nil, &queryir.QueryError{
			Code:    queryir.ErrCodeInvalidValue,
			Message: fmt.Sprintf("cannot compare a structural field with a %s operand", ir.Kind(v)),
			Field:   field,
			Op:      op,
		}
	}
}
