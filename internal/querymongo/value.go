package querymongo

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// ToBSON converts an IR value for storage or comparison. Objects become
// bson.D with sorted keys so that embedded-document equality does not
// depend on map iteration order.
func ToBSON(v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRBool:
		return bool(val)
	case ir.IRNumber:
		return float64(val)
	case ir.IRString:
		return string(val)
	case ir.IRArray:
		out := make(bson.A, len(val))
		for i, elem := range val {
			out[i] = ToBSON(elem)
		}
		return out
	case ir.IRObject:
		return ObjectToBSON(val)
	default:
		return nil
	}
}

// ObjectToBSON converts an IR object to a sorted bson.D.
func ObjectToBSON(obj ir.IRObject) bson.D {
	out := make(bson.D, 0, len(obj))
	for _, k := range obj.SortedKeys() {
		out = append(out, bson.E{Key: k, Value: ToBSON(obj[k])})
	}
	return out
}

// FromBSON converts a decoded BSON value back into the IR. Dates become
// ISO-8601 strings and ObjectIDs their hex form.
func FromBSON(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return ir.IRNull{}, nil
	case bool:
		return ir.IRBool(val), nil
	case int32:
		return ir.IRNumber(val), nil
	case int64:
		return ir.IRNumber(val), nil
	case float64:
		return ir.IRNumber(val), nil
	case string:
		return ir.IRString(val), nil
	case primitive.DateTime:
		return ir.IRString(ir.FormatTime(val.Time())), nil
	case time.Time:
		return ir.IRString(ir.FormatTime(val)), nil
	case primitive.ObjectID:
		return ir.IRString(val.Hex()), nil
	case primitive.Decimal128:
		n, err := strconv.ParseFloat(val.String(), 64)
		if err != nil {
			return ir.IRString(val.String()), nil
		}
		return ir.IRNumber(n), nil
	case bson.A:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromBSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = irElem
		}
		return out, nil
	case bson.D:
		out := make(ir.IRObject, len(val))
		for _, e := range val {
			irElem, err := FromBSON(e.Value)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", e.Key, err)
			}
			out[e.Key] = irElem
		}
		return out, nil
	case bson.M:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromBSON(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = irElem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported BSON type: %T", v)
	}
}
