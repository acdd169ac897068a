package querymongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// isoDatePrefix admits strings that start like an ISO-8601 date.
const isoDatePrefix = `^\d{4}-\d{2}-\d{2}`

// splitDated separates range conditions with a resolved date operand from
// the rest. Payload dates are JSON strings, so dated conditions compare
// parsed instants through $expr instead of ordering raw text.
func splitDated(conds []queryir.Condition) (plain, dated []queryir.Condition) {
	for _, c := range conds {
		if c.Op.IsRange() && c.Operand.IsTime {
			dated = append(dated, c)
		} else {
			plain = append(plain, c)
		}
	}
	return plain, dated
}

// parsedDate is the aggregation expression for the value at ref as a date.
// It is null unless the value is a string that parses as ISO-8601.
func parsedDate(ref string) bson.D {
	isDateString := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: ref}}, "string"}}},
		bson.D{{Key: "$regexMatch", Value: bson.D{{Key: "input", Value: ref}, {Key: "regex", Value: isoDatePrefix}}}},
	}}}
	parse := bson.D{{Key: "$dateFromString", Value: bson.D{
		{Key: "dateString", Value: ref},
		{Key: "onError", Value: nil},
	}}}
	return bson.D{{Key: "$cond", Value: bson.A{isDateString, parse, nil}}}
}

// datedExpr is true when the value at ref is a date satisfying every
// condition.
func datedExpr(ref string, conds []queryir.Condition) bson.D {
	checks := bson.A{bson.D{{Key: "$ne", Value: bson.A{"$$d", nil}}}}
	for _, c := range conds {
		checks = append(checks, bson.D{{Key: mongoOps[c.Op], Value: bson.A{"$$d", primitive.NewDateTimeFromTime(c.Operand.Time)}}})
	}
	return bson.D{{Key: "$let", Value: bson.D{
		{Key: "vars", Value: bson.D{{Key: "d", Value: parsedDate(ref)}}},
		{Key: "in", Value: bson.D{{Key: "$and", Value: checks}}},
	}}}
}

// datedFilter matches documents whose payload value at key satisfies conds.
func datedFilter(key string, conds []queryir.Condition) bson.D {
	return bson.D{{Key: "$expr", Value: datedExpr("$"+key, conds)}}
}

// datedElementFilter matches documents where one element of the array at
// arrKey satisfies every dated condition, at elem inside the element.
func datedElementFilter(arrKey, elem string, conds []queryir.Condition) bson.D {
	arr := "$" + arrKey
	item := "$$e"
	if elem != "" {
		item += "." + elem
	}
	input := bson.D{{Key: "$cond", Value: bson.A{bson.D{{Key: "$isArray", Value: arr}}, arr, bson.A{}}}}
	return bson.D{{Key: "$expr", Value: bson.D{{Key: "$anyElementTrue", Value: bson.A{
		bson.D{{Key: "$map", Value: bson.D{
			{Key: "input", Value: input},
			{Key: "as", Value: "e"},
			{Key: "in", Value: datedExpr(item, conds)},
		}}},
	}}}}}
}
