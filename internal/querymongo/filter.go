package querymongo

import (
	"go.mongodb.org/mongo-driver/bson"
)

// PayloadField is the document key holding objRecord.
const PayloadField = "objRecord"

// And conjoins filters. Empty filters are dropped; a single remaining
// filter is returned unwrapped.
func And(filters ...bson.D) bson.D {
	var kept bson.A
	var last bson.D
	for _, f := range filters {
		if len(f) == 0 {
			continue
		}
		kept = append(kept, f)
		last = f
	}
	switch len(kept) {
	case 0:
		return bson.D{}
	case 1:
		return last
	}
	return bson.D{{Key: "$and", Value: kept}}
}

// Or unions filters. Empty filters are dropped.
func Or(filters ...bson.D) bson.D {
	var kept bson.A
	var last bson.D
	for _, f := range filters {
		if len(f) == 0 {
			continue
		}
		kept = append(kept, f)
		last = f
	}
	switch len(kept) {
	case 0:
		return matchNone()
	case 1:
		return last
	}
	return bson.D{{Key: "$or", Value: kept}}
}

// matchNone is a filter no document satisfies.
func matchNone() bson.D {
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{}}}}}
}

// AppFilter restricts documents to one tenant.
func AppFilter(appID string) bson.D {
	return bson.D{{Key: "appId", Value: appID}}
}

// TagFilter restricts documents to one entity tag.
func TagFilter(tag string) bson.D {
	return bson.D{{Key: "tag", Value: tag}}
}

// LiveFilter selects documents that are not soft-deleted.
func LiveFilter() bson.D {
	return bson.D{{Key: "deletedAt", Value: nil}}
}

// DeletedFilter selects soft-deleted documents.
func DeletedFilter() bson.D {
	return bson.D{{Key: "deletedAt", Value: bson.D{{Key: "$ne", Value: nil}}}}
}

// IDsFilter selects the given ids.
func IDsFilter(ids []string) bson.D {
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: stringsA(ids)}}}}
}

// ExcludeIDsFilter excludes the given ids. No ids yields an empty filter.
func ExcludeIDsFilter(ids []string) bson.D {
	if len(ids) == 0 {
		return bson.D{}
	}
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$nin", Value: stringsA(ids)}}}}
}

func stringsA(ss []string) bson.A {
	a := make(bson.A, len(ss))
	for i, s := range ss {
		a[i] = s
	}
	return a
}
