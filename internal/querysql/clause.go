package querysql

import (
	"encoding/json"
	"strings"
)

// Clause is a parameterized SQL fragment. Values are never interpolated;
// every operand, including JSON paths, is bound through Args.
type Clause struct {
	SQL  string
	Args []any
}

const (
	matchAllSQL  = "1 = 1"
	matchNoneSQL = "1 = 0"
)

// MatchAll is the filter used when a query has no clauses at all.
func MatchAll() Clause { return Clause{SQL: matchAllSQL} }

// MatchNone matches no rows.
func MatchNone() Clause { return Clause{SQL: matchNoneSQL} }

// IsEmpty reports whether the clause has no SQL.
func (c Clause) IsEmpty() bool { return c.SQL == "" }

func (c Clause) isMatchAll() bool { return c.SQL == matchAllSQL }

// And conjoins clauses. Empty and match-all clauses are dropped; a single
// remaining clause is returned unwrapped.
func And(clauses ...Clause) Clause {
	var kept []Clause
	for _, c := range clauses {
		if c.IsEmpty() || c.isMatchAll() {
			continue
		}
		kept = append(kept, c)
	}
	return join(kept, " AND ", MatchAll())
}

// Or unions clauses. An empty union matches nothing.
func Or(clauses ...Clause) Clause {
	var kept []Clause
	for _, c := range clauses {
		if !c.IsEmpty() {
			kept = append(kept, c)
		}
	}
	return join(kept, " OR ", MatchNone())
}

func join(clauses []Clause, sep string, empty Clause) Clause {
	switch len(clauses) {
	case 0:
		return empty
	case 1:
		return clauses[0]
	}
	parts := make([]string, len(clauses))
	var args []any
	for i, c := range clauses {
		parts[i] = c.SQL
		args = append(args, c.Args...)
	}
	return Clause{SQL: "(" + strings.Join(parts, sep) + ")", Args: args}
}

// Not negates a predicate. SQL NULL counts as false, so a comparison
// against a missing path negates to true.
func Not(c Clause) Clause {
	switch c.SQL {
	case matchAllSQL:
		return MatchNone()
	case matchNoneSQL:
		return MatchAll()
	}
	return Clause{SQL: "NOT COALESCE(" + c.SQL + ", 0)", Args: c.Args}
}

// AppClause restricts rows to one tenant.
func AppClause(appID string) Clause {
	return Clause{SQL: "app_id = ?", Args: []any{appID}}
}

// TagClause restricts rows to one entity tag.
func TagClause(tag string) Clause {
	return Clause{SQL: "tag = ?", Args: []any{tag}}
}

// LiveClause selects records that are not soft-deleted.
func LiveClause() Clause { return Clause{SQL: "deleted_at IS NULL"} }

// DeletedClause selects soft-deleted records.
func DeletedClause() Clause { return Clause{SQL: "deleted_at IS NOT NULL"} }

// IDsClause selects the given ids. The list is bound as one JSON array
// so the statement shape does not depend on its length.
func IDsClause(ids []string) Clause {
	if len(ids) == 0 {
		return MatchNone()
	}
	return Clause{SQL: "id IN (SELECT value FROM json_each(?))", Args: []any{idsJSON(ids)}}
}

// ExcludeIDsClause excludes the given ids.
func ExcludeIDsClause(ids []string) Clause {
	if len(ids) == 0 {
		return Clause{}
	}
	return Clause{SQL: "id NOT IN (SELECT value FROM json_each(?))", Args: []any{idsJSON(ids)}}
}

func idsJSON(ids []string) string {
	// Marshaling a []string cannot fail.
	data, _ := json.Marshal(ids)
	return string(data)
}
