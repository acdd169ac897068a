// Package queryir provides the backend-agnostic query DSL and the shared
// compiler base that both native emitters build on.
//
// ARCHITECTURE:
//
//	[Query DSL] → [Plan] → [querysql emitter]   → SQLite JSON1 SQL
//	                     → [querymongo emitter] → bson.D filter
//
// The DSL (Query, LogicalQuery, QueryItem, MetaQuery, SortItem) is what
// collaborators construct. PlanFilter and PlanSort turn it into a plan in
// which every decision that must be identical across backends has already
// been made:
//
//   - relative durations ("7d", "12h") resolved against a reference time
//   - ISO-8601 timestamps and numeric strings coerced for range operators
//   - between expanded into gte + lte
//   - AND items grouped per field, OR items kept isolated
//   - payload paths classified as direct or array-membership
//   - in/not_in suppressing eq/neq on structural fields
//
// Emitters only translate a plan into native syntax. They never re-derive
// semantics, which keeps the two backends equivalent by construction.
//
// AND/OR COMPOSITION:
//
// A partQuery with both blocks compiles to
//
//	(and[0] AND and[1] AND ...) OR or[0] OR or[1] OR ...
//
// OR items are never conjoined with each other.
//
// PAGINATION:
//
// Pages are zero-based inside this package and everything below it.
// Collaborators that accept one-based pages convert with PageFromOneBased
// at their boundary (the CLI read command does this).
package queryir
