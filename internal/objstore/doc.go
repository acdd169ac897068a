// Package objstore defines the Object Store contract and the
// backend-neutral engine that implements it.
//
// Every business entity is persisted as an ir.Obj. Callers describe which
// records they want with a queryir.Query; they never see native filter
// syntax. A Backend compiles and runs those queries against one storage
// engine, and Engine layers the shared policy on top:
//
//   - Delete visibility: reads exclude soft-deleted records unless asked
//     not to, or unless the query itself names deletedAt
//   - Write scoping: update and delete paths only touch live records
//   - Bulk operators: batching, conflict routing, merge, progress reporting
//   - Transactions: WithTransaction hands the callback a Store bound to one
//     unit of work
//
// # Errors
//
// Parameter mistakes found before any I/O are *ParamError. Query DSL
// mistakes are *queryir.QueryError. Backend and driver errors are wrapped
// with the operation name and otherwise propagate unchanged. Not found is
// never an error.
//
// # Concurrency
//
// Read-then-write sequences (update, delete, the bulk operators, the
// bulkUpsert conflict lookup) are not atomic. No locking is added beyond
// what a single backend statement provides; use WithTransaction where a
// sequence must commit or roll back as a whole.
package objstore
