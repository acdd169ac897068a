// Package sqlstore is the relational Object Store backend, on SQLite.
//
// Records live in one objs table. The payload is canonical JSON text in
// obj_record and is queried through the JSON1 functions; querysql compiles
// the query DSL. Structural dates are epoch milliseconds so they compare
// and sort as integers. Connections come from a go-sqlite3 driver that
// registers querysql.FoldFunc for case-insensitive matching.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite allows a single writer
//
// With one connection, a transaction holds it until it finishes. Inside
// WithTransaction, issue every call through the bound instance; a call on
// the outer Store would wait for the transaction to end.
package sqlstore
