// Package harness provides conformance testing for Object Store backends.
//
// A scenario seeds records, runs store operations, and checks both each
// operation's outcome and the final stored state. The same scenarios run
// against every backend, so a passing suite shows the backends return
// equivalent results for one abstract query.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	setup:
//	  - id: a1
//	    app: app-1
//	    tag: item
//	    record: { name: widget, price: 5 }
//	steps:
//	  - op: read
//	    app: app-1
//	    tag: item
//	    query:
//	      partQuery:
//	        and: [{ field: price, op: gt, value: 3 }]
//	    expect:
//	      ids: [a1]
//	assertions:
//	  - type: ids
//	    app: app-1
//	    tag: item
//	    scope: live
//	    ids: [a1]
//
// Step ops are read, update, delete, bulkUpsert, bulkUpdate, bulkDelete,
// and cleanup. Assertion types are ids, count, and record.
//
// # Determinism
//
// Each run uses a DeterministicClock (one millisecond per reading, from
// testutil.Epoch) and sequential ids, so default newest-first ordering and
// generated ids are the same on every backend.
//
// The built-in scenarios are embedded; Conformance runs them together with
// checks that YAML cannot express (transaction rollback, progress
// callbacks, field metadata).
package harness
