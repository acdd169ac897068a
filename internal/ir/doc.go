// Package ir provides the JSON value tree and the stored record types.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal, so it stays the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - IRValue is sealed: null, bool, number, string, array, object
//   - Payload paths are dotted; the "[]" segment marks array elements
//   - Stored payloads use MarshalCanonical so equal documents have equal bytes
//   - JSON tags use camelCase to match the external record shape
package ir
