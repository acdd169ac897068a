// Package mongostore is the MongoDB Backend of the Object Store.
//
// Records live in the "objs" collection keyed by _id, with the payload as
// an embedded objRecord document and timestamps as BSON dates. Field
// metadata lives in "obj_fields", unique per (appId, tag, path).
//
// Transactions use client sessions and therefore need a replica set or
// sharded cluster. Outside InTx every call runs on its own.
package mongostore
