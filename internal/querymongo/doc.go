// Package querymongo compiles the query DSL to MongoDB filter and sort
// documents.
//
// Payload paths are addressed under "objRecord."; structural fields use
// their camelCase names, except id which is stored as "_id". Array
// membership compiles to $elemMatch so that every positive condition on
// an array field holds for the same element. Negative conditions compile
// to $not/$elemMatch so that a missing array matches.
package querymongo
