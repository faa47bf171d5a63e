// Package ir provides the record value model shared by every datamock package.
//
// Resolved event trees, entity instances and dataset rows are all ir.Object
// values. The package imports nothing internal so that it stays the bottom
// layer of the dependency graph.
//
// Key constraints:
//   - Value is sealed: only the types declared here implement it
//   - Stored snapshots are deep clones and are never mutated in place
//   - MarshalCanonical is the only serialization used for hashing and golden files
package ir
