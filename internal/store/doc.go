// Package store is the local SQLite sink generated datasets are loaded into.
//
// A harness run uses the store in three steps:
//   - LoadDataset creates one table per type token inside a schema named
//     after the test dataset (ds_mock.fato_exame), so artefact SQL can
//     address tables the way it does in the warehouse.
//   - RunArtefact materializes the artefact query into a destination table
//     and Select reads the obtained rows back as record values.
//   - WriteBuild and WriteUnitResult append the outcome to the result log
//     (builds, unit_results).
//
// # Value mapping
//
//	STRING, TIMESTAMP, DATE -> TEXT
//	INTEGER, BOOLEAN        -> INTEGER (booleans as 0/1)
//	FLOAT                   -> REAL
//	RECORD, ARRAY           -> TEXT holding canonical JSON
//
// Select decodes TEXT holding a JSON array or object back into ir.List and
// ir.Object, so nested values survive the round trip.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// A single connection is kept open so attached in-memory dataset schemas
// stay visible to every statement.
package store
