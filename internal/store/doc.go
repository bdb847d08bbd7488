// Package store provides SQLite-backed entity storage.
//
// Every entity type gets its own set of tables, created by EnsureSchema from
// the field catalog:
//
//	node                   id, uuid, revision_id          (identity)
//	node_field_data        id, revision_id, label, data,  (current values)
//	                       <base>_target_id ...
//	node_revision          revision_id, id                (revisionable only)
//	node_field_revision    same columns as node_field_data, one row per revision
//	node__<field>          entity_id, revision_id, delta, <field>_target_id ...
//	node_revision__<field> same, one row set per revision
//
// Base fields are single-valued columns of the shared data tables. Configured
// fields are multi-valued and live in their dedicated tables. Scalar values
// are stored as canonical JSON in the data column.
//
// # Unit of Work
//
// Create, Save and Delete run inside a unit of work: one SQL transaction
// carried in the context. Any store call made with that context (including
// from a delete hook) joins the transaction, so a cascade of deletes commits
// or rolls back as a whole. An entity already being deleted in the current
// unit of work is not deleted twice.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: SQLite has a single writer
//
// All reads built by EntityQuery and TableSelect compile through queryir and
// querysql, so values are parameterized and results ordered.
package store
