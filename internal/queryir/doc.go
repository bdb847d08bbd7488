// Package queryir provides an abstract query representation for reading
// entity and field tables.
//
// The entity store builds queries as queryir trees and hands them to a
// backend (internal/querysql) for compilation. Keeping the tree separate
// from SQL text means callers never concatenate SQL, and every query the
// store issues can be inspected and validated before execution.
//
//	[EntityQuery / TableSelect] → [Query IR] → [SQL Backend]
//
// SHAPES:
//
//   - Select(from, columns, filter, group by) - single-table access
//   - Union(queries...) - id sets from several tables, de-duplicated
//   - Intersect(queries...) - ids matching every part
//   - Predicates: Equals, NotNull, In, And, Or
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed using the marker method pattern, so
// backends can switch over them exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	case Union:
//	case Intersect:
//	}
//
// All literal values use ir.IRValue types (no floats).
package queryir
