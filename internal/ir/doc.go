// Package ir provides the shared data model for composite reference handling.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the entity model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Entities are identified by (type, id); revisions by (id, revision_id)
//   - Field definitions are resolved into FieldDescriptor values once, at
//     construction time; callers never branch on where a setting came from
//   - NO float types in IRValue - use int64 for numbers
//   - All JSON tags use snake_case
package ir
