// Package composite deletes entities that become orphaned when the entity
// owning them through a composite reference field is deleted.
//
// A composite field marks ownership: the referenced entity exists for the
// owner. When the owner is deleted, each entity its composite fields point
// at is deleted too, unless some other entity (or, for revisionable owners,
// some surviving revision) still references it.
//
// The Manager is read-only except for OnEntityDelete. It keeps no state
// between calls: field maps and referencing sets are rebuilt from the
// catalog and the store on every call, so configuration changes made
// between requests take effect immediately.
//
// Cascades are driven by the store's delete hooks. Deleting an orphan runs
// the hooks for the orphan, which call OnEntityDelete again for its own
// fields. The Manager has no recursion or cycle detection of its own; the
// store turns a repeated delete of the same entity into a no-op.
package composite
