// Package engine dispatches entity delete hooks.
//
// The Dispatcher is installed as the store's HookExecutor. For every delete
// it runs the hooks registered for the hook type in registration order and
// then, before the entity's rows are removed, hands each reference field of
// the entity to the composite manager. Orphans deleted by the manager go
// through the store again, so their own hooks run through the Dispatcher
// and the cascade unwinds depth first inside one unit of work.
//
// Every delete started through Dispatcher.Delete carries a flow token
// (UUIDv7 in production, fixed in tests). The token is written to the
// delete log and keys the per-flow bookkeeping:
//
//   - a delete quota bounding the number of entities one flow may delete
//   - a dispatch guard so each (entity, field) pair reaches the manager
//     at most once per flow
//
// Observed events are stamped by a logical clock, never the wall clock, so
// traces of the same scenario are byte-identical across runs.
package engine
