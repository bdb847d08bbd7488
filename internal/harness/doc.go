// Package harness runs YAML delete scenarios against a fresh database and
// records the deletion trace.
//
// A scenario names a directory of CUE entity-type specs, a list of steps
// and a list of assertions:
//
//	name: shared_reference
//	specs: specs
//	steps:
//	  - {op: create, name: R, type: node}
//	  - {op: create, name: N1, type: node, refs: {ref: [R]}}
//	  - {op: delete, name: N1}
//	assertions:
//	  - {type: missing, entities: [R, N1]}
//
// Entities are named by alias. Steps run in order through the real store,
// dispatcher and composite manager; the trace lists every delete step, every
// composite dispatch and every completed delete, with entities rendered by
// alias. RunWithGolden compares that trace against testdata/golden.
package harness
