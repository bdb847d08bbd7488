package composite

import (
	"context"
	"testing"

	"github.com/roach88/composite/internal/catalog"
	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/store"
	"github.com/roach88/composite/internal/testutil"
)

// nodeType is a revisionable "node" type with a configured field "ref" and
// a base field "entity_reference", both targeting node.
func nodeType(ref, base *ir.CompositeSettings) ir.EntityTypeDef {
	return ir.EntityTypeDef{
		Name:         "node",
		Label:        "Content",
		Revisionable: true,
		Fields: []ir.FieldDefinition{
			{Name: "entity_reference", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginBase, BaseSettings: base},
			{Name: "ref", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginConfig, ThirdParty: ref},
		},
	}
}

// blockType is a non-revisionable type with references to node.
func blockType() ir.EntityTypeDef {
	return ir.EntityTypeDef{
		Name: "block",
		Fields: []ir.FieldDefinition{
			{Name: "items", Kind: ir.KindEntityReferenceRevisions, TargetType: "node", Origin: ir.OriginConfig},
			{Name: "parent", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginBase},
		},
	}
}

type testEnv struct {
	catalog *catalog.Catalog
	store   *store.Store
	manager *Manager
}

// cascadeHooks runs OnEntityDelete for every reference field of a deleted
// entity, the way the engine dispatcher does.
type cascadeHooks struct {
	env *testEnv
}

func (h cascadeHooks) ExecuteHooks(ctx context.Context, hookType ir.HookType, e *ir.Entity) error {
	if hookType != ir.BeforeDelete {
		return nil
	}
	def, _ := h.env.catalog.EntityType(e.Type)
	for _, f := range def.ReferenceFields() {
		if err := h.env.manager.OnEntityDelete(ctx, e, f); err != nil {
			return err
		}
	}
	return nil
}

func newTestEnv(t *testing.T, defs ...ir.EntityTypeDef) *testEnv {
	t.Helper()
	cat, st := testutil.OpenStore(t, defs...)

	env := &testEnv{catalog: cat, store: st}
	env.manager = NewManager(cat, st, st, WithLogger(testutil.DiscardLogger()))
	st.SetHooks(cascadeHooks{env: env})
	return env
}

func (env *testEnv) create(t *testing.T, entityType, label string, refs map[string][]int64) *ir.Entity {
	t.Helper()
	return testutil.CreateEntity(t, env.store, entityType, label, refs)
}

func (env *testEnv) exists(t *testing.T, e *ir.Entity) bool {
	t.Helper()
	return testutil.Exists(t, env.store, e)
}
