package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"testing"

	"github.com/roach88/composite/internal/ir"
)

// staticTypes is a fixed TypeResolver for store tests.
type staticTypes map[string]ir.EntityTypeDef

func (s staticTypes) EntityType(name string) (ir.EntityTypeDef, bool) {
	def, ok := s[name]
	return def, ok
}

func (s staticTypes) EntityTypes() []ir.EntityTypeDef {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]ir.EntityTypeDef, 0, len(names))
	for _, name := range names {
		defs = append(defs, s[name])
	}
	return defs
}

var composite = &ir.CompositeSettings{Composite: true}

// testTypes returns a revisionable "node" type and a non-revisionable
// "block" type covering every field origin and reference kind.
func testTypes() staticTypes {
	return staticTypes{
		"node": {
			Name:         "node",
			Label:        "Content",
			Revisionable: true,
			Fields: []ir.FieldDefinition{
				{Name: "body", Kind: ir.KindString, Origin: ir.OriginBase},
				{Name: "entity_reference", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginBase, BaseSettings: composite},
				{Name: "paragraphs", Kind: ir.KindEntityReferenceRevisions, TargetType: "block", Origin: ir.OriginConfig, ThirdParty: composite},
				{Name: "ref", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginConfig, ThirdParty: composite},
				{Name: "weight", Kind: ir.KindInt, Origin: ir.OriginBase},
			},
		},
		"block": {
			Name: "block",
			Fields: []ir.FieldDefinition{
				{Name: "items", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginConfig},
				{Name: "parent", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginBase},
			},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestStore opens a store in a temp dir with the test types and
// their tables.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testTypes(), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	return s
}

// createEntity saves a new entity and fails the test on error.
func createEntity(t *testing.T, s *Store, entityType, label string, refs map[string][]int64) *ir.Entity {
	t.Helper()
	e := ir.NewEntity(entityType, label)
	for field, ids := range refs {
		items := make([]ir.ReferenceItem, 0, len(ids))
		for _, id := range ids {
			items = append(items, ir.ReferenceItem{TargetID: id})
		}
		e.Set(field, items...)
	}
	if err := s.Create(context.Background(), e); err != nil {
		t.Fatalf("Create(%s %q) failed: %v", entityType, label, err)
	}
	return e
}

// mustField resolves a field descriptor of a test type.
func mustField(t *testing.T, s *Store, entityType, field string) ir.FieldDescriptor {
	t.Helper()
	def, err := s.entityType(entityType)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := def.Field(field)
	if !ok {
		t.Fatalf("unknown field %s.%s", entityType, field)
	}
	return f
}

// recordingHooks records every hook call and optionally runs fn.
type recordingHooks struct {
	calls []string
	fn    func(ctx context.Context, hookType ir.HookType, e *ir.Entity) error
}

func (r *recordingHooks) ExecuteHooks(ctx context.Context, hookType ir.HookType, e *ir.Entity) error {
	r.calls = append(r.calls, hookType.String()+" "+e.Ref().String())
	if r.fn != nil {
		return r.fn(ctx, hookType, e)
	}
	return nil
}
