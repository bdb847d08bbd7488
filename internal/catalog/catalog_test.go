package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composite/internal/ir"
)

func testDefs() []ir.EntityTypeDef {
	return []ir.EntityTypeDef{
		{
			Name:         "node",
			Revisionable: true,
			Fields: []ir.FieldDefinition{
				{Name: "body", Kind: ir.KindString, Origin: ir.OriginBase},
				{Name: "entity_reference", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginBase,
					BaseSettings: &ir.CompositeSettings{Composite: true}},
				{Name: "paragraphs", Kind: ir.KindEntityReferenceRevisions, TargetType: "paragraph", Origin: ir.OriginConfig,
					ThirdParty: &ir.CompositeSettings{Composite: true, CompositeRevisions: true}},
				{Name: "ref", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginConfig},
			},
		},
		{
			Name: "paragraph",
			Fields: []ir.FieldDefinition{
				{Name: "parent", Kind: ir.KindEntityReference, TargetType: "node", Origin: ir.OriginBase},
			},
		},
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New(ir.EntityTypeDef{Name: "node", Fields: []ir.FieldDefinition{
		{Name: "ref", Kind: ir.KindEntityReference, TargetType: "missing", Origin: ir.OriginConfig},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E103")
}

func TestFieldsByKind(t *testing.T) {
	c, err := New(testDefs()...)
	require.NoError(t, err)

	assert.Equal(t, map[string]map[string]string{
		"node":      {"entity_reference": "node", "ref": "node"},
		"paragraph": {"parent": "node"},
	}, c.FieldsByKind(ir.KindEntityReference))

	assert.Equal(t, map[string]map[string]string{
		"node": {"paragraphs": "paragraph"},
	}, c.FieldsByKind(ir.KindEntityReferenceRevisions))

	assert.Empty(t, c.FieldsByKind(ir.KindInt))
}

func TestFieldStorageDefinitions(t *testing.T) {
	c, err := New(testDefs()...)
	require.NoError(t, err)

	defs := c.FieldStorageDefinitions("node")
	require.Len(t, defs, 4)
	assert.True(t, defs["entity_reference"].Composite)
	assert.True(t, defs["paragraphs"].CompositeRevisions)
	assert.False(t, defs["ref"].Composite)
	assert.Equal(t, "node", defs["ref"].EntityType)

	assert.Empty(t, c.FieldStorageDefinitions("unknown"))
}

func TestEntityTypes(t *testing.T) {
	c, err := New(testDefs()...)
	require.NoError(t, err)

	types := c.EntityTypes()
	require.Len(t, types, 2)
	assert.Equal(t, "node", types[0].Name)
	assert.Equal(t, "paragraph", types[1].Name)

	def, ok := c.EntityType("paragraph")
	require.True(t, ok)
	assert.False(t, def.Revisionable)

	_, ok = c.EntityType("user")
	assert.False(t, ok)
}

func TestReturnedDefinitionsAreCopies(t *testing.T) {
	c, err := New(testDefs()...)
	require.NoError(t, err)

	def, _ := c.EntityType("node")
	def.Fields[1].BaseSettings.Composite = false
	def.Fields[0].Name = "changed"

	assert.True(t, c.FieldStorageDefinitions("node")["entity_reference"].Composite)
	_, ok := c.FieldStorageDefinitions("node")["body"]
	assert.True(t, ok)
}

func TestSetCompositeSettingsConfigField(t *testing.T) {
	c, err := New(testDefs()...)
	require.NoError(t, err)

	require.NoError(t, c.SetCompositeSettings("node", "ref", true, true))

	f := c.FieldStorageDefinitions("node")["ref"]
	assert.Equal(t, ir.OriginConfig, f.Origin)
	assert.True(t, f.Composite)
	assert.True(t, f.CompositeRevisions)
}

func TestSetCompositeSettingsBaseFieldBecomesOverride(t *testing.T) {
	c, err := New(testDefs()...)
	require.NoError(t, err)

	require.NoError(t, c.SetCompositeSettings("paragraph", "parent", true, true))

	f := c.FieldStorageDefinitions("paragraph")["parent"]
	assert.Equal(t, ir.OriginOverride, f.Origin)
	assert.True(t, f.Composite)
	assert.False(t, f.CompositeRevisions, "paragraph is not revisionable")
}

func TestSetCompositeSettingsErrors(t *testing.T) {
	c, err := New(testDefs()...)
	require.NoError(t, err)

	assert.ErrorContains(t, c.SetCompositeSettings("user", "ref", true, false), "unknown entity type")
	assert.ErrorContains(t, c.SetCompositeSettings("node", "nope", true, false), "unknown field")
	assert.ErrorContains(t, c.SetCompositeSettings("node", "body", true, false), "string field")
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	c, err := New(testDefs()...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(on bool) {
			defer wg.Done()
			_ = c.SetCompositeSettings("node", "ref", on, false)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = c.FieldsByKind(ir.KindEntityReference)
			_ = c.FieldStorageDefinitions("node")
		}()
	}
	wg.Wait()
}
