package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composite/internal/ir"
)

func compositeField(name, target string) ir.FieldDefinition {
	return ir.FieldDefinition{
		Name:       name,
		Kind:       ir.KindEntityReference,
		TargetType: target,
		Origin:     ir.OriginConfig,
		ThirdParty: &ir.CompositeSettings{Composite: true},
	}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	defs := []ir.EntityTypeDef{
		{Name: "node", Fields: []ir.FieldDefinition{compositeField("paragraphs", "paragraph")}},
		{Name: "paragraph", Fields: []ir.FieldDefinition{compositeField("media", "media")}},
		{Name: "media"},
	}
	assert.Empty(t, AnalyzeCycles(defs))
}

func TestAnalyzeCycles_NonCompositeIgnored(t *testing.T) {
	defs := []ir.EntityTypeDef{
		{Name: "node", Fields: []ir.FieldDefinition{refField("related", "node", ir.OriginConfig)}},
	}
	assert.Empty(t, AnalyzeCycles(defs))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	defs := []ir.EntityTypeDef{
		{Name: "node", Fields: []ir.FieldDefinition{compositeField("ref", "node")}},
	}

	warnings := AnalyzeCycles(defs)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"node", "node"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "owns itself")
}

func TestAnalyzeCycles_TwoTypeCycle(t *testing.T) {
	defs := []ir.EntityTypeDef{
		{Name: "paragraph", Fields: []ir.FieldDefinition{compositeField("nested", "section")}},
		{Name: "section", Fields: []ir.FieldDefinition{compositeField("items", "paragraph")}},
	}

	warnings := AnalyzeCycles(defs)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"paragraph", "section", "paragraph"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "paragraph → section → paragraph")
}

func TestAnalyzeCycles_Deterministic(t *testing.T) {
	defs := []ir.EntityTypeDef{
		{Name: "b", Fields: []ir.FieldDefinition{compositeField("x", "b")}},
		{Name: "a", Fields: []ir.FieldDefinition{compositeField("x", "a")}},
	}

	first := AnalyzeCycles(defs)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AnalyzeCycles(defs))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Path[0])
}
