package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composite/internal/ir"
)

func TestValidate_CleanQuery(t *testing.T) {
	query := Select{
		From:    "node__ref",
		Columns: []Column{{Name: "entity_id", As: "id"}},
		Filter:  Equals{Field: "ref_target_id", Value: ir.IRInt(3)},
	}

	result := Validate(query)

	assert.True(t, result.IsClean)
	assert.Empty(t, result.Warnings)
}

func TestValidate_PointerTypes(t *testing.T) {
	query := &Select{
		From:    "node_revision__ref",
		Columns: []Column{{Name: "ref_target_id"}},
		Filter: &And{Predicates: []Predicate{
			&Equals{Field: "entity_id", Value: ir.IRInt(1)},
			&NotNull{Field: "ref_target_id"},
		}},
	}

	assert.True(t, Validate(query).IsClean)
}

func TestValidate_SelectStar(t *testing.T) {
	result := Validate(Select{From: "node"})

	assert.False(t, result.IsClean)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "SELECT *")
}

func TestValidate_NullComparison(t *testing.T) {
	result := Validate(Select{
		From:    "node",
		Columns: []Column{{Name: "id"}},
		Filter:  Equals{Field: "uuid", Value: ir.IRNull{}},
	})

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "NotNull")
}

func TestValidate_EmptyDisjunctions(t *testing.T) {
	result := Validate(Select{
		From:    "node",
		Columns: []Column{{Name: "id"}},
		Filter: And{Predicates: []Predicate{
			Or{},
			In{Field: "id"},
		}},
	})

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "Empty OR")
	assert.Contains(t, result.Warnings[1], "IN ()")
}

func TestValidate_CompoundColumnMismatch(t *testing.T) {
	result := Validate(Union{Queries: []Query{
		Select{From: "a", Columns: []Column{{Name: "id"}}},
		Select{From: "b", Columns: []Column{{Name: "id"}, {Name: "label"}}},
	}})

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "UNION part 1 selects 2 columns")
}

func TestValidate_EmptyCompound(t *testing.T) {
	result := Validate(Intersect{})
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "INTERSECT with no parts")
}

func TestValidate_Nil(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.IsClean)
}
