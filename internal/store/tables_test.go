package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composite/internal/ir"
)

func TestTableExists(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		table  string
		exists bool
	}{
		{"node_revision__ref", true},
		{"node_field_revision", true},
		{"block_revision__items", false},
		{"no_such_table", false},
	}
	for _, tt := range tests {
		got, err := s.TableExists(t.Context(), tt.table)
		require.NoError(t, err)
		assert.Equal(t, tt.exists, got, tt.table)
	}
}

func TestTableSelectDistinctValues(t *testing.T) {
	s := createTestStore(t)
	a := createEntity(t, s, "node", "a", nil)
	b := createEntity(t, s, "node", "b", nil)
	e := createEntity(t, s, "node", "owner", map[string][]int64{"ref": {b.ID, a.ID}})

	e.Set("ref", ir.ReferenceItem{TargetID: a.ID})
	e.NewRevision = true
	require.NoError(t, s.Save(t.Context(), e))

	values, err := s.Select(DedicatedRevisionTableName(mustField(t, s, "node", "ref")), "ref_target_id").
		Condition(dedicatedIDKey, e.ID).
		IsNotNull("ref_target_id").
		GroupBy("ref_target_id").
		Execute(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID}, values, "grouped on the target column, ascending")
}

func TestTableSelectErrors(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Select("node", "id").Condition("id", 2.5).Execute(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = s.Select("Robert'); DROP TABLE node;--", "id").Execute(t.Context())
	require.Error(t, err)

	_, err = s.Select("missing_table", "id").Execute(t.Context())
	require.Error(t, err)
}
