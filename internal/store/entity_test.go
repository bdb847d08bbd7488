package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composite/internal/ir"
)

func TestCreateAssignsIdentity(t *testing.T) {
	s := createTestStore(t)

	e := createEntity(t, s, "node", "first", nil)
	assert.Equal(t, int64(1), e.ID)
	assert.Positive(t, e.RevisionID)

	parsed, err := uuid.Parse(e.UUID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	b := createEntity(t, s, "block", "b", nil)
	assert.Equal(t, int64(1), b.ID, "ids are per type")
	assert.Zero(t, b.RevisionID, "non-revisionable types have no revisions")
}

func TestCreateKeepsGivenUUID(t *testing.T) {
	s := createTestStore(t)

	e := ir.NewEntity("node", "fixed")
	e.UUID = "00000000-0000-0000-0000-000000000001"
	require.NoError(t, s.Create(t.Context(), e))

	loaded, err := s.Load(t.Context(), "node", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", loaded.UUID)
}

func TestCreateRejectsSavedEntity(t *testing.T) {
	s := createTestStore(t)
	e := createEntity(t, s, "node", "n", nil)

	err := s.Create(t.Context(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has id")
}

func TestLoadRoundTripsFields(t *testing.T) {
	s := createTestStore(t)
	target := createEntity(t, s, "node", "target", nil)
	para := createEntity(t, s, "block", "para", nil)

	e := ir.NewEntity("node", "owner")
	e.Set("ref", ir.ReferenceItem{TargetID: target.ID}, ir.ReferenceItem{TargetID: 0}, ir.ReferenceItem{TargetID: target.ID})
	e.Set("entity_reference", ir.ReferenceItem{TargetID: target.ID})
	e.Set("paragraphs", ir.ReferenceItem{TargetID: para.ID, TargetRevisionID: 4})
	e.Values["body"] = ir.IRString("hello")
	e.Values["weight"] = ir.IRInt(3)
	require.NoError(t, s.Create(t.Context(), e))

	loaded, err := s.Load(t.Context(), "node", e.ID)
	require.NoError(t, err)

	assert.Equal(t, e.UUID, loaded.UUID)
	assert.Equal(t, e.RevisionID, loaded.RevisionID)
	assert.Equal(t, "owner", loaded.Label)
	assert.Equal(t, []ir.ReferenceItem{{TargetID: target.ID}, {TargetID: target.ID}}, loaded.Get("ref"),
		"empty items are dropped, duplicates keep their delta")
	assert.Equal(t, []int64{target.ID}, loaded.TargetIDs("entity_reference"))
	assert.Equal(t, []ir.ReferenceItem{{TargetID: para.ID, TargetRevisionID: 4}}, loaded.Get("paragraphs"))
	assert.Equal(t, ir.IRObject{"body": ir.IRString("hello"), "weight": ir.IRInt(3)}, loaded.Values)
}

func TestLoadNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Load(t.Context(), "node", 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadUnknownType(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Load(t.Context(), "user", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown entity type "user"`)
}

func TestLoadMultipleSkipsMissing(t *testing.T) {
	s := createTestStore(t)
	a := createEntity(t, s, "node", "a", nil)
	b := createEntity(t, s, "node", "b", map[string][]int64{"ref": {a.ID}})

	loaded, err := s.LoadMultiple(t.Context(), "node", []int64{b.ID, 99, a.ID, b.ID, 0})
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "a", loaded[a.ID].Label)
	assert.Equal(t, []int64{a.ID}, loaded[b.ID].TargetIDs("ref"))
	assert.Empty(t, loaded[a.ID].TargetIDs("ref"))

	empty, err := s.LoadMultiple(t.Context(), "node", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveInPlaceRewritesCurrentRevision(t *testing.T) {
	s := createTestStore(t)
	target := createEntity(t, s, "node", "target", nil)
	e := createEntity(t, s, "node", "owner", map[string][]int64{"ref": {target.ID}})
	rev := e.RevisionID

	e.Clear("ref")
	e.Label = "renamed"
	require.NoError(t, s.Save(t.Context(), e))
	assert.Equal(t, rev, e.RevisionID, "in-place save keeps the revision")

	loaded, err := s.Load(t.Context(), "node", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Label)
	assert.Empty(t, loaded.TargetIDs("ref"))

	historic, err := s.Select("node_revision__ref", "ref_target_id").
		Condition(dedicatedIDKey, e.ID).
		Execute(t.Context())
	require.NoError(t, err)
	assert.Empty(t, historic, "the current revision's rows are rewritten")
}

func TestSaveNewRevisionKeepsHistory(t *testing.T) {
	s := createTestStore(t)
	target := createEntity(t, s, "node", "target", nil)
	e := createEntity(t, s, "node", "owner", map[string][]int64{
		"ref":              {target.ID},
		"entity_reference": {target.ID},
	})
	first := e.RevisionID

	e.Clear("ref")
	e.Clear("entity_reference")
	e.NewRevision = true
	require.NoError(t, s.Save(t.Context(), e))
	assert.Greater(t, e.RevisionID, first)
	assert.False(t, e.NewRevision, "flag is consumed by Save")

	loaded, err := s.Load(t.Context(), "node", e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.RevisionID, loaded.RevisionID)
	assert.Empty(t, loaded.TargetIDs("ref"))
	assert.Empty(t, loaded.TargetIDs("entity_reference"))

	dedicated, err := s.Select("node_revision__ref", "ref_target_id").
		Condition(dedicatedIDKey, e.ID).
		IsNotNull("ref_target_id").
		GroupBy("ref_target_id").
		Execute(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []int64{target.ID}, dedicated)

	shared, err := s.Select("node_field_revision", "entity_reference_target_id").
		Condition(IDKey, e.ID).
		IsNotNull("entity_reference_target_id").
		GroupBy("entity_reference_target_id").
		Execute(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []int64{target.ID}, shared)
}

func TestSaveNewRevisionIgnoredForNonRevisionable(t *testing.T) {
	s := createTestStore(t)
	b := createEntity(t, s, "block", "b", nil)

	b.Label = "changed"
	b.NewRevision = true
	require.NoError(t, s.Save(t.Context(), b))
	assert.Zero(t, b.RevisionID)

	loaded, err := s.Load(t.Context(), "block", b.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", loaded.Label)
}

func TestSaveCreatesNewEntity(t *testing.T) {
	s := createTestStore(t)

	e := ir.NewEntity("node", "via save")
	require.NoError(t, s.Save(t.Context(), e))
	assert.False(t, e.IsNew())
}

func TestSaveMissingEntity(t *testing.T) {
	s := createTestStore(t)

	e := &ir.Entity{Type: "node", ID: 5, Label: "ghost"}
	err := s.Save(t.Context(), e)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveValidation(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name   string
		modify func(e *ir.Entity)
		errMsg string
	}{
		{
			name:   "unknown reference field",
			modify: func(e *ir.Entity) { e.Set("missing", ir.ReferenceItem{TargetID: 1}) },
			errMsg: `unknown field "missing"`,
		},
		{
			name:   "reference on scalar field",
			modify: func(e *ir.Entity) { e.Set("body", ir.ReferenceItem{TargetID: 1}) },
			errMsg: `field "body" is not a reference field`,
		},
		{
			name: "base field holds one value",
			modify: func(e *ir.Entity) {
				e.Set("entity_reference", ir.ReferenceItem{TargetID: 1}, ir.ReferenceItem{TargetID: 2})
			},
			errMsg: "holds a single value",
		},
		{
			name:   "string field given int",
			modify: func(e *ir.Entity) { e.Values["body"] = ir.IRInt(1) },
			errMsg: `field "body" expects a string`,
		},
		{
			name:   "int field given string",
			modify: func(e *ir.Entity) { e.Values["weight"] = ir.IRString("heavy") },
			errMsg: `field "weight" expects an int`,
		},
		{
			name:   "value on reference field",
			modify: func(e *ir.Entity) { e.Values["ref"] = ir.IRInt(1) },
			errMsg: "set it as a reference",
		},
		{
			name:   "unknown value field",
			modify: func(e *ir.Entity) { e.Values["colour"] = ir.IRString("red") },
			errMsg: `unknown field "colour"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ir.NewEntity("node", "invalid")
			tt.modify(e)
			err := s.Save(t.Context(), e)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.True(t, e.IsNew(), "failed create leaves the entity unsaved")
		})
	}
}

func TestNullValueIsAccepted(t *testing.T) {
	s := createTestStore(t)

	e := ir.NewEntity("node", "n")
	e.Values["body"] = ir.IRNull{}
	require.NoError(t, s.Create(t.Context(), e))

	loaded, err := s.Load(t.Context(), "node", e.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"body": ir.IRNull{}}, loaded.Values)
}

func TestReferencedEntities(t *testing.T) {
	s := createTestStore(t)
	a := createEntity(t, s, "node", "a", nil)
	b := createEntity(t, s, "node", "b", nil)
	owner := createEntity(t, s, "node", "owner", map[string][]int64{"ref": {b.ID, 77, a.ID}})

	targets, err := s.ReferencedEntities(t.Context(), owner, "ref")
	require.NoError(t, err)
	require.Len(t, targets, 2, "missing target 77 is skipped")
	assert.Equal(t, b.ID, targets[0].ID)
	assert.Equal(t, a.ID, targets[1].ID)

	_, err = s.ReferencedEntities(t.Context(), owner, "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a reference field")
}
