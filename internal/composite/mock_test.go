package composite

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composite/internal/catalog"
	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/store"
	"github.com/roach88/composite/internal/testutil"
)

// newMockManager builds a Manager over a sqlmock database. Any statement
// without a matching expectation fails the test.
func newMockManager(t *testing.T, defs ...ir.EntityTypeDef) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	cat, err := catalog.New(defs...)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, cat, store.WithLogger(testutil.DiscardLogger()))
	return NewManager(cat, st, st, WithLogger(testutil.DiscardLogger())), mock
}

func TestMockNonCompositeFieldIssuesNoQuery(t *testing.T) {
	m, mock := newMockManager(t, nodeType(nil, nil))

	owner := &ir.Entity{Type: "node", ID: 1, UUID: "n1"}
	owner.Set("ref", ir.ReferenceItem{TargetID: 2})

	def, _ := m.catalog.EntityType("node")
	for _, f := range def.ReferenceFields() {
		require.False(t, f.Composite)
		require.NoError(t, m.OnEntityDelete(t.Context(), owner, f))
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMockEmptyFieldMapIssuesNoQuery(t *testing.T) {
	m, mock := newMockManager(t, nodeType(compositeOnly, nil), ir.EntityTypeDef{Name: "user"})

	set, err := m.ReferencingEntities(t.Context(), &ir.Entity{Type: "user", ID: 1})
	require.NoError(t, err)
	assert.Empty(t, set)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMockReferencingQueryShape(t *testing.T) {
	m, mock := newMockManager(t, nodeType(compositeOnly, nil), blockType())

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT DISTINCT entity_id AS id FROM block__items WHERE items_target_id = ? " +
			"UNION SELECT DISTINCT id FROM block_field_data WHERE parent_target_id = ? ORDER BY 1 ASC")).
		WithArgs(int64(7), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT DISTINCT id FROM node_field_revision WHERE entity_reference_target_id = ? " +
			"UNION SELECT DISTINCT entity_id AS id FROM node_revision__ref WHERE ref_target_id = ? ORDER BY 1 ASC")).
		WithArgs(int64(7), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	set, err := m.ReferencingEntities(t.Context(), &ir.Entity{Type: "node", ID: 7})
	require.NoError(t, err)
	assert.Empty(t, set)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMockStoreFailurePropagates(t *testing.T) {
	m, mock := newMockManager(t, nodeType(compositeOnly, nil))
	errDB := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta("FROM node b JOIN node_field_data d")).
		WithArgs(int64(2)).
		WillReturnError(errDB)

	owner := &ir.Entity{Type: "node", ID: 1, UUID: "n1"}
	owner.Set("ref", ir.ReferenceItem{TargetID: 2})
	ref, _ := nodeType(compositeOnly, nil).Field("ref")

	err := m.OnEntityDelete(t.Context(), owner, ref)
	require.ErrorIs(t, err, errDB)
	require.NoError(t, mock.ExpectationsWereMet())
}

// stubSource records calls and returns fixed ids.
type stubSource struct {
	ids   []int64
	calls int
}

func (s *stubSource) ReferencedIDs(context.Context, *ir.Entity, ir.FieldDescriptor) ([]int64, error) {
	s.calls++
	return s.ids, nil
}

func TestRevisionSourceSelectedByTableExistence(t *testing.T) {
	tests := []struct {
		name          string
		exists        int
		wantDedicated int
		wantShared    int
	}{
		{"dedicated table present", 1, 1, 0},
		{"dedicated table missing", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := catalog.New(nodeType(withRevisions, nil))
			require.NoError(t, err)
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			st := store.New(db, cat, store.WithLogger(testutil.DiscardLogger()))
			dedicated, shared := &stubSource{}, &stubSource{}
			m := NewManager(cat, st, st, WithLogger(testutil.DiscardLogger()), WithRevisionSources(dedicated, shared))

			mock.ExpectQuery(regexp.QuoteMeta("FROM sqlite_master")).
				WithArgs("node_revision__ref").
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.exists))

			ref, _ := nodeType(withRevisions, nil).Field("ref")
			require.NoError(t, m.OnEntityDelete(t.Context(), &ir.Entity{Type: "node", ID: 1, UUID: "n1"}, ref))

			assert.Equal(t, tt.wantDedicated, dedicated.calls)
			assert.Equal(t, tt.wantShared, shared.calls)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
