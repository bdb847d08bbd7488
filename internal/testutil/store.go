package testutil

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/composite/internal/catalog"
	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/store"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenStore builds a catalog from defs and opens a file-backed store in a
// temp directory with the entity tables created. The store is closed when
// the test ends.
func OpenStore(t testing.TB, defs ...ir.EntityTypeDef) (*catalog.Catalog, *store.Store) {
	t.Helper()
	cat, err := catalog.New(defs...)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), cat, store.WithLogger(DiscardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureSchema(t.Context()))
	return cat, st
}

// CreateEntity saves a new entity whose reference fields point at the
// given ids, default revisions.
func CreateEntity(t testing.TB, st *store.Store, entityType, label string, refs map[string][]int64) *ir.Entity {
	t.Helper()
	e := ir.NewEntity(entityType, label)
	for field, ids := range refs {
		items := make([]ir.ReferenceItem, 0, len(ids))
		for _, id := range ids {
			items = append(items, ir.ReferenceItem{TargetID: id})
		}
		e.Set(field, items...)
	}
	require.NoError(t, st.Create(t.Context(), e))
	return e
}

// Exists reports whether e can still be loaded.
func Exists(t testing.TB, st *store.Store, e *ir.Entity) bool {
	t.Helper()
	_, err := st.Load(t.Context(), e.Type, e.ID)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}
