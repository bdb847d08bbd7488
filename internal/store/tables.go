package store

import (
	"context"
	"fmt"

	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/queryir"
)

// TableExists reports whether a table exists in the database.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.conn(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("table exists %s: %w", name, err)
	}
	return count > 0, nil
}

// TableSelect reads one integer column straight from a storage table,
// bypassing the entity API. Used for values that only survive in revision
// tables.
type TableSelect struct {
	store   *Store
	table   string
	column  string
	preds   []queryir.Predicate
	groupBy []string
	err     error
}

// Select starts a raw read of column from table.
func (s *Store) Select(table, column string) *TableSelect {
	return &TableSelect{store: s, table: table, column: column}
}

// Condition adds a column = value filter.
func (t *TableSelect) Condition(column string, value any) *TableSelect {
	v, err := ir.ToIRValue(value)
	if err != nil && t.err == nil {
		t.err = fmt.Errorf("condition %s: %w", column, err)
	}
	t.preds = append(t.preds, queryir.Equals{Field: column, Value: v})
	return t
}

// IsNotNull keeps rows where column has a value.
func (t *TableSelect) IsNotNull(column string) *TableSelect {
	t.preds = append(t.preds, queryir.NotNull{Field: column})
	return t
}

// GroupBy groups rows by column; grouping on the selected column makes the
// result distinct.
func (t *TableSelect) GroupBy(column string) *TableSelect {
	t.groupBy = append(t.groupBy, column)
	return t
}

// Build returns the select as QueryIR.
func (t *TableSelect) Build() (queryir.Query, error) {
	if t.err != nil {
		return nil, t.err
	}
	sel := queryir.Select{
		From:    t.table,
		Columns: []queryir.Column{{Name: t.column}},
		GroupBy: t.groupBy,
	}
	if len(t.preds) > 0 {
		sel.Filter = queryir.And{Predicates: t.preds}
	}
	return sel, nil
}

// Execute runs the select and returns the column values in ascending order.
func (t *TableSelect) Execute(ctx context.Context) ([]int64, error) {
	query, err := t.Build()
	if err != nil {
		return nil, fmt.Errorf("select %s.%s: %w", t.table, t.column, err)
	}
	values, err := t.store.executeIDs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select %s.%s: %w", t.table, t.column, err)
	}
	return values, nil
}
