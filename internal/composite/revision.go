package composite

import (
	"context"
	"fmt"

	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/store"
)

// TableAccessor reads storage tables directly. Revision values of a field
// are only reachable this way once they are no longer current.
type TableAccessor interface {
	TableExists(ctx context.Context, name string) (bool, error)
	Select(table, column string) *store.TableSelect
}

// RevisionSource lists the distinct target ids a field held on any
// revision of an owner.
type RevisionSource interface {
	ReferencedIDs(ctx context.Context, owner *ir.Entity, field ir.FieldDescriptor) ([]int64, error)
}

// DedicatedTableSource reads a configured field's own revision table.
type DedicatedTableSource struct {
	tables TableAccessor
}

// NewDedicatedTableSource creates a DedicatedTableSource.
func NewDedicatedTableSource(tables TableAccessor) *DedicatedTableSource {
	return &DedicatedTableSource{tables: tables}
}

// ReferencedIDs implements RevisionSource.
func (s *DedicatedTableSource) ReferencedIDs(ctx context.Context, owner *ir.Entity, field ir.FieldDescriptor) ([]int64, error) {
	table := store.DedicatedRevisionTableName(field)
	column := store.FieldColumnName(field, store.PropertyTargetID)

	ids, err := s.tables.Select(table, column).
		Condition("entity_id", owner.ID).
		GroupBy(column).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("revision targets of %s.%s: %w", owner.Ref(), field.Name, err)
	}
	return ids, nil
}

// RevisionDataSource reads a base field's column of the owning type's
// shared revision data table.
type RevisionDataSource struct {
	tables TableAccessor
	types  FieldCatalog
}

// NewRevisionDataSource creates a RevisionDataSource.
func NewRevisionDataSource(tables TableAccessor, types FieldCatalog) *RevisionDataSource {
	return &RevisionDataSource{tables: tables, types: types}
}

// ReferencedIDs implements RevisionSource.
func (s *RevisionDataSource) ReferencedIDs(ctx context.Context, owner *ir.Entity, field ir.FieldDescriptor) ([]int64, error) {
	def, ok := s.types.EntityType(owner.Type)
	if !ok {
		return nil, fmt.Errorf("revision targets of %s: unknown entity type %q", owner.Ref(), owner.Type)
	}
	table, err := store.RevisionDataTable(def)
	if err != nil {
		return nil, fmt.Errorf("revision targets of %s: %w", owner.Ref(), err)
	}
	column := store.FieldColumnName(field, store.PropertyTargetID)

	ids, err := s.tables.Select(table, column).
		Condition(store.IDKey, owner.ID).
		IsNotNull(column).
		GroupBy(column).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("revision targets of %s.%s: %w", owner.Ref(), field.Name, err)
	}
	return ids, nil
}
