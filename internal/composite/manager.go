package composite

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/store"
)

// FieldCatalog is the field metadata the Manager reads.
type FieldCatalog interface {
	EntityType(name string) (ir.EntityTypeDef, bool)
	FieldsByKind(kind ir.FieldKind) map[string]map[string]string
	FieldStorageDefinitions(entityType string) map[string]ir.FieldDescriptor
}

// EntityStore is the entity API the Manager reads through and deletes with.
type EntityStore interface {
	Query(entityType string, conjunction store.Conjunction) *store.EntityQuery
	LoadMultiple(ctx context.Context, entityType string, ids []int64) (map[int64]*ir.Entity, error)
	ReferencedEntities(ctx context.Context, e *ir.Entity, field string) ([]*ir.Entity, error)
	Delete(ctx context.Context, e *ir.Entity) error
}

// Manager decides which referenced entities to delete with their owner.
type Manager struct {
	catalog   FieldCatalog
	store     EntityStore
	tables    TableAccessor
	dedicated RevisionSource
	shared    RevisionSource
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for cascade decisions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRevisionSources replaces the two revision read paths. dedicated is
// used when the field's dedicated revision table exists, shared otherwise.
func WithRevisionSources(dedicated, shared RevisionSource) Option {
	return func(m *Manager) {
		if dedicated != nil {
			m.dedicated = dedicated
		}
		if shared != nil {
			m.shared = shared
		}
	}
}

// NewManager creates a Manager. tables is only used for fields with
// composite revisions.
func NewManager(catalog FieldCatalog, st EntityStore, tables TableAccessor, opts ...Option) *Manager {
	m := &Manager{
		catalog:   catalog,
		store:     st,
		tables:    tables,
		dedicated: NewDedicatedTableSource(tables),
		shared:    NewRevisionDataSource(tables, catalog),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReferenceFields returns every reference field, of either reference kind,
// that targets targetType, grouped by owning entity type. Owning types
// without such a field are absent. Fields are sorted by name.
func (m *Manager) ReferenceFields(targetType string) ir.ReferenceFieldMap {
	candidates := make(map[string]map[string]bool)
	for _, kind := range ir.ReferenceKinds {
		for owner, fields := range m.catalog.FieldsByKind(kind) {
			if candidates[owner] == nil {
				candidates[owner] = make(map[string]bool)
			}
			for name := range fields {
				candidates[owner][name] = true
			}
		}
	}

	out := make(ir.ReferenceFieldMap)
	for owner, names := range candidates {
		defs := m.catalog.FieldStorageDefinitions(owner)
		var matched []ir.FieldDescriptor
		for name := range names {
			fd, ok := defs[name]
			if ok && fd.TargetType == targetType {
				matched = append(matched, fd)
			}
		}
		if len(matched) == 0 {
			continue
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
		out[owner] = matched
	}
	return out
}

// ReferencingEntities returns every entity holding a reference to target.
//
// One disjunctive query runs per owning type, over all revisions when the
// owning type is revisionable. Results are keyed by entity id; when ids
// collide the first owning type in name order wins.
func (m *Manager) ReferencingEntities(ctx context.Context, target *ir.Entity) (ir.ReferencingSet, error) {
	set := make(ir.ReferencingSet)
	err := m.eachReferencing(ctx, target, func(e *ir.Entity) {
		if _, seen := set[e.ID]; !seen {
			set[e.ID] = e
		}
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// referencingRefs is ReferencingEntities keyed by type and id, so owners
// of different types sharing an id are all kept.
func (m *Manager) referencingRefs(ctx context.Context, target *ir.Entity) (map[ir.EntityRef]*ir.Entity, error) {
	refs := make(map[ir.EntityRef]*ir.Entity)
	err := m.eachReferencing(ctx, target, func(e *ir.Entity) {
		refs[e.Ref()] = e
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// eachReferencing calls fn for every entity referencing target, owning
// types in name order.
func (m *Manager) eachReferencing(ctx context.Context, target *ir.Entity, fn func(e *ir.Entity)) error {
	fields := m.ReferenceFields(target.Type)

	for _, owner := range fields.OwnerTypes() {
		q := m.store.Query(owner, store.ConjunctionOr)
		if def, ok := m.catalog.EntityType(owner); ok && def.Revisionable {
			q.AllRevisions()
		}
		for _, name := range fields.FieldNames(owner) {
			q.Condition(name+"."+store.PropertyTargetID, target.ID)
		}

		ids, err := q.Execute(ctx)
		if err != nil {
			return fmt.Errorf("referencing entities of %s: %w", target.Ref(), err)
		}
		if len(ids) == 0 {
			continue
		}

		loaded, err := m.store.LoadMultiple(ctx, owner, ids)
		if err != nil {
			return fmt.Errorf("referencing entities of %s: %w", target.Ref(), err)
		}
		for _, id := range ids {
			if e, ok := loaded[id]; ok {
				fn(e)
			}
		}
	}
	return nil
}

// referencedEntities returns the entities field points at on owner: the
// current value, or for composite revision fields every target recorded on
// any revision. Targets that no longer load are skipped.
func (m *Manager) referencedEntities(ctx context.Context, owner *ir.Entity, field ir.FieldDescriptor) ([]*ir.Entity, error) {
	if !field.CompositeRevisions {
		return m.store.ReferencedEntities(ctx, owner, field.Name)
	}

	source, err := m.revisionSource(ctx, field)
	if err != nil {
		return nil, err
	}
	ids, err := source.ReferencedIDs(ctx, owner, field)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	loaded, err := m.store.LoadMultiple(ctx, field.TargetType, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*ir.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := loaded[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// revisionSource picks the read path by probing for the field's dedicated
// revision table.
func (m *Manager) revisionSource(ctx context.Context, field ir.FieldDescriptor) (RevisionSource, error) {
	exists, err := m.tables.TableExists(ctx, store.DedicatedRevisionTableName(field))
	if err != nil {
		return nil, err
	}
	if exists {
		return m.dedicated, nil
	}
	return m.shared, nil
}

// OnEntityDelete handles the deletion of owner for one of its fields. It is
// called once per (entity, field) pair before owner's rows are removed.
//
// Non-composite fields are ignored without touching the store. For a
// composite field, each referenced entity is deleted when it is not the
// owner itself and nothing but the owner still references it.
func (m *Manager) OnEntityDelete(ctx context.Context, owner *ir.Entity, field ir.FieldDescriptor) error {
	if !field.Composite {
		return nil
	}

	referenced, err := m.referencedEntities(ctx, owner, field)
	if err != nil {
		return fmt.Errorf("referenced entities of %s.%s: %w", owner.Ref(), field.Name, err)
	}

	for _, r := range referenced {
		if r.UUID == owner.UUID {
			m.logger.Debug("skipping self reference", "entity", owner.Ref().String(), "field", field.Name)
			continue
		}

		referencing, err := m.referencingRefs(ctx, r)
		if err != nil {
			return err
		}
		// owner's rows are still stored while delete hooks run.
		delete(referencing, owner.Ref())
		if len(referencing) > 0 {
			m.logger.Debug("referenced entity retained",
				"entity", r.Ref().String(),
				"owner", owner.Ref().String(),
				"referencing", sortedRefs(referencing))
			continue
		}

		m.logger.Info("deleting orphaned entity",
			"entity", r.Ref().String(),
			"owner", owner.Ref().String(),
			"field", field.Name)
		if err := m.store.Delete(ctx, r); err != nil {
			return fmt.Errorf("delete orphan %s: %w", r.Ref(), err)
		}
	}
	return nil
}

func sortedRefs(refs map[ir.EntityRef]*ir.Entity) []string {
	out := make([]string, 0, len(refs))
	for ref := range refs {
		out = append(out, ref.String())
	}
	sort.Strings(out)
	return out
}
