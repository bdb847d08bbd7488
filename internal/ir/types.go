package ir

import "sort"

// EntityTypeDef represents a compiled entity type definition.
type EntityTypeDef struct {
	Name         string            `json:"name"`
	Label        string            `json:"label"`
	Revisionable bool              `json:"revisionable"`
	Fields       []FieldDefinition `json:"fields"` // sorted by name
}

// Field returns the resolved descriptor for a field of this type.
func (d EntityTypeDef) Field(name string) (FieldDescriptor, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return NewFieldDescriptor(d.Name, d.Revisionable, f), true
		}
	}
	return FieldDescriptor{}, false
}

// Descriptors returns all fields of this type, resolved, sorted by name.
func (d EntityTypeDef) Descriptors() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(d.Fields))
	for _, f := range d.Fields {
		out = append(out, NewFieldDescriptor(d.Name, d.Revisionable, f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReferenceFields returns the resolved reference fields of this type.
func (d EntityTypeDef) ReferenceFields() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range d.Descriptors() {
		if f.IsReference() {
			out = append(out, f)
		}
	}
	return out
}

// Entity is one loaded entity at its current revision.
//
// References holds reference field values keyed by field name. A cleared
// field is an empty (or absent) slice. Values holds scalar fields.
type Entity struct {
	Type        string                     `json:"type"`
	ID          int64                      `json:"id"`
	UUID        string                     `json:"uuid"`
	RevisionID  int64                      `json:"revision_id"`
	Label       string                     `json:"label"`
	References  map[string][]ReferenceItem `json:"references,omitempty"`
	Values      IRObject                   `json:"values,omitempty"`
	NewRevision bool                       `json:"-"` // next Save creates a revision
}

// NewEntity creates an unsaved entity of the given type.
func NewEntity(entityType, label string) *Entity {
	return &Entity{
		Type:       entityType,
		Label:      label,
		References: make(map[string][]ReferenceItem),
		Values:     IRObject{},
	}
}

// Ref returns the (type, id) identity of the entity.
func (e *Entity) Ref() EntityRef {
	return EntityRef{Type: e.Type, ID: e.ID}
}

// IsNew reports whether the entity has not been saved yet.
func (e *Entity) IsNew() bool {
	return e.ID == 0
}

// Get returns the items of a reference field.
func (e *Entity) Get(field string) []ReferenceItem {
	return e.References[field]
}

// Set replaces the items of a reference field.
func (e *Entity) Set(field string, items ...ReferenceItem) {
	if e.References == nil {
		e.References = make(map[string][]ReferenceItem)
	}
	e.References[field] = append([]ReferenceItem(nil), items...)
}

// Clear empties a reference field.
func (e *Entity) Clear(field string) {
	e.Set(field)
}

// TargetIDs returns the non-empty target ids of a reference field,
// de-duplicated, in delta order.
func (e *Entity) TargetIDs(field string) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, item := range e.References[field] {
		if item.TargetID == 0 || seen[item.TargetID] {
			continue
		}
		seen[item.TargetID] = true
		ids = append(ids, item.TargetID)
	}
	return ids
}

// ReferencingSet is the result of an orphan check: every entity that still
// holds a reference to a target, keyed by entity id. An entity referencing
// the target through several fields or revisions appears once.
type ReferencingSet map[int64]*Entity

// Without returns a copy of the set with the given id removed.
func (s ReferencingSet) Without(id int64) ReferencingSet {
	out := make(ReferencingSet, len(s))
	for k, v := range s {
		if k != id {
			out[k] = v
		}
	}
	return out
}

// IDs returns the entity ids in ascending order.
func (s ReferencingSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Refs returns the entity refs in ascending id order.
func (s ReferencingSet) Refs() []EntityRef {
	refs := make([]EntityRef, 0, len(s))
	for _, id := range s.IDs() {
		refs = append(refs, s[id].Ref())
	}
	return refs
}

// HookType identifies an entity lifecycle hook point.
type HookType int

const (
	// BeforeDelete runs inside the delete unit of work, before any row is removed.
	BeforeDelete HookType = iota
	// AfterDelete runs inside the delete unit of work, after rows are removed.
	AfterDelete
)

// String returns the snake_case name of the hook type.
func (h HookType) String() string {
	switch h {
	case BeforeDelete:
		return "before_delete"
	case AfterDelete:
		return "after_delete"
	default:
		return "unknown"
	}
}
