package ir

import "sort"

// FieldKind is the storage kind of a field.
type FieldKind string

const (
	// KindEntityReference is a plain reference to another entity.
	KindEntityReference FieldKind = "entity_reference"

	// KindEntityReferenceRevisions references a specific revision of another entity.
	KindEntityReferenceRevisions FieldKind = "entity_reference_revisions"

	// KindString is a scalar text field.
	KindString FieldKind = "string"

	// KindInt is a scalar integer field.
	KindInt FieldKind = "int"
)

// ReferenceKinds lists the field kinds that can point at another entity,
// in the order they are scanned during field discovery.
var ReferenceKinds = []FieldKind{KindEntityReference, KindEntityReferenceRevisions}

// ValidFieldKinds defines allowed field kinds.
var ValidFieldKinds = map[FieldKind]bool{
	KindEntityReference:          true,
	KindEntityReferenceRevisions: true,
	KindString:                   true,
	KindInt:                      true,
}

// IsReference reports whether fields of this kind carry target ids.
func (k FieldKind) IsReference() bool {
	return k == KindEntityReference || k == KindEntityReferenceRevisions
}

// FieldOrigin records which configuration source defined a field.
type FieldOrigin string

const (
	// OriginBase is a code-defined base field. Single-valued, stored as
	// columns of the entity type's data and revision data tables.
	OriginBase FieldOrigin = "base"

	// OriginConfig is a site-configured field. Multi-valued, stored in
	// dedicated per-field tables.
	OriginConfig FieldOrigin = "config"

	// OriginOverride is a base field whose settings are overridden by
	// site configuration. Storage is the same as OriginBase.
	OriginOverride FieldOrigin = "override"
)

// CompositeSettings holds the two composite flags as configured.
type CompositeSettings struct {
	Composite          bool `json:"composite"`
	CompositeRevisions bool `json:"composite_revisions,omitempty"`
}

// FieldDefinition is a field as configured, before composite settings are
// resolved. Base fields carry their settings in BaseSettings; configured
// fields and overrides carry them in ThirdParty.
type FieldDefinition struct {
	Name         string             `json:"name"`
	Kind         FieldKind          `json:"kind"`
	TargetType   string             `json:"target_type,omitempty"`
	Origin       FieldOrigin        `json:"origin"`
	BaseSettings *CompositeSettings `json:"base_settings,omitempty"`
	ThirdParty   *CompositeSettings `json:"third_party,omitempty"`
}

// FieldDescriptor is a resolved, read-only view of a field.
// Composite and CompositeRevisions are final: every config source has
// already been folded in by NewFieldDescriptor.
type FieldDescriptor struct {
	EntityType         string      `json:"entity_type"`
	Name               string      `json:"name"`
	Kind               FieldKind   `json:"kind"`
	TargetType         string      `json:"target_type,omitempty"`
	Origin             FieldOrigin `json:"origin"`
	Composite          bool        `json:"composite"`
	CompositeRevisions bool        `json:"composite_revisions"`
}

// NewFieldDescriptor resolves a field definition owned by entityType.
//
// Resolution order:
//   - config fields: third-party settings, absent means not composite
//   - base fields: the base field settings
//   - overrides: third-party settings when present, else the base settings
//     the override was created from
//
// CompositeRevisions is forced to false when the owner is not revisionable.
func NewFieldDescriptor(entityType string, revisionable bool, def FieldDefinition) FieldDescriptor {
	var settings *CompositeSettings
	switch def.Origin {
	case OriginConfig:
		settings = def.ThirdParty
	case OriginOverride:
		settings = def.ThirdParty
		if settings == nil {
			settings = def.BaseSettings
		}
	default:
		settings = def.BaseSettings
	}

	fd := FieldDescriptor{
		EntityType: entityType,
		Name:       def.Name,
		Kind:       def.Kind,
		TargetType: def.TargetType,
		Origin:     def.Origin,
	}
	if settings != nil && def.Kind.IsReference() {
		fd.Composite = settings.Composite
		fd.CompositeRevisions = settings.CompositeRevisions && revisionable
	}
	return fd
}

// IsReference reports whether the field can point at another entity.
func (f FieldDescriptor) IsReference() bool {
	return f.Kind.IsReference()
}

// HasDedicatedStorage reports whether values live in per-field tables
// rather than in columns of the shared entity tables.
func (f FieldDescriptor) HasDedicatedStorage() bool {
	return f.Origin == OriginConfig
}

// ReferenceFieldMap maps owning entity type to the reference fields on that
// type which can point at one particular target type.
// Built fresh per computation and never cached.
type ReferenceFieldMap map[string][]FieldDescriptor

// OwnerTypes returns the owning entity types in sorted order.
func (m ReferenceFieldMap) OwnerTypes() []string {
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// FieldNames returns the field names for one owning type, in map order.
func (m ReferenceFieldMap) FieldNames(ownerType string) []string {
	fields := m[ownerType]
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
