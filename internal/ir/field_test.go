package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFieldDescriptorResolution(t *testing.T) {
	on := &CompositeSettings{Composite: true, CompositeRevisions: true}
	off := &CompositeSettings{}

	tests := []struct {
		name         string
		def          FieldDefinition
		revisionable bool
		composite    bool
		revisions    bool
	}{
		{
			name:         "config field uses third-party settings",
			def:          FieldDefinition{Name: "f", Kind: KindEntityReference, Origin: OriginConfig, ThirdParty: on, BaseSettings: off},
			revisionable: true,
			composite:    true,
			revisions:    true,
		},
		{
			name:         "config field without settings is not composite",
			def:          FieldDefinition{Name: "f", Kind: KindEntityReference, Origin: OriginConfig, BaseSettings: on},
			revisionable: true,
		},
		{
			name:         "base field uses base settings",
			def:          FieldDefinition{Name: "f", Kind: KindEntityReference, Origin: OriginBase, BaseSettings: on, ThirdParty: off},
			revisionable: true,
			composite:    true,
			revisions:    true,
		},
		{
			name:         "override without third-party inherits base",
			def:          FieldDefinition{Name: "f", Kind: KindEntityReference, Origin: OriginOverride, BaseSettings: on},
			revisionable: true,
			composite:    true,
			revisions:    true,
		},
		{
			name:         "override with third-party wins",
			def:          FieldDefinition{Name: "f", Kind: KindEntityReference, Origin: OriginOverride, BaseSettings: on, ThirdParty: off},
			revisionable: true,
		},
		{
			name:         "revisions forced off for non-revisionable owner",
			def:          FieldDefinition{Name: "f", Kind: KindEntityReferenceRevisions, Origin: OriginConfig, ThirdParty: on},
			revisionable: false,
			composite:    true,
		},
		{
			name:         "scalar fields are never composite",
			def:          FieldDefinition{Name: "f", Kind: KindString, Origin: OriginBase, BaseSettings: on},
			revisionable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd := NewFieldDescriptor("node", tt.revisionable, tt.def)
			assert.Equal(t, "node", fd.EntityType)
			assert.Equal(t, tt.composite, fd.Composite)
			assert.Equal(t, tt.revisions, fd.CompositeRevisions)
		})
	}
}

func TestFieldDescriptorStorage(t *testing.T) {
	assert.True(t, FieldDescriptor{Origin: OriginConfig}.HasDedicatedStorage())
	assert.False(t, FieldDescriptor{Origin: OriginBase}.HasDedicatedStorage())
	assert.False(t, FieldDescriptor{Origin: OriginOverride}.HasDedicatedStorage())
}

func TestFieldKindIsReference(t *testing.T) {
	for _, k := range ReferenceKinds {
		assert.True(t, k.IsReference(), k)
		assert.True(t, ValidFieldKinds[k], k)
	}
	assert.False(t, KindString.IsReference())
	assert.False(t, KindInt.IsReference())
	assert.False(t, ValidFieldKinds["float"])
}

func TestReferenceFieldMapAccessors(t *testing.T) {
	m := ReferenceFieldMap{
		"node":  {{Name: "ref"}, {Name: "entity_reference"}},
		"block": {{Name: "parent"}},
	}

	assert.Equal(t, []string{"block", "node"}, m.OwnerTypes())
	assert.Equal(t, []string{"ref", "entity_reference"}, m.FieldNames("node"))
	assert.Empty(t, m.FieldNames("user"))
}
