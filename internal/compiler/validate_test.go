package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composite/internal/ir"
)

func refField(name, target string, origin ir.FieldOrigin) ir.FieldDefinition {
	return ir.FieldDefinition{Name: name, Kind: ir.KindEntityReference, TargetType: target, Origin: origin}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	defs := []ir.EntityTypeDef{
		{Name: "node", Revisionable: true, Fields: []ir.FieldDefinition{
			refField("entity_reference", "node", ir.OriginBase),
			refField("ref", "paragraph", ir.OriginConfig),
			{Name: "body", Kind: ir.KindString, Origin: ir.OriginBase},
		}},
		{Name: "paragraph"},
	}

	assert.Empty(t, Validate(defs))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		defs []ir.EntityTypeDef
		code string
	}{
		{
			name: "invalid type name",
			defs: []ir.EntityTypeDef{{Name: "Node"}},
			code: ErrInvalidName,
		},
		{
			name: "invalid field name",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{{Name: "bad-name", Kind: ir.KindInt}}}},
			code: ErrInvalidName,
		},
		{
			name: "duplicate type",
			defs: []ir.EntityTypeDef{{Name: "node"}, {Name: "node"}},
			code: ErrDuplicateName,
		},
		{
			name: "duplicate field",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{
				{Name: "a", Kind: ir.KindInt, Origin: ir.OriginBase},
				{Name: "a", Kind: ir.KindInt, Origin: ir.OriginConfig},
			}}},
			code: ErrDuplicateName,
		},
		{
			name: "unknown kind",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{{Name: "a", Kind: "blob"}}}},
			code: ErrUnknownFieldKind,
		},
		{
			name: "float kind",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{{Name: "a", Kind: "float"}}}},
			code: ErrFloatKindForbidden,
		},
		{
			name: "missing target",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{refField("ref", "", ir.OriginConfig)}}},
			code: ErrMissingTargetType,
		},
		{
			name: "undeclared target",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{refField("ref", "media", ir.OriginConfig)}}},
			code: ErrUndeclaredTarget,
		},
		{
			name: "target on scalar",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{{Name: "a", Kind: ir.KindString, TargetType: "node"}}}},
			code: ErrTargetOnScalar,
		},
		{
			name: "settings on scalar",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{
				{Name: "a", Kind: ir.KindString, BaseSettings: &ir.CompositeSettings{Composite: true}},
			}}},
			code: ErrSettingsOnScalar,
		},
		{
			name: "reserved name",
			defs: []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{{Name: "uuid", Kind: ir.KindString}}}},
			code: ErrReservedFieldName,
		},
		{
			name: "type name ends like a revision table",
			defs: []ir.EntityTypeDef{{Name: "node"}, {Name: "node_revision"}},
			code: ErrReservedTypeName,
		},
		{
			name: "type name with double underscore",
			defs: []ir.EntityTypeDef{{Name: "node__ref"}},
			code: ErrReservedTypeName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.defs)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	defs := []ir.EntityTypeDef{{Name: "node", Fields: []ir.FieldDefinition{
		refField("a", "", ir.OriginConfig),
		refField("b", "media", ir.OriginConfig),
		{Name: "c", Kind: "blob"},
	}}}

	assert.Equal(t, []string{ErrMissingTargetType, ErrUndeclaredTarget, ErrUnknownFieldKind}, codes(Validate(defs)))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "entity_type.node.ref", Message: "bad", Code: ErrMissingTargetType}
	assert.Equal(t, "[E102] entity_type.node.ref: bad", err.Error())
}

func TestWarningsRevisionsOnNonRevisionable(t *testing.T) {
	f := refField("ref", "block", ir.OriginConfig)
	f.ThirdParty = &ir.CompositeSettings{Composite: true, CompositeRevisions: true}

	warnings := Warnings([]ir.EntityTypeDef{
		{Name: "block", Fields: []ir.FieldDefinition{f}},
	})

	// block owns itself, so a cycle warning follows the revisions warning.
	require.Len(t, warnings, 2)
	assert.Equal(t, WarnRevisionsNotRevisionable, warnings[0].Code)
	assert.Equal(t, "entity_type.block.ref", warnings[0].Field)
	assert.Equal(t, WarnCompositeCycle, warnings[1].Code)
}

func TestWarningsNoneForPlainTypes(t *testing.T) {
	assert.Empty(t, Warnings([]ir.EntityTypeDef{{Name: "node"}}))
}
