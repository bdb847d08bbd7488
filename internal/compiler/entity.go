package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/composite/internal/ir"
)

// CompileEntityType parses a CUE value into an EntityTypeDef.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity type struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity_type: node: { ... }`)
//	def, err := CompileEntityType(v.LookupPath(cue.ParsePath("entity_type.node")))
//
// Base fields, configured fields and overrides are folded into a single
// field list sorted by name. An override turns the base field it names into
// an OriginOverride field carrying the override's third-party settings.
func CompileEntityType(v cue.Value) (*ir.EntityTypeDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &ir.EntityTypeDef{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	label, err := optionalString(v, "label")
	if err != nil {
		return nil, err
	}
	def.Label = label
	if def.Label == "" {
		def.Label = def.Name
	}

	revisionable, err := optionalBool(v, "revisionable")
	if err != nil {
		return nil, err
	}
	def.Revisionable = revisionable

	baseFields, err := parseFields(v, "base_field", ir.OriginBase)
	if err != nil {
		return nil, err
	}
	configFields, err := parseFields(v, "field", ir.OriginConfig)
	if err != nil {
		return nil, err
	}

	if err := applyOverrides(v, baseFields); err != nil {
		return nil, err
	}

	def.Fields = append(baseFields, configFields...)
	sort.SliceStable(def.Fields, func(i, j int) bool {
		return def.Fields[i].Name < def.Fields[j].Name
	})

	return def, nil
}

// parseFields extracts the field definitions under one section
// ("base_field" or "field").
func parseFields(v cue.Value, section string, origin ir.FieldOrigin) ([]ir.FieldDefinition, error) {
	var fields []ir.FieldDefinition

	sectionVal := v.LookupPath(cue.ParsePath(section))
	if !sectionVal.Exists() {
		return fields, nil
	}

	iter, err := sectionVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		fieldVal := iter.Value()
		path := fmt.Sprintf("%s.%s", section, name)

		kindVal := fieldVal.LookupPath(cue.ParsePath("kind"))
		if !kindVal.Exists() {
			return nil, &CompileError{
				Field:   path + ".kind",
				Message: "field kind is required",
				Pos:     fieldVal.Pos(),
			}
		}
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		target, err := optionalString(fieldVal, "target_type")
		if err != nil {
			return nil, err
		}

		field := ir.FieldDefinition{
			Name:       name,
			Kind:       ir.FieldKind(kind),
			TargetType: target,
			Origin:     origin,
		}

		// Base fields carry their flags in settings; configured fields keep
		// them as third-party settings of the field config.
		settingsKey := "third_party"
		if origin == ir.OriginBase {
			settingsKey = "settings"
		}
		settings, err := parseCompositeSettings(fieldVal, settingsKey)
		if err != nil {
			return nil, err
		}
		if origin == ir.OriginBase {
			field.BaseSettings = settings
		} else {
			field.ThirdParty = settings
		}

		fields = append(fields, field)
	}

	return fields, nil
}

// applyOverrides folds "override" entries into the base fields they name.
func applyOverrides(v cue.Value, baseFields []ir.FieldDefinition) error {
	overrideVal := v.LookupPath(cue.ParsePath("override"))
	if !overrideVal.Exists() {
		return nil
	}

	iter, err := overrideVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		idx := -1
		for i := range baseFields {
			if baseFields[i].Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &CompileError{
				Field:   "override." + name,
				Message: fmt.Sprintf("override of unknown base field %q", name),
				Pos:     iter.Value().Pos(),
			}
		}

		settings, err := parseCompositeSettings(iter.Value(), "third_party")
		if err != nil {
			return err
		}
		baseFields[idx].Origin = ir.OriginOverride
		baseFields[idx].ThirdParty = settings
	}
	return nil
}

// parseCompositeSettings reads <key>.composite_reference. Returns nil when
// the block is absent so resolution can tell "unset" from "false".
func parseCompositeSettings(v cue.Value, key string) (*ir.CompositeSettings, error) {
	blockVal := v.LookupPath(cue.ParsePath(key + ".composite_reference"))
	if !blockVal.Exists() {
		return nil, nil
	}

	composite, err := optionalBool(blockVal, "composite")
	if err != nil {
		return nil, err
	}
	revisions, err := optionalBool(blockVal, "composite_revisions")
	if err != nil {
		return nil, err
	}
	return &ir.CompositeSettings{Composite: composite, CompositeRevisions: revisions}, nil
}

func optionalString(v cue.Value, key string) (string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, key string) (bool, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return false, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
