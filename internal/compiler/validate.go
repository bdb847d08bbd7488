package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/composite/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidName        = "E100" // entity type or field name unusable as an SQL identifier
	ErrUnknownFieldKind   = "E101" // kind not in ir.ValidFieldKinds
	ErrMissingTargetType  = "E102" // reference field without target_type
	ErrUndeclaredTarget   = "E103" // target_type names no declared entity type
	ErrDuplicateName      = "E104" // duplicate entity type or field name
	ErrTargetOnScalar     = "E105" // target_type set on a non-reference field
	ErrFloatKindForbidden = "E106" // float field kinds are not allowed
	ErrReservedFieldName  = "E107" // field name collides with a storage column
	ErrSettingsOnScalar   = "E108" // composite settings on a non-reference field
	ErrReservedTypeName   = "E109" // entity type name collides with a generated table
)

// Warning codes (W100-W199)
const (
	WarnRevisionsNotRevisionable = "W101" // composite_revisions on a non-revisionable type
	WarnCompositeCycle           = "W102" // composite fields form a cycle
)

// identPattern matches names that can be used verbatim in table and
// column names.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reservedFieldNames collide with columns every entity table carries.
var reservedFieldNames = map[string]bool{
	"id":          true,
	"uuid":        true,
	"revision_id": true,
	"label":       true,
	"data":        true,
	"entity_id":   true,
	"delta":       true,
}

// reservedTypeSuffixes would make a type's tables collide with the tables
// generated for another type.
var reservedTypeSuffixes = []string{"_revision", "_field_data", "_field_revision"}

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Warning is a finding that does not block loading.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Code, w.Field, w.Message)
}

// Validate checks a set of compiled entity types against each other.
// Returns all errors found (does not fail-fast).
func Validate(defs []ir.EntityTypeDef) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]bool, len(defs))
	for i, def := range defs {
		path := fmt.Sprintf("entity_type.%s", def.Name)
		if !identPattern.MatchString(def.Name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("entity_types[%d].name", i),
				Message: fmt.Sprintf("invalid entity type name %q: must match %s", def.Name, identPattern),
				Code:    ErrInvalidName,
			})
		}
		if reservedTypeName(def.Name) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("entity type name %q collides with generated table names", def.Name),
				Code:    ErrReservedTypeName,
			})
		}
		if declared[def.Name] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("duplicate entity type: %q", def.Name),
				Code:    ErrDuplicateName,
			})
		}
		declared[def.Name] = true
	}

	for _, def := range defs {
		errs = append(errs, validateFields(def, declared)...)
	}

	return errs
}

func reservedTypeName(name string) bool {
	if strings.Contains(name, "__") {
		return true
	}
	for _, suffix := range reservedTypeSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func validateFields(def ir.EntityTypeDef, declared map[string]bool) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(def.Fields))

	for _, f := range def.Fields {
		path := fmt.Sprintf("entity_type.%s.%s", def.Name, f.Name)

		if !identPattern.MatchString(f.Name) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("invalid field name %q: must match %s", f.Name, identPattern),
				Code:    ErrInvalidName,
			})
		}
		if reservedFieldNames[f.Name] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("field name %q is reserved", f.Name),
				Code:    ErrReservedFieldName,
			})
		}
		if seen[f.Name] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[f.Name] = true

		switch {
		case f.Kind == "float" || f.Kind == "decimal":
			errs = append(errs, ValidationError{
				Field:   path + ".kind",
				Message: "float types are forbidden - use int instead",
				Code:    ErrFloatKindForbidden,
			})
			continue
		case !ir.ValidFieldKinds[f.Kind]:
			errs = append(errs, ValidationError{
				Field:   path + ".kind",
				Message: fmt.Sprintf("unknown field kind %q", f.Kind),
				Code:    ErrUnknownFieldKind,
			})
			continue
		}

		if !f.Kind.IsReference() {
			if f.TargetType != "" {
				errs = append(errs, ValidationError{
					Field:   path + ".target_type",
					Message: fmt.Sprintf("%s fields cannot have a target type", f.Kind),
					Code:    ErrTargetOnScalar,
				})
			}
			if f.BaseSettings != nil || f.ThirdParty != nil {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: "composite settings only apply to reference fields",
					Code:    ErrSettingsOnScalar,
				})
			}
			continue
		}

		switch {
		case f.TargetType == "":
			errs = append(errs, ValidationError{
				Field:   path + ".target_type",
				Message: "reference fields require a target type",
				Code:    ErrMissingTargetType,
			})
		case !declared[f.TargetType]:
			errs = append(errs, ValidationError{
				Field:   path + ".target_type",
				Message: fmt.Sprintf("target type %q is not declared", f.TargetType),
				Code:    ErrUndeclaredTarget,
			})
		}
	}

	return errs
}

// Warnings reports legal but suspicious configuration: revision tracking
// requested on a type that has no revisions, and composite cycles.
func Warnings(defs []ir.EntityTypeDef) []Warning {
	var warnings []Warning

	for _, def := range defs {
		if def.Revisionable {
			continue
		}
		for _, f := range def.Fields {
			for _, s := range []*ir.CompositeSettings{f.BaseSettings, f.ThirdParty} {
				if s != nil && s.CompositeRevisions {
					warnings = append(warnings, Warning{
						Field:   fmt.Sprintf("entity_type.%s.%s", def.Name, f.Name),
						Message: "composite_revisions has no effect: entity type is not revisionable",
						Code:    WarnRevisionsNotRevisionable,
					})
					break
				}
			}
		}
	}

	for _, cw := range AnalyzeCycles(defs) {
		warnings = append(warnings, Warning{
			Field:   "entity_types",
			Message: cw.Message,
			Code:    WarnCompositeCycle,
		})
	}

	return warnings
}
