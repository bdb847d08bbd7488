package store

import (
	"fmt"

	"github.com/roach88/composite/internal/ir"
)

// IDKey is the entity id column of the shared entity tables.
const IDKey = "id"

// dedicatedIDKey is the entity id column of per-field tables.
const dedicatedIDKey = "entity_id"

// Field column properties.
const (
	PropertyTargetID         = "target_id"
	PropertyTargetRevisionID = "target_revision_id"
)

// BaseTable holds one identity row per entity.
func BaseTable(entityType string) string {
	return entityType
}

// RevisionTable holds one row per revision of a revisionable type.
func RevisionTable(entityType string) string {
	return entityType + "_revision"
}

// DataTable holds the current label, scalar values and base field columns.
func DataTable(entityType string) string {
	return entityType + "_field_data"
}

// RevisionDataTable returns the shared revision data table of a type, the
// table that stores base field values for every revision.
func RevisionDataTable(def ir.EntityTypeDef) (string, error) {
	if !def.Revisionable {
		return "", fmt.Errorf("entity type %q is not revisionable", def.Name)
	}
	return def.Name + "_field_revision", nil
}

// DedicatedTableName returns the current-value table of a configured field.
func DedicatedTableName(f ir.FieldDescriptor) string {
	return f.EntityType + "__" + f.Name
}

// DedicatedRevisionTableName returns the per-revision table of a
// configured field. The table only exists for configured fields on
// revisionable types; callers probe with TableExists.
func DedicatedRevisionTableName(f ir.FieldDescriptor) string {
	return f.EntityType + "_revision__" + f.Name
}

// FieldColumnName returns the column holding one property of a field.
func FieldColumnName(f ir.FieldDescriptor, property string) string {
	return f.Name + "_" + property
}

// fieldColumns returns the storage columns of a reference field in the
// order they are written.
func fieldColumns(f ir.FieldDescriptor) []string {
	cols := []string{FieldColumnName(f, PropertyTargetID)}
	if f.Kind == ir.KindEntityReferenceRevisions {
		cols = append(cols, FieldColumnName(f, PropertyTargetRevisionID))
	}
	return cols
}

// sharedReferenceFields returns the reference fields stored as columns of
// the shared data tables.
func sharedReferenceFields(def ir.EntityTypeDef) []ir.FieldDescriptor {
	var out []ir.FieldDescriptor
	for _, f := range def.ReferenceFields() {
		if !f.HasDedicatedStorage() {
			out = append(out, f)
		}
	}
	return out
}

// dedicatedReferenceFields returns the reference fields with their own tables.
func dedicatedReferenceFields(def ir.EntityTypeDef) []ir.FieldDescriptor {
	var out []ir.FieldDescriptor
	for _, f := range def.ReferenceFields() {
		if f.HasDedicatedStorage() {
			out = append(out, f)
		}
	}
	return out
}

// dataColumns lists the columns of the data and revision data tables after
// the fixed id, revision_id, label and data columns.
func dataColumns(def ir.EntityTypeDef) []string {
	var cols []string
	for _, f := range sharedReferenceFields(def) {
		cols = append(cols, fieldColumns(f)...)
	}
	return cols
}
