package ir

import "fmt"

// EntityRef identifies one concrete entity instance.
// IDs are unique within an entity type, not across types.
type EntityRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// String returns the "type/id" form used in logs and traces.
func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// RevisionRef identifies one immutable revision of a revisionable entity.
type RevisionRef struct {
	ID         int64 `json:"id"`
	RevisionID int64 `json:"revision_id"`
}

// ReferenceItem is one value of a reference field.
// TargetRevisionID is only meaningful for entity_reference_revisions fields.
type ReferenceItem struct {
	TargetID         int64 `json:"target_id"`
	TargetRevisionID int64 `json:"target_revision_id,omitempty"`
}
