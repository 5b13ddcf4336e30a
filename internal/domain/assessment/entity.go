package assessment

import (
	"time"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Assessment is the join of (schema, student, curriculum node): one
// student's obligation to attempt one kind of assessment at one curriculum
// location. The triple is unique; all "current state" is derived from the
// attempt ledger, never stored here.
type Assessment struct {
	ID        shared.AssessmentID
	SchemaID  shared.SchemaID
	StudentID shared.StudentID
	NodeID    shared.NodeID
	CreatedAt time.Time
}

// Validate checks the internal consistency of the assessment.
func (a *Assessment) Validate() error {
	if !a.ID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "assessment ID must be a UUID")
	}
	if !a.SchemaID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "schema ID must be a UUID")
	}
	if !a.StudentID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "student ID must be a UUID")
	}
	if !a.NodeID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "node ID must be a UUID")
	}
	return nil
}

// Key is the natural key of an assessment.
type Key struct {
	SchemaID  shared.SchemaID
	StudentID shared.StudentID
	NodeID    shared.NodeID
}

// NaturalKey returns the assessment's unique (schema, student, node) key.
func (a *Assessment) NaturalKey() Key {
	return Key{SchemaID: a.SchemaID, StudentID: a.StudentID, NodeID: a.NodeID}
}
