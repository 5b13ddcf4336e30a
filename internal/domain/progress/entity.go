// Package progress holds the cached per-student snapshot: one student's
// statistics for one assessment schema under one curriculum subtree.
package progress

import (
	"time"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Key is the natural key of a progress snapshot. NodeID scopes the
// statistics to the node and its descendants.
type Key struct {
	SchemaID  shared.SchemaID
	StudentID shared.StudentID
	NodeID    shared.NodeID
}

// Progress is a cached snapshot of one student's standing across every
// assessment of a schema under a curriculum subtree. It mirrors the report
// snapshot policy: the assessment set is frozen on the first generation,
// the statistics over that set are recomputed on every read, and the
// snapshot is always considered stale.
type Progress struct {
	ID        shared.ID
	SchemaID  shared.SchemaID
	StudentID shared.StudentID
	NodeID    shared.NodeID
	Kind      assessment.Kind

	Generation  int
	GeneratedAt time.Time

	// AssessmentIDs is the assessment set frozen at the first generation.
	AssessmentIDs []shared.AssessmentID

	// AttemptedAssessmentIDs is the subset of the frozen set with at least
	// one attempt, refreshed on every generation.
	AttemptedAssessmentIDs []shared.AssessmentID
	PercentAttempted       shared.Percent

	Stats assessment.ProgressStats
}

// NewProgress creates an ungenerated snapshot shell for the key.
func NewProgress(key Key, kind assessment.Kind) *Progress {
	return &Progress{
		ID:                     shared.NewID(),
		SchemaID:               key.SchemaID,
		StudentID:              key.StudentID,
		NodeID:                 key.NodeID,
		Kind:                   kind,
		AssessmentIDs:          []shared.AssessmentID{},
		AttemptedAssessmentIDs: []shared.AssessmentID{},
	}
}

// NaturalKey returns the snapshot's unique (schema, student, node) key.
func (p *Progress) NaturalKey() Key {
	return Key{SchemaID: p.SchemaID, StudentID: p.StudentID, NodeID: p.NodeID}
}

// IsGenerated reports whether the snapshot has ever been generated.
func (p *Progress) IsGenerated() bool {
	return p.Generation > 0
}

// RequiresRegeneration reports whether a fetch must regenerate before
// serving; always yes, as for reports.
func (p *Progress) RequiresRegeneration() bool {
	return true
}

// FreezeAssessments pins the assessment set on the first generation.
func (p *Progress) FreezeAssessments(assessmentIDs []shared.AssessmentID) {
	if p.IsGenerated() {
		return
	}
	p.AssessmentIDs = append([]shared.AssessmentID{}, assessmentIDs...)
}

// ApplyGeneration records the outcome of one regeneration pass.
func (p *Progress) ApplyGeneration(attempted []shared.AssessmentID, stats assessment.ProgressStats, at time.Time) {
	p.AttemptedAssessmentIDs = intersectWithFrozen(p.AssessmentIDs, attempted)
	p.PercentAttempted = shared.PercentOf(len(p.AttemptedAssessmentIDs), len(p.AssessmentIDs))
	p.Stats = stats
	p.Generation++
	p.GeneratedAt = at
}

// Validate checks the internal consistency of the snapshot.
func (p *Progress) Validate() error {
	if !p.ID.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidID, "progress ID must be a UUID")
	}
	if !p.SchemaID.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidID, "schema ID must be a UUID")
	}
	if !p.StudentID.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidID, "student ID must be a UUID")
	}
	if !p.NodeID.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidID, "node ID must be a UUID")
	}
	if !p.Kind.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "unrecognised attempt kind")
	}
	if p.Generation < 0 {
		return shared.NewDomainError("progress", "Validate", shared.ErrValueOutOfRange, "generation must not be negative")
	}
	return nil
}

func intersectWithFrozen(frozen, attempted []shared.AssessmentID) []shared.AssessmentID {
	attemptedSet := make(map[shared.AssessmentID]struct{}, len(attempted))
	for _, id := range attempted {
		attemptedSet[id] = struct{}{}
	}

	result := []shared.AssessmentID{}
	for _, id := range frozen {
		if _, ok := attemptedSet[id]; ok {
			result = append(result, id)
		}
	}
	return result
}
