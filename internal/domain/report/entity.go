// Package report holds the cached population snapshot: per (schema, node,
// class) statistics over a frozen candidate population.
package report

import (
	"time"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Key is the natural key of a report. ClassID nil means the report covers
// the whole subject population rather than a single class.
type Key struct {
	SchemaID shared.SchemaID
	NodeID   shared.NodeID
	ClassID  *shared.ClassID
}

// Report is a cached snapshot of how a population performed on one
// assessment schema at one curriculum node. The candidate population is
// frozen on the first generation; the statistics over that population are
// recomputed on every read. A snapshot is always considered stale, so a
// fetch through the query layer regenerates before serving.
type Report struct {
	ID       shared.ID
	SchemaID shared.SchemaID
	NodeID   shared.NodeID
	ClassID  *shared.ClassID
	Kind     assessment.Kind

	// Generation counts completed regenerations. Zero means the snapshot
	// has never been generated and carries no data yet.
	Generation  int
	GeneratedAt time.Time

	// CandidateIDs is the population frozen at the first generation. Later
	// enrollment changes do not alter it.
	CandidateIDs []shared.StudentID

	// AttemptedCandidateIDs is the subset of the frozen population with at
	// least one attempt, refreshed on every generation.
	AttemptedCandidateIDs []shared.StudentID
	PercentAttempted      shared.Percent

	Stats assessment.ReportStats
}

// NewReport creates an ungenerated snapshot shell for the key.
func NewReport(key Key, kind assessment.Kind) *Report {
	return &Report{
		ID:                    shared.NewID(),
		SchemaID:              key.SchemaID,
		NodeID:                key.NodeID,
		ClassID:               key.ClassID,
		Kind:                  kind,
		CandidateIDs:          []shared.StudentID{},
		AttemptedCandidateIDs: []shared.StudentID{},
	}
}

// NaturalKey returns the report's unique (schema, node, class) key.
func (r *Report) NaturalKey() Key {
	return Key{SchemaID: r.SchemaID, NodeID: r.NodeID, ClassID: r.ClassID}
}

// IsGenerated reports whether the snapshot has ever been generated.
func (r *Report) IsGenerated() bool {
	return r.Generation > 0
}

// RequiresRegeneration reports whether a fetch must regenerate before
// serving. Snapshots carry no freshness signal, so the answer is always
// yes; the cost is bounded by the frozen population size.
func (r *Report) RequiresRegeneration() bool {
	return true
}

// FreezeCandidates pins the population on the first generation. After
// that the frozen set is immutable and later calls are ignored.
func (r *Report) FreezeCandidates(population []shared.StudentID) {
	if r.IsGenerated() {
		return
	}
	r.CandidateIDs = append([]shared.StudentID{}, population...)
}

// ApplyGeneration records the outcome of one regeneration pass: the
// attempted subset of the frozen population and the recomputed statistics.
// The caller must have aggregated stats over exactly the attempted subset.
func (r *Report) ApplyGeneration(attempted []shared.StudentID, stats assessment.ReportStats, at time.Time) {
	r.AttemptedCandidateIDs = intersectWithFrozen(r.CandidateIDs, attempted)
	r.PercentAttempted = shared.PercentOf(len(r.AttemptedCandidateIDs), len(r.CandidateIDs))
	r.Stats = stats
	r.Generation++
	r.GeneratedAt = at
}

// IsCandidate reports whether the student belongs to the frozen population.
func (r *Report) IsCandidate(studentID shared.StudentID) bool {
	for _, id := range r.CandidateIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Validate checks the internal consistency of the report.
func (r *Report) Validate() error {
	if !r.ID.IsValid() {
		return shared.NewDomainError("report", "Validate", shared.ErrInvalidID, "report ID must be a UUID")
	}
	if !r.SchemaID.IsValid() {
		return shared.NewDomainError("report", "Validate", shared.ErrInvalidID, "schema ID must be a UUID")
	}
	if !r.NodeID.IsValid() {
		return shared.NewDomainError("report", "Validate", shared.ErrInvalidID, "node ID must be a UUID")
	}
	if r.ClassID != nil && !r.ClassID.IsValid() {
		return shared.NewDomainError("report", "Validate", shared.ErrInvalidID, "class ID must be a UUID")
	}
	if !r.Kind.IsValid() {
		return shared.NewDomainError("report", "Validate", shared.ErrInvalidInput, "unrecognised attempt kind")
	}
	if r.Generation < 0 {
		return shared.NewDomainError("report", "Validate", shared.ErrValueOutOfRange, "generation must not be negative")
	}
	return nil
}

// intersectWithFrozen keeps the frozen set's order and drops attempted IDs
// outside the frozen population.
func intersectWithFrozen(frozen, attempted []shared.StudentID) []shared.StudentID {
	attemptedSet := make(map[shared.StudentID]struct{}, len(attempted))
	for _, id := range attempted {
		attemptedSet[id] = struct{}{}
	}

	result := []shared.StudentID{}
	for _, id := range frozen {
		if _, ok := attemptedSet[id]; ok {
			result = append(result, id)
		}
	}
	return result
}
