package assessment

import (
	"time"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Attempt Values
// ═══════════════════════════════════════════════════════════════════════════

// Value is the kind-specific payload of an attempt. The concrete types below
// are the only implementations; a Value's kind must match the owning
// schema's kind, which the ledger enforces at write time.
type Value interface {
	// Kind returns the attempt kind this value belongs to.
	Kind() Kind
}

// PassFailValue is the payload of a pass/fail attempt.
type PassFailValue struct {
	State PassFailState `json:"state"`
}

// Kind returns KindPassFail.
func (PassFailValue) Kind() Kind { return KindPassFail }

// CompletionValue is the payload of a completion-based attempt.
type CompletionValue struct {
	State CompletionState `json:"state"`
}

// Kind returns KindCompletion.
func (CompletionValue) Kind() Kind { return KindCompletion }

// RatedValue is the payload of a rated attempt. MaxRating is the maximum
// that was configured when the attempt was recorded; rating_percent is
// derived at read time from the currently resolved maximum, not from this
// stored copy.
type RatedValue struct {
	Rating    int `json:"rating"`
	MaxRating int `json:"max_rating"`
}

// Kind returns KindRated.
func (RatedValue) Kind() Kind { return KindRated }

// GradedValue is the payload of a graded attempt.
type GradedValue struct {
	Grade Grade `json:"grade"`
}

// Kind returns KindGraded.
func (GradedValue) Kind() Kind { return KindGraded }

// ═══════════════════════════════════════════════════════════════════════════
// Attempt
// ═══════════════════════════════════════════════════════════════════════════

// Attempt is one immutable submission event against an assessment. Attempts
// are append-only: they are never mutated or deleted except by cascade when
// the owning assessment is deleted. Number is assigned transactionally as
// max(existing)+1, starting at 1.
type Attempt struct {
	ID           shared.ID
	AssessmentID shared.AssessmentID
	Number       int
	CreatedAt    time.Time
	Value        Value
}

// Validate checks the internal consistency of the attempt.
func (a *Attempt) Validate() error {
	if !a.ID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "attempt ID must be a UUID")
	}
	if !a.AssessmentID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "assessment ID must be a UUID")
	}
	if a.Number < 1 {
		return shared.NewDomainError("assessment", "Validate", shared.ErrValueOutOfRange, "attempt number must be positive")
	}
	if a.Value == nil {
		return shared.NewDomainError("assessment", "Validate", shared.ErrEmptyValue, "attempt value is required")
	}
	return nil
}

// AttemptKind returns the kind of the attempt's value payload.
func (a *Attempt) AttemptKind() Kind {
	if a.Value == nil {
		return ""
	}
	return a.Value.Kind()
}
