package assessment

import (
	"time"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Params carries the option values that parameterize attempt validation and
// state projection, resolved through the option chain at read time.
type Params struct {
	// MaxAvailableRating is the resolved maximum for rated attempts.
	// Resolving at read time means a later change of the maximum reflects
	// retroactively in rating_percent.
	MaxAvailableRating int

	// MaxSignificantAttempts bounds history-based statistics; nil means all
	// attempts are significant.
	MaxSignificantAttempts *int
}

// State is the derived "current" view of one assessment, computed from the
// latest-by-number attempt. Kind-specific fields are nil when they do not
// apply or when the assessment is unattempted: an unattempted rated
// assessment has no rating_percent at all, not a zero one.
type State struct {
	AssessmentID shared.AssessmentID `json:"assessment_id"`
	SchemaID     shared.SchemaID     `json:"schema_id"`
	StudentID    shared.StudentID    `json:"student_id"`
	NodeID       shared.NodeID       `json:"node_id"`
	Kind         Kind                `json:"kind"`

	IsAttempted  bool       `json:"is_attempted"`
	AttemptedAt  *time.Time `json:"attempted_at,omitempty"`
	AttemptCount int        `json:"attempt_count"`

	// Pass/fail
	IsPass *bool `json:"is_pass,omitempty"`

	// Completion
	CompletionState     *CompletionState `json:"completion_state,omitempty"`
	IsComplete          *bool            `json:"is_complete,omitempty"`
	IsPartiallyComplete *bool            `json:"is_partially_complete,omitempty"`

	// Rated
	Rating        *int            `json:"rating,omitempty"`
	MaxRating     *int            `json:"max_rating,omitempty"`
	RatingPercent *shared.Percent `json:"rating_percent,omitempty"`

	// Graded
	Grade *Grade `json:"grade,omitempty"`
}

// ProjectState builds the derived state of an assessment from its latest
// attempt. latest may be nil for an unattempted assessment; attemptCount is
// the ledger length. The projection delegates kind-specific fields to the
// behavior table.
func ProjectState(a *Assessment, schema *Schema, latest *Attempt, attemptCount int, params Params) (State, error) {
	behavior, err := BehaviorFor(schema.Kind)
	if err != nil {
		return State{}, err
	}

	state := State{
		AssessmentID: a.ID,
		SchemaID:     a.SchemaID,
		StudentID:    a.StudentID,
		NodeID:       a.NodeID,
		Kind:         schema.Kind,
		AttemptCount: attemptCount,
	}

	if latest == nil {
		return state, nil
	}
	if latest.AttemptKind() != schema.Kind {
		return State{}, shared.NewDomainError("assessment", "ProjectState", shared.ErrIntegrity, "persisted attempt kind does not match schema kind")
	}

	state.IsAttempted = true
	attemptedAt := latest.CreatedAt
	state.AttemptedAt = &attemptedAt
	behavior.projectState(&state, latest, params)
	return state, nil
}
