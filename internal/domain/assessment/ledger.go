package assessment

import (
	"context"
	"time"

	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/retry"
)

// Ledger is the domain service over the append-only attempt history. All
// writes of attempt data go through Record; all reads of "current state" go
// through the latest-by-number attempt. Attempts are never updated or
// deleted, so a correction is simply a newer attempt.
type Ledger struct {
	attempts AttemptRepository
	retrier  *retry.Retrier
	now      func() time.Time
}

// NewLedger creates a Ledger over the attempt repository.
func NewLedger(attempts AttemptRepository) *Ledger {
	return &Ledger{
		attempts: attempts,
		retrier: retry.New(
			retry.WithMaxAttempts(5),
			retry.WithInitialDelay(10*time.Millisecond),
			retry.WithMaxDelay(250*time.Millisecond),
			retry.WithRetryIf(shared.IsConflict),
		),
		now: time.Now,
	}
}

// Record validates the value against the schema's behavior and appends a new
// attempt to the assessment's ledger. The attempt number is assigned by the
// repository inside a transaction; a concurrent append that collides on the
// number surfaces as shared.ErrConflict and is retried with a fresh number.
func (l *Ledger) Record(ctx context.Context, a *Assessment, schema *Schema, value Value, params Params) (*Attempt, error) {
	if a.SchemaID != schema.ID {
		return nil, shared.NewDomainError("assessment", "Record", shared.ErrIntegrity, "assessment does not belong to the schema")
	}

	behavior, err := BehaviorFor(schema.Kind)
	if err != nil {
		return nil, err
	}
	if err := behavior.ValidateValue(value, params); err != nil {
		return nil, err
	}

	attempt := &Attempt{
		ID:           shared.NewID(),
		AssessmentID: a.ID,
		CreatedAt:    l.now().UTC(),
		Value:        value,
	}

	err = l.retrier.Do(ctx, func(ctx context.Context) error {
		return l.attempts.Append(ctx, attempt)
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// LatestFor returns the attempt with the highest number, or nil when the
// assessment is unattempted.
func (l *Ledger) LatestFor(ctx context.Context, assessmentID shared.AssessmentID) (*Attempt, error) {
	return l.attempts.LatestFor(ctx, assessmentID)
}

// SignificantAttempts returns the attempts that feed history-based
// statistics: the most recent maxCount attempts, newest first. A nil
// maxCount means every attempt is significant.
func (l *Ledger) SignificantAttempts(ctx context.Context, assessmentID shared.AssessmentID, maxCount *int) ([]*Attempt, error) {
	limit := 0
	if maxCount != nil {
		if *maxCount <= 0 {
			return []*Attempt{}, nil
		}
		limit = *maxCount
	}
	return l.attempts.ListFor(ctx, assessmentID, limit)
}

// StateOf projects the assessment's current state from its ledger.
func (l *Ledger) StateOf(ctx context.Context, a *Assessment, schema *Schema, params Params) (State, error) {
	latest, err := l.attempts.LatestFor(ctx, a.ID)
	if err != nil {
		return State{}, err
	}
	count, err := l.attempts.CountFor(ctx, a.ID)
	if err != nil {
		return State{}, err
	}
	return ProjectState(a, schema, latest, count, params)
}
