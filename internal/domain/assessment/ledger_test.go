package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// fakeAttemptRepo is an in-memory AttemptRepository for ledger tests. It
// assigns attempt numbers the same way the postgres implementation does:
// max(existing)+1 per assessment.
type fakeAttemptRepo struct {
	attempts map[shared.AssessmentID][]*Attempt

	// conflictsLeft makes the next N appends fail with shared.ErrConflict
	// before the write lands, simulating a lost number race.
	conflictsLeft int
	appendCalls   int
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[shared.AssessmentID][]*Attempt)}
}

func (f *fakeAttemptRepo) Append(_ context.Context, attempt *Attempt) error {
	f.appendCalls++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return shared.NewDomainError("postgres", "Append", shared.ErrConflict, "attempt number collision")
	}

	number := 0
	for _, existing := range f.attempts[attempt.AssessmentID] {
		if existing.Number > number {
			number = existing.Number
		}
	}
	attempt.Number = number + 1
	f.attempts[attempt.AssessmentID] = append(f.attempts[attempt.AssessmentID], attempt)
	return nil
}

func (f *fakeAttemptRepo) LatestFor(_ context.Context, assessmentID shared.AssessmentID) (*Attempt, error) {
	var latest *Attempt
	for _, a := range f.attempts[assessmentID] {
		if latest == nil || a.Number > latest.Number {
			latest = a
		}
	}
	return latest, nil
}

func (f *fakeAttemptRepo) ListFor(_ context.Context, assessmentID shared.AssessmentID, limit int) ([]*Attempt, error) {
	all := append([]*Attempt{}, f.attempts[assessmentID]...)
	// Descending by number.
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].Number > all[i].Number {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeAttemptRepo) CountFor(_ context.Context, assessmentID shared.AssessmentID) (int, error) {
	return len(f.attempts[assessmentID]), nil
}

func ratedFixture() (*Assessment, *Schema) {
	schema := &Schema{
		ID:        shared.NewID(),
		SchoolID:  shared.NewID(),
		SubjectID: shared.NewID(),
		Type:      SchemaTypeBlockAssessment,
		Kind:      KindRated,
	}
	a := &Assessment{
		ID:        shared.NewID(),
		SchemaID:  schema.ID,
		StudentID: shared.NewID(),
		NodeID:    shared.NewID(),
		CreatedAt: time.Now().UTC(),
	}
	return a, schema
}

func TestLedgerRecord_AssignsMonotonicNumbers(t *testing.T) {
	repo := newFakeAttemptRepo()
	ledger := NewLedger(repo)
	a, schema := ratedFixture()
	params := Params{MaxAvailableRating: 10}

	for i := 1; i <= 3; i++ {
		attempt, err := ledger.Record(context.Background(), a, schema, RatedValue{Rating: i}, params)
		require.NoError(t, err)
		assert.Equal(t, i, attempt.Number)
		assert.True(t, attempt.ID.IsValid())
	}
}

func TestLedgerRecord_RetriesOnConflict(t *testing.T) {
	repo := newFakeAttemptRepo()
	repo.conflictsLeft = 2
	ledger := NewLedger(repo)
	a, schema := ratedFixture()

	attempt, err := ledger.Record(context.Background(), a, schema, RatedValue{Rating: 5}, Params{MaxAvailableRating: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.Number)
	assert.Equal(t, 3, repo.appendCalls)
}

func TestLedgerRecord_ConflictExhaustsRetries(t *testing.T) {
	repo := newFakeAttemptRepo()
	repo.conflictsLeft = 100
	ledger := NewLedger(repo)
	a, schema := ratedFixture()

	_, err := ledger.Record(context.Background(), a, schema, RatedValue{Rating: 5}, Params{MaxAvailableRating: 10})
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 5, repo.appendCalls)
}

func TestLedgerRecord_RejectsForeignSchema(t *testing.T) {
	ledger := NewLedger(newFakeAttemptRepo())
	a, _ := ratedFixture()
	_, other := ratedFixture()

	_, err := ledger.Record(context.Background(), a, other, RatedValue{Rating: 5}, Params{MaxAvailableRating: 10})
	assert.ErrorIs(t, err, shared.ErrIntegrity)
}

func TestLedgerRecord_ValidatesValue(t *testing.T) {
	repo := newFakeAttemptRepo()
	ledger := NewLedger(repo)
	a, schema := ratedFixture()

	_, err := ledger.Record(context.Background(), a, schema, RatedValue{Rating: 11}, Params{MaxAvailableRating: 10})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.Zero(t, repo.appendCalls, "invalid values never reach the store")
}

func TestLedgerStateOf_LatestAttemptWins(t *testing.T) {
	repo := newFakeAttemptRepo()
	ledger := NewLedger(repo)
	a, schema := ratedFixture()
	params := Params{MaxAvailableRating: 10}

	for _, rating := range []int{3, 9, 6} {
		_, err := ledger.Record(context.Background(), a, schema, RatedValue{Rating: rating}, params)
		require.NoError(t, err)
	}

	state, err := ledger.StateOf(context.Background(), a, schema, params)
	require.NoError(t, err)

	assert.True(t, state.IsAttempted)
	assert.Equal(t, 3, state.AttemptCount)
	require.NotNil(t, state.Rating)
	assert.Equal(t, 6, *state.Rating, "state derives from the latest attempt, not the best one")
	require.NotNil(t, state.RatingPercent)
	assert.InDelta(t, 60.0, state.RatingPercent.Float64(), 0.001)
}

func TestLedgerStateOf_Unattempted(t *testing.T) {
	ledger := NewLedger(newFakeAttemptRepo())
	a, schema := ratedFixture()

	state, err := ledger.StateOf(context.Background(), a, schema, Params{MaxAvailableRating: 10})
	require.NoError(t, err)

	assert.False(t, state.IsAttempted)
	assert.Zero(t, state.AttemptCount)
	assert.Nil(t, state.Rating)
	assert.Nil(t, state.RatingPercent, "unattempted assessments carry no zero-valued percent")
	assert.Nil(t, state.AttemptedAt)
}

func TestLedgerSignificantAttempts(t *testing.T) {
	repo := newFakeAttemptRepo()
	ledger := NewLedger(repo)
	a, schema := ratedFixture()
	params := Params{MaxAvailableRating: 10}

	for _, rating := range []int{1, 2, 3, 4} {
		_, err := ledger.Record(context.Background(), a, schema, RatedValue{Rating: rating}, params)
		require.NoError(t, err)
	}

	// nil means every attempt is significant.
	all, err := ledger.SignificantAttempts(context.Background(), a.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	two := 2
	limited, err := ledger.SignificantAttempts(context.Background(), a.ID, &two)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, 4, limited[0].Number, "newest first")
	assert.Equal(t, 3, limited[1].Number)

	zero := 0
	none, err := ledger.SignificantAttempts(context.Background(), a.ID, &zero)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProjectState_KindMismatchIsIntegrityError(t *testing.T) {
	a, schema := ratedFixture()
	latest := &Attempt{
		ID:           shared.NewID(),
		AssessmentID: a.ID,
		Number:       1,
		CreatedAt:    time.Now().UTC(),
		Value:        GradedValue{Grade: GradeA},
	}

	_, err := ProjectState(a, schema, latest, 1, Params{MaxAvailableRating: 10})
	assert.ErrorIs(t, err, shared.ErrIntegrity)
}

func TestAttemptValidate(t *testing.T) {
	attempt := &Attempt{
		ID:           shared.NewID(),
		AssessmentID: shared.NewID(),
		Number:       1,
		Value:        PassFailValue{State: StatePass},
	}
	assert.NoError(t, attempt.Validate())

	bad := *attempt
	bad.Number = 0
	assert.ErrorIs(t, bad.Validate(), shared.ErrValueOutOfRange)

	bad = *attempt
	bad.Value = nil
	assert.ErrorIs(t, bad.Validate(), shared.ErrEmptyValue)
}
