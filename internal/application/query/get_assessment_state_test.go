package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

func stateHandler(f *reportFixture) *GetAssessmentStateHandler {
	return NewGetAssessmentStateHandler(
		f.assessments, f.schemas, f.ledger, assessment.NewOptionResolver(f.schemas))
}

func TestGetAssessmentState_Unattempted(t *testing.T) {
	f := newReportFixture(t)
	h := stateHandler(f)

	a := f.byStudent[f.students[0]]
	state, err := h.Handle(context.Background(), GetAssessmentStateQuery{AssessmentID: a.ID.String()})
	require.NoError(t, err)

	assert.False(t, state.IsAttempted)
	assert.Zero(t, state.AttemptCount)
	assert.Nil(t, state.AttemptedAt)
	assert.Nil(t, state.IsPass)
}

func TestGetAssessmentState_LatestAttemptWins(t *testing.T) {
	f := newReportFixture(t)
	h := stateHandler(f)

	f.recordPass(t, f.students[0], assessment.StateFail)
	f.recordPass(t, f.students[0], assessment.StatePass)

	a := f.byStudent[f.students[0]]
	state, err := h.Handle(context.Background(), GetAssessmentStateQuery{AssessmentID: a.ID.String()})
	require.NoError(t, err)

	assert.True(t, state.IsAttempted)
	assert.Equal(t, 2, state.AttemptCount)
	require.NotNil(t, state.IsPass)
	assert.True(t, *state.IsPass)
	assert.NotNil(t, state.AttemptedAt)
}

func TestGetAssessmentState_UnknownAssessment(t *testing.T) {
	f := newReportFixture(t)
	h := stateHandler(f)

	_, err := h.Handle(context.Background(), GetAssessmentStateQuery{AssessmentID: shared.NewID().String()})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetAssessmentState_ValidatesID(t *testing.T) {
	f := newReportFixture(t)
	h := stateHandler(f)

	_, err := h.Handle(context.Background(), GetAssessmentStateQuery{AssessmentID: "not-a-uuid"})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}
