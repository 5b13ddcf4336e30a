package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

type recordAttemptFixture struct {
	handler   *RecordAttemptHandler
	publisher *recordingPublisher

	schema     *assessment.Schema
	assessment *assessment.Assessment
}

// newRecordAttemptFixture wires a rated schema (max rating 10 on the default
// options row) with one assessment ready for attempts.
func newRecordAttemptFixture(t *testing.T) *recordAttemptFixture {
	t.Helper()

	_, nodes := buildTree(t)
	schemas := newFakeSchemaRepo()
	assessments := newFakeAssessmentRepo()
	attempts := newFakeAttemptRepo()
	publisher := &recordingPublisher{}

	schema := &assessment.Schema{
		ID:        shared.NewID(),
		SchoolID:  shared.NewID(),
		SubjectID: nodes[curriculum.NodeTypeSubject].ID,
		Type:      "block-assessment",
		NodeType:  curriculum.NodeTypeBlock,
		Kind:      assessment.KindRated,
	}
	require.NoError(t, schemas.CreateSchema(context.Background(), schema))
	require.NoError(t, schemas.UpsertOptions(context.Background(), &assessment.Options{
		ID:       shared.NewID(),
		SchemaID: schema.ID,
		Values:   map[string]any{assessment.OptionMaxAvailableRating: float64(10)},
	}))

	a := &assessment.Assessment{
		ID:        shared.NewID(),
		SchemaID:  schema.ID,
		StudentID: shared.NewID(),
		NodeID:    nodes[curriculum.NodeTypeBlock].ID,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, assessments.Create(context.Background(), a))

	handler := NewRecordAttemptHandler(
		assessments, schemas,
		assessment.NewLedger(attempts),
		assessment.NewOptionResolver(schemas),
		publisher, quietLogger())

	return &recordAttemptFixture{
		handler:    handler,
		publisher:  publisher,
		schema:     schema,
		assessment: a,
	}
}

func ratingOf(n int) *int { return &n }

func TestRecordAttempt(t *testing.T) {
	f := newRecordAttemptFixture(t)

	result, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		AssessmentID: f.assessment.ID.String(),
		Rating:       ratingOf(7),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.AttemptNumber)
	assert.Equal(t, f.assessment.ID, result.AssessmentID)
	assert.False(t, result.RecordedAt.IsZero())

	require.Len(t, f.publisher.events, 1)
	recorded, ok := f.publisher.events[0].(*shared.AttemptRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, 1, recorded.AttemptNumber)
	assert.Equal(t, f.assessment.StudentID, recorded.StudentID)
}

func TestRecordAttempt_NumbersAreSequential(t *testing.T) {
	f := newRecordAttemptFixture(t)

	for want := 1; want <= 3; want++ {
		result, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
			AssessmentID: f.assessment.ID.String(),
			Rating:       ratingOf(want),
		})
		require.NoError(t, err)
		assert.Equal(t, want, result.AttemptNumber)
	}
}

func TestRecordAttempt_MissingRating(t *testing.T) {
	f := newRecordAttemptFixture(t)

	_, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		AssessmentID: f.assessment.ID.String(),
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
	assert.Empty(t, f.publisher.events)
}

func TestRecordAttempt_RatingOutOfRange(t *testing.T) {
	f := newRecordAttemptFixture(t)

	_, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		AssessmentID: f.assessment.ID.String(),
		Rating:       ratingOf(11),
	})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestRecordAttempt_UnknownAssessment(t *testing.T) {
	f := newRecordAttemptFixture(t)

	_, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		AssessmentID: shared.NewID().String(),
		Rating:       ratingOf(5),
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestRecordAttempt_ValidatesID(t *testing.T) {
	f := newRecordAttemptFixture(t)

	_, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		AssessmentID: "not-a-uuid",
		Rating:       ratingOf(5),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}
