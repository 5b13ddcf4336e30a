package query

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

// progressFixture wires an in-memory world for progress queries: a rated
// schema over lesson outcomes and one student with an assessment per outcome.
type progressFixture struct {
	handler *GetOrGenerateProgressHandler

	schemas     *fakeSchemaRepo
	assessments *fakeAssessmentRepo
	attempts    *fakeAttemptRepo
	progresses  *fakeProgressRepo
	tree        *curriculum.Tree
	ledger      *assessment.Ledger

	schema    *assessment.Schema
	subject   *curriculum.Node
	lesson    *curriculum.Node
	studentID shared.StudentID

	// byOutcome maps each lesson outcome onto the student's assessment.
	byOutcome map[shared.NodeID]*assessment.Assessment
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()

	tree := curriculum.NewTree()
	subject, err := tree.AddRoot(shared.NewID(), "Mathematics")
	require.NoError(t, err)
	unit, err := tree.AddChild(subject.ID, shared.NewID(), "Unit 1")
	require.NoError(t, err)
	block, err := tree.AddChild(unit.ID, shared.NewID(), "Block A")
	require.NoError(t, err)
	lesson, err := tree.AddChild(block.ID, shared.NewID(), "Lesson 1")
	require.NoError(t, err)

	f := &progressFixture{
		schemas:     newFakeSchemaRepo(),
		assessments: newFakeAssessmentRepo(),
		attempts:    newFakeAttemptRepo(),
		progresses:  newFakeProgressRepo(),
		tree:        tree,
		subject:     subject,
		lesson:      lesson,
		studentID:   shared.NewID(),
		byOutcome:   make(map[shared.NodeID]*assessment.Assessment),
	}

	f.schema = &assessment.Schema{
		ID:        shared.NewID(),
		SchoolID:  shared.NewID(),
		SubjectID: subject.ID,
		Type:      assessment.SchemaTypeLessonOutcomeSelf,
		NodeType:  curriculum.NodeTypeLessonOutcome,
		Kind:      assessment.KindRated,
	}
	require.NoError(t, f.schemas.CreateSchema(context.Background(), f.schema))
	require.NoError(t, f.schemas.UpsertOptions(context.Background(), &assessment.Options{
		ID:       shared.NewID(),
		SchemaID: f.schema.ID,
		Values:   map[string]any{assessment.OptionMaxAvailableRating: float64(10)},
	}))

	for i := 0; i < 2; i++ {
		outcome, err := tree.AddChild(lesson.ID, shared.NewID(), "Outcome")
		require.NoError(t, err)

		a := &assessment.Assessment{
			ID:        shared.NewID(),
			SchemaID:  f.schema.ID,
			StudentID: f.studentID,
			NodeID:    outcome.ID,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, f.assessments.Create(context.Background(), a))
		f.byOutcome[outcome.ID] = a
	}

	f.ledger = assessment.NewLedger(f.attempts)
	resolver := assessment.NewOptionResolver(f.schemas)
	f.handler = NewGetOrGenerateProgressHandler(
		f.schemas, f.assessments, f.ledger, resolver, tree, f.progresses, nil, quietLogger())
	return f
}

func (f *progressFixture) rate(t *testing.T, a *assessment.Assessment, rating int) {
	t.Helper()
	_, err := f.ledger.Record(context.Background(), a, f.schema,
		assessment.RatedValue{Rating: rating, MaxRating: 10}, assessment.Params{MaxAvailableRating: 10})
	require.NoError(t, err)
}

func (f *progressFixture) query() GetOrGenerateProgressQuery {
	return GetOrGenerateProgressQuery{
		SchemaID:  f.schema.ID.String(),
		StudentID: f.studentID.String(),
		NodeID:    f.subject.ID.String(),
	}
}

func TestGetOrGenerateProgress_FirstFetchGenerates(t *testing.T) {
	f := newProgressFixture(t)

	var all []*assessment.Assessment
	for _, a := range f.byOutcome {
		all = append(all, a)
	}
	f.rate(t, all[0], 7)

	prog, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)

	assert.Equal(t, 1, prog.Generation)
	assert.Len(t, prog.AssessmentIDs, 2)
	assert.Equal(t, []shared.AssessmentID{all[0].ID}, prog.AttemptedAssessmentIDs)
	assert.InDelta(t, 50.0, prog.PercentAttempted.Float64(), 0.001)

	require.NotNil(t, prog.Stats.Rated)
	assert.Equal(t, map[shared.AssessmentID]int{all[0].ID: 7}, prog.Stats.Rated.AssessmentRatings)

	stored, err := f.progresses.Get(context.Background(), prog.NaturalKey())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Generation)
}

func TestGetOrGenerateProgress_LatestRatingWins(t *testing.T) {
	f := newProgressFixture(t)

	var a *assessment.Assessment
	for _, row := range f.byOutcome {
		a = row
		break
	}
	f.rate(t, a, 3)
	f.rate(t, a, 9)
	f.rate(t, a, 6)

	prog, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)

	require.NotNil(t, prog.Stats.Rated)
	assert.Equal(t, 6, prog.Stats.Rated.AssessmentRatings[a.ID])
}

func TestGetOrGenerateProgress_AssessmentSetFrozen(t *testing.T) {
	f := newProgressFixture(t)

	prog, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	require.Len(t, prog.AssessmentIDs, 2)

	// A third outcome added after the first generation stays outside the
	// frozen set, even with an attempt on record.
	outcome, err := f.tree.AddChild(f.lesson.ID, shared.NewID(), "Outcome 3")
	require.NoError(t, err)
	late := &assessment.Assessment{
		ID:        shared.NewID(),
		SchemaID:  f.schema.ID,
		StudentID: f.studentID,
		NodeID:    outcome.ID,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.assessments.Create(context.Background(), late))
	f.rate(t, late, 10)

	prog, err = f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, 2, prog.Generation)
	assert.Len(t, prog.AssessmentIDs, 2)
	assert.NotContains(t, prog.AssessmentIDs, late.ID)
	assert.NotContains(t, prog.AttemptedAssessmentIDs, late.ID)
}

func TestGetOrGenerateProgress_DeletedAssessmentTolerated(t *testing.T) {
	f := newProgressFixture(t)

	var all []*assessment.Assessment
	for _, a := range f.byOutcome {
		all = append(all, a)
	}
	f.rate(t, all[0], 8)
	f.rate(t, all[1], 4)

	prog, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	require.Len(t, prog.AttemptedAssessmentIDs, 2)

	// Regeneration skips frozen IDs whose rows are gone instead of failing.
	require.NoError(t, f.assessments.Delete(context.Background(), all[1].ID))

	prog, err = f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, []shared.AssessmentID{all[0].ID}, prog.AttemptedAssessmentIDs)
	assert.InDelta(t, 50.0, prog.PercentAttempted.Float64(), 0.001)
}

func TestGetOrGenerateProgress_NodeWithoutTargetDescendants(t *testing.T) {
	f := newProgressFixture(t)

	for _, a := range f.byOutcome {
		f.rate(t, a, 8)
	}

	// A lesson with no outcomes covers no assessments; the student's rated
	// outcomes under the sibling lesson stay out of this snapshot.
	blockID := f.lesson.PathSegments()[2]
	bare, err := f.tree.AddChild(blockID, shared.NewID(), "Lesson 2")
	require.NoError(t, err)

	prog, err := f.handler.Handle(context.Background(), GetOrGenerateProgressQuery{
		SchemaID:  f.schema.ID.String(),
		StudentID: f.studentID.String(),
		NodeID:    bare.ID.String(),
	})
	require.NoError(t, err)

	assert.Empty(t, prog.AssessmentIDs)
	assert.Empty(t, prog.AttemptedAssessmentIDs)
	require.NotNil(t, prog.Stats.Rated)
	assert.Empty(t, prog.Stats.Rated.AssessmentRatings)
}

func TestGetOrGenerateProgress_ValidatesIDs(t *testing.T) {
	f := newProgressFixture(t)

	q := f.query()
	q.StudentID = ""
	_, err := f.handler.Handle(context.Background(), q)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}
