package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// reportFixture wires a complete in-memory world for report queries: a
// curriculum subtree, a pass/fail schema over lessons, three enrolled
// students, and an assessment per (student, lesson).
type reportFixture struct {
	handler *GetOrGenerateReportHandler

	schemas     *fakeSchemaRepo
	assessments *fakeAssessmentRepo
	attempts    *fakeAttemptRepo
	reports     *fakeReportRepo
	members     *fakeMembers
	tree        *curriculum.Tree
	ledger      *assessment.Ledger

	schema   *assessment.Schema
	subject  *curriculum.Node
	unit     *curriculum.Node
	lesson   *curriculum.Node
	students []shared.StudentID

	// byStudent maps each student onto their lesson assessment.
	byStudent map[shared.StudentID]*assessment.Assessment
}

func newReportFixture(t *testing.T) *reportFixture {
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

	f := &reportFixture{
		schemas:     newFakeSchemaRepo(),
		assessments: newFakeAssessmentRepo(),
		attempts:    newFakeAttemptRepo(),
		reports:     newFakeReportRepo(),
		members:     newFakeMembers(),
		tree:        tree,
		subject:     subject,
		unit:        unit,
		lesson:      lesson,
		byStudent:   make(map[shared.StudentID]*assessment.Assessment),
	}

	f.schema = &assessment.Schema{
		ID:        shared.NewID(),
		SchoolID:  shared.NewID(),
		SubjectID: subject.ID,
		Type:      assessment.SchemaTypeLessonPrelearning,
		NodeType:  curriculum.NodeTypeLesson,
		Kind:      assessment.KindPassFail,
	}
	require.NoError(t, f.schemas.CreateSchema(context.Background(), f.schema))

	for i := 0; i < 3; i++ {
		studentID := shared.NewID()
		f.students = append(f.students, studentID)

		a := &assessment.Assessment{
			ID:        shared.NewID(),
			SchemaID:  f.schema.ID,
			StudentID: studentID,
			NodeID:    lesson.ID,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, f.assessments.Create(context.Background(), a))
		f.byStudent[studentID] = a
	}
	f.members.population = append([]shared.StudentID{}, f.students...)

	f.ledger = assessment.NewLedger(f.attempts)
	resolver := assessment.NewOptionResolver(f.schemas)
	f.handler = NewGetOrGenerateReportHandler(
		f.schemas, f.assessments, f.ledger, resolver, tree, f.members, f.reports, nil, quietLogger())
	return f
}

func (f *reportFixture) recordPass(t *testing.T, studentID shared.StudentID, state assessment.PassFailState) {
	t.Helper()
	a := f.byStudent[studentID]
	_, err := f.ledger.Record(context.Background(), a, f.schema, assessment.PassFailValue{State: state}, assessment.Params{})
	require.NoError(t, err)
}

func (f *reportFixture) query() GetOrGenerateReportQuery {
	return GetOrGenerateReportQuery{
		SchemaID: f.schema.ID.String(),
		NodeID:   f.subject.ID.String(),
	}
}

func TestGetOrGenerateReport_FirstFetchGenerates(t *testing.T) {
	f := newReportFixture(t)
	f.recordPass(t, f.students[0], assessment.StatePass)
	f.recordPass(t, f.students[1], assessment.StateFail)

	rep, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Generation)
	assert.True(t, rep.IsGenerated())
	assert.ElementsMatch(t, f.students, rep.CandidateIDs)
	assert.ElementsMatch(t, []shared.StudentID{f.students[0], f.students[1]}, rep.AttemptedCandidateIDs)
	assert.InDelta(t, 66.7, rep.PercentAttempted.Float64(), 0.001)

	require.NotNil(t, rep.Stats.PassFail)
	assert.Equal(t, 1, rep.Stats.PassFail.PassedCandidateCount)
	assert.ElementsMatch(t, []shared.StudentID{f.students[0]}, rep.Stats.PassFail.PassedCandidateIDs)
	assert.InDelta(t, 50.0, rep.Stats.PassFail.PercentPassed.Float64(), 0.001)

	// The regenerated snapshot is persisted.
	stored, err := f.reports.Get(context.Background(), rep.NaturalKey())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Generation)
}

func TestGetOrGenerateReport_EveryFetchRegenerates(t *testing.T) {
	f := newReportFixture(t)

	rep, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Generation)
	assert.Empty(t, rep.AttemptedCandidateIDs)

	// A new attempt shows up on the next fetch without any invalidation.
	f.recordPass(t, f.students[2], assessment.StatePass)

	rep, err = f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Generation)
	assert.Equal(t, []shared.StudentID{f.students[2]}, rep.AttemptedCandidateIDs)
}

func TestGetOrGenerateReport_PopulationFrozenAtFirstGeneration(t *testing.T) {
	f := newReportFixture(t)

	rep, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	require.Len(t, rep.CandidateIDs, 3)

	// A student enrolled after the first generation is not a candidate,
	// and their attempts never count.
	late := shared.NewID()
	f.members.population = append(f.members.population, late)
	lateAssessment := &assessment.Assessment{
		ID:        shared.NewID(),
		SchemaID:  f.schema.ID,
		StudentID: late,
		NodeID:    f.lesson.ID,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.assessments.Create(context.Background(), lateAssessment))
	f.byStudent[late] = lateAssessment
	f.recordPass(t, late, assessment.StatePass)

	rep, err = f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Len(t, rep.CandidateIDs, 3)
	assert.NotContains(t, rep.CandidateIDs, late)
	assert.NotContains(t, rep.AttemptedCandidateIDs, late)
	assert.NotContains(t, rep.Stats.PassFail.PassedCandidateIDs, late)
}

func TestGetOrGenerateReport_ClassScopedPopulation(t *testing.T) {
	f := newReportFixture(t)
	classID := shared.NewID()
	f.members.classes[classID] = []shared.StudentID{f.students[0], f.students[1]}

	q := f.query()
	q.ClassID = classID.String()

	rep, err := f.handler.Handle(context.Background(), q)
	require.NoError(t, err)

	assert.ElementsMatch(t, []shared.StudentID{f.students[0], f.students[1]}, rep.CandidateIDs)
	require.NotNil(t, rep.ClassID)
	assert.Equal(t, classID, *rep.ClassID)

	// The class report and the subject-wide report are distinct rows.
	subjectWide, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Len(t, subjectWide.CandidateIDs, 3)
	assert.Nil(t, subjectWide.ClassID)
}

func TestGetOrGenerateReport_EmptyClassRosterExcludesOutsiders(t *testing.T) {
	f := newReportFixture(t)

	// Students outside the (empty) class have attempts on record; none of
	// them may surface through the class report's statistics.
	f.recordPass(t, f.students[0], assessment.StatePass)
	f.recordPass(t, f.students[1], assessment.StatePass)

	emptyClass := shared.NewID()
	f.members.classes[emptyClass] = nil

	q := f.query()
	q.ClassID = emptyClass.String()

	rep, err := f.handler.Handle(context.Background(), q)
	require.NoError(t, err)

	assert.Empty(t, rep.CandidateIDs)
	assert.Empty(t, rep.AttemptedCandidateIDs)
	assert.Zero(t, rep.PercentAttempted.Float64())

	require.NotNil(t, rep.Stats.PassFail)
	assert.Zero(t, rep.Stats.PassFail.PassedCandidateCount)
	assert.Empty(t, rep.Stats.PassFail.PassedCandidateIDs)
}

func TestGetOrGenerateReport_NodeWithoutTargetDescendants(t *testing.T) {
	f := newReportFixture(t)
	f.recordPass(t, f.students[0], assessment.StatePass)

	// A block with no lessons beneath it covers no assessments, even though
	// the same students have attempted lessons elsewhere in the subject.
	bare, err := f.tree.AddChild(f.unit.ID, shared.NewID(), "Block B")
	require.NoError(t, err)

	rep, err := f.handler.Handle(context.Background(), GetOrGenerateReportQuery{
		SchemaID: f.schema.ID.String(),
		NodeID:   bare.ID.String(),
	})
	require.NoError(t, err)

	assert.Len(t, rep.CandidateIDs, 3)
	assert.Empty(t, rep.AttemptedCandidateIDs)
	require.NotNil(t, rep.Stats.PassFail)
	assert.Zero(t, rep.Stats.PassFail.PassedCandidateCount)
}

func TestGetOrGenerateReport_LostCreationRaceRefetches(t *testing.T) {
	f := newReportFixture(t)

	// A competitor wins the unique-key race; our creation refetches theirs.
	winner := report.NewReport(report.Key{SchemaID: f.schema.ID, NodeID: f.subject.ID}, f.schema.Kind)
	winner.FreezeCandidates([]shared.StudentID{f.students[0]})
	winner.ApplyGeneration(nil, assessment.ReportStats{Kind: f.schema.Kind}, time.Now().UTC())
	f.reports.alreadyExistsOnce = winner

	rep, err := f.handler.Handle(context.Background(), f.query())
	require.NoError(t, err)

	// The winner's frozen population is authoritative.
	assert.Equal(t, winner.ID, rep.ID)
	assert.Equal(t, []shared.StudentID{f.students[0]}, rep.CandidateIDs)
	assert.Equal(t, 2, rep.Generation)
}

func TestGetOrGenerateReport_ValidatesIDs(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.handler.Handle(context.Background(), GetOrGenerateReportQuery{
		SchemaID: "not-a-uuid",
		NodeID:   f.subject.ID.String(),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	q := f.query()
	q.ClassID = "not-a-uuid"
	_, err = f.handler.Handle(context.Background(), q)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestGetOrGenerateReport_UnknownSchema(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.handler.Handle(context.Background(), GetOrGenerateReportQuery{
		SchemaID: shared.NewID().String(),
		NodeID:   f.subject.ID.String(),
	})
	assert.True(t, shared.IsNotFound(err))
}
