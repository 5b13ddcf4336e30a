package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

func createAssessmentFixture(t *testing.T) (*CreateAssessmentHandler, *recordingPublisher, *assessment.Schema, map[curriculum.NodeType]*curriculum.Node) {
	t.Helper()

	tree, nodes := buildTree(t)
	schemas := newFakeSchemaRepo()
	publisher := &recordingPublisher{}

	schema := &assessment.Schema{
		ID:        shared.NewID(),
		SchoolID:  shared.NewID(),
		SubjectID: nodes[curriculum.NodeTypeSubject].ID,
		Type:      "lesson-prelearning-assessment",
		NodeType:  curriculum.NodeTypeLesson,
		Kind:      assessment.KindCompletion,
	}
	require.NoError(t, schemas.CreateSchema(context.Background(), schema))

	h := NewCreateAssessmentHandler(schemas, newFakeAssessmentRepo(), tree, publisher, quietLogger())
	return h, publisher, schema, nodes
}

func TestCreateAssessment(t *testing.T) {
	h, publisher, schema, nodes := createAssessmentFixture(t)

	result, err := h.Handle(context.Background(), CreateAssessmentCommand{
		SchemaID:  schema.ID.String(),
		StudentID: shared.NewID().String(),
		NodeID:    nodes[curriculum.NodeTypeLesson].ID.String(),
	})
	require.NoError(t, err)
	assert.True(t, result.AssessmentID.IsValid())

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventAssessmentCreated, publisher.events[0].EventType())
}

func TestCreateAssessment_DuplicateTriple(t *testing.T) {
	h, _, schema, nodes := createAssessmentFixture(t)

	cmd := CreateAssessmentCommand{
		SchemaID:  schema.ID.String(),
		StudentID: shared.NewID().String(),
		NodeID:    nodes[curriculum.NodeTypeLesson].ID.String(),
	}
	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), cmd)
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestCreateAssessment_NodeTypeMismatch(t *testing.T) {
	h, publisher, schema, nodes := createAssessmentFixture(t)

	_, err := h.Handle(context.Background(), CreateAssessmentCommand{
		SchemaID:  schema.ID.String(),
		StudentID: shared.NewID().String(),
		NodeID:    nodes[curriculum.NodeTypeUnit].ID.String(),
	})
	assert.True(t, shared.IsValidation(err))
	assert.Empty(t, publisher.events)
}

func TestCreateAssessment_UnknownSchema(t *testing.T) {
	h, _, _, nodes := createAssessmentFixture(t)

	_, err := h.Handle(context.Background(), CreateAssessmentCommand{
		SchemaID:  shared.NewID().String(),
		StudentID: shared.NewID().String(),
		NodeID:    nodes[curriculum.NodeTypeLesson].ID.String(),
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestCreateAssessment_ValidatesIDs(t *testing.T) {
	h, _, schema, nodes := createAssessmentFixture(t)

	_, err := h.Handle(context.Background(), CreateAssessmentCommand{
		SchemaID:  schema.ID.String(),
		StudentID: "not-a-uuid",
		NodeID:    nodes[curriculum.NodeTypeLesson].ID.String(),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}
