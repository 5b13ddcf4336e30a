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

func setOptionFixture(t *testing.T) (*SetOptionHandler, *fakeSchemaRepo, *recordingPublisher, *assessment.Schema, map[curriculum.NodeType]*curriculum.Node) {
	t.Helper()

	tree, nodes := buildTree(t)
	repo := newFakeSchemaRepo()
	publisher := &recordingPublisher{}

	schema := &assessment.Schema{
		ID:        shared.NewID(),
		SchoolID:  shared.NewID(),
		SubjectID: nodes[curriculum.NodeTypeSubject].ID,
		Type:      "block-assessment",
		NodeType:  curriculum.NodeTypeBlock,
		Kind:      assessment.KindRated,
	}
	require.NoError(t, repo.CreateSchema(context.Background(), schema))

	return NewSetOptionHandler(repo, tree, publisher, quietLogger()), repo, publisher, schema, nodes
}

func TestSetOption_DefaultRow(t *testing.T) {
	h, repo, publisher, schema, _ := setOptionFixture(t)

	err := h.Handle(context.Background(), SetOptionCommand{
		SchemaID: schema.ID.String(),
		Name:     assessment.OptionMaxAvailableRating,
		Value:    float64(8),
	})
	require.NoError(t, err)

	row, err := repo.GetOptions(context.Background(), schema.ID, nil)
	require.NoError(t, err)
	value, ok := row.Lookup(assessment.OptionMaxAvailableRating)
	require.True(t, ok)
	assert.Equal(t, float64(8), value)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventOptionUpdated, publisher.events[0].EventType())
}

func TestSetOption_NodeOverride(t *testing.T) {
	h, repo, _, schema, nodes := setOptionFixture(t)
	blockID := nodes[curriculum.NodeTypeBlock].ID

	err := h.Handle(context.Background(), SetOptionCommand{
		SchemaID: schema.ID.String(),
		NodeID:   blockID.String(),
		Name:     assessment.OptionMaxAvailableRating,
		Value:    float64(4),
	})
	require.NoError(t, err)

	row, err := repo.GetOptions(context.Background(), schema.ID, &blockID)
	require.NoError(t, err)
	value, _ := row.Lookup(assessment.OptionMaxAvailableRating)
	assert.Equal(t, float64(4), value)

	// The default row is untouched.
	_, err = repo.GetOptions(context.Background(), schema.ID, nil)
	assert.True(t, shared.IsNotFound(err))
}

func TestSetOption_ExplicitNullStaysSet(t *testing.T) {
	h, repo, _, schema, _ := setOptionFixture(t)

	err := h.Handle(context.Background(), SetOptionCommand{
		SchemaID: schema.ID.String(),
		Name:     assessment.OptionMaxSignificantAttempts,
		Value:    nil,
	})
	require.NoError(t, err)

	row, err := repo.GetOptions(context.Background(), schema.ID, nil)
	require.NoError(t, err)
	value, ok := row.Lookup(assessment.OptionMaxSignificantAttempts)
	assert.True(t, ok, "a null value is set, not absent")
	assert.Nil(t, value)
}

func TestSetOption_NodeTypeMismatch(t *testing.T) {
	h, _, _, schema, nodes := setOptionFixture(t)

	err := h.Handle(context.Background(), SetOptionCommand{
		SchemaID: schema.ID.String(),
		NodeID:   nodes[curriculum.NodeTypeLesson].ID.String(),
		Name:     assessment.OptionMaxAvailableRating,
		Value:    float64(4),
	})
	assert.True(t, shared.IsValidation(err))
}

func TestSetOption_Validation(t *testing.T) {
	h, _, _, schema, _ := setOptionFixture(t)

	err := h.Handle(context.Background(), SetOptionCommand{
		SchemaID: schema.ID.String(),
		Name:     "   ",
		Value:    1,
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	err = h.Handle(context.Background(), SetOptionCommand{
		SchemaID: "not-a-uuid",
		Name:     assessment.OptionMaxAvailableRating,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}
