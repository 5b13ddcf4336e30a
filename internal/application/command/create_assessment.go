// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE ASSESSMENT COMMAND
// Materializes the (schema, student, node) join so attempts can be recorded
// against it. The triple is unique; creating it twice is an error.
// ══════════════════════════════════════════════════════════════════════════════

// CreateAssessmentCommand contains the data to create an assessment.
type CreateAssessmentCommand struct {
	// SchemaID is the assessment schema the new assessment belongs to.
	SchemaID string

	// StudentID is the student being assessed.
	StudentID string

	// NodeID is the curriculum node being assessed. Its type must match the
	// schema's target node type.
	NodeID string
}

// Validate validates the command.
func (c CreateAssessmentCommand) Validate() error {
	if _, err := shared.ParseID(c.SchemaID); err != nil {
		return shared.NewDomainError("command", "CreateAssessment", shared.ErrInvalidID, "schema_id is not a valid UUID")
	}
	if _, err := shared.ParseID(c.StudentID); err != nil {
		return shared.NewDomainError("command", "CreateAssessment", shared.ErrInvalidID, "student_id is not a valid UUID")
	}
	if _, err := shared.ParseID(c.NodeID); err != nil {
		return shared.NewDomainError("command", "CreateAssessment", shared.ErrInvalidID, "node_id is not a valid UUID")
	}
	return nil
}

// CreateAssessmentResult contains the result of creating an assessment.
type CreateAssessmentResult struct {
	AssessmentID shared.AssessmentID
	CreatedAt    time.Time
}

// CreateAssessmentHandler handles the CreateAssessmentCommand.
type CreateAssessmentHandler struct {
	schemas     assessment.SchemaRepository
	assessments assessment.AssessmentRepository
	tree        curriculum.TreeReader
	publisher   shared.EventPublisher
	log         *logger.Logger
}

// NewCreateAssessmentHandler creates a new CreateAssessmentHandler.
func NewCreateAssessmentHandler(
	schemas assessment.SchemaRepository,
	assessments assessment.AssessmentRepository,
	tree curriculum.TreeReader,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *CreateAssessmentHandler {
	return &CreateAssessmentHandler{
		schemas:     schemas,
		assessments: assessments,
		tree:        tree,
		publisher:   publisher,
		log:         log.With(logger.Component("create_assessment")),
	}
}

// Handle executes the create assessment command.
func (h *CreateAssessmentHandler) Handle(ctx context.Context, cmd CreateAssessmentCommand) (*CreateAssessmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	schema, err := h.schemas.GetSchema(ctx, shared.SchemaID(cmd.SchemaID))
	if err != nil {
		return nil, err
	}

	nodeType, err := h.tree.TypeOf(ctx, shared.NodeID(cmd.NodeID))
	if err != nil {
		return nil, err
	}
	if nodeType != schema.NodeType {
		return nil, shared.NewDomainError("command", "CreateAssessment", shared.ErrValidation,
			"node type does not match the schema's target node type")
	}

	a := &assessment.Assessment{
		ID:        shared.NewID(),
		SchemaID:  schema.ID,
		StudentID: shared.StudentID(cmd.StudentID),
		NodeID:    shared.NodeID(cmd.NodeID),
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := h.assessments.Create(ctx, a); err != nil {
		return nil, err
	}

	h.log.Info("assessment created",
		logger.AssessmentID(a.ID.String()),
		logger.SchemaID(a.SchemaID.String()),
		logger.StudentID(a.StudentID.String()),
		logger.NodeID(a.NodeID.String()),
	)

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewAssessmentCreatedEvent(a.ID, a.SchemaID, a.StudentID, a.NodeID))
	}

	return &CreateAssessmentResult{AssessmentID: a.ID, CreatedAt: a.CreatedAt}, nil
}
