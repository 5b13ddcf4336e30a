package command

import (
	"context"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE SCHEMA COMMAND
// Creates one assessment schema together with its default options row, and a
// seeding variant that installs the standard catalog for a school/subject
// pair. Every catalog entry is an ordinary schema row; there are no
// per-category subtypes.
// ══════════════════════════════════════════════════════════════════════════════

// CreateSchemaCommand contains the data to create a schema.
type CreateSchemaCommand struct {
	SchoolID  string
	SubjectID string

	// Type is the administrative name, unique per school.
	Type string

	// NodeType is the curriculum level assessments of this schema target.
	NodeType string

	// Kind is the attempt kind token.
	Kind string

	// DefaultOptions seeds the schema default options row. May be nil.
	DefaultOptions map[string]any
}

// Validate validates the command.
func (c CreateSchemaCommand) Validate() error {
	if _, err := shared.ParseID(c.SchoolID); err != nil {
		return shared.NewDomainError("command", "CreateSchema", shared.ErrInvalidID, "school_id is not a valid UUID")
	}
	if _, err := shared.ParseID(c.SubjectID); err != nil {
		return shared.NewDomainError("command", "CreateSchema", shared.ErrInvalidID, "subject_id is not a valid UUID")
	}
	if _, err := curriculum.ParseNodeType(c.NodeType); err != nil {
		return err
	}
	if _, err := assessment.ParseKind(c.Kind); err != nil {
		return err
	}
	return nil
}

// CreateSchemaResult contains the result of creating a schema.
type CreateSchemaResult struct {
	SchemaID shared.SchemaID
}

// CreateSchemaHandler handles the CreateSchemaCommand.
type CreateSchemaHandler struct {
	schemas assessment.SchemaRepository
	log     *logger.Logger
}

// NewCreateSchemaHandler creates a new CreateSchemaHandler.
func NewCreateSchemaHandler(schemas assessment.SchemaRepository, log *logger.Logger) *CreateSchemaHandler {
	return &CreateSchemaHandler{
		schemas: schemas,
		log:     log.With(logger.Component("create_schema")),
	}
}

// Handle executes the create schema command.
func (h *CreateSchemaHandler) Handle(ctx context.Context, cmd CreateSchemaCommand) (*CreateSchemaResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	nodeType, _ := curriculum.ParseNodeType(cmd.NodeType)
	kind, _ := assessment.ParseKind(cmd.Kind)

	schema := &assessment.Schema{
		ID:        shared.NewID(),
		SchoolID:  shared.ID(cmd.SchoolID),
		SubjectID: shared.NodeID(cmd.SubjectID),
		Type:      cmd.Type,
		NodeType:  nodeType,
		Kind:      kind,
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	if err := h.schemas.CreateSchema(ctx, schema); err != nil {
		return nil, err
	}

	defaults := &assessment.Options{ID: shared.NewID(), SchemaID: schema.ID, Values: cmd.DefaultOptions}
	if defaults.Values == nil {
		defaults.Values = map[string]any{}
	}
	if err := h.schemas.UpsertOptions(ctx, defaults); err != nil {
		return nil, err
	}

	h.log.Info("schema created",
		logger.SchemaID(schema.ID.String()),
		logger.String("type", schema.Type),
		logger.String("kind", string(schema.Kind)),
	)
	return &CreateSchemaResult{SchemaID: schema.ID}, nil
}

// SeedBuiltinSchemas installs the standard schema catalog for a
// school/subject pair. Schemas that already exist are left untouched.
func (h *CreateSchemaHandler) SeedBuiltinSchemas(ctx context.Context, schoolID shared.ID, subjectID shared.NodeID) error {
	for _, schema := range assessment.BuiltinSchemas(schoolID, subjectID) {
		if err := h.schemas.CreateSchema(ctx, schema); err != nil {
			if shared.IsAlreadyExists(err) {
				continue
			}
			return err
		}
		defaults := &assessment.Options{ID: shared.NewID(), SchemaID: schema.ID, Values: map[string]any{}}
		if err := h.schemas.UpsertOptions(ctx, defaults); err != nil {
			return err
		}
	}
	return nil
}
