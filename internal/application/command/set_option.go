package command

import (
	"context"
	"strings"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET OPTION COMMAND
// Writes one option value onto a schema's default row or a node-specific
// override row. A per-node write is rejected when the node's type does not
// match the schema's target node type.
// ══════════════════════════════════════════════════════════════════════════════

// SetOptionCommand contains the data to set a schema option.
type SetOptionCommand struct {
	// SchemaID is the schema being configured.
	SchemaID string

	// NodeID is the override target; empty addresses the schema default row.
	NodeID string

	// Name is the option name, e.g. "max_available_rating".
	Name string

	// Value is the option value. Nil is "explicitly set to null", which
	// still satisfies resolution.
	Value any
}

// Validate validates the command.
func (c SetOptionCommand) Validate() error {
	if _, err := shared.ParseID(c.SchemaID); err != nil {
		return shared.NewDomainError("command", "SetOption", shared.ErrInvalidID, "schema_id is not a valid UUID")
	}
	if c.NodeID != "" {
		if _, err := shared.ParseID(c.NodeID); err != nil {
			return shared.NewDomainError("command", "SetOption", shared.ErrInvalidID, "node_id is not a valid UUID")
		}
	}
	if strings.TrimSpace(c.Name) == "" {
		return shared.NewDomainError("command", "SetOption", shared.ErrEmptyValue, "option name is required")
	}
	return nil
}

// SetOptionHandler handles the SetOptionCommand.
type SetOptionHandler struct {
	schemas   assessment.SchemaRepository
	tree      curriculum.TreeReader
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewSetOptionHandler creates a new SetOptionHandler.
func NewSetOptionHandler(
	schemas assessment.SchemaRepository,
	tree curriculum.TreeReader,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SetOptionHandler {
	return &SetOptionHandler{
		schemas:   schemas,
		tree:      tree,
		publisher: publisher,
		log:       log.With(logger.Component("set_option")),
	}
}

// Handle executes the set option command.
func (h *SetOptionHandler) Handle(ctx context.Context, cmd SetOptionCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	schema, err := h.schemas.GetSchema(ctx, shared.SchemaID(cmd.SchemaID))
	if err != nil {
		return err
	}

	var nodeID *shared.NodeID
	if cmd.NodeID != "" {
		id := shared.NodeID(cmd.NodeID)
		nodeType, err := h.tree.TypeOf(ctx, id)
		if err != nil {
			return err
		}
		if nodeType != schema.NodeType {
			return shared.NewDomainError("command", "SetOption", shared.ErrValidation,
				"option override targets a node outside the schema's node type")
		}
		nodeID = &id
	}

	row, err := h.schemas.GetOptions(ctx, schema.ID, nodeID)
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		row = &assessment.Options{ID: shared.NewID(), SchemaID: schema.ID, NodeID: nodeID}
	default:
		return err
	}

	row.Set(cmd.Name, cmd.Value)
	if err := h.schemas.UpsertOptions(ctx, row); err != nil {
		return err
	}

	h.log.Info("option set",
		logger.SchemaID(schema.ID.String()),
		logger.String("option", cmd.Name),
		logger.Bool("default_row", nodeID == nil),
	)

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewOptionUpdatedEvent(schema.ID, nodeID, cmd.Name))
	}
	return nil
}
