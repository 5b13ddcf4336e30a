// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ASSESSMENT STATE QUERY
// Serves the derived "current state" of one assessment: the projection of
// its latest attempt under the options resolved right now. Nothing here is
// read from stored columns; the ledger is the only source.
// ══════════════════════════════════════════════════════════════════════════════

// GetAssessmentStateQuery contains the parameters for the state lookup.
type GetAssessmentStateQuery struct {
	// AssessmentID identifies the assessment.
	AssessmentID string
}

// Validate validates the query.
func (q GetAssessmentStateQuery) Validate() error {
	if _, err := shared.ParseID(q.AssessmentID); err != nil {
		return shared.NewDomainError("query", "GetAssessmentState", shared.ErrInvalidID, "assessment_id is not a valid UUID")
	}
	return nil
}

// GetAssessmentStateHandler handles the GetAssessmentStateQuery.
type GetAssessmentStateHandler struct {
	assessments assessment.AssessmentRepository
	schemas     assessment.SchemaRepository
	ledger      *assessment.Ledger
	resolver    *assessment.OptionResolver
}

// NewGetAssessmentStateHandler creates a new GetAssessmentStateHandler.
func NewGetAssessmentStateHandler(
	assessments assessment.AssessmentRepository,
	schemas assessment.SchemaRepository,
	ledger *assessment.Ledger,
	resolver *assessment.OptionResolver,
) *GetAssessmentStateHandler {
	return &GetAssessmentStateHandler{
		assessments: assessments,
		schemas:     schemas,
		ledger:      ledger,
		resolver:    resolver,
	}
}

// Handle executes the state lookup.
func (h *GetAssessmentStateHandler) Handle(ctx context.Context, q GetAssessmentStateQuery) (*assessment.State, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	a, err := h.assessments.Get(ctx, shared.AssessmentID(q.AssessmentID))
	if err != nil {
		return nil, err
	}
	schema, err := h.schemas.GetSchema(ctx, a.SchemaID)
	if err != nil {
		return nil, err
	}
	params, err := h.resolver.Params(ctx, schema, a.NodeID)
	if err != nil {
		return nil, err
	}

	state, err := h.ledger.StateOf(ctx, a, schema, params)
	if err != nil {
		return nil, err
	}
	return &state, nil
}
