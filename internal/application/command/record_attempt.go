package command

import (
	"context"
	"time"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTEMPT COMMAND
// Appends one attempt to an assessment's ledger. The attempt number is
// assigned transactionally; the value payload is validated against the
// schema's attempt kind before anything is written. Recording never
// overwrites: a correction is just a newer attempt.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptCommand contains the data to record an attempt. Exactly the
// payload fields of the schema's kind must be set; the rest stay zero.
type RecordAttemptCommand struct {
	// AssessmentID identifies the ledger to append to.
	AssessmentID string

	// State carries the pass/fail or completion token, depending on kind.
	State string

	// Rating carries the rated payload.
	Rating *int

	// Grade carries the graded payload.
	Grade string
}

// Validate validates the command.
func (c RecordAttemptCommand) Validate() error {
	if _, err := shared.ParseID(c.AssessmentID); err != nil {
		return shared.NewDomainError("command", "RecordAttempt", shared.ErrInvalidID, "assessment_id is not a valid UUID")
	}
	return nil
}

// RecordAttemptResult contains the result of recording an attempt.
type RecordAttemptResult struct {
	AttemptID     shared.ID
	AssessmentID  shared.AssessmentID
	AttemptNumber int
	RecordedAt    time.Time
}

// RecordAttemptHandler handles the RecordAttemptCommand.
type RecordAttemptHandler struct {
	assessments assessment.AssessmentRepository
	schemas     assessment.SchemaRepository
	ledger      *assessment.Ledger
	resolver    *assessment.OptionResolver
	publisher   shared.EventPublisher
	log         *logger.Logger
}

// NewRecordAttemptHandler creates a new RecordAttemptHandler.
func NewRecordAttemptHandler(
	assessments assessment.AssessmentRepository,
	schemas assessment.SchemaRepository,
	ledger *assessment.Ledger,
	resolver *assessment.OptionResolver,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *RecordAttemptHandler {
	return &RecordAttemptHandler{
		assessments: assessments,
		schemas:     schemas,
		ledger:      ledger,
		resolver:    resolver,
		publisher:   publisher,
		log:         log.With(logger.Component("record_attempt")),
	}
}

// Handle executes the record attempt command.
func (h *RecordAttemptHandler) Handle(ctx context.Context, cmd RecordAttemptCommand) (*RecordAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a, err := h.assessments.Get(ctx, shared.AssessmentID(cmd.AssessmentID))
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

	value, err := decodeValue(schema.Kind, cmd, params)
	if err != nil {
		return nil, err
	}

	attempt, err := h.ledger.Record(ctx, a, schema, value, params)
	if err != nil {
		return nil, err
	}

	h.log.Info("attempt recorded",
		logger.AssessmentID(a.ID.String()),
		logger.StudentID(a.StudentID.String()),
		logger.AttemptNumber(attempt.Number),
	)

	if h.publisher != nil {
		// Snapshot-cache invalidation rides on this event; a failed publish
		// leaves stale cached documents, so it is worth more than a discard.
		err := h.publisher.Publish(shared.NewAttemptRecordedEvent(
			attempt.ID, a.ID, a.SchemaID, a.StudentID, a.NodeID, attempt.Number, attempt.CreatedAt,
		))
		if err != nil {
			h.log.Warn("attempt.recorded publish failed",
				logger.AssessmentID(a.ID.String()),
				logger.Err(err),
			)
		}
	}

	return &RecordAttemptResult{
		AttemptID:     attempt.ID,
		AssessmentID:  a.ID,
		AttemptNumber: attempt.Number,
		RecordedAt:    attempt.CreatedAt,
	}, nil
}

// decodeValue builds the kind-specific payload from the flat command fields.
func decodeValue(kind assessment.Kind, cmd RecordAttemptCommand, params assessment.Params) (assessment.Value, error) {
	switch kind {
	case assessment.KindPassFail:
		return assessment.PassFailValue{State: assessment.PassFailState(cmd.State)}, nil
	case assessment.KindCompletion:
		return assessment.CompletionValue{State: assessment.CompletionState(cmd.State)}, nil
	case assessment.KindRated:
		if cmd.Rating == nil {
			return nil, shared.NewDomainError("command", "RecordAttempt", shared.ErrEmptyValue, "rating is required for a rated attempt")
		}
		return assessment.RatedValue{Rating: *cmd.Rating, MaxRating: params.MaxAvailableRating}, nil
	case assessment.KindGraded:
		grade, err := assessment.ParseGrade(cmd.Grade)
		if err != nil {
			return nil, err
		}
		return assessment.GradedValue{Grade: grade}, nil
	default:
		return nil, assessment.ErrUnrecognisedKind
	}
}
