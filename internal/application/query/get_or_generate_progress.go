package query

import (
	"context"
	"time"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/progress"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET OR GENERATE PROGRESS QUERY
// Serves one student's snapshot for (schema, student, node): statistics over
// every assessment of the schema at the node and its descendants. Mirrors
// the report policy: the assessment set is frozen at the first generation,
// statistics are recomputed on every fetch.
// ══════════════════════════════════════════════════════════════════════════════

// GetOrGenerateProgressQuery contains the parameters for the progress fetch.
type GetOrGenerateProgressQuery struct {
	// SchemaID is the assessment schema.
	SchemaID string

	// StudentID is the student whose standing is being reported.
	StudentID string

	// NodeID scopes the statistics to the node and its subtree.
	NodeID string
}

// Validate validates the query.
func (q GetOrGenerateProgressQuery) Validate() error {
	if _, err := shared.ParseID(q.SchemaID); err != nil {
		return shared.NewDomainError("query", "GetOrGenerateProgress", shared.ErrInvalidID, "schema_id is not a valid UUID")
	}
	if _, err := shared.ParseID(q.StudentID); err != nil {
		return shared.NewDomainError("query", "GetOrGenerateProgress", shared.ErrInvalidID, "student_id is not a valid UUID")
	}
	if _, err := shared.ParseID(q.NodeID); err != nil {
		return shared.NewDomainError("query", "GetOrGenerateProgress", shared.ErrInvalidID, "node_id is not a valid UUID")
	}
	return nil
}

// Key builds the snapshot key the query addresses.
func (q GetOrGenerateProgressQuery) Key() progress.Key {
	return progress.Key{
		SchemaID:  shared.SchemaID(q.SchemaID),
		StudentID: shared.StudentID(q.StudentID),
		NodeID:    shared.NodeID(q.NodeID),
	}
}

// GetOrGenerateProgressHandler handles the GetOrGenerateProgressQuery.
type GetOrGenerateProgressHandler struct {
	schemas     assessment.SchemaRepository
	assessments assessment.AssessmentRepository
	ledger      *assessment.Ledger
	resolver    *assessment.OptionResolver
	tree        curriculum.TreeReader
	progresses  progress.Repository
	cache       progress.Cache
	log         *logger.Logger
	now         func() time.Time
}

// NewGetOrGenerateProgressHandler creates a new GetOrGenerateProgressHandler.
// cache may be nil; every fetch then regenerates.
func NewGetOrGenerateProgressHandler(
	schemas assessment.SchemaRepository,
	assessments assessment.AssessmentRepository,
	ledger *assessment.Ledger,
	resolver *assessment.OptionResolver,
	tree curriculum.TreeReader,
	progresses progress.Repository,
	cache progress.Cache,
	log *logger.Logger,
) *GetOrGenerateProgressHandler {
	return &GetOrGenerateProgressHandler{
		schemas:     schemas,
		assessments: assessments,
		ledger:      ledger,
		resolver:    resolver,
		tree:        tree,
		progresses:  progresses,
		cache:       cache,
		log:         log.With(logger.Component("get_or_generate_progress")),
		now:         time.Now,
	}
}

// Handle executes the progress fetch.
func (h *GetOrGenerateProgressHandler) Handle(ctx context.Context, q GetOrGenerateProgressQuery) (*progress.Progress, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	key := q.Key()

	if h.cache != nil {
		cached, err := h.cache.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !shared.IsNotFound(err) {
			h.log.Warn("progress cache read failed", logger.Err(err))
		}
	}

	schema, err := h.schemas.GetSchema(ctx, key.SchemaID)
	if err != nil {
		return nil, err
	}

	prog, err := h.getOrCreate(ctx, key, schema)
	if err != nil {
		return nil, err
	}

	if err := h.regenerate(ctx, prog, schema); err != nil {
		return nil, err
	}

	if err := h.progresses.Save(ctx, prog); err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, prog); err != nil {
			h.log.Warn("progress cache write failed", logger.Err(err))
		}
	}

	h.log.Debug("progress generated",
		logger.SchemaID(prog.SchemaID.String()),
		logger.StudentID(prog.StudentID.String()),
		logger.Generation(prog.Generation),
	)
	return prog, nil
}

func (h *GetOrGenerateProgressHandler) getOrCreate(ctx context.Context, key progress.Key, schema *assessment.Schema) (*progress.Progress, error) {
	prog, err := h.progresses.Get(ctx, key)
	if err == nil {
		return prog, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	prog = progress.NewProgress(key, schema.Kind)
	if err := h.progresses.Create(ctx, prog); err != nil {
		if shared.IsAlreadyExists(err) {
			return h.progresses.Get(ctx, key)
		}
		return nil, err
	}
	return prog, nil
}

// regenerate runs one full generation pass in memory; the caller persists.
func (h *GetOrGenerateProgressHandler) regenerate(ctx context.Context, prog *progress.Progress, schema *assessment.Schema) error {
	var rows []*assessment.Assessment

	if prog.IsGenerated() {
		// The frozen set stays authoritative even if assessments were
		// created under the subtree since.
		var err error
		rows, err = h.assessments.GetMany(ctx, prog.AssessmentIDs)
		if err != nil {
			return err
		}
	} else {
		nodeIDs, err := subtreeNodeIDs(ctx, h.tree, prog.NodeID, schema.NodeType)
		if err != nil {
			return err
		}
		// A node with nothing of the schema's target type beneath it
		// matches no assessments; an empty node filter would drop the
		// subtree constraint and pull in the student's whole schema.
		if len(nodeIDs) > 0 {
			rows, err = h.assessments.List(ctx, assessment.Filter{
				SchemaID:  schema.ID,
				StudentID: prog.StudentID,
				NodeIDs:   nodeIDs,
			})
			if err != nil {
				return err
			}
		}

		frozen := make([]shared.AssessmentID, len(rows))
		for i, a := range rows {
			frozen[i] = a.ID
		}
		prog.FreezeAssessments(frozen)
	}

	attempted, err := attemptedStates(ctx, h.ledger, h.resolver, schema, rows)
	if err != nil {
		return err
	}

	attemptedIDs := make([]shared.AssessmentID, 0, len(attempted))
	for _, s := range attempted {
		attemptedIDs = append(attemptedIDs, s.AssessmentID)
	}

	behavior, err := assessment.BehaviorFor(schema.Kind)
	if err != nil {
		return err
	}
	prog.ApplyGeneration(attemptedIDs, behavior.AggregateProgress(attempted), h.now().UTC())
	return nil
}
