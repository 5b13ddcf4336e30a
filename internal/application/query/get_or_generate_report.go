package query

import (
	"context"
	"time"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/school"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/logger"
	"github.com/markbook-hub/markbook/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET OR GENERATE REPORT QUERY
// Serves the population snapshot for (schema, node, class|nil). A stored
// snapshot carries no freshness signal, so a fetch regenerates before
// serving unless the cache still holds a document generated after the
// newest attempt. The candidate population is frozen at the first
// generation; statistics over it are recomputed every pass.
// ══════════════════════════════════════════════════════════════════════════════

// GetOrGenerateReportQuery contains the parameters for the report fetch.
type GetOrGenerateReportQuery struct {
	// SchemaID is the assessment schema being reported on.
	SchemaID string

	// NodeID is the curriculum node being reported on.
	NodeID string

	// ClassID scopes the population to one subject class; empty means the
	// whole subject population of the schema's school.
	ClassID string
}

// Validate validates the query.
func (q GetOrGenerateReportQuery) Validate() error {
	if _, err := shared.ParseID(q.SchemaID); err != nil {
		return shared.NewDomainError("query", "GetOrGenerateReport", shared.ErrInvalidID, "schema_id is not a valid UUID")
	}
	if _, err := shared.ParseID(q.NodeID); err != nil {
		return shared.NewDomainError("query", "GetOrGenerateReport", shared.ErrInvalidID, "node_id is not a valid UUID")
	}
	if q.ClassID != "" {
		if _, err := shared.ParseID(q.ClassID); err != nil {
			return shared.NewDomainError("query", "GetOrGenerateReport", shared.ErrInvalidID, "class_id is not a valid UUID")
		}
	}
	return nil
}

// Key builds the snapshot key the query addresses.
func (q GetOrGenerateReportQuery) Key() report.Key {
	key := report.Key{SchemaID: shared.SchemaID(q.SchemaID), NodeID: shared.NodeID(q.NodeID)}
	if q.ClassID != "" {
		classID := shared.ClassID(q.ClassID)
		key.ClassID = &classID
	}
	return key
}

// GetOrGenerateReportHandler handles the GetOrGenerateReportQuery.
type GetOrGenerateReportHandler struct {
	schemas     assessment.SchemaRepository
	assessments assessment.AssessmentRepository
	ledger      *assessment.Ledger
	resolver    *assessment.OptionResolver
	tree        curriculum.TreeReader
	members     school.MembershipProvider
	reports     report.Repository
	cache       report.Cache
	log         *logger.Logger
	now         func() time.Time
}

// NewGetOrGenerateReportHandler creates a new GetOrGenerateReportHandler.
// cache may be nil; every fetch then regenerates.
func NewGetOrGenerateReportHandler(
	schemas assessment.SchemaRepository,
	assessments assessment.AssessmentRepository,
	ledger *assessment.Ledger,
	resolver *assessment.OptionResolver,
	tree curriculum.TreeReader,
	members school.MembershipProvider,
	reports report.Repository,
	cache report.Cache,
	log *logger.Logger,
) *GetOrGenerateReportHandler {
	return &GetOrGenerateReportHandler{
		schemas:     schemas,
		assessments: assessments,
		ledger:      ledger,
		resolver:    resolver,
		tree:        tree,
		members:     members,
		reports:     reports,
		cache:       cache,
		log:         log.With(logger.Component("get_or_generate_report")),
		now:         time.Now,
	}
}

// Handle executes the report fetch.
func (h *GetOrGenerateReportHandler) Handle(ctx context.Context, q GetOrGenerateReportQuery) (*report.Report, error) {
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
			h.log.Warn("report cache read failed", logger.Err(err))
		}
	}

	schema, err := h.schemas.GetSchema(ctx, key.SchemaID)
	if err != nil {
		return nil, err
	}

	rep, err := h.getOrCreate(ctx, key, schema)
	if err != nil {
		return nil, err
	}

	if err := h.regenerate(ctx, rep, schema); err != nil {
		return nil, err
	}

	if err := h.reports.Save(ctx, rep); err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, rep); err != nil {
			h.log.Warn("report cache write failed", logger.Err(err))
		}
	}

	h.log.Debug("report generated",
		logger.SchemaID(rep.SchemaID.String()),
		logger.NodeID(rep.NodeID.String()),
		logger.Generation(rep.Generation),
	)
	return rep, nil
}

// getOrCreate fetches the snapshot row, creating the shell on first touch.
// A concurrent creator losing the unique-key race refetches the winner's row.
func (h *GetOrGenerateReportHandler) getOrCreate(ctx context.Context, key report.Key, schema *assessment.Schema) (*report.Report, error) {
	rep, err := h.reports.Get(ctx, key)
	if err == nil {
		return rep, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	rep = report.NewReport(key, schema.Kind)
	if err := h.reports.Create(ctx, rep); err != nil {
		if shared.IsAlreadyExists(err) {
			return h.reports.Get(ctx, key)
		}
		return nil, err
	}
	return rep, nil
}

// regenerate runs one full generation pass over the snapshot in memory. The
// caller persists the result, so a failure leaves the stored generation
// untouched.
func (h *GetOrGenerateReportHandler) regenerate(ctx context.Context, rep *report.Report, schema *assessment.Schema) error {
	if !rep.IsGenerated() {
		population, err := h.candidatePopulation(ctx, rep, schema)
		if err != nil {
			return err
		}
		rep.FreezeCandidates(population)
	}

	nodeIDs, err := subtreeNodeIDs(ctx, h.tree, rep.NodeID, schema.NodeType)
	if err != nil {
		return err
	}

	// An empty frozen population, or a node with nothing of the schema's
	// target type beneath it, matches no assessments. Listing anyway would
	// drop the empty filter field and aggregate rows outside the snapshot.
	var rows []*assessment.Assessment
	if len(rep.CandidateIDs) > 0 && len(nodeIDs) > 0 {
		rows, err = h.assessments.List(ctx, assessment.Filter{
			SchemaID:   schema.ID,
			NodeIDs:    nodeIDs,
			StudentIDs: rep.CandidateIDs,
		})
		if err != nil {
			return err
		}
	}

	attempted, err := attemptedStates(ctx, h.ledger, h.resolver, schema, rows)
	if err != nil {
		return err
	}

	attemptedIDs := make([]shared.StudentID, 0, len(attempted))
	for _, s := range attempted {
		attemptedIDs = append(attemptedIDs, s.StudentID)
	}

	behavior, err := assessment.BehaviorFor(schema.Kind)
	if err != nil {
		return err
	}
	rep.ApplyGeneration(attemptedIDs, behavior.AggregateReport(attempted), h.now().UTC())
	return nil
}

// candidatePopulation resolves who the report is about: the class roster, or
// the school's whole subject population for the current academic year.
func (h *GetOrGenerateReportHandler) candidatePopulation(ctx context.Context, rep *report.Report, schema *assessment.Schema) ([]shared.StudentID, error) {
	if rep.ClassID != nil {
		return h.members.MembersOf(ctx, *rep.ClassID)
	}
	return h.members.SubjectPopulation(ctx, schema.SchoolID, schema.SubjectID, timeutil.CurrentSchoolYear())
}
