// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/progress"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ATTEMPT RECORDED HANDLER
// A new attempt makes every cached snapshot touching its assessment stale:
// the report for the node itself, reports for every ancestor node (their
// subtree closures include this node), and the student's progress
// snapshots. Dropping the cached documents restores the serve-then-
// regenerate read path; the stored rows stay and regenerate on next fetch.
// ═══════════════════════════════════════════════════════════════════════════

// OnAttemptRecordedHandler invalidates snapshot caches after an attempt.
type OnAttemptRecordedHandler struct {
	reportCache   report.Cache
	progressCache progress.Cache
	tree          curriculum.TreeReader
	logger        *slog.Logger
	timeout       time.Duration
}

// NewOnAttemptRecordedHandler creates the handler. Either cache may be nil
// when the deployment runs without Redis.
func NewOnAttemptRecordedHandler(
	reportCache report.Cache,
	progressCache progress.Cache,
	tree curriculum.TreeReader,
	logger *slog.Logger,
) *OnAttemptRecordedHandler {
	return &OnAttemptRecordedHandler{
		reportCache:   reportCache,
		progressCache: progressCache,
		tree:          tree,
		logger:        logger,
		timeout:       5 * time.Second,
	}
}

// Name returns the handler name for bus registration and logs.
func (h *OnAttemptRecordedHandler) Name() string {
	return "on_attempt_recorded"
}

// Handle processes an attempt.recorded event.
func (h *OnAttemptRecordedHandler) Handle(event shared.Event) error {
	recorded, ok := event.(*shared.AttemptRecordedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if h.reportCache != nil {
		if err := h.reportCache.Invalidate(ctx, recorded.SchemaID, recorded.NodeID); err != nil {
			h.logger.Warn("report cache invalidation failed",
				"schema_id", recorded.SchemaID.String(),
				"node_id", recorded.NodeID.String(),
				"error", err,
			)
		}

		ancestors, err := h.tree.AncestorsOf(ctx, recorded.NodeID)
		if err != nil {
			h.logger.Warn("ancestor lookup failed",
				"node_id", recorded.NodeID.String(),
				"error", err,
			)
		} else {
			for _, ancestor := range ancestors {
				if err := h.reportCache.Invalidate(ctx, recorded.SchemaID, ancestor.ID); err != nil {
					h.logger.Warn("report cache invalidation failed",
						"schema_id", recorded.SchemaID.String(),
						"node_id", ancestor.ID.String(),
						"error", err,
					)
				}
			}
		}
	}

	if h.progressCache != nil {
		if err := h.progressCache.Invalidate(ctx, recorded.SchemaID, recorded.StudentID); err != nil {
			h.logger.Warn("progress cache invalidation failed",
				"schema_id", recorded.SchemaID.String(),
				"student_id", recorded.StudentID.String(),
				"error", err,
			)
		}
	}

	h.logger.Debug("snapshot caches invalidated",
		"assessment_id", recorded.AssessmentID.String(),
		"attempt_number", recorded.AttemptNumber,
	)
	return nil
}
