// Package jobs contains implementations of scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/markbook-hub/markbook/internal/application/query"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM REPORTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// WarmReportsJob regenerates every known report snapshot for the configured
// schemas. Reads regenerate on their own, so this job is purely a warm-up:
// it keeps the first classroom fetch of the day from paying the aggregation
// cost, and keeps the cache populated between attempt bursts.
type WarmReportsJob struct {
	reports report.Repository
	handler *query.GetOrGenerateReportHandler
	logger  *slog.Logger

	config WarmReportsConfig

	lastStats atomic.Value // *WarmStats
}

// WarmReportsConfig contains configuration for the warm-up job.
type WarmReportsConfig struct {
	// SchemaIDs are the schemas whose snapshots get warmed. Empty disables
	// the job without unregistering it.
	SchemaIDs []string

	// Timeout is the maximum duration for one warm-up pass.
	Timeout time.Duration
}

// DefaultWarmReportsConfig returns sensible defaults.
func DefaultWarmReportsConfig() WarmReportsConfig {
	return WarmReportsConfig{
		Timeout: 5 * time.Minute,
	}
}

// WarmStats contains statistics from one warm-up pass.
type WarmStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Schemas     int
	Snapshots   int
	Failures    int
}

// NewWarmReportsJob creates a new warm reports job.
func NewWarmReportsJob(
	reports report.Repository,
	handler *query.GetOrGenerateReportHandler,
	logger *slog.Logger,
	config WarmReportsConfig,
) *WarmReportsJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &WarmReportsJob{
		reports: reports,
		handler: handler,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *WarmReportsJob) Name() string {
	return "warm_reports"
}

// Description returns a human-readable description.
func (j *WarmReportsJob) Description() string {
	return "Regenerates known report snapshots so reads stay cheap"
}

// Run executes one warm-up pass.
func (j *WarmReportsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &WarmStats{StartedAt: startedAt}

	if len(j.config.SchemaIDs) == 0 {
		return nil
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	for _, schemaID := range j.config.SchemaIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.warmSchema(ctx, shared.SchemaID(schemaID), stats); err != nil {
			stats.Failures++
			j.logger.Error("failed to warm schema reports",
				"schema_id", schemaID,
				"error", err,
			)
			continue
		}
		stats.Schemas++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	j.logger.Info("warm_reports job completed",
		"duration", stats.Duration.String(),
		"schemas", stats.Schemas,
		"snapshots", stats.Snapshots,
		"failures", stats.Failures,
	)

	if stats.Failures > 0 {
		return fmt.Errorf("warm-up completed with %d failures", stats.Failures)
	}
	return nil
}

// warmSchema regenerates every stored snapshot of one schema.
func (j *WarmReportsJob) warmSchema(ctx context.Context, schemaID shared.SchemaID, stats *WarmStats) error {
	reports, err := j.reports.ListForSchema(ctx, schemaID)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	for _, rep := range reports {
		q := query.GetOrGenerateReportQuery{
			SchemaID: rep.SchemaID.String(),
			NodeID:   rep.NodeID.String(),
		}
		if rep.ClassID != nil {
			q.ClassID = rep.ClassID.String()
		}

		if _, err := j.handler.Handle(ctx, q); err != nil {
			stats.Failures++
			j.logger.Warn("failed to warm report snapshot",
				"schema_id", q.SchemaID,
				"node_id", q.NodeID,
				"error", err,
			)
			continue
		}
		stats.Snapshots++
	}

	return nil
}

// LastStats returns statistics from the last warm-up pass.
func (j *WarmReportsJob) LastStats() *WarmStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*WarmStats)
}
