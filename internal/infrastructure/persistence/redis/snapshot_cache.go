package redis

import (
	"context"
	"errors"

	"github.com/markbook-hub/markbook/internal/domain/progress"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT CACHES
// ══════════════════════════════════════════════════════════════════════════════

// ReportCache implements report.Cache using the generic Redis Cache.
type ReportCache struct {
	cache *Cache
}

// NewReportCache creates a new ReportCache.
func NewReportCache(cache *Cache) *ReportCache {
	return &ReportCache{cache: cache}
}

// Get returns the cached report, or shared.ErrNotFound on a miss.
func (r *ReportCache) Get(ctx context.Context, key report.Key) (*report.Report, error) {
	classID := ""
	if key.ClassID != nil {
		classID = key.ClassID.String()
	}

	var rep report.Report
	err := r.cache.Get(ctx, ReportKey(key.SchemaID.String(), key.NodeID.String(), classID), &rep)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.NewDomainError("redis", "Get", shared.ErrNotFound, "report not cached")
		}
		return nil, err
	}
	return &rep, nil
}

// Set stores the freshly generated report.
func (r *ReportCache) Set(ctx context.Context, rep *report.Report) error {
	if rep == nil {
		return nil
	}
	classID := ""
	if rep.ClassID != nil {
		classID = rep.ClassID.String()
	}
	key := ReportKey(rep.SchemaID.String(), rep.NodeID.String(), classID)
	return r.cache.Set(ctx, key, rep, TTLReportCache)
}

// Invalidate drops every cached report for (schema, node) across all class
// scopes, since a new attempt under the node stales each of them.
func (r *ReportCache) Invalidate(ctx context.Context, schemaID shared.SchemaID, nodeID shared.NodeID) error {
	return r.cache.DeleteByPattern(ctx, ReportNodePattern(schemaID.String(), nodeID.String()))
}

// ProgressCache implements progress.Cache using the generic Redis Cache.
type ProgressCache struct {
	cache *Cache
}

// NewProgressCache creates a new ProgressCache.
func NewProgressCache(cache *Cache) *ProgressCache {
	return &ProgressCache{cache: cache}
}

// Get returns the cached progress, or shared.ErrNotFound on a miss.
func (p *ProgressCache) Get(ctx context.Context, key progress.Key) (*progress.Progress, error) {
	var prog progress.Progress
	err := p.cache.Get(ctx, ProgressKey(key.SchemaID.String(), key.StudentID.String(), key.NodeID.String()), &prog)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.NewDomainError("redis", "Get", shared.ErrNotFound, "progress not cached")
		}
		return nil, err
	}
	return &prog, nil
}

// Set stores the freshly generated progress.
func (p *ProgressCache) Set(ctx context.Context, prog *progress.Progress) error {
	if prog == nil {
		return nil
	}
	key := ProgressKey(prog.SchemaID.String(), prog.StudentID.String(), prog.NodeID.String())
	return p.cache.Set(ctx, key, prog, TTLProgressCache)
}

// Invalidate drops every cached progress for (schema, student); an attempt
// stales the snapshot of the lesson's node and of every ancestor subtree.
func (p *ProgressCache) Invalidate(ctx context.Context, schemaID shared.SchemaID, studentID shared.StudentID) error {
	return p.cache.DeleteByPattern(ctx, ProgressStudentPattern(schemaID.String(), studentID.String()))
}
