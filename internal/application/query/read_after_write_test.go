package query

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markbook-hub/markbook/internal/application/command"
	"github.com/markbook-hub/markbook/internal/application/eventhandler"
	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/internal/infrastructure/messaging"
)

// memoryReportCache is an in-process report.Cache with hit accounting, for
// asserting when a fetch was served without regeneration.
type memoryReportCache struct {
	docs map[string]*report.Report
	hits int
}

func newMemoryReportCache() *memoryReportCache {
	return &memoryReportCache{docs: make(map[string]*report.Report)}
}

func cacheKeyOf(key report.Key) string {
	classPart := "-"
	if key.ClassID != nil {
		classPart = key.ClassID.String()
	}
	return key.SchemaID.String() + "|" + key.NodeID.String() + "|" + classPart
}

func (c *memoryReportCache) Get(_ context.Context, key report.Key) (*report.Report, error) {
	rep, ok := c.docs[cacheKeyOf(key)]
	if !ok {
		return nil, shared.NewDomainError("fake", "Get", shared.ErrNotFound, "cache miss")
	}
	c.hits++
	return rep, nil
}

func (c *memoryReportCache) Set(_ context.Context, rep *report.Report) error {
	c.docs[cacheKeyOf(rep.NaturalKey())] = rep
	return nil
}

func (c *memoryReportCache) Invalidate(_ context.Context, schemaID shared.SchemaID, nodeID shared.NodeID) error {
	prefix := schemaID.String() + "|" + nodeID.String() + "|"
	for k := range c.docs {
		if strings.HasPrefix(k, prefix) {
			delete(c.docs, k)
		}
	}
	return nil
}

// The cached read path is only sound when recording an attempt drops the
// affected documents before the write returns: a fetch issued right after
// RecordAttempt must see the new attempt, never the cached pre-write copy.
func TestReport_ReadAfterWriteSeesNewAttempt(t *testing.T) {
	f := newReportFixture(t)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	cache := newMemoryReportCache()
	handler := NewGetOrGenerateReportHandler(
		f.schemas, f.assessments, f.ledger, assessment.NewOptionResolver(f.schemas),
		f.tree, f.members, f.reports, cache, quietLogger())

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode: false,
		Logger:    quiet,
	})
	defer bus.Close()
	require.NoError(t, bus.Subscribe(shared.EventAttemptRecorded,
		eventhandler.NewOnAttemptRecordedHandler(cache, nil, f.tree, quiet)))

	recorder := command.NewRecordAttemptHandler(
		f.assessments, f.schemas, f.ledger, assessment.NewOptionResolver(f.schemas), bus, quietLogger())

	rep, err := handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Generation)

	// A repeat fetch is a pure cache hit.
	rep, err = handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Generation)
	assert.Equal(t, 1, cache.hits)

	_, err = recorder.Handle(context.Background(), command.RecordAttemptCommand{
		AssessmentID: f.byStudent[f.students[0]].ID.String(),
		State:        string(assessment.StatePass),
	})
	require.NoError(t, err)

	// The write invalidated the subject-level document through the node's
	// ancestor chain, so this fetch regenerates instead of hitting the cache.
	rep, err = handler.Handle(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Generation)
	assert.Equal(t, []shared.StudentID{f.students[0]}, rep.AttemptedCandidateIDs)
	assert.Equal(t, 1, cache.hits)
}
