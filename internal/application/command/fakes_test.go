package command

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
}

// buildTree returns a subject→unit→block→lesson chain for node-type checks.
func buildTree(t *testing.T) (*curriculum.Tree, map[curriculum.NodeType]*curriculum.Node) {
	t.Helper()

	tree := curriculum.NewTree()
	subject, err := tree.AddRoot(shared.NewID(), "Mathematics")
	require.NoError(t, err)
	unit, err := tree.AddChild(subject.ID, shared.NewID(), "Unit 1")
	require.NoError(t, err)
	block, err := tree.AddChild(unit.ID, shared.NewID(), "Block A")
	require.NoError(t, err)
	lesson, err := tree.AddChild(block.ID, shared.NewID(), "Lesson 1")
	require.NoError(t, err)

	return tree, map[curriculum.NodeType]*curriculum.Node{
		curriculum.NodeTypeSubject: subject,
		curriculum.NodeTypeUnit:    unit,
		curriculum.NodeTypeBlock:   block,
		curriculum.NodeTypeLesson:  lesson,
	}
}

// recordingPublisher captures published events in order.
type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

// ── schema repository ──

type fakeSchemaRepo struct {
	schemas map[shared.SchemaID]*assessment.Schema
	options map[string]*assessment.Options
}

func newFakeSchemaRepo() *fakeSchemaRepo {
	return &fakeSchemaRepo{
		schemas: make(map[shared.SchemaID]*assessment.Schema),
		options: make(map[string]*assessment.Options),
	}
}

func optionsKey(schemaID shared.SchemaID, nodeID *shared.NodeID) string {
	if nodeID == nil {
		return schemaID.String() + "|default"
	}
	return schemaID.String() + "|" + nodeID.String()
}

func (f *fakeSchemaRepo) CreateSchema(_ context.Context, schema *assessment.Schema) error {
	for _, existing := range f.schemas {
		if existing.SchoolID == schema.SchoolID && existing.Type == schema.Type {
			return shared.NewDomainError("fake", "CreateSchema", shared.ErrAlreadyExists, "schema type taken")
		}
	}
	f.schemas[schema.ID] = schema
	return nil
}

func (f *fakeSchemaRepo) GetSchema(_ context.Context, id shared.SchemaID) (*assessment.Schema, error) {
	schema, ok := f.schemas[id]
	if !ok {
		return nil, shared.NewDomainError("fake", "GetSchema", shared.ErrNotFound, "schema not found")
	}
	return schema, nil
}

func (f *fakeSchemaRepo) GetSchemaByType(_ context.Context, schoolID shared.ID, schemaType string) (*assessment.Schema, error) {
	for _, s := range f.schemas {
		if s.SchoolID == schoolID && s.Type == schemaType {
			return s, nil
		}
	}
	return nil, shared.NewDomainError("fake", "GetSchemaByType", shared.ErrNotFound, "schema not found")
}

func (f *fakeSchemaRepo) GetOptions(_ context.Context, schemaID shared.SchemaID, nodeID *shared.NodeID) (*assessment.Options, error) {
	row, ok := f.options[optionsKey(schemaID, nodeID)]
	if !ok {
		return nil, shared.NewDomainError("fake", "GetOptions", shared.ErrNotFound, "options row not found")
	}
	return row, nil
}

func (f *fakeSchemaRepo) UpsertOptions(_ context.Context, options *assessment.Options) error {
	f.options[optionsKey(options.SchemaID, options.NodeID)] = options
	return nil
}

// ── assessment repository ──

type fakeAssessmentRepo struct {
	rows map[shared.AssessmentID]*assessment.Assessment
}

func newFakeAssessmentRepo() *fakeAssessmentRepo {
	return &fakeAssessmentRepo{rows: make(map[shared.AssessmentID]*assessment.Assessment)}
}

func (f *fakeAssessmentRepo) Create(_ context.Context, a *assessment.Assessment) error {
	for _, existing := range f.rows {
		if existing.NaturalKey() == a.NaturalKey() {
			return shared.NewDomainError("fake", "Create", shared.ErrAlreadyExists, "assessment exists")
		}
	}
	f.rows[a.ID] = a
	return nil
}

func (f *fakeAssessmentRepo) Get(_ context.Context, id shared.AssessmentID) (*assessment.Assessment, error) {
	a, ok := f.rows[id]
	if !ok {
		return nil, shared.NewDomainError("fake", "Get", shared.ErrNotFound, "assessment not found")
	}
	return a, nil
}

func (f *fakeAssessmentRepo) GetByKey(_ context.Context, key assessment.Key) (*assessment.Assessment, error) {
	for _, a := range f.rows {
		if a.NaturalKey() == key {
			return a, nil
		}
	}
	return nil, shared.NewDomainError("fake", "GetByKey", shared.ErrNotFound, "assessment not found")
}

func (f *fakeAssessmentRepo) GetMany(_ context.Context, ids []shared.AssessmentID) ([]*assessment.Assessment, error) {
	result := make([]*assessment.Assessment, 0, len(ids))
	for _, id := range ids {
		if a, ok := f.rows[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *fakeAssessmentRepo) List(_ context.Context, filter assessment.Filter) ([]*assessment.Assessment, error) {
	var result []*assessment.Assessment
	for _, a := range f.rows {
		if filter.SchemaID != "" && a.SchemaID != filter.SchemaID {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (f *fakeAssessmentRepo) Delete(_ context.Context, id shared.AssessmentID) error {
	delete(f.rows, id)
	return nil
}

// ── attempt repository ──

type fakeAttemptRepo struct {
	attempts map[shared.AssessmentID][]*assessment.Attempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[shared.AssessmentID][]*assessment.Attempt)}
}

func (f *fakeAttemptRepo) Append(_ context.Context, attempt *assessment.Attempt) error {
	number := 0
	for _, existing := range f.attempts[attempt.AssessmentID] {
		if existing.Number > number {
			number = existing.Number
		}
	}
	attempt.Number = number + 1
	f.attempts[attempt.AssessmentID] = append(f.attempts[attempt.AssessmentID], attempt)
	return nil
}

func (f *fakeAttemptRepo) LatestFor(_ context.Context, assessmentID shared.AssessmentID) (*assessment.Attempt, error) {
	var latest *assessment.Attempt
	for _, a := range f.attempts[assessmentID] {
		if latest == nil || a.Number > latest.Number {
			latest = a
		}
	}
	return latest, nil
}

func (f *fakeAttemptRepo) ListFor(_ context.Context, assessmentID shared.AssessmentID, limit int) ([]*assessment.Attempt, error) {
	all := append([]*assessment.Attempt{}, f.attempts[assessmentID]...)
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].Number > all[i].Number {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeAttemptRepo) CountFor(_ context.Context, assessmentID shared.AssessmentID) (int, error) {
	return len(f.attempts[assessmentID]), nil
}
