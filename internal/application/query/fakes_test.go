package query

import (
	"context"
	"io"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/progress"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/school"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
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
	nodeSet := make(map[shared.NodeID]struct{}, len(filter.NodeIDs))
	for _, id := range filter.NodeIDs {
		nodeSet[id] = struct{}{}
	}
	studentSet := make(map[shared.StudentID]struct{}, len(filter.StudentIDs))
	for _, id := range filter.StudentIDs {
		studentSet[id] = struct{}{}
	}

	var result []*assessment.Assessment
	for _, a := range f.rows {
		if filter.SchemaID != "" && a.SchemaID != filter.SchemaID {
			continue
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if len(nodeSet) > 0 {
			if _, ok := nodeSet[a.NodeID]; !ok {
				continue
			}
		}
		if len(studentSet) > 0 {
			if _, ok := studentSet[a.StudentID]; !ok {
				continue
			}
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

// ── report repository ──

type fakeReportRepo struct {
	rows map[report.Key]*report.Report

	// alreadyExistsOnce makes the next Create fail with ErrAlreadyExists
	// while inserting a competitor's row, simulating a lost creation race.
	alreadyExistsOnce *report.Report
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{rows: make(map[report.Key]*report.Report)}
}

func reportMapKey(key report.Key) report.Key {
	if key.ClassID != nil {
		classID := *key.ClassID
		key.ClassID = &classID
	}
	return key
}

func (f *fakeReportRepo) Get(_ context.Context, key report.Key) (*report.Report, error) {
	for k, r := range f.rows {
		if k.SchemaID == key.SchemaID && k.NodeID == key.NodeID && classIDEqual(k.ClassID, key.ClassID) {
			return r, nil
		}
	}
	return nil, shared.NewDomainError("fake", "Get", shared.ErrNotFound, "report not found")
}

func classIDEqual(a, b *shared.ClassID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeReportRepo) Create(_ context.Context, r *report.Report) error {
	if f.alreadyExistsOnce != nil {
		winner := f.alreadyExistsOnce
		f.alreadyExistsOnce = nil
		f.rows[reportMapKey(winner.NaturalKey())] = winner
		return shared.NewDomainError("fake", "Create", shared.ErrAlreadyExists, "report exists")
	}
	f.rows[reportMapKey(r.NaturalKey())] = r
	return nil
}

func (f *fakeReportRepo) Save(_ context.Context, r *report.Report) error {
	f.rows[reportMapKey(r.NaturalKey())] = r
	return nil
}

func (f *fakeReportRepo) ListForSchema(_ context.Context, schemaID shared.SchemaID) ([]*report.Report, error) {
	var result []*report.Report
	for _, r := range f.rows {
		if r.SchemaID == schemaID {
			result = append(result, r)
		}
	}
	return result, nil
}

// ── progress repository ──

type fakeProgressRepo struct {
	rows map[progress.Key]*progress.Progress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: make(map[progress.Key]*progress.Progress)}
}

func (f *fakeProgressRepo) Get(_ context.Context, key progress.Key) (*progress.Progress, error) {
	p, ok := f.rows[key]
	if !ok {
		return nil, shared.NewDomainError("fake", "Get", shared.ErrNotFound, "progress not found")
	}
	return p, nil
}

func (f *fakeProgressRepo) Create(_ context.Context, p *progress.Progress) error {
	if _, ok := f.rows[p.NaturalKey()]; ok {
		return shared.NewDomainError("fake", "Create", shared.ErrAlreadyExists, "progress exists")
	}
	f.rows[p.NaturalKey()] = p
	return nil
}

func (f *fakeProgressRepo) Save(_ context.Context, p *progress.Progress) error {
	f.rows[p.NaturalKey()] = p
	return nil
}

func (f *fakeProgressRepo) ListForStudent(_ context.Context, schemaID shared.SchemaID, studentID shared.StudentID) ([]*progress.Progress, error) {
	var result []*progress.Progress
	for _, p := range f.rows {
		if p.SchemaID == schemaID && p.StudentID == studentID {
			result = append(result, p)
		}
	}
	return result, nil
}

// ── membership provider ──

type fakeMembers struct {
	classes    map[shared.ClassID][]shared.StudentID
	population []shared.StudentID
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{classes: make(map[shared.ClassID][]shared.StudentID)}
}

func (f *fakeMembers) MembersOf(_ context.Context, classID shared.ClassID) ([]shared.StudentID, error) {
	return f.classes[classID], nil
}

func (f *fakeMembers) ClassOf(_ context.Context, studentID shared.StudentID, subjectID shared.NodeID) (*school.SubjectClass, error) {
	return nil, nil
}

func (f *fakeMembers) SubjectPopulation(_ context.Context, schoolID shared.ID, subjectID shared.NodeID, year int) ([]shared.StudentID, error) {
	return f.population, nil
}
