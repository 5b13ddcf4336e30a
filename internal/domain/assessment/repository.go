package assessment

import (
	"context"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Filter selects assessments for scoping and snapshot generation. Zero
// fields are ignored; NodeIDs is the already-computed closure when scoping
// by "node and descendants".
type Filter struct {
	SchemaID   shared.SchemaID
	StudentID  shared.StudentID
	NodeIDs    []shared.NodeID
	StudentIDs []shared.StudentID
}

// AttemptRepository is the append-only attempt ledger storage.
type AttemptRepository interface {
	// Append persists the attempt, assigning attempt.Number as
	// max(existing numbers for the assessment)+1 atomically with the
	// insert. Two concurrent appends must never receive the same number:
	// implementations back the read-modify-write with a uniqueness
	// constraint on (assessment, number) and return shared.ErrConflict on
	// a collision so the caller can retry.
	Append(ctx context.Context, attempt *Attempt) error

	// LatestFor returns the attempt with the highest number for the
	// assessment, or nil when none exists. This is the sole source of an
	// assessment's derived current state.
	LatestFor(ctx context.Context, assessmentID shared.AssessmentID) (*Attempt, error)

	// ListFor returns attempts for the assessment ordered by descending
	// number. limit <= 0 returns all of them.
	ListFor(ctx context.Context, assessmentID shared.AssessmentID, limit int) ([]*Attempt, error)

	// CountFor returns the ledger length for the assessment.
	CountFor(ctx context.Context, assessmentID shared.AssessmentID) (int, error)
}

// AssessmentRepository is the unique-keyed assessment storage.
type AssessmentRepository interface {
	// Create persists a new assessment. A duplicate (schema, student, node)
	// triple fails with shared.ErrAlreadyExists.
	Create(ctx context.Context, a *Assessment) error

	// Get returns an assessment by ID.
	Get(ctx context.Context, id shared.AssessmentID) (*Assessment, error)

	// GetByKey returns an assessment by its natural key.
	GetByKey(ctx context.Context, key Key) (*Assessment, error)

	// GetMany returns the assessments with the given IDs. Missing IDs are
	// skipped, not errors; snapshot regeneration tolerates deleted rows.
	GetMany(ctx context.Context, ids []shared.AssessmentID) ([]*Assessment, error)

	// List returns the assessments matching the filter.
	List(ctx context.Context, filter Filter) ([]*Assessment, error)

	// Delete removes an assessment and, by cascade, its attempts.
	Delete(ctx context.Context, id shared.AssessmentID) error
}

// SchemaRepository is the schema and options storage.
type SchemaRepository interface {
	// CreateSchema persists a new schema. A duplicate (school, type) pair
	// fails with shared.ErrAlreadyExists.
	CreateSchema(ctx context.Context, schema *Schema) error

	// GetSchema returns a schema by ID.
	GetSchema(ctx context.Context, id shared.SchemaID) (*Schema, error)

	// GetSchemaByType returns a school's schema with the given type name.
	GetSchemaByType(ctx context.Context, schoolID shared.ID, schemaType string) (*Schema, error)

	// GetOptions returns the options row for (schema, node); nodeID nil
	// addresses the schema default row. Missing rows fail with
	// shared.ErrNotFound.
	GetOptions(ctx context.Context, schemaID shared.SchemaID, nodeID *shared.NodeID) (*Options, error)

	// UpsertOptions creates or replaces the options row for its
	// (schema, node) key.
	UpsertOptions(ctx context.Context, options *Options) error
}
