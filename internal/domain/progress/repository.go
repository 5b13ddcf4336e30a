package progress

import (
	"context"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Repository is the progress snapshot storage.
type Repository interface {
	// Get returns the snapshot for the key, or shared.ErrNotFound. Finding
	// more than one row for the key fails with shared.ErrIntegrity.
	Get(ctx context.Context, key Key) (*Progress, error)

	// Create persists a new snapshot shell. A duplicate key fails with
	// shared.ErrAlreadyExists so a concurrent creator can refetch.
	Create(ctx context.Context, p *Progress) error

	// Save replaces the stored snapshot with the regenerated one,
	// all-or-nothing.
	Save(ctx context.Context, p *Progress) error

	// ListForStudent returns all of a student's snapshots for a schema.
	ListForStudent(ctx context.Context, schemaID shared.SchemaID, studentID shared.StudentID) ([]*Progress, error)
}

// Cache holds serialized generated snapshots between attempt writes,
// mirroring the report cache contract.
type Cache interface {
	// Get returns the cached snapshot, or shared.ErrNotFound on a miss.
	Get(ctx context.Context, key Key) (*Progress, error)

	// Set stores the freshly generated snapshot.
	Set(ctx context.Context, p *Progress) error

	// Invalidate drops every cached snapshot for (schema, student).
	Invalidate(ctx context.Context, schemaID shared.SchemaID, studentID shared.StudentID) error
}
