package report

import (
	"context"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Repository is the report snapshot storage.
type Repository interface {
	// Get returns the report for the key, or shared.ErrNotFound.
	Get(ctx context.Context, key Key) (*Report, error)

	// Create persists a new snapshot shell. A duplicate key fails with
	// shared.ErrAlreadyExists so a concurrent creator can refetch.
	Create(ctx context.Context, r *Report) error

	// Save replaces the stored snapshot with the regenerated one. The
	// write is all-or-nothing: a failed regeneration leaves the previous
	// generation intact.
	Save(ctx context.Context, r *Report) error

	// ListForSchema returns all snapshots of a schema, for warm-up and
	// invalidation sweeps.
	ListForSchema(ctx context.Context, schemaID shared.SchemaID) ([]*Report, error)
}

// Cache holds serialized generated snapshots between attempt writes. A
// cached document is served as-is: it was generated after the newest
// attempt it covers, and attempt writes invalidate it.
type Cache interface {
	// Get returns the cached snapshot, or shared.ErrNotFound on a miss.
	Get(ctx context.Context, key Key) (*Report, error)

	// Set stores the freshly generated snapshot.
	Set(ctx context.Context, r *Report) error

	// Invalidate drops every cached snapshot touching (schema, node).
	Invalidate(ctx context.Context, schemaID shared.SchemaID, nodeID shared.NodeID) error
}
