package curriculum

import (
	"context"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// TreeReader is the read-only view of the curriculum tree the assessment and
// snapshot layers depend on. Implementations must resolve ancestry purely
// from node identity; the aggregation engine never mutates the tree.
type TreeReader interface {
	// Get returns the node with the given ID.
	Get(ctx context.Context, id shared.NodeID) (*Node, error)

	// TypeOf returns the node type of the given node.
	TypeOf(ctx context.Context, id shared.NodeID) (NodeType, error)

	// AncestorsOf returns the node's ancestors ordered from the root down,
	// excluding the node itself.
	AncestorsOf(ctx context.Context, id shared.NodeID) ([]*Node, error)

	// DescendantsOf returns the node itself plus every node below it.
	// When ofType is non-empty only descendants of that type are returned
	// (the node itself is then included only if it matches).
	DescendantsOf(ctx context.Context, id shared.NodeID, ofType NodeType) ([]*Node, error)
}

// Repository extends TreeReader with the writes used by import tooling and
// test fixtures.
type Repository interface {
	TreeReader

	// Save persists a node (create or update).
	Save(ctx context.Context, node *Node) error
}
