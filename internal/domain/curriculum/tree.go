package curriculum

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Tree is an in-memory Repository implementation. It backs unit tests and
// serves as the decoded form of a cached subtree; the postgres repository is
// the durable source of truth.
type Tree struct {
	mu    sync.RWMutex
	nodes map[shared.NodeID]*Node
}

// NewTree creates an empty in-memory tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[shared.NodeID]*Node)}
}

// Save persists a node (create or update).
func (t *Tree) Save(_ context.Context, node *Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	copied := *node
	t.nodes[node.ID] = &copied
	return nil
}

// AddRoot inserts a subject root node.
func (t *Tree) AddRoot(id shared.NodeID, name string) (*Node, error) {
	node := &Node{ID: id, Type: NodeTypeSubject, Name: name, Path: id.String()}
	if err := t.Save(context.Background(), node); err != nil {
		return nil, err
	}
	return node, nil
}

// AddChild inserts a child node one level below parent. The child's type is
// implied by the parent's: the hierarchy has fixed levels.
func (t *Tree) AddChild(parentID, id shared.NodeID, name string) (*Node, error) {
	parent, err := t.Get(context.Background(), parentID)
	if err != nil {
		return nil, err
	}

	var childType NodeType
	for nt, depth := range nodeTypeDepth {
		if depth == parent.Type.Depth()+1 {
			childType = nt
		}
	}
	if childType == "" {
		return nil, shared.NewDomainError("curriculum", "AddChild", shared.ErrInvalidInput, "lesson outcomes cannot have children")
	}

	node := &Node{ID: id, Type: childType, Name: name, Path: parent.ChildPath(id)}
	if err := t.Save(context.Background(), node); err != nil {
		return nil, err
	}
	return node, nil
}

// Get returns the node with the given ID.
func (t *Tree) Get(_ context.Context, id shared.NodeID) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[id]
	if !ok {
		return nil, shared.NewDomainError("curriculum", "Get", shared.ErrNotFound, "curriculum node not found")
	}
	copied := *node
	return &copied, nil
}

// TypeOf returns the node type of the given node.
func (t *Tree) TypeOf(ctx context.Context, id shared.NodeID) (NodeType, error) {
	node, err := t.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return node.Type, nil
}

// AncestorsOf returns the node's ancestors ordered from the root down.
func (t *Tree) AncestorsOf(ctx context.Context, id shared.NodeID) ([]*Node, error) {
	node, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	segments := node.PathSegments()
	ancestors := make([]*Node, 0, len(segments)-1)
	for _, ancestorID := range segments[:len(segments)-1] {
		ancestor, err := t.Get(ctx, ancestorID)
		if err != nil {
			return nil, shared.WrapError("curriculum", "AncestorsOf", shared.ErrIntegrity, "materialized path references a missing ancestor", err)
		}
		ancestors = append(ancestors, ancestor)
	}
	return ancestors, nil
}

// DescendantsOf returns the node itself plus every node below it, optionally
// filtered by type.
func (t *Tree) DescendantsOf(ctx context.Context, id shared.NodeID, ofType NodeType) ([]*Node, error) {
	root, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []*Node
	for _, node := range t.nodes {
		if node.ID != root.ID && !strings.HasPrefix(node.Path, root.Path+PathSeparator) {
			continue
		}
		if ofType != "" && node.Type != ofType {
			continue
		}
		copied := *node
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}
