// Package curriculum contains the read model for the subject curriculum tree.
// The hierarchy is fixed: subject → unit → block → lesson → lesson-outcome.
// Assessment scoping and snapshot generation only ever read this tree; writes
// happen through administrative import tooling outside this service.
package curriculum

import (
	"strings"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// NodeType identifies a level of the curriculum hierarchy.
type NodeType string

const (
	NodeTypeSubject       NodeType = "subject"
	NodeTypeUnit          NodeType = "unit"
	NodeTypeBlock         NodeType = "block"
	NodeTypeLesson        NodeType = "lesson"
	NodeTypeLessonOutcome NodeType = "lesson-outcome"
)

// nodeTypeDepth maps each node type onto its fixed depth in the tree,
// with the subject at depth 0.
var nodeTypeDepth = map[NodeType]int{
	NodeTypeSubject:       0,
	NodeTypeUnit:          1,
	NodeTypeBlock:         2,
	NodeTypeLesson:        3,
	NodeTypeLessonOutcome: 4,
}

// IsValid checks if the node type is one of the five known levels.
func (t NodeType) IsValid() bool {
	_, ok := nodeTypeDepth[t]
	return ok
}

// Depth returns the fixed depth of this node type (subject = 0).
func (t NodeType) Depth() int {
	return nodeTypeDepth[t]
}

// String returns the string representation.
func (t NodeType) String() string {
	return string(t)
}

// IsAncestorTypeOf reports whether nodes of this type sit strictly above
// nodes of the other type in the hierarchy.
func (t NodeType) IsAncestorTypeOf(other NodeType) bool {
	return t.IsValid() && other.IsValid() && t.Depth() < other.Depth()
}

// ParseNodeType validates a node type token supplied at a boundary.
func ParseNodeType(raw string) (NodeType, error) {
	t := NodeType(strings.TrimSpace(raw))
	if !t.IsValid() {
		return "", shared.NewDomainError("curriculum", "ParseNodeType", shared.ErrInvalidInput, "unknown curriculum node type")
	}
	return t, nil
}

// PathSeparator joins the segments of a node's materialized path.
const PathSeparator = "."

// Node is a position in the curriculum tree. Path is the materialized path
// from the root: the dot-joined sequence of node IDs ending in this node's
// own ID. A node is a descendant of another exactly when its path extends
// the other's path.
type Node struct {
	ID   shared.NodeID
	Type NodeType
	Name string
	Path string
}

// Validate checks the internal consistency of the node.
func (n *Node) Validate() error {
	if !n.ID.IsValid() {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidID, "node ID must be a UUID")
	}
	if !n.Type.IsValid() {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidInput, "unknown node type")
	}
	if n.Path == "" || !strings.HasSuffix(n.Path, n.ID.String()) {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidFormat, "materialized path must end in the node's own ID")
	}
	if len(n.PathSegments()) != n.Type.Depth()+1 {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidFormat, "materialized path depth does not match node type")
	}
	return nil
}

// PathSegments splits the materialized path into ancestor IDs, root first,
// ending with the node's own ID.
func (n *Node) PathSegments() []shared.NodeID {
	parts := strings.Split(n.Path, PathSeparator)
	segments := make([]shared.NodeID, 0, len(parts))
	for _, p := range parts {
		segments = append(segments, shared.NodeID(p))
	}
	return segments
}

// SubjectID returns the root segment of the node's path.
func (n *Node) SubjectID() shared.NodeID {
	return n.PathSegments()[0]
}

// IsDescendantOf reports whether the node lies strictly below other.
func (n *Node) IsDescendantOf(other *Node) bool {
	return n.ID != other.ID && strings.HasPrefix(n.Path, other.Path+PathSeparator)
}

// IsSelfOrDescendantOf reports whether the node is other or lies below it.
func (n *Node) IsSelfOrDescendantOf(other *Node) bool {
	return n.ID == other.ID || n.IsDescendantOf(other)
}

// ChildPath builds a child's materialized path under this node.
func (n *Node) ChildPath(childID shared.NodeID) string {
	return n.Path + PathSeparator + childID.String()
}
