package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CurriculumRepository implements curriculum.Repository for PostgreSQL.
// Subtree queries are prefix matches on the materialized path.
type CurriculumRepository struct {
	conn *Connection
}

// NewCurriculumRepository creates a new CurriculumRepository.
func NewCurriculumRepository(conn *Connection) *CurriculumRepository {
	return &CurriculumRepository{conn: conn}
}

// Get returns the node with the given ID.
func (r *CurriculumRepository) Get(ctx context.Context, id shared.NodeID) (*curriculum.Node, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT id, node_type, name, path FROM curriculum_nodes WHERE id = $1`, id)
	return scanNode(row)
}

// TypeOf returns the node type of the given node.
func (r *CurriculumRepository) TypeOf(ctx context.Context, id shared.NodeID) (curriculum.NodeType, error) {
	var nodeType string
	err := r.conn.QueryRow(ctx,
		`SELECT node_type FROM curriculum_nodes WHERE id = $1`, id).Scan(&nodeType)
	if err != nil {
		if IsNoRows(err) {
			return "", shared.NewDomainError("postgres", "TypeOf", shared.ErrNotFound, "curriculum node not found")
		}
		return "", fmt.Errorf("failed to get node type: %w", err)
	}
	return curriculum.NodeType(nodeType), nil
}

// AncestorsOf returns the node's ancestors ordered from the root down,
// excluding the node itself. The ancestor IDs come straight from the
// node's own path.
func (r *CurriculumRepository) AncestorsOf(ctx context.Context, id shared.NodeID) ([]*curriculum.Node, error) {
	node, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	segments := node.PathSegments()
	ancestorIDs := segments[:len(segments)-1]
	if len(ancestorIDs) == 0 {
		return []*curriculum.Node{}, nil
	}

	rows, err := r.conn.Query(ctx,
		`SELECT id, node_type, name, path FROM curriculum_nodes
		 WHERE id = ANY($1)
		 ORDER BY LENGTH(path)`,
		idStrings(ancestorIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ancestors: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

// DescendantsOf returns the node itself plus every node below it, optionally
// narrowed to one node type, ordered by path.
func (r *CurriculumRepository) DescendantsOf(ctx context.Context, id shared.NodeID, ofType curriculum.NodeType) ([]*curriculum.Node, error) {
	node, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, node_type, name, path FROM curriculum_nodes
	          WHERE (path = $1 OR path LIKE $2)`
	args := []interface{}{node.Path, node.Path + curriculum.PathSeparator + "%"}
	if ofType != "" {
		args = append(args, string(ofType))
		query += fmt.Sprintf(" AND node_type = $%d", len(args))
	}
	query += ` ORDER BY path`

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query descendants: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

// Save persists a node (create or update).
func (r *CurriculumRepository) Save(ctx context.Context, node *curriculum.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	_, err := r.conn.Exec(ctx,
		`INSERT INTO curriculum_nodes (id, node_type, name, path)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		node.ID, string(node.Type), node.Name, node.Path,
	)
	if err != nil {
		return fmt.Errorf("failed to save curriculum node: %w", err)
	}
	return nil
}

func scanNode(row pgx.Row) (*curriculum.Node, error) {
	var (
		node     curriculum.Node
		nodeType string
	)
	err := row.Scan(&node.ID, &nodeType, &node.Name, &node.Path)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "Get", shared.ErrNotFound, "curriculum node not found")
		}
		return nil, fmt.Errorf("failed to scan curriculum node: %w", err)
	}
	node.Type = curriculum.NodeType(nodeType)
	return &node, nil
}

func collectNodes(rows pgx.Rows) ([]*curriculum.Node, error) {
	nodes := make([]*curriculum.Node, 0)
	for rows.Next() {
		var (
			node     curriculum.Node
			nodeType string
		)
		if err := rows.Scan(&node.ID, &nodeType, &node.Name, &node.Path); err != nil {
			return nil, fmt.Errorf("failed to scan curriculum node: %w", err)
		}
		node.Type = curriculum.NodeType(nodeType)
		nodes = append(nodes, &node)
	}
	return nodes, rows.Err()
}
