package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentRepository implements assessment.AssessmentRepository for PostgreSQL.
type AssessmentRepository struct {
	conn *Connection
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(conn *Connection) *AssessmentRepository {
	return &AssessmentRepository{conn: conn}
}

const assessmentColumns = `id, schema_id, student_id, node_id, created_at`

// Create inserts a new assessment; a duplicate (schema, student, node)
// triple fails with shared.ErrAlreadyExists.
func (r *AssessmentRepository) Create(ctx context.Context, a *assessment.Assessment) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO assessments (id, schema_id, student_id, node_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.SchemaID, a.StudentID, a.NodeID, a.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("postgres", "Create", shared.ErrAlreadyExists,
				"assessment already exists for (schema, student, node)", err)
		}
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

// Get returns an assessment by ID.
func (r *AssessmentRepository) Get(ctx context.Context, id shared.AssessmentID) (*assessment.Assessment, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	return scanAssessment(row)
}

// GetByKey returns an assessment by its natural key.
func (r *AssessmentRepository) GetByKey(ctx context.Context, key assessment.Key) (*assessment.Assessment, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments
		 WHERE schema_id = $1 AND student_id = $2 AND node_id = $3`,
		key.SchemaID, key.StudentID, key.NodeID,
	)
	return scanAssessment(row)
}

// GetMany returns the assessments with the given IDs; missing IDs are skipped.
func (r *AssessmentRepository) GetMany(ctx context.Context, ids []shared.AssessmentID) ([]*assessment.Assessment, error) {
	if len(ids) == 0 {
		return []*assessment.Assessment{}, nil
	}

	rows, err := r.conn.Query(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = ANY($1)`,
		idStrings(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessments: %w", err)
	}
	defer rows.Close()

	return collectAssessments(rows)
}

// List returns the assessments matching the filter.
func (r *AssessmentRepository) List(ctx context.Context, filter assessment.Filter) ([]*assessment.Assessment, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if !filter.SchemaID.IsEmpty() {
		args = append(args, filter.SchemaID)
		conditions = append(conditions, fmt.Sprintf("schema_id = $%d", len(args)))
	}
	if !filter.StudentID.IsEmpty() {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.NodeIDs) > 0 {
		args = append(args, idStrings(filter.NodeIDs))
		conditions = append(conditions, fmt.Sprintf("node_id = ANY($%d)", len(args)))
	}
	if len(filter.StudentIDs) > 0 {
		args = append(args, idStrings(filter.StudentIDs))
		conditions = append(conditions, fmt.Sprintf("student_id = ANY($%d)", len(args)))
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	return collectAssessments(rows)
}

// Delete removes an assessment; its attempts cascade.
func (r *AssessmentRepository) Delete(ctx context.Context, id shared.AssessmentID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("postgres", "Delete", shared.ErrNotFound, "assessment not found")
	}
	return nil
}

func scanAssessment(row pgx.Row) (*assessment.Assessment, error) {
	var a assessment.Assessment
	err := row.Scan(&a.ID, &a.SchemaID, &a.StudentID, &a.NodeID, &a.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "Get", shared.ErrNotFound, "assessment not found")
		}
		return nil, fmt.Errorf("failed to scan assessment: %w", err)
	}
	return &a, nil
}

func collectAssessments(rows pgx.Rows) ([]*assessment.Assessment, error) {
	result := make([]*assessment.Assessment, 0)
	for rows.Next() {
		var a assessment.Assessment
		if err := rows.Scan(&a.ID, &a.SchemaID, &a.StudentID, &a.NodeID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}

// idStrings converts typed IDs into the plain strings pgx binds to UUID[].
func idStrings(ids []shared.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
