package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/progress"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `id, schema_id, student_id, node_id, attempt_kind, generation,
	generated_at, assessment_ids, attempted_assessment_ids, percent_attempted, stats`

// Get returns the snapshot for the key, or shared.ErrNotFound. A second row
// for the same key means the unique constraint has been bypassed, which is
// reported as shared.ErrIntegrity rather than silently picking one.
func (r *ProgressRepository) Get(ctx context.Context, key progress.Key) (*progress.Progress, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+progressColumns+` FROM progresses
		 WHERE schema_id = $1 AND student_id = $2 AND node_id = $3`,
		key.SchemaID, key.StudentID, key.NodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var found *progress.Progress
	for rows.Next() {
		if found != nil {
			return nil, shared.NewDomainError("postgres", "Get", shared.ErrIntegrity,
				"multiple progress rows for one key")
		}
		found, err = scanProgressRow(rows)
		if err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}
	if found == nil {
		return nil, shared.NewDomainError("postgres", "Get", shared.ErrNotFound, "progress not found")
	}
	return found, nil
}

// Create inserts a new snapshot shell; a duplicate key fails with
// shared.ErrAlreadyExists.
func (r *ProgressRepository) Create(ctx context.Context, p *progress.Progress) error {
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal progress stats: %w", err)
	}

	_, err = r.conn.Exec(ctx,
		`INSERT INTO progresses (id, schema_id, student_id, node_id, attempt_kind, generation,
		                         generated_at, assessment_ids, attempted_assessment_ids,
		                         percent_attempted, stats)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.SchemaID, p.StudentID, p.NodeID, string(p.Kind), p.Generation,
		nullableTime(p.GeneratedAt), idStrings(p.AssessmentIDs), idStrings(p.AttemptedAssessmentIDs),
		p.PercentAttempted.Float64(), stats,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("postgres", "Create", shared.ErrAlreadyExists, "progress already exists for key", err)
		}
		return fmt.Errorf("failed to create progress: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot with the regenerated one in a single
// statement, so a failed regeneration never leaves a half-written row.
func (r *ProgressRepository) Save(ctx context.Context, p *progress.Progress) error {
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal progress stats: %w", err)
	}

	tag, err := r.conn.Exec(ctx,
		`UPDATE progresses
		 SET generation = $2,
		     generated_at = $3,
		     assessment_ids = $4,
		     attempted_assessment_ids = $5,
		     percent_attempted = $6,
		     stats = $7
		 WHERE id = $1`,
		p.ID, p.Generation, nullableTime(p.GeneratedAt),
		idStrings(p.AssessmentIDs), idStrings(p.AttemptedAssessmentIDs),
		p.PercentAttempted.Float64(), stats,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("postgres", "Save", shared.ErrNotFound, "progress not found")
	}
	return nil
}

// ListForStudent returns all of a student's snapshots for a schema.
func (r *ProgressRepository) ListForStudent(ctx context.Context, schemaID shared.SchemaID, studentID shared.StudentID) ([]*progress.Progress, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+progressColumns+` FROM progresses
		 WHERE schema_id = $1 AND student_id = $2
		 ORDER BY node_id`,
		schemaID, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progresses: %w", err)
	}
	defer rows.Close()

	progresses := make([]*progress.Progress, 0)
	for rows.Next() {
		p, err := scanProgressRow(rows)
		if err != nil {
			return nil, err
		}
		progresses = append(progresses, p)
	}
	return progresses, rows.Err()
}

func scanProgressRow(rows interface {
	Scan(dest ...interface{}) error
}) (*progress.Progress, error) {
	var (
		p           progress.Progress
		kind        string
		generatedAt *time.Time
		frozen      []string
		attempted   []string
		percent     float64
		stats       []byte
	)
	err := rows.Scan(&p.ID, &p.SchemaID, &p.StudentID, &p.NodeID, &kind, &p.Generation,
		&generatedAt, &frozen, &attempted, &percent, &stats)
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}

	p.Kind = assessment.Kind(kind)
	if generatedAt != nil {
		p.GeneratedAt = generatedAt.UTC()
	}
	p.AssessmentIDs = toAssessmentIDs(frozen)
	p.AttemptedAssessmentIDs = toAssessmentIDs(attempted)
	p.PercentAttempted = shared.Percent(percent)
	if err := json.Unmarshal(stats, &p.Stats); err != nil {
		return nil, shared.WrapError("postgres", "Get", shared.ErrIntegrity, "malformed progress stats", err)
	}
	return &p, nil
}

func toAssessmentIDs(raw []string) []shared.AssessmentID {
	ids := make([]shared.AssessmentID, len(raw))
	for i, s := range raw {
		ids[i] = shared.AssessmentID(s)
	}
	return ids
}
