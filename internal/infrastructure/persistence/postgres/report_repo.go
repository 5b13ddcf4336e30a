package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ReportRepository implements report.Repository for PostgreSQL. ID lists are
// stored as native UUID arrays and statistics as JSONB.
type ReportRepository struct {
	conn *Connection
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(conn *Connection) *ReportRepository {
	return &ReportRepository{conn: conn}
}

const reportColumns = `id, schema_id, node_id, class_id, attempt_kind, generation,
	generated_at, candidate_ids, attempted_candidate_ids, percent_attempted, stats`

// Get returns the report for the key, or shared.ErrNotFound. The key is
// covered by unique indexes; finding a second row anyway is a corrupted
// store and surfaces as shared.ErrIntegrity rather than silently serving
// either copy.
func (r *ReportRepository) Get(ctx context.Context, key report.Key) (*report.Report, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if key.ClassID == nil {
		rows, err = r.conn.Query(ctx,
			`SELECT `+reportColumns+` FROM reports
			 WHERE schema_id = $1 AND node_id = $2 AND class_id IS NULL
			 LIMIT 2`,
			key.SchemaID, key.NodeID,
		)
	} else {
		rows, err = r.conn.Query(ctx,
			`SELECT `+reportColumns+` FROM reports
			 WHERE schema_id = $1 AND node_id = $2 AND class_id = $3
			 LIMIT 2`,
			key.SchemaID, key.NodeID, *key.ClassID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get report: %w", err)
		}
		return nil, shared.NewDomainError("postgres", "Get", shared.ErrNotFound, "report not found")
	}
	rep, err := scanReport(rows)
	if err != nil {
		return nil, err
	}
	if rows.Next() {
		return nil, shared.NewDomainError("postgres", "Get", shared.ErrIntegrity, "multiple report rows for one snapshot key")
	}
	return rep, rows.Err()
}

// Create inserts a new snapshot shell; a duplicate key fails with
// shared.ErrAlreadyExists.
func (r *ReportRepository) Create(ctx context.Context, rep *report.Report) error {
	stats, err := json.Marshal(rep.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal report stats: %w", err)
	}

	var classID interface{}
	if rep.ClassID != nil {
		classID = *rep.ClassID
	}

	_, err = r.conn.Exec(ctx,
		`INSERT INTO reports (id, schema_id, node_id, class_id, attempt_kind, generation,
		                      generated_at, candidate_ids, attempted_candidate_ids,
		                      percent_attempted, stats)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rep.ID, rep.SchemaID, rep.NodeID, classID, string(rep.Kind), rep.Generation,
		nullableTime(rep.GeneratedAt), idStrings(rep.CandidateIDs), idStrings(rep.AttemptedCandidateIDs),
		rep.PercentAttempted.Float64(), stats,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("postgres", "Create", shared.ErrAlreadyExists, "report already exists for key", err)
		}
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot with the regenerated one in a single
// statement, so a failed regeneration never leaves a half-written row.
func (r *ReportRepository) Save(ctx context.Context, rep *report.Report) error {
	stats, err := json.Marshal(rep.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal report stats: %w", err)
	}

	tag, err := r.conn.Exec(ctx,
		`UPDATE reports
		 SET generation = $2,
		     generated_at = $3,
		     candidate_ids = $4,
		     attempted_candidate_ids = $5,
		     percent_attempted = $6,
		     stats = $7
		 WHERE id = $1`,
		rep.ID, rep.Generation, nullableTime(rep.GeneratedAt),
		idStrings(rep.CandidateIDs), idStrings(rep.AttemptedCandidateIDs),
		rep.PercentAttempted.Float64(), stats,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("postgres", "Save", shared.ErrNotFound, "report not found")
	}
	return nil
}

// ListForSchema returns all snapshots of a schema.
func (r *ReportRepository) ListForSchema(ctx context.Context, schemaID shared.SchemaID) ([]*report.Report, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE schema_id = $1 ORDER BY node_id`,
		schemaID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*report.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

func scanReport(row pgx.Row) (*report.Report, error) {
	var (
		rep         report.Report
		classID     *string
		kind        string
		generatedAt *time.Time
		candidates  []string
		attempted   []string
		percent     float64
		stats       []byte
	)
	err := row.Scan(&rep.ID, &rep.SchemaID, &rep.NodeID, &classID, &kind, &rep.Generation,
		&generatedAt, &candidates, &attempted, &percent, &stats)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "Get", shared.ErrNotFound, "report not found")
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	if classID != nil {
		id := shared.ClassID(*classID)
		rep.ClassID = &id
	}
	rep.Kind = assessment.Kind(kind)
	if generatedAt != nil {
		rep.GeneratedAt = generatedAt.UTC()
	}
	rep.CandidateIDs = toStudentIDs(candidates)
	rep.AttemptedCandidateIDs = toStudentIDs(attempted)
	rep.PercentAttempted = shared.Percent(percent)
	if err := json.Unmarshal(stats, &rep.Stats); err != nil {
		return nil, shared.WrapError("postgres", "Get", shared.ErrIntegrity, "malformed report stats", err)
	}
	return &rep, nil
}

func toStudentIDs(raw []string) []shared.StudentID {
	ids := make([]shared.StudentID, len(raw))
	for i, s := range raw {
		ids[i] = shared.StudentID(s)
	}
	return ids
}

// nullableTime maps the zero time to SQL NULL for not-yet-generated snapshots.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
