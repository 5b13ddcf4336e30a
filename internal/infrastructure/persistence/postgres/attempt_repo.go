package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AttemptRepository implements assessment.AttemptRepository for PostgreSQL.
// The ledger is append-only: this type exposes no update or delete.
type AttemptRepository struct {
	conn *Connection
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(conn *Connection) *AttemptRepository {
	return &AttemptRepository{conn: conn}
}

// attemptPayload is the JSONB wire form of a kind-specific attempt value.
type attemptPayload struct {
	Kind      assessment.Kind `json:"kind"`
	State     string          `json:"state,omitempty"`
	Rating    *int            `json:"rating,omitempty"`
	MaxRating *int            `json:"max_rating,omitempty"`
	Grade     string          `json:"grade,omitempty"`
}

func marshalValue(value assessment.Value) ([]byte, error) {
	payload := attemptPayload{Kind: value.Kind()}
	switch v := value.(type) {
	case assessment.PassFailValue:
		payload.State = string(v.State)
	case assessment.CompletionValue:
		payload.State = string(v.State)
	case assessment.RatedValue:
		rating, maxRating := v.Rating, v.MaxRating
		payload.Rating = &rating
		payload.MaxRating = &maxRating
	case assessment.GradedValue:
		payload.Grade = string(v.Grade)
	default:
		return nil, shared.NewDomainError("postgres", "marshalValue", shared.ErrInvalidInput, "unknown attempt value type")
	}
	return json.Marshal(payload)
}

func unmarshalValue(raw []byte) (assessment.Value, error) {
	var payload attemptPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, shared.WrapError("postgres", "unmarshalValue", shared.ErrIntegrity, "malformed attempt payload", err)
	}

	switch payload.Kind {
	case assessment.KindPassFail:
		return assessment.PassFailValue{State: assessment.PassFailState(payload.State)}, nil
	case assessment.KindCompletion:
		return assessment.CompletionValue{State: assessment.CompletionState(payload.State)}, nil
	case assessment.KindRated:
		value := assessment.RatedValue{}
		if payload.Rating != nil {
			value.Rating = *payload.Rating
		}
		if payload.MaxRating != nil {
			value.MaxRating = *payload.MaxRating
		}
		return value, nil
	case assessment.KindGraded:
		return assessment.GradedValue{Grade: assessment.Grade(payload.Grade)}, nil
	default:
		return nil, shared.NewDomainError("postgres", "unmarshalValue", shared.ErrIntegrity, "persisted attempt has unknown kind")
	}
}

// Append inserts the attempt, assigning max(attempt_number)+1 inside the
// insert transaction. The unique constraint on (assessment_id,
// attempt_number) backstops concurrent appends; the loser surfaces
// shared.ErrConflict for the ledger to retry.
func (r *AttemptRepository) Append(ctx context.Context, attempt *assessment.Attempt) error {
	payload, err := marshalValue(attempt.Value)
	if err != nil {
		return err
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var number int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM attempts WHERE assessment_id = $1`,
			attempt.AssessmentID,
		).Scan(&number)
		if err != nil {
			return fmt.Errorf("failed to compute attempt number: %w", err)
		}

		attempt.Number = number
		_, err = tx.Exec(ctx,
			`INSERT INTO attempts (id, assessment_id, attempt_number, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			attempt.ID, attempt.AssessmentID, attempt.Number, payload, attempt.CreatedAt,
		)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("postgres", "Append", shared.ErrConflict, "attempt number already taken", err)
		}
		if IsForeignKeyViolation(err) {
			return shared.WrapError("postgres", "Append", shared.ErrNotFound, "assessment does not exist", err)
		}
		return fmt.Errorf("failed to append attempt: %w", err)
	}
	return nil
}

// LatestFor returns the highest-numbered attempt, or nil when none exists.
func (r *AttemptRepository) LatestFor(ctx context.Context, assessmentID shared.AssessmentID) (*assessment.Attempt, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT id, assessment_id, attempt_number, payload, created_at
		 FROM attempts
		 WHERE assessment_id = $1
		 ORDER BY attempt_number DESC
		 LIMIT 1`,
		assessmentID,
	)

	attempt, err := scanAttempt(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return attempt, nil
}

// ListFor returns attempts ordered by descending number; limit <= 0 means all.
func (r *AttemptRepository) ListFor(ctx context.Context, assessmentID shared.AssessmentID, limit int) ([]*assessment.Attempt, error) {
	query := `SELECT id, assessment_id, attempt_number, payload, created_at
	          FROM attempts
	          WHERE assessment_id = $1
	          ORDER BY attempt_number DESC`
	args := []interface{}{assessmentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*assessment.Attempt, 0)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// CountFor returns the ledger length for the assessment.
func (r *AttemptRepository) CountFor(ctx context.Context, assessmentID shared.AssessmentID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1`,
		assessmentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

func scanAttempt(row pgx.Row) (*assessment.Attempt, error) {
	var (
		attempt assessment.Attempt
		payload []byte
	)
	if err := row.Scan(&attempt.ID, &attempt.AssessmentID, &attempt.Number, &payload, &attempt.CreatedAt); err != nil {
		return nil, err
	}

	value, err := unmarshalValue(payload)
	if err != nil {
		return nil, err
	}
	attempt.Value = value
	return &attempt, nil
}
