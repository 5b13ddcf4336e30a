package postgres

import (
	"context"
	"fmt"

	"github.com/markbook-hub/markbook/internal/domain/school"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHOOL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SchoolRepository implements school.Repository for PostgreSQL.
type SchoolRepository struct {
	conn *Connection
}

// NewSchoolRepository creates a new SchoolRepository.
func NewSchoolRepository(conn *Connection) *SchoolRepository {
	return &SchoolRepository{conn: conn}
}

// MembersOf returns the student IDs enrolled in the class, in enrollment order.
func (r *SchoolRepository) MembersOf(ctx context.Context, classID shared.ClassID) ([]shared.StudentID, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT student_id FROM class_members WHERE class_id = $1 ORDER BY enrolled_at`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query class members: %w", err)
	}
	defer rows.Close()

	members := make([]shared.StudentID, 0)
	for rows.Next() {
		var id shared.StudentID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// ClassOf returns the class the student belongs to for the subject, or nil
// when the student is not enrolled.
func (r *SchoolRepository) ClassOf(ctx context.Context, studentID shared.StudentID, subjectID shared.NodeID) (*school.SubjectClass, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT c.id, c.school_id, c.subject_id, c.year, c.name
		 FROM subject_classes c
		 JOIN class_members m ON m.class_id = c.id
		 WHERE m.student_id = $1 AND c.subject_id = $2
		 ORDER BY c.year DESC
		 LIMIT 1`,
		studentID, subjectID,
	)

	var class school.SubjectClass
	err := row.Scan(&class.ID, &class.SchoolID, &class.SubjectID, &class.Year, &class.Name)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan class: %w", err)
	}
	return &class, nil
}

// SubjectPopulation returns the student IDs across all of the school's
// classes for the subject in the given year.
func (r *SchoolRepository) SubjectPopulation(ctx context.Context, schoolID shared.ID, subjectID shared.NodeID, year int) ([]shared.StudentID, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT DISTINCT m.student_id
		 FROM class_members m
		 JOIN subject_classes c ON c.id = m.class_id
		 WHERE c.school_id = $1 AND c.subject_id = $2 AND c.year = $3
		 ORDER BY m.student_id`,
		schoolID, subjectID, year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query subject population: %w", err)
	}
	defer rows.Close()

	population := make([]shared.StudentID, 0)
	for rows.Next() {
		var id shared.StudentID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		population = append(population, id)
	}
	return population, rows.Err()
}

// GetStudent returns a student by ID.
func (r *SchoolRepository) GetStudent(ctx context.Context, id shared.StudentID) (*school.Student, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT id, school_id, display_name, joined_at FROM students WHERE id = $1`, id)

	var s school.Student
	err := row.Scan(&s.ID, &s.SchoolID, &s.DisplayName, &s.JoinedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "GetStudent", shared.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}
	return &s, nil
}

// SaveStudent persists a student (create or update).
func (r *SchoolRepository) SaveStudent(ctx context.Context, s *school.Student) error {
	if err := s.Validate(); err != nil {
		return err
	}

	_, err := r.conn.Exec(ctx,
		`INSERT INTO students (id, school_id, display_name, joined_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`,
		s.ID, s.SchoolID, s.DisplayName, s.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

// GetClass returns a class by ID.
func (r *SchoolRepository) GetClass(ctx context.Context, id shared.ClassID) (*school.SubjectClass, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT id, school_id, subject_id, year, name FROM subject_classes WHERE id = $1`, id)

	var class school.SubjectClass
	err := row.Scan(&class.ID, &class.SchoolID, &class.SubjectID, &class.Year, &class.Name)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "GetClass", shared.ErrNotFound, "class not found")
		}
		return nil, fmt.Errorf("failed to scan class: %w", err)
	}
	return &class, nil
}

// SaveClass persists a class (create or update).
func (r *SchoolRepository) SaveClass(ctx context.Context, class *school.SubjectClass) error {
	if err := class.Validate(); err != nil {
		return err
	}

	_, err := r.conn.Exec(ctx,
		`INSERT INTO subject_classes (id, school_id, subject_id, year, name)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		class.ID, class.SchoolID, class.SubjectID, class.Year, class.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to save class: %w", err)
	}
	return nil
}

// Enroll adds a student to a class; enrolling twice is a no-op.
func (r *SchoolRepository) Enroll(ctx context.Context, classID shared.ClassID, studentID shared.StudentID) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO class_members (class_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (class_id, student_id) DO NOTHING`,
		classID, studentID,
	)
	if err != nil {
		return fmt.Errorf("failed to enroll student: %w", err)
	}
	return nil
}
