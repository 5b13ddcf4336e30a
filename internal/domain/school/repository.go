package school

import (
	"context"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// MembershipProvider is the population view the aggregation engine depends
// on. It answers "who is in this cohort" questions at snapshot time.
type MembershipProvider interface {
	// MembersOf returns the student IDs enrolled in the class.
	MembersOf(ctx context.Context, classID shared.ClassID) ([]shared.StudentID, error)

	// ClassOf returns the class the student currently belongs to for the
	// subject, or nil when the student is not enrolled.
	ClassOf(ctx context.Context, studentID shared.StudentID, subjectID shared.NodeID) (*SubjectClass, error)

	// SubjectPopulation returns the student IDs across all of the school's
	// classes for the subject in the given year. Used when a report is not
	// scoped to a single class.
	SubjectPopulation(ctx context.Context, schoolID shared.ID, subjectID shared.NodeID, year int) ([]shared.StudentID, error)
}

// Repository persists students and classes and implements MembershipProvider.
type Repository interface {
	MembershipProvider

	// GetStudent returns a student by ID.
	GetStudent(ctx context.Context, id shared.StudentID) (*Student, error)

	// SaveStudent persists a student (create or update).
	SaveStudent(ctx context.Context, student *Student) error

	// GetClass returns a class by ID.
	GetClass(ctx context.Context, id shared.ClassID) (*SubjectClass, error)

	// SaveClass persists a class (create or update).
	SaveClass(ctx context.Context, class *SubjectClass) error

	// Enroll adds a student to a class. Enrolling twice is a no-op.
	Enroll(ctx context.Context, classID shared.ClassID, studentID shared.StudentID) error
}
