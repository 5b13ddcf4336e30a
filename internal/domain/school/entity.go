// Package school contains the student and subject-class entities backing
// cohort membership. Reports snapshot their candidate populations from here;
// authentication and user management live elsewhere.
package school

import (
	"strings"
	"time"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// Student is a member of a school who owns assessments and attempts.
type Student struct {
	ID          shared.StudentID
	SchoolID    shared.ID
	DisplayName string
	JoinedAt    time.Time
}

// Validate checks the internal consistency of the student.
func (s *Student) Validate() error {
	if !s.ID.IsValid() {
		return shared.NewDomainError("school", "Validate", shared.ErrInvalidID, "student ID must be a UUID")
	}
	if !s.SchoolID.IsValid() {
		return shared.NewDomainError("school", "Validate", shared.ErrInvalidID, "school ID must be a UUID")
	}
	if strings.TrimSpace(s.DisplayName) == "" {
		return shared.NewDomainError("school", "Validate", shared.ErrEmptyValue, "display name is required")
	}
	return nil
}

// SubjectClass is a cohort of students taking one subject in one calendar
// year. Report populations are drawn from class membership as it stands at
// first generation.
type SubjectClass struct {
	ID        shared.ClassID
	SchoolID  shared.ID
	SubjectID shared.NodeID
	Year      int
	Name      string
}

// Validate checks the internal consistency of the class.
func (c *SubjectClass) Validate() error {
	if !c.ID.IsValid() {
		return shared.NewDomainError("school", "Validate", shared.ErrInvalidID, "class ID must be a UUID")
	}
	if !c.SchoolID.IsValid() {
		return shared.NewDomainError("school", "Validate", shared.ErrInvalidID, "school ID must be a UUID")
	}
	if !c.SubjectID.IsValid() {
		return shared.NewDomainError("school", "Validate", shared.ErrInvalidID, "subject node ID must be a UUID")
	}
	if c.Year < 2000 || c.Year > 2200 {
		return shared.NewDomainError("school", "Validate", shared.ErrValueOutOfRange, "class year is implausible")
	}
	return nil
}
