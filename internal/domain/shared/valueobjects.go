package shared

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// ID is the base identifier type shared by every entity. IDs are UUIDs in
// canonical string form; they may be assigned by the client or the server.
type ID string

// IsValid checks if the ID is a well-formed UUID.
func (id ID) IsValid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

// IsEmpty checks if the ID is empty.
func (id ID) IsEmpty() bool {
	return id == ""
}

// String returns the string representation.
func (id ID) String() string {
	return string(id)
}

// NewID generates a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates and normalizes an identifier supplied at a boundary.
func ParseID(raw string) (ID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", NewDomainError("shared", "ParseID", ErrInvalidID, "identifier is not a valid UUID")
	}
	return ID(parsed.String()), nil
}

// StudentID identifies a student.
type StudentID = ID

// NodeID identifies a curriculum node.
type NodeID = ID

// SchemaID identifies an assessment schema.
type SchemaID = ID

// AssessmentID identifies an assessment.
type AssessmentID = ID

// ClassID identifies a subject class (cohort).
type ClassID = ID

// ═══════════════════════════════════════════════════════════════════════════
// Percent Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percent is a ratio expressed in the range [0, 100], rounded to one decimal
// place the way report serializations present it.
type Percent float64

// PercentOf computes 100*part/whole. A zero whole yields zero rather than a
// division error; callers that need "undefined" keep a nil pointer instead.
func PercentOf(part, whole int) Percent {
	if whole == 0 {
		return 0
	}
	return Percent(math.Round(1000*float64(part)/float64(whole)) / 10)
}

// Float64 returns the underlying float value.
func (p Percent) Float64() float64 {
	return float64(p)
}

// IsValid checks that the percent is within [0, 100].
func (p Percent) IsValid() bool {
	return p >= 0 && p <= 100
}
