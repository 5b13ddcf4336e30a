// Package assessment contains the core domain model for assessment tracking:
// schemas, assessments, the append-only attempt ledger, and the per-kind
// behavior table that drives state projection and snapshot aggregation.
package assessment

import (
	"strings"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Attempt Kind
// ═══════════════════════════════════════════════════════════════════════════

// Kind is the closed set of attempt value domains. It is not extensible at
// runtime: every container entity (schema, assessment, report, progress)
// carries a Kind field and resolves behavior through BehaviorFor, never
// through subtyping.
type Kind string

const (
	KindPassFail   Kind = "pass/fail"
	KindCompletion Kind = "completion-based"
	KindRated      Kind = "rated"
	KindGraded     Kind = "graded"
)

// Kinds returns every known kind.
func Kinds() []Kind {
	return []Kind{KindPassFail, KindCompletion, KindRated, KindGraded}
}

// IsValid checks if the kind is one of the closed set.
func (k Kind) IsValid() bool {
	switch k {
	case KindPassFail, KindCompletion, KindRated, KindGraded:
		return true
	}
	return false
}

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// ErrUnrecognisedKind is raised when a kind tag from outside the closed set
// reaches a boundary (deserialization, schema creation). Aggregation never
// sees an invalid kind.
var ErrUnrecognisedKind = shared.NewDomainError("assessment", "ParseKind", shared.ErrInvalidInput, "unrecognised attempt kind")

// ParseKind validates a kind tag supplied at a boundary.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.TrimSpace(raw))
	if !k.IsValid() {
		return "", ErrUnrecognisedKind
	}
	return k, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pass/Fail State
// ═══════════════════════════════════════════════════════════════════════════

// PassFailState is the value domain of pass/fail attempts.
type PassFailState string

const (
	StateFail PassFailState = "fail"
	StatePass PassFailState = "pass"
)

// IsValid checks if the state is pass or fail.
func (s PassFailState) IsValid() bool {
	return s == StatePass || s == StateFail
}

// IsPass reports whether the state is a pass.
func (s PassFailState) IsPass() bool {
	return s == StatePass
}

// ParsePassFailState validates a pass/fail token.
func ParsePassFailState(raw string) (PassFailState, error) {
	s := PassFailState(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", shared.NewDomainError("assessment", "ParsePassFailState", shared.ErrInvalidInput, "state must be 'pass' or 'fail'")
	}
	return s, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Completion State
// ═══════════════════════════════════════════════════════════════════════════

// CompletionState is the ordered tri-state value domain of completion-based
// attempts: none < partially-complete < complete.
type CompletionState string

const (
	CompletionNone    CompletionState = "none"
	CompletionPartial CompletionState = "partially-complete"
	CompletionFull    CompletionState = "complete"
)

var completionOrder = map[CompletionState]int{
	CompletionNone:    0,
	CompletionPartial: 1,
	CompletionFull:    2,
}

// IsValid checks if the state is one of the tri-state values.
func (s CompletionState) IsValid() bool {
	_, ok := completionOrder[s]
	return ok
}

// Rank returns the position of the state in the completion ordering.
func (s CompletionState) Rank() int {
	return completionOrder[s]
}

// IsComplete reports whether the state is fully complete.
func (s CompletionState) IsComplete() bool {
	return s == CompletionFull
}

// IsPartiallyComplete reports whether the state is at least partially
// complete. Complete implies partially complete.
func (s CompletionState) IsPartiallyComplete() bool {
	return s.Rank() >= completionOrder[CompletionPartial]
}

// ParseCompletionState validates a completion token.
func ParseCompletionState(raw string) (CompletionState, error) {
	s := CompletionState(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", shared.NewDomainError("assessment", "ParseCompletionState", shared.ErrInvalidInput, "state must be 'none', 'partially-complete' or 'complete'")
	}
	return s, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade
// ═══════════════════════════════════════════════════════════════════════════

// Grade is one of the 13 ordered letter grades, A+ down to F.
type Grade string

const (
	GradeAPlus  Grade = "A+"
	GradeA      Grade = "A"
	GradeAMinus Grade = "A-"
	GradeBPlus  Grade = "B+"
	GradeB      Grade = "B"
	GradeBMinus Grade = "B-"
	GradeCPlus  Grade = "C+"
	GradeC      Grade = "C"
	GradeCMinus Grade = "C-"
	GradeDPlus  Grade = "D+"
	GradeD      Grade = "D"
	GradeDMinus Grade = "D-"
	GradeF      Grade = "F"
)

// allGrades is ordered best first. Histogram buckets iterate this order.
var allGrades = []Grade{
	GradeAPlus, GradeA, GradeAMinus,
	GradeBPlus, GradeB, GradeBMinus,
	GradeCPlus, GradeC, GradeCMinus,
	GradeDPlus, GradeD, GradeDMinus,
	GradeF,
}

var gradeOrder = func() map[Grade]int {
	order := make(map[Grade]int, len(allGrades))
	for i, g := range allGrades {
		order[g] = i
	}
	return order
}()

// Grades returns all 13 grades ordered best first.
func Grades() []Grade {
	grades := make([]Grade, len(allGrades))
	copy(grades, allGrades)
	return grades
}

// IsValid checks if the grade is one of the 13 letter grades.
func (g Grade) IsValid() bool {
	_, ok := gradeOrder[g]
	return ok
}

// Rank returns the position of the grade in the ordering, A+ = 0.
func (g Grade) Rank() int {
	return gradeOrder[g]
}

// String returns the string representation.
func (g Grade) String() string {
	return string(g)
}

// ParseGrade validates a grade token.
func ParseGrade(raw string) (Grade, error) {
	g := Grade(strings.TrimSpace(raw))
	if !g.IsValid() {
		return "", shared.NewDomainError("assessment", "ParseGrade", shared.ErrInvalidInput, "unrecognised grade token")
	}
	return g, nil
}
