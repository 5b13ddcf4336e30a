package assessment

import (
	"math"
	"sort"

	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Behavior Table
// ═══════════════════════════════════════════════════════════════════════════

// Behavior bundles everything that varies by attempt kind: payload
// validation, assessment-state projection, and the report/progress
// aggregators. Callers never branch on kind themselves; they resolve a
// Behavior through BehaviorFor and use it.
type Behavior struct {
	kind              Kind
	validateValue     func(Value, Params) error
	projectState      func(*State, *Attempt, Params)
	aggregateReport   func([]State) ReportStats
	aggregateProgress func([]State) ProgressStats
}

// Kind returns the kind this behavior serves.
func (b Behavior) Kind() Kind {
	return b.kind
}

// ValidateValue checks a kind payload against the resolved parameters.
func (b Behavior) ValidateValue(value Value, params Params) error {
	if value == nil {
		return shared.NewDomainError("assessment", "ValidateValue", shared.ErrEmptyValue, "attempt value is required")
	}
	if value.Kind() != b.kind {
		return shared.NewDomainError("assessment", "ValidateValue", shared.ErrValidation, "attempt value kind does not match schema kind")
	}
	return b.validateValue(value, params)
}

// AggregateReport computes the kind-specific report statistics over the
// attempted candidate states.
func (b Behavior) AggregateReport(attempted []State) ReportStats {
	return b.aggregateReport(attempted)
}

// AggregateProgress computes the kind-specific progress statistics over the
// attempted assessment states of a single student.
func (b Behavior) AggregateProgress(attempted []State) ProgressStats {
	return b.aggregateProgress(attempted)
}

// behaviors is the closed dispatch table. It is immutable after init;
// there is no registration API.
var behaviors = map[Kind]Behavior{
	KindPassFail: {
		kind:              KindPassFail,
		validateValue:     validatePassFail,
		projectState:      projectPassFail,
		aggregateReport:   aggregatePassFailReport,
		aggregateProgress: aggregatePassFailProgress,
	},
	KindCompletion: {
		kind:              KindCompletion,
		validateValue:     validateCompletion,
		projectState:      projectCompletion,
		aggregateReport:   aggregateCompletionReport,
		aggregateProgress: aggregateCompletionProgress,
	},
	KindRated: {
		kind:              KindRated,
		validateValue:     validateRated,
		projectState:      projectRated,
		aggregateReport:   aggregateRatedReport,
		aggregateProgress: aggregateRatedProgress,
	},
	KindGraded: {
		kind:              KindGraded,
		validateValue:     validateGraded,
		projectState:      projectGraded,
		aggregateReport:   aggregateGradedReport,
		aggregateProgress: aggregateGradedProgress,
	},
}

// BehaviorFor resolves the behavior for a kind. Unknown kinds fail here, at
// the boundary, never deep inside aggregation.
func BehaviorFor(kind Kind) (Behavior, error) {
	behavior, ok := behaviors[kind]
	if !ok {
		return Behavior{}, ErrUnrecognisedKind
	}
	return behavior, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Statistics records
// ═══════════════════════════════════════════════════════════════════════════

// GradeBin is one bucket of a grade histogram.
type GradeBin struct {
	IDs   []shared.ID `json:"ids"`
	Count int         `json:"count"`
}

// GradeHistogram maps every one of the 13 grades onto a bin. Each attempted
// candidate contributes to exactly one bin: the bin of its latest grade.
type GradeHistogram map[Grade]*GradeBin

// NewGradeHistogram creates a histogram with an empty bin for every grade.
func NewGradeHistogram() GradeHistogram {
	histogram := make(GradeHistogram, len(allGrades))
	for _, g := range allGrades {
		histogram[g] = &GradeBin{IDs: []shared.ID{}}
	}
	return histogram
}

// Total returns the sum of all bin counts.
func (h GradeHistogram) Total() int {
	total := 0
	for _, bin := range h {
		total += bin.Count
	}
	return total
}

// add files an ID into the grade's bin.
func (h GradeHistogram) add(grade Grade, id shared.ID) {
	bin := h[grade]
	bin.IDs = append(bin.IDs, id)
	bin.Count++
}

// PassFailReportStats are the pass/fail population statistics.
type PassFailReportStats struct {
	PassedCandidateIDs   []shared.StudentID `json:"passed_candidate_ids"`
	PassedCandidateCount int                `json:"passed_candidate_count"`
	PercentPassed        shared.Percent     `json:"percent_passed"`
}

// CompletionReportStats are the completion population statistics. Percents
// are of the attempted population.
type CompletionReportStats struct {
	PartiallyCompleteCandidateIDs   []shared.StudentID `json:"partially_complete_candidate_ids"`
	PartiallyCompleteCandidateCount int                `json:"partially_complete_candidate_count"`
	PercentPartiallyComplete        shared.Percent     `json:"percent_partially_complete"`

	CompleteCandidateIDs   []shared.StudentID `json:"complete_candidate_ids"`
	CompleteCandidateCount int                `json:"complete_candidate_count"`
	PercentComplete        shared.Percent     `json:"percent_complete"`
}

// RatedReportStats are the rated population statistics. Average and
// standard deviation are computed on raw rating values over the attempted
// set only, and the deviation is the population deviation (ddof=0).
type RatedReportStats struct {
	RatingAverage    float64                  `json:"rating_average"`
	RatingStdDev     float64                  `json:"rating_std_dev"`
	CandidateRatings map[shared.StudentID]int `json:"candidate_ratings"`
}

// GradedReportStats are the graded population statistics.
type GradedReportStats struct {
	CandidateGrades GradeHistogram `json:"candidate_grades"`
}

// ReportStats is the kind-tagged union of report statistics. Exactly one of
// the kind fields is set, matching Kind.
type ReportStats struct {
	Kind       Kind                   `json:"kind"`
	PassFail   *PassFailReportStats   `json:"pass_fail,omitempty"`
	Completion *CompletionReportStats `json:"completion,omitempty"`
	Rated      *RatedReportStats      `json:"rated,omitempty"`
	Graded     *GradedReportStats     `json:"graded,omitempty"`
}

// PassFailProgressStats are the pass/fail statistics of one student.
type PassFailProgressStats struct {
	PassedAssessmentIDs   []shared.AssessmentID `json:"passed_assessment_ids"`
	PassedAssessmentCount int                   `json:"passed_assessment_count"`
	PercentPassed         shared.Percent        `json:"percent_passed"`
}

// CompletionProgressStats are the completion statistics of one student.
type CompletionProgressStats struct {
	PartiallyCompleteAssessmentIDs   []shared.AssessmentID `json:"partially_complete_assessment_ids"`
	PartiallyCompleteAssessmentCount int                   `json:"partially_complete_assessment_count"`
	PercentPartiallyComplete         shared.Percent        `json:"percent_partially_complete"`

	CompleteAssessmentIDs   []shared.AssessmentID `json:"complete_assessment_ids"`
	CompleteAssessmentCount int                   `json:"complete_assessment_count"`
	PercentComplete         shared.Percent        `json:"percent_complete"`
}

// RatedProgressStats map each assessment onto its latest rating.
type RatedProgressStats struct {
	AssessmentRatings map[shared.AssessmentID]int `json:"assessment_ratings"`
}

// GradedProgressStats are the grade histogram of one student's assessments.
type GradedProgressStats struct {
	AssessmentGrades GradeHistogram `json:"assessment_grades"`
}

// ProgressStats is the kind-tagged union of progress statistics.
type ProgressStats struct {
	Kind       Kind                     `json:"kind"`
	PassFail   *PassFailProgressStats   `json:"pass_fail,omitempty"`
	Completion *CompletionProgressStats `json:"completion,omitempty"`
	Rated      *RatedProgressStats      `json:"rated,omitempty"`
	Graded     *GradedProgressStats     `json:"graded,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════
// Pass/Fail behavior
// ═══════════════════════════════════════════════════════════════════════════

func validatePassFail(value Value, _ Params) error {
	v := value.(PassFailValue)
	if !v.State.IsValid() {
		return shared.NewDomainError("assessment", "ValidateValue", shared.ErrInvalidInput, "state must be 'pass' or 'fail'")
	}
	return nil
}

func projectPassFail(state *State, latest *Attempt, _ Params) {
	v := latest.Value.(PassFailValue)
	isPass := v.State.IsPass()
	state.IsPass = &isPass
}

func aggregatePassFailReport(attempted []State) ReportStats {
	stats := &PassFailReportStats{PassedCandidateIDs: []shared.StudentID{}}
	for _, s := range attempted {
		if s.IsPass != nil && *s.IsPass {
			stats.PassedCandidateIDs = append(stats.PassedCandidateIDs, s.StudentID)
		}
	}
	stats.PassedCandidateCount = len(stats.PassedCandidateIDs)
	stats.PercentPassed = shared.PercentOf(stats.PassedCandidateCount, len(attempted))
	return ReportStats{Kind: KindPassFail, PassFail: stats}
}

func aggregatePassFailProgress(attempted []State) ProgressStats {
	stats := &PassFailProgressStats{PassedAssessmentIDs: []shared.AssessmentID{}}
	for _, s := range attempted {
		if s.IsPass != nil && *s.IsPass {
			stats.PassedAssessmentIDs = append(stats.PassedAssessmentIDs, s.AssessmentID)
		}
	}
	stats.PassedAssessmentCount = len(stats.PassedAssessmentIDs)
	stats.PercentPassed = shared.PercentOf(stats.PassedAssessmentCount, len(attempted))
	return ProgressStats{Kind: KindPassFail, PassFail: stats}
}

// ═══════════════════════════════════════════════════════════════════════════
// Completion behavior
// ═══════════════════════════════════════════════════════════════════════════

func validateCompletion(value Value, _ Params) error {
	v := value.(CompletionValue)
	if !v.State.IsValid() {
		return shared.NewDomainError("assessment", "ValidateValue", shared.ErrInvalidInput, "state must be 'none', 'partially-complete' or 'complete'")
	}
	return nil
}

func projectCompletion(state *State, latest *Attempt, _ Params) {
	v := latest.Value.(CompletionValue)
	completionState := v.State
	isComplete := completionState.IsComplete()
	isPartiallyComplete := completionState.IsPartiallyComplete()

	state.CompletionState = &completionState
	state.IsComplete = &isComplete
	state.IsPartiallyComplete = &isPartiallyComplete
}

func aggregateCompletionReport(attempted []State) ReportStats {
	stats := &CompletionReportStats{
		PartiallyCompleteCandidateIDs: []shared.StudentID{},
		CompleteCandidateIDs:          []shared.StudentID{},
	}
	for _, s := range attempted {
		if s.IsPartiallyComplete != nil && *s.IsPartiallyComplete {
			stats.PartiallyCompleteCandidateIDs = append(stats.PartiallyCompleteCandidateIDs, s.StudentID)
		}
		if s.IsComplete != nil && *s.IsComplete {
			stats.CompleteCandidateIDs = append(stats.CompleteCandidateIDs, s.StudentID)
		}
	}
	stats.PartiallyCompleteCandidateCount = len(stats.PartiallyCompleteCandidateIDs)
	stats.CompleteCandidateCount = len(stats.CompleteCandidateIDs)
	stats.PercentPartiallyComplete = shared.PercentOf(stats.PartiallyCompleteCandidateCount, len(attempted))
	stats.PercentComplete = shared.PercentOf(stats.CompleteCandidateCount, len(attempted))
	return ReportStats{Kind: KindCompletion, Completion: stats}
}

func aggregateCompletionProgress(attempted []State) ProgressStats {
	stats := &CompletionProgressStats{
		PartiallyCompleteAssessmentIDs: []shared.AssessmentID{},
		CompleteAssessmentIDs:          []shared.AssessmentID{},
	}
	for _, s := range attempted {
		if s.IsPartiallyComplete != nil && *s.IsPartiallyComplete {
			stats.PartiallyCompleteAssessmentIDs = append(stats.PartiallyCompleteAssessmentIDs, s.AssessmentID)
		}
		if s.IsComplete != nil && *s.IsComplete {
			stats.CompleteAssessmentIDs = append(stats.CompleteAssessmentIDs, s.AssessmentID)
		}
	}
	stats.PartiallyCompleteAssessmentCount = len(stats.PartiallyCompleteAssessmentIDs)
	stats.CompleteAssessmentCount = len(stats.CompleteAssessmentIDs)
	stats.PercentPartiallyComplete = shared.PercentOf(stats.PartiallyCompleteAssessmentCount, len(attempted))
	stats.PercentComplete = shared.PercentOf(stats.CompleteAssessmentCount, len(attempted))
	return ProgressStats{Kind: KindCompletion, Completion: stats}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rated behavior
// ═══════════════════════════════════════════════════════════════════════════

func validateRated(value Value, params Params) error {
	v := value.(RatedValue)
	if params.MaxAvailableRating <= 0 {
		return shared.NewDomainError("assessment", "ValidateValue", shared.ErrInvalidInput, "max_available_rating must be positive")
	}
	if v.Rating < 0 || v.Rating > params.MaxAvailableRating {
		return shared.NewDomainError("assessment", "ValidateValue", shared.ErrValueOutOfRange, "rating exceeds the configured maximum")
	}
	return nil
}

func projectRated(state *State, latest *Attempt, params Params) {
	v := latest.Value.(RatedValue)
	rating := v.Rating
	maxRating := params.MaxAvailableRating
	state.Rating = &rating
	state.MaxRating = &maxRating

	if maxRating > 0 {
		percent := shared.PercentOf(rating, maxRating)
		state.RatingPercent = &percent
	}
}

func aggregateRatedReport(attempted []State) ReportStats {
	stats := &RatedReportStats{CandidateRatings: make(map[shared.StudentID]int, len(attempted))}

	var ratings []float64
	for _, s := range attempted {
		if s.Rating == nil {
			continue
		}
		stats.CandidateRatings[s.StudentID] = *s.Rating
		ratings = append(ratings, float64(*s.Rating))
	}

	stats.RatingAverage, stats.RatingStdDev = meanAndPopulationStdDev(ratings)
	return ReportStats{Kind: KindRated, Rated: stats}
}

func aggregateRatedProgress(attempted []State) ProgressStats {
	stats := &RatedProgressStats{AssessmentRatings: make(map[shared.AssessmentID]int, len(attempted))}
	for _, s := range attempted {
		if s.Rating == nil {
			continue
		}
		stats.AssessmentRatings[s.AssessmentID] = *s.Rating
	}
	return ProgressStats{Kind: KindRated, Rated: stats}
}

// meanAndPopulationStdDev computes the mean and the population standard
// deviation (ddof=0) of the values. Both are zero for an empty input.
func meanAndPopulationStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	stdDev = math.Sqrt(sumSquares / float64(len(values)))
	return mean, stdDev
}

// ═══════════════════════════════════════════════════════════════════════════
// Graded behavior
// ═══════════════════════════════════════════════════════════════════════════

func validateGraded(value Value, _ Params) error {
	v := value.(GradedValue)
	if !v.Grade.IsValid() {
		return shared.NewDomainError("assessment", "ValidateValue", shared.ErrInvalidInput, "unrecognised grade token")
	}
	return nil
}

func projectGraded(state *State, latest *Attempt, _ Params) {
	v := latest.Value.(GradedValue)
	grade := v.Grade
	state.Grade = &grade
}

func aggregateGradedReport(attempted []State) ReportStats {
	histogram := NewGradeHistogram()
	for _, s := range sortedByStudent(attempted) {
		if s.Grade != nil {
			histogram.add(*s.Grade, s.StudentID)
		}
	}
	return ReportStats{Kind: KindGraded, Graded: &GradedReportStats{CandidateGrades: histogram}}
}

func aggregateGradedProgress(attempted []State) ProgressStats {
	histogram := NewGradeHistogram()
	for _, s := range attempted {
		if s.Grade != nil {
			histogram.add(*s.Grade, s.AssessmentID)
		}
	}
	return ProgressStats{Kind: KindGraded, Graded: &GradedProgressStats{AssessmentGrades: histogram}}
}

// sortedByStudent gives histogram bins a stable candidate order.
func sortedByStudent(states []State) []State {
	sorted := make([]State, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StudentID < sorted[j].StudentID })
	return sorted
}
