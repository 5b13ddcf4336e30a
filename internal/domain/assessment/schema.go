package assessment

import (
	"context"
	"strings"

	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Assessment Schema
// ═══════════════════════════════════════════════════════════════════════════

// Schema is the template for one category of assessment, e.g.
// "unit-assessment". All assessments of a schema share its attempt kind and
// target node type; per-node parameters are overridden through Options.
type Schema struct {
	ID       shared.SchemaID
	SchoolID shared.ID

	// SubjectID is the curriculum root this schema belongs to.
	SubjectID shared.NodeID

	// Type is the unique administrative name, e.g. "lesson-outcome-self-assessment".
	Type string

	// NodeType is the curriculum level this schema targets. Assessments and
	// per-node options must reference nodes of exactly this type.
	NodeType curriculum.NodeType

	Kind Kind
}

// Validate checks the internal consistency of the schema.
func (s *Schema) Validate() error {
	if !s.ID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "schema ID must be a UUID")
	}
	if !s.SchoolID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "school ID must be a UUID")
	}
	if !s.SubjectID.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "subject node ID must be a UUID")
	}
	if strings.TrimSpace(s.Type) == "" {
		return shared.NewDomainError("assessment", "Validate", shared.ErrEmptyValue, "schema type name is required")
	}
	if !s.NodeType.IsValid() {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidInput, "unknown target node type")
	}
	if !s.Kind.IsValid() {
		return ErrUnrecognisedKind
	}
	return nil
}

// The built-in schema catalog. These are seed types, not subclasses: every
// one of them is an ordinary Schema row.
const (
	SchemaTypeUnitAssessment    = "unit-assessment"
	SchemaTypeBlockAssessment   = "block-assessment"
	SchemaTypeLessonPrelearning = "lesson-prelearning-assessment"
	SchemaTypeLessonOutcomeSelf = "lesson-outcome-self-assessment"
)

// BuiltinSchemas returns the standard schema catalog for a school/subject
// pair, matching the seed data the importer creates.
func BuiltinSchemas(schoolID shared.ID, subjectID shared.NodeID) []*Schema {
	return []*Schema{
		{ID: shared.NewID(), SchoolID: schoolID, SubjectID: subjectID, Type: SchemaTypeUnitAssessment, NodeType: curriculum.NodeTypeUnit, Kind: KindGraded},
		{ID: shared.NewID(), SchoolID: schoolID, SubjectID: subjectID, Type: SchemaTypeBlockAssessment, NodeType: curriculum.NodeTypeBlock, Kind: KindRated},
		{ID: shared.NewID(), SchoolID: schoolID, SubjectID: subjectID, Type: SchemaTypeLessonPrelearning, NodeType: curriculum.NodeTypeLesson, Kind: KindCompletion},
		{ID: shared.NewID(), SchoolID: schoolID, SubjectID: subjectID, Type: SchemaTypeLessonOutcomeSelf, NodeType: curriculum.NodeTypeLessonOutcome, Kind: KindRated},
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Assessment Options
// ═══════════════════════════════════════════════════════════════════════════

// Known option names. Options are loosely typed name/value pairs; these
// constants are the names the engine itself reads.
const (
	// OptionMaxAvailableRating parameterizes rated attempts: the maximum a
	// rating may take, and the denominator of rating_percent.
	OptionMaxAvailableRating = "max_available_rating"

	// OptionMaxSignificantAttempts bounds how many recent attempts feed
	// history-based statistics. Absent means "all attempts".
	OptionMaxSignificantAttempts = "max_significant_attempts"
)

// ErrOptionNotFound is raised when an option is requested that is set
// neither on the node-specific row nor on the schema default row. Absence is
// distinct from an option explicitly set to null.
var ErrOptionNotFound = shared.NewDomainError("assessment", "GetOption", shared.ErrNotFound, "option not set on node or schema default")

// Options is one row of schema parameters. NodeID nil marks the schema-wide
// default row; exactly one default row exists per schema and at most one row
// exists per (schema, node) pair.
type Options struct {
	ID       shared.ID
	SchemaID shared.SchemaID
	NodeID   *shared.NodeID

	// Values maps option names to values. A name present with a nil value
	// is "explicitly set to null", which still satisfies resolution.
	Values map[string]any
}

// IsDefault reports whether this is the schema-wide default row.
func (o *Options) IsDefault() bool {
	return o.NodeID == nil
}

// Lookup returns the value for name and whether the row sets it at all.
func (o *Options) Lookup(name string) (any, bool) {
	if o == nil || o.Values == nil {
		return nil, false
	}
	value, ok := o.Values[name]
	return value, ok
}

// Set sets a single option value on the row.
func (o *Options) Set(name string, value any) {
	if o.Values == nil {
		o.Values = make(map[string]any)
	}
	o.Values[name] = value
}

// ResolveOption runs the resolution chain over the two candidate rows:
// the node-specific row's explicit value, then the schema default row's
// value, then ErrOptionNotFound. Either row may be nil.
func ResolveOption(nodeRow, defaultRow *Options, name string) (any, error) {
	if value, ok := nodeRow.Lookup(name); ok {
		return value, nil
	}
	if value, ok := defaultRow.Lookup(name); ok {
		return value, nil
	}
	return nil, ErrOptionNotFound
}

// OptionInt coerces a resolved option value to int. Option values round-trip
// through JSON storage, so numbers may arrive as float64.
func OptionInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, shared.NewDomainError("assessment", "OptionInt", shared.ErrInvalidFormat, "option value is not an integer")
	}
}

// OptionResolver resolves option values through the repository.
type OptionResolver struct {
	repo SchemaRepository
}

// NewOptionResolver creates an OptionResolver.
func NewOptionResolver(repo SchemaRepository) *OptionResolver {
	return &OptionResolver{repo: repo}
}

// Get resolves option name for (schema, node). nodeID may be nil to resolve
// against the schema default only.
func (r *OptionResolver) Get(ctx context.Context, schemaID shared.SchemaID, nodeID *shared.NodeID, name string) (any, error) {
	var nodeRow *Options
	if nodeID != nil {
		row, err := r.repo.GetOptions(ctx, schemaID, nodeID)
		if err != nil && !shared.IsNotFound(err) {
			return nil, err
		}
		nodeRow = row
	}

	defaultRow, err := r.repo.GetOptions(ctx, schemaID, nil)
	if err != nil && !shared.IsNotFound(err) {
		return nil, err
	}

	return ResolveOption(nodeRow, defaultRow, name)
}

// GetInt resolves an option and coerces it to int.
func (r *OptionResolver) GetInt(ctx context.Context, schemaID shared.SchemaID, nodeID *shared.NodeID, name string) (int, error) {
	value, err := r.Get(ctx, schemaID, nodeID, name)
	if err != nil {
		return 0, err
	}
	return OptionInt(value)
}

// Params resolves the engine parameters for (schema, node) at read time.
// max_available_rating is mandatory for rated schemas and ignored for the
// rest; max_significant_attempts is optional everywhere and nil when unset.
func (r *OptionResolver) Params(ctx context.Context, schema *Schema, nodeID shared.NodeID) (Params, error) {
	var params Params

	if schema.Kind == KindRated {
		maxRating, err := r.GetInt(ctx, schema.ID, &nodeID, OptionMaxAvailableRating)
		if err != nil {
			return Params{}, err
		}
		params.MaxAvailableRating = maxRating
	}

	maxAttempts, err := r.GetInt(ctx, schema.ID, &nodeID, OptionMaxSignificantAttempts)
	switch {
	case err == nil:
		params.MaxSignificantAttempts = &maxAttempts
	case shared.IsNotFound(err):
		// All attempts are significant.
	default:
		return Params{}, err
	}

	return params, nil
}
