package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SchemaRepository implements assessment.SchemaRepository for PostgreSQL.
type SchemaRepository struct {
	conn *Connection
}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository(conn *Connection) *SchemaRepository {
	return &SchemaRepository{conn: conn}
}

const schemaColumns = `id, school_id, subject_id, schema_type, node_type, attempt_kind`

// CreateSchema inserts a new schema; a duplicate (school, type) pair fails
// with shared.ErrAlreadyExists.
func (r *SchemaRepository) CreateSchema(ctx context.Context, schema *assessment.Schema) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO assessment_schemas (id, school_id, subject_id, schema_type, node_type, attempt_kind)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		schema.ID, schema.SchoolID, schema.SubjectID, schema.Type, string(schema.NodeType), string(schema.Kind),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("postgres", "CreateSchema", shared.ErrAlreadyExists,
				"schema type already exists for school", err)
		}
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetSchema returns a schema by ID.
func (r *SchemaRepository) GetSchema(ctx context.Context, id shared.SchemaID) (*assessment.Schema, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+schemaColumns+` FROM assessment_schemas WHERE id = $1`, id)
	return scanSchema(row)
}

// GetSchemaByType returns a school's schema with the given type name.
func (r *SchemaRepository) GetSchemaByType(ctx context.Context, schoolID shared.ID, schemaType string) (*assessment.Schema, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+schemaColumns+` FROM assessment_schemas
		 WHERE school_id = $1 AND schema_type = $2`,
		schoolID, schemaType,
	)
	return scanSchema(row)
}

// GetOptions returns the options row for (schema, node); nodeID nil
// addresses the schema default row.
func (r *SchemaRepository) GetOptions(ctx context.Context, schemaID shared.SchemaID, nodeID *shared.NodeID) (*assessment.Options, error) {
	var row pgx.Row
	if nodeID == nil {
		row = r.conn.QueryRow(ctx,
			`SELECT id, schema_id, node_id, option_values
			 FROM assessment_options
			 WHERE schema_id = $1 AND node_id IS NULL`,
			schemaID,
		)
	} else {
		row = r.conn.QueryRow(ctx,
			`SELECT id, schema_id, node_id, option_values
			 FROM assessment_options
			 WHERE schema_id = $1 AND node_id = $2`,
			schemaID, *nodeID,
		)
	}

	var (
		options assessment.Options
		rawNode *string
		values  []byte
	)
	if err := row.Scan(&options.ID, &options.SchemaID, &rawNode, &values); err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "GetOptions", shared.ErrNotFound, "options row not found")
		}
		return nil, fmt.Errorf("failed to scan options: %w", err)
	}
	if rawNode != nil {
		id := shared.NodeID(*rawNode)
		options.NodeID = &id
	}
	if err := json.Unmarshal(values, &options.Values); err != nil {
		return nil, shared.WrapError("postgres", "GetOptions", shared.ErrIntegrity, "malformed option values", err)
	}
	return &options, nil
}

// UpsertOptions creates or replaces the options row for its (schema, node) key.
func (r *SchemaRepository) UpsertOptions(ctx context.Context, options *assessment.Options) error {
	values, err := json.Marshal(options.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal option values: %w", err)
	}

	// Two statements because (schema_id, NULL) pairs never collide in the
	// plain unique constraint; the default row relies on the partial index.
	if options.NodeID == nil {
		_, err = r.conn.Exec(ctx,
			`INSERT INTO assessment_options (id, schema_id, node_id, option_values)
			 VALUES ($1, $2, NULL, $3)
			 ON CONFLICT (schema_id) WHERE node_id IS NULL
			 DO UPDATE SET option_values = EXCLUDED.option_values`,
			options.ID, options.SchemaID, values,
		)
	} else {
		_, err = r.conn.Exec(ctx,
			`INSERT INTO assessment_options (id, schema_id, node_id, option_values)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (schema_id, node_id)
			 DO UPDATE SET option_values = EXCLUDED.option_values`,
			options.ID, options.SchemaID, *options.NodeID, values,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert options: %w", err)
	}
	return nil
}

func scanSchema(row pgx.Row) (*assessment.Schema, error) {
	var (
		schema   assessment.Schema
		nodeType string
		kind     string
	)
	err := row.Scan(&schema.ID, &schema.SchoolID, &schema.SubjectID, &schema.Type, &nodeType, &kind)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "GetSchema", shared.ErrNotFound, "schema not found")
		}
		return nil, fmt.Errorf("failed to scan schema: %w", err)
	}
	schema.NodeType = curriculum.NodeType(nodeType)
	schema.Kind = assessment.Kind(kind)
	return &schema, nil
}
