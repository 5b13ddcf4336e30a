package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CURRICULUM AND SCHOOLS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Curriculum nodes as materialized-path rows. The path is dot-joined node
-- IDs from the subject root down to the node itself; subtree queries are
-- prefix matches on it.
CREATE TABLE IF NOT EXISTS curriculum_nodes (
    id UUID PRIMARY KEY,
    node_type VARCHAR(20) NOT NULL,
    name VARCHAR(255) NOT NULL,
    path TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_node_type CHECK (node_type IN
        ('subject', 'unit', 'block', 'lesson', 'lesson-outcome'))
);

CREATE INDEX IF NOT EXISTS idx_curriculum_nodes_type ON curriculum_nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_curriculum_nodes_path ON curriculum_nodes(path text_pattern_ops);

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    school_id UUID NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_school ON students(school_id);

CREATE TABLE IF NOT EXISTS subject_classes (
    id UUID PRIMARY KEY,
    school_id UUID NOT NULL,
    subject_id UUID NOT NULL REFERENCES curriculum_nodes(id),
    year INTEGER NOT NULL,
    name VARCHAR(100) NOT NULL,

    UNIQUE(school_id, subject_id, year, name)
);

CREATE INDEX IF NOT EXISTS idx_subject_classes_subject_year ON subject_classes(subject_id, year);

CREATE TABLE IF NOT EXISTS class_members (
    class_id UUID NOT NULL REFERENCES subject_classes(id) ON DELETE CASCADE,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (class_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_class_members_student ON class_members(student_id);
`

const migration001Down = `
DROP TABLE IF EXISTS class_members;
DROP TABLE IF EXISTS subject_classes;
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS curriculum_nodes;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: SCHEMAS, ASSESSMENTS, ATTEMPT LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS assessment_schemas (
    id UUID PRIMARY KEY,
    school_id UUID NOT NULL,
    subject_id UUID NOT NULL REFERENCES curriculum_nodes(id),
    schema_type VARCHAR(100) NOT NULL,
    node_type VARCHAR(20) NOT NULL,
    attempt_kind VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(school_id, schema_type),
    CONSTRAINT valid_schema_node_type CHECK (node_type IN
        ('subject', 'unit', 'block', 'lesson', 'lesson-outcome')),
    CONSTRAINT valid_attempt_kind CHECK (attempt_kind IN
        ('pass/fail', 'completion-based', 'rated', 'graded'))
);

-- Option rows. node_id NULL is the schema-wide default row; the partial
-- unique index keeps it single.
CREATE TABLE IF NOT EXISTS assessment_options (
    id UUID PRIMARY KEY,
    schema_id UUID NOT NULL REFERENCES assessment_schemas(id) ON DELETE CASCADE,
    node_id UUID REFERENCES curriculum_nodes(id) ON DELETE CASCADE,
    option_values JSONB NOT NULL DEFAULT '{}'::jsonb,

    UNIQUE(schema_id, node_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_options_default_row
    ON assessment_options(schema_id) WHERE node_id IS NULL;

CREATE TABLE IF NOT EXISTS assessments (
    id UUID PRIMARY KEY,
    schema_id UUID NOT NULL REFERENCES assessment_schemas(id) ON DELETE CASCADE,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    node_id UUID NOT NULL REFERENCES curriculum_nodes(id) ON DELETE CASCADE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(schema_id, student_id, node_id)
);

CREATE INDEX IF NOT EXISTS idx_assessments_schema_node ON assessments(schema_id, node_id);
CREATE INDEX IF NOT EXISTS idx_assessments_student ON assessments(student_id);

-- The append-only ledger. The unique constraint on (assessment_id,
-- attempt_number) is the backstop for concurrent max+1 assignment: the
-- loser of a race gets a unique violation and retries.
CREATE TABLE IF NOT EXISTS attempts (
    id UUID PRIMARY KEY,
    assessment_id UUID NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
    attempt_number INTEGER NOT NULL,
    payload JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(assessment_id, attempt_number),
    CONSTRAINT positive_attempt_number CHECK (attempt_number >= 1)
);

CREATE INDEX IF NOT EXISTS idx_attempts_assessment_number
    ON attempts(assessment_id, attempt_number DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS attempts;
DROP TABLE IF EXISTS assessments;
DROP TABLE IF EXISTS assessment_options;
DROP TABLE IF EXISTS assessment_schemas;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SNAPSHOT DOCUMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS reports (
    id UUID PRIMARY KEY,
    schema_id UUID NOT NULL REFERENCES assessment_schemas(id) ON DELETE CASCADE,
    node_id UUID NOT NULL REFERENCES curriculum_nodes(id) ON DELETE CASCADE,
    class_id UUID REFERENCES subject_classes(id) ON DELETE CASCADE,
    attempt_kind VARCHAR(20) NOT NULL,
    generation INTEGER NOT NULL DEFAULT 0,
    generated_at TIMESTAMP WITH TIME ZONE,
    candidate_ids UUID[] NOT NULL DEFAULT '{}',
    attempted_candidate_ids UUID[] NOT NULL DEFAULT '{}',
    percent_attempted DOUBLE PRECISION NOT NULL DEFAULT 0,
    stats JSONB NOT NULL DEFAULT '{}'::jsonb,

    UNIQUE(schema_id, node_id, class_id)
);

-- UNIQUE treats NULLs as distinct; the partial index keeps the
-- class-less snapshot single per (schema, node).
CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_no_class
    ON reports(schema_id, node_id) WHERE class_id IS NULL;

CREATE TABLE IF NOT EXISTS progresses (
    id UUID PRIMARY KEY,
    schema_id UUID NOT NULL REFERENCES assessment_schemas(id) ON DELETE CASCADE,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    node_id UUID NOT NULL REFERENCES curriculum_nodes(id) ON DELETE CASCADE,
    attempt_kind VARCHAR(20) NOT NULL,
    generation INTEGER NOT NULL DEFAULT 0,
    generated_at TIMESTAMP WITH TIME ZONE,
    assessment_ids UUID[] NOT NULL DEFAULT '{}',
    attempted_assessment_ids UUID[] NOT NULL DEFAULT '{}',
    percent_attempted DOUBLE PRECISION NOT NULL DEFAULT 0,
    stats JSONB NOT NULL DEFAULT '{}'::jsonb,

    UNIQUE(schema_id, student_id, node_id)
);

CREATE INDEX IF NOT EXISTS idx_progresses_schema_student
    ON progresses(schema_id, student_id);
`

const migration003Down = `
DROP TABLE IF EXISTS progresses;
DROP TABLE IF EXISTS reports;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_curriculum_and_schools", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_assessments_and_ledger", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_snapshot_documents", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}
