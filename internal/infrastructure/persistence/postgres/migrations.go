// Package postgres implements the PostgreSQL persistence layer for the grad record hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

-- Current student snapshot: the "current" side of the TRAX reconciliation.
CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    pen CHAR(9) NOT NULL UNIQUE,
    program VARCHAR(20) NOT NULL DEFAULT '',
    school_of_record VARCHAR(8) NOT NULL DEFAULT '',
    school_at_grad VARCHAR(8) NOT NULL DEFAULT '',
    student_grade VARCHAR(4) NOT NULL DEFAULT '',
    status VARCHAR(3) NOT NULL DEFAULT 'CUR',
    citizenship VARCHAR(1) NOT NULL DEFAULT '',
    program_completion_date TIMESTAMP WITH TIME ZONE,
    adult_start_date TIMESTAMP WITH TIME ZONE,
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    middle_names VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    birthdate TIMESTAMP WITH TIME ZONE,
    recalc_transcript VARCHAR(1) NOT NULL DEFAULT '',
    recalc_projected VARCHAR(1) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_pen CHECK (pen ~ '^[0-9]{9}$'),
    CONSTRAINT valid_status CHECK (status IN ('CUR', 'ARC', 'TER', 'MER', 'DEC')),
    CONSTRAINT valid_recalc_transcript CHECK (recalc_transcript IN ('', 'Y', 'N')),
    CONSTRAINT valid_recalc_projected CHECK (recalc_projected IN ('', 'Y', 'N'))
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_students_pen ON students(pen);
CREATE INDEX IF NOT EXISTS idx_students_status ON students(status);
CREATE INDEX IF NOT EXISTS idx_students_program ON students(program);
CREATE INDEX IF NOT EXISTS idx_students_school_of_record ON students(school_of_record);
CREATE INDEX IF NOT EXISTS idx_students_updated_at ON students(updated_at DESC);

-- Partial index for batch recompute sweeps: only rows still flagged.
CREATE INDEX IF NOT EXISTS idx_students_pending_recalc
    ON students(updated_at)
    WHERE recalc_transcript = 'Y' OR recalc_projected = 'Y';

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

-- Apply trigger to students table
DROP TRIGGER IF EXISTS update_students_updated_at ON students;
CREATE TRIGGER update_students_updated_at
    BEFORE UPDATE ON students
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_students_updated_at ON students;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE STUDENT PROGRAMS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create program registry and per-student program link tables
-- Version: 002

-- Registry of valid optional programs per main program. Seeded from TRAX
-- and refreshed on a schedule; lookups key on (main_program, code).
CREATE TABLE IF NOT EXISTS optional_program_registry (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    main_program VARCHAR(20) NOT NULL,
    code VARCHAR(4) NOT NULL,
    description VARCHAR(200) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(main_program, code)
);

CREATE INDEX IF NOT EXISTS idx_registry_main_program ON optional_program_registry(main_program);
CREATE INDEX IF NOT EXISTS idx_registry_code ON optional_program_registry(code);

-- Optional programs attached to a student, keyed by registry entry.
CREATE TABLE IF NOT EXISTS student_optional_programs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    registry_id UUID NOT NULL REFERENCES optional_program_registry(id),
    code VARCHAR(4) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(student_id, registry_id)
);

CREATE INDEX IF NOT EXISTS idx_optional_programs_student ON student_optional_programs(student_id);
CREATE INDEX IF NOT EXISTS idx_optional_programs_code ON student_optional_programs(code);

-- Career programs are raw codes with no registry entry of their own;
-- they roll up under the CP aggregate on the optional side.
CREATE TABLE IF NOT EXISTS student_career_programs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    code VARCHAR(4) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(student_id, code)
);

CREATE INDEX IF NOT EXISTS idx_career_programs_student ON student_career_programs(student_id);
`

const migration002Down = `
DROP TABLE IF EXISTS student_career_programs;
DROP TABLE IF EXISTS student_optional_programs;
DROP TABLE IF EXISTS optional_program_registry;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE EVENTS AND ERRORS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create reconciliation event journal and conversion error log
-- Version: 003

-- Durable event journal: every TRAX event lands here as RECEIVED before
-- it is published on the bus, and flips to PROCESSED exactly once.
CREATE TABLE IF NOT EXISTS reconciliation_events (
    id VARCHAR(64) PRIMARY KEY,
    event_type VARCHAR(20) NOT NULL,
    pen CHAR(9) NOT NULL,
    status VARCHAR(10) NOT NULL DEFAULT 'RECEIVED',
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_event_status CHECK (status IN ('RECEIVED', 'PROCESSED'))
);

CREATE INDEX IF NOT EXISTS idx_events_pen ON reconciliation_events(pen);
CREATE INDEX IF NOT EXISTS idx_events_type ON reconciliation_events(event_type);

-- Pending events are polled oldest-first; the partial index keeps the
-- scan cheap once the journal grows.
CREATE INDEX IF NOT EXISTS idx_events_pending
    ON reconciliation_events(created_at)
    WHERE status = 'RECEIVED';

CREATE INDEX IF NOT EXISTS idx_events_processed_at
    ON reconciliation_events(processed_at)
    WHERE status = 'PROCESSED';

-- Conversion error journal: data problems recorded during event handling.
-- Append-only; a row here never blocks processing.
CREATE TABLE IF NOT EXISTS conversion_errors (
    id SERIAL PRIMARY KEY,
    pen CHAR(9) NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_conversion_errors_pen ON conversion_errors(pen);
CREATE INDEX IF NOT EXISTS idx_conversion_errors_created_at ON conversion_errors(created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS conversion_errors;
DROP TABLE IF EXISTS reconciliation_events;
`
