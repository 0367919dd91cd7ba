package postgres

import (
	"context"
	"fmt"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAM STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgramRepository implements student.ProgramStore for PostgreSQL.
type ProgramRepository struct {
	conn *Connection
}

// NewProgramRepository creates a new ProgramRepository.
func NewProgramRepository(conn *Connection) *ProgramRepository {
	return &ProgramRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Optional programs
// ─────────────────────────────────────────────────────────────────────────────

// ListOptional returns the optional programs attached to a student.
func (r *ProgramRepository) ListOptional(ctx context.Context, studentID string) ([]student.OptionalProgramRow, error) {
	query := `
		SELECT registry_id, code, created_at
		FROM student_optional_programs
		WHERE student_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list optional programs: %w", err)
	}
	defer rows.Close()

	result := make([]student.OptionalProgramRow, 0)
	for rows.Next() {
		var row student.OptionalProgramRow
		if err := rows.Scan(&row.RegistryID, &row.Code, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan optional program row: %w", err)
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// AddOptional attaches an optional program by registry entry. Attaching an
// already-attached entry is a no-op.
func (r *ProgramRepository) AddOptional(ctx context.Context, studentID, registryID, code string) error {
	query := `
		INSERT INTO student_optional_programs (student_id, registry_id, code)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, registry_id) DO NOTHING
	`

	if _, err := r.conn.Exec(ctx, query, studentID, registryID, code); err != nil {
		return fmt.Errorf("failed to add optional program %s: %w", code, err)
	}
	return nil
}

// RemoveOptional detaches an optional program by registry entry.
func (r *ProgramRepository) RemoveOptional(ctx context.Context, studentID, registryID string) error {
	query := `
		DELETE FROM student_optional_programs
		WHERE student_id = $1 AND registry_id = $2
	`

	if _, err := r.conn.Exec(ctx, query, studentID, registryID); err != nil {
		return fmt.Errorf("failed to remove optional program: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Career programs
// ─────────────────────────────────────────────────────────────────────────────

// ListCareer returns the career program codes attached to a student.
func (r *ProgramRepository) ListCareer(ctx context.Context, studentID string) ([]string, error) {
	return listCareerCodes(ctx, r.conn, studentID)
}

// AddCareer attaches a career program by raw code.
func (r *ProgramRepository) AddCareer(ctx context.Context, studentID, code string) error {
	query := `
		INSERT INTO student_career_programs (student_id, code)
		VALUES ($1, $2)
		ON CONFLICT (student_id, code) DO NOTHING
	`

	if _, err := r.conn.Exec(ctx, query, studentID, code); err != nil {
		return fmt.Errorf("failed to add career program %s: %w", code, err)
	}
	return nil
}

// RemoveCareer detaches a career program.
func (r *ProgramRepository) RemoveCareer(ctx context.Context, studentID, code string) error {
	query := `
		DELETE FROM student_career_programs
		WHERE student_id = $1 AND code = $2
	`

	if _, err := r.conn.Exec(ctx, query, studentID, code); err != nil {
		return fmt.Errorf("failed to remove career program %s: %w", code, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONAL PROGRAM REGISTRY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RegistryRepository implements program.Registry backed by the local
// optional_program_registry table. The table mirrors the TRAX registry and
// is refreshed on a schedule.
type RegistryRepository struct {
	conn *Connection
}

// NewRegistryRepository creates a new RegistryRepository.
func NewRegistryRepository(conn *Connection) *RegistryRepository {
	return &RegistryRepository{conn: conn}
}

// Lookup returns the registry entry for a (main program, code) pair, or
// shared.ErrRegistryEntryNotFound.
func (r *RegistryRepository) Lookup(ctx context.Context, mainProgramCode, optionalCode string) (*program.RegistryEntry, error) {
	query := `
		SELECT id, main_program, code, description
		FROM optional_program_registry
		WHERE main_program = $1 AND code = $2
	`

	var entry program.RegistryEntry
	err := r.conn.QueryRow(ctx, query, mainProgramCode, optionalCode).Scan(
		&entry.ID,
		&entry.MainProgramCode,
		&entry.OptionalProgramCode,
		&entry.Description,
	)

	if IsNoRows(err) {
		return nil, shared.ErrRegistryEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up registry entry: %w", err)
	}

	return &entry, nil
}

// Replace upserts a fresh set of registry entries in a single transaction.
// Used by the scheduled refresh from TRAX. Entries absent from the new set
// are kept: student program rows reference registry ids, so a row may only
// disappear once no student links to it.
func (r *RegistryRepository) Replace(ctx context.Context, entries []program.RegistryEntry) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, entry := range entries {
			query := `
				INSERT INTO optional_program_registry (id, main_program, code, description)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (main_program, code) DO UPDATE SET
					description = EXCLUDED.description,
					updated_at = NOW()
			`
			if _, err := tx.Exec(ctx, query,
				entry.ID,
				entry.MainProgramCode,
				entry.OptionalProgramCode,
				entry.Description,
			); err != nil {
				return fmt.Errorf("failed to upsert registry entry %s/%s: %w",
					entry.MainProgramCode, entry.OptionalProgramCode, err)
			}
		}
		return nil
	})
}
