package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// snapshotColumns is the canonical column list for reading a student snapshot.
const snapshotColumns = `
	id, pen, program, school_of_record, school_at_grad, student_grade,
	status, citizenship, program_completion_date, adult_start_date,
	first_name, middle_names, last_name, birthdate, created_at, updated_at
`

// SnapshotRepository implements student.Repository for PostgreSQL.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetByPEN returns a student snapshot by PEN, including the attached
// optional and career program codes.
func (r *SnapshotRepository) GetByPEN(ctx context.Context, pen student.PEN) (*student.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM students WHERE pen = $1`

	row := r.conn.QueryRow(ctx, query, pen.String())
	snap, err := r.scanSnapshot(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadProgramCodes(ctx, r.conn, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

// GetByID returns a student snapshot by internal ID.
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*student.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM students WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	snap, err := r.scanSnapshot(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadProgramCodes(ctx, r.conn, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new student snapshot.
func (r *SnapshotRepository) Create(ctx context.Context, s *student.Snapshot) error {
	query := `
		INSERT INTO students (
			id, pen, program, school_of_record, school_at_grad, student_grade,
			status, citizenship, program_completion_date, adult_start_date,
			first_name, middle_names, last_name, birthdate, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	var birthdate *time.Time
	if !s.Birthdate.IsZero() {
		birthdate = &s.Birthdate
	}

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.Pen.String(),
		s.Program,
		s.SchoolOfRecord.String(),
		s.SchoolAtGrad.String(),
		string(s.StudentGrade),
		string(s.Status),
		s.Citizenship,
		s.ProgramCompletionDate,
		s.AdultStartDate,
		s.FirstName,
		s.MiddleNames,
		s.LastName,
		birthdate,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrSnapshotAlreadyExists
		}
		return fmt.Errorf("failed to create student snapshot: %w", err)
	}

	return nil
}

// ApplyUpdate applies an accumulated pending update to the student row and
// translates program transition flags into optional-program row operations.
// The whole diff lands in a single transaction: either every staged field,
// recalc marker, and DD/FI row change is visible, or none of them are.
func (r *SnapshotRepository) ApplyUpdate(ctx context.Context, pen student.PEN, update *student.PendingUpdate, flags student.TransitionFlags) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var studentID, currentProgram string
		err := tx.QueryRow(ctx,
			`SELECT id, program FROM students WHERE pen = $1 FOR UPDATE`,
			pen.String(),
		).Scan(&studentID, &currentProgram)
		if IsNoRows(err) {
			return student.ErrSnapshotNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock student row: %w", err)
		}

		sets, args := buildUpdateSets(update)
		if len(sets) > 0 {
			args = append(args, studentID)
			query := fmt.Sprintf(
				`UPDATE students SET %s WHERE id = $%d`,
				strings.Join(sets, ", "), len(args),
			)
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to apply student update: %w", err)
			}
		}

		if flags.IsZero() {
			return nil
		}

		// Transition flags run against the program the row ends up with.
		mainProgram := currentProgram
		if update.NewProgram != nil {
			mainProgram = *update.NewProgram
		}

		if flags.DeleteDualDogwood {
			if err := removeOptionalByCode(ctx, tx, studentID, "DD"); err != nil {
				return err
			}
		}
		if flags.AddDualDogwood {
			if err := addOptionalFromRegistry(ctx, tx, studentID, mainProgram, "DD"); err != nil {
				return err
			}
		}
		if flags.AddFrenchImmersion {
			if err := addOptionalFromRegistry(ctx, tx, studentID, mainProgram, "FI"); err != nil {
				return err
			}
		}

		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// buildUpdateSets translates the non-nil pending update fields and recalc
// markers into SET clauses with positional args.
func buildUpdateSets(update *student.PendingUpdate) ([]string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.NewProgram != nil {
		add("program", *update.NewProgram)
	}
	if update.NewSchoolOfRecord != nil {
		add("school_of_record", update.NewSchoolOfRecord.String())
	}
	if update.NewSchoolAtGrad != nil {
		add("school_at_grad", update.NewSchoolAtGrad.String())
	}
	if update.NewStudentGrade != nil {
		add("student_grade", string(*update.NewStudentGrade))
	}
	if update.NewStatus != nil {
		add("status", string(*update.NewStatus))
	}
	if update.NewCitizenship != nil {
		add("citizenship", *update.NewCitizenship)
	}
	if update.NewSLPDate != nil {
		add("program_completion_date", *update.NewSLPDate)
	}
	if update.NewAdultStartDate != nil {
		add("adult_start_date", *update.NewAdultStartDate)
	}
	if update.NewFirstName != nil {
		add("first_name", *update.NewFirstName)
	}
	if update.NewMiddleNames != nil {
		add("middle_names", *update.NewMiddleNames)
	}
	if update.NewLastName != nil {
		add("last_name", *update.NewLastName)
	}
	if update.NewBirthdate != nil {
		add("birthdate", *update.NewBirthdate)
	}

	// Tri-state markers: unset leaves the stored value alone, required sets
	// 'Y', an explicit clear writes the empty string back.
	switch update.RecalcTranscript {
	case student.RecalcRequired:
		add("recalc_transcript", "Y")
	case student.RecalcCleared:
		add("recalc_transcript", "")
	}
	switch update.RecalcProjected {
	case student.RecalcRequired:
		add("recalc_projected", "Y")
	case student.RecalcCleared:
		add("recalc_projected", "")
	}

	return sets, args
}

// addOptionalFromRegistry attaches a protected optional program (DD or FI)
// by resolving its registry entry for the student's main program inside the
// same transaction. No registry entry means no row: the flag is a no-op for
// programs that do not carry the code.
func addOptionalFromRegistry(ctx context.Context, q Querier, studentID, mainProgram, code string) error {
	query := `
		INSERT INTO student_optional_programs (student_id, registry_id, code)
		SELECT $1, r.id, r.code
		FROM optional_program_registry r
		WHERE r.main_program = $2 AND r.code = $3
		ON CONFLICT (student_id, registry_id) DO NOTHING
	`

	if _, err := q.Exec(ctx, query, studentID, mainProgram, code); err != nil {
		return fmt.Errorf("failed to attach optional program %s: %w", code, err)
	}
	return nil
}

// removeOptionalByCode detaches every optional program row with the given code.
func removeOptionalByCode(ctx context.Context, q Querier, studentID, code string) error {
	query := `DELETE FROM student_optional_programs WHERE student_id = $1 AND code = $2`

	if _, err := q.Exec(ctx, query, studentID, code); err != nil {
		return fmt.Errorf("failed to detach optional program %s: %w", code, err)
	}
	return nil
}

// scanSnapshot scans a single snapshot from a row.
func (r *SnapshotRepository) scanSnapshot(row pgx.Row) (*student.Snapshot, error) {
	var s student.Snapshot
	var pen, schoolOfRecord, schoolAtGrad, grade, status string
	var birthdate *time.Time

	err := row.Scan(
		&s.ID,
		&pen,
		&s.Program,
		&schoolOfRecord,
		&schoolAtGrad,
		&grade,
		&status,
		&s.Citizenship,
		&s.ProgramCompletionDate,
		&s.AdultStartDate,
		&s.FirstName,
		&s.MiddleNames,
		&s.LastName,
		&birthdate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, student.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student snapshot: %w", err)
	}

	s.Pen = student.PEN(strings.TrimSpace(pen))
	s.SchoolOfRecord = student.SchoolCode(schoolOfRecord)
	s.SchoolAtGrad = student.SchoolCode(schoolAtGrad)
	s.StudentGrade = student.Grade(grade)
	s.Status = student.Status(status)
	if birthdate != nil {
		s.Birthdate = *birthdate
	}

	return &s, nil
}

// loadProgramCodes fills the optional and career program code slices.
func (r *SnapshotRepository) loadProgramCodes(ctx context.Context, q Querier, s *student.Snapshot) error {
	optional, err := listOptionalCodes(ctx, q, s.ID)
	if err != nil {
		return err
	}
	career, err := listCareerCodes(ctx, q, s.ID)
	if err != nil {
		return err
	}

	s.OptionalProgramCodes = optional
	s.CareerProgramCodes = career
	return nil
}

// listOptionalCodes returns the optional program codes attached to a student.
func listOptionalCodes(ctx context.Context, q Querier, studentID string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT code FROM student_optional_programs WHERE student_id = $1 ORDER BY code`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list optional program codes: %w", err)
	}
	defer rows.Close()

	return scanCodes(rows)
}

// listCareerCodes returns the career program codes attached to a student.
func listCareerCodes(ctx context.Context, q Querier, studentID string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT code FROM student_career_programs WHERE student_id = $1 ORDER BY code`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list career program codes: %w", err)
	}
	defer rows.Close()

	return scanCodes(rows)
}

// scanCodes collects a single-column code result set.
func scanCodes(rows pgx.Rows) ([]string, error) {
	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan program code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
