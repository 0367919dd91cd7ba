package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventRepository implements shared.EventStore for PostgreSQL. Events land
// here in RECEIVED status before publication; the only mutation the engine
// performs afterwards is flipping the status to PROCESSED.
type EventRepository struct {
	conn *Connection
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(conn *Connection) *EventRepository {
	return &EventRepository{conn: conn}
}

// Save persists a new event record in RECEIVED status. Re-delivery of an
// already-saved event ID is a no-op so webhook retries stay idempotent.
func (r *EventRepository) Save(ctx context.Context, record *shared.EventRecord) error {
	query := `
		INSERT INTO reconciliation_events (id, event_type, pen, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		record.ID,
		string(record.Type),
		record.Pen,
		string(record.Status),
		[]byte(record.Payload),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save event record: %w", err)
	}

	return nil
}

// GetByID returns an event record by its identifier.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*shared.EventRecord, error) {
	query := `
		SELECT id, event_type, pen, status, payload, created_at, processed_at
		FROM reconciliation_events
		WHERE id = $1
	`

	return r.scanRecord(r.conn.QueryRow(ctx, query, id))
}

// MarkProcessed flips the record status to PROCESSED. Marking an already
// processed record again is a no-op; the first processed_at timestamp wins.
func (r *EventRepository) MarkProcessed(ctx context.Context, id string) error {
	query := `
		UPDATE reconciliation_events
		SET status = $1, processed_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.conn.Exec(ctx, query,
		string(shared.EventStatusProcessed),
		id,
		string(shared.EventStatusReceived),
	)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either unknown or already processed; distinguish for the caller.
		var exists bool
		err := r.conn.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM reconciliation_events WHERE id = $1)",
			id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check event existence: %w", err)
		}
		if !exists {
			return shared.ErrEventNotFound
		}
	}

	return nil
}

// ListPending returns up to limit records still in RECEIVED status, oldest
// first. Order matters: per-PEN event ordering is preserved by replaying the
// journal in arrival order.
func (r *EventRepository) ListPending(ctx context.Context, limit int) ([]*shared.EventRecord, error) {
	query := `
		SELECT id, event_type, pen, status, payload, created_at, processed_at
		FROM reconciliation_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, string(shared.EventStatusReceived), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending events: %w", err)
	}
	defer rows.Close()

	var records []*shared.EventRecord
	for rows.Next() {
		record, err := r.scanRecordFromRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// PurgeProcessed deletes PROCESSED records older than the cutoff.
func (r *EventRepository) PurgeProcessed(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM reconciliation_events
		WHERE status = $1 AND processed_at < $2
	`

	result, err := r.conn.Exec(ctx, query, string(shared.EventStatusProcessed), olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}

	return result.RowsAffected(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanRecord scans a single event record from a row.
func (r *EventRepository) scanRecord(row pgx.Row) (*shared.EventRecord, error) {
	var record shared.EventRecord
	var eventType, pen, status string
	var payload []byte

	err := row.Scan(
		&record.ID,
		&eventType,
		&pen,
		&status,
		&payload,
		&record.CreatedAt,
		&record.ProcessedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event record: %w", err)
	}

	record.Type = shared.EventType(eventType)
	record.Pen = strings.TrimSpace(pen)
	record.Status = shared.EventStatus(status)
	record.Payload = payload

	return &record, nil
}

// scanRecordFromRows scans an event record from rows.
func (r *EventRepository) scanRecordFromRows(rows pgx.Rows) (*shared.EventRecord, error) {
	var record shared.EventRecord
	var eventType, pen, status string
	var payload []byte

	err := rows.Scan(
		&record.ID,
		&eventType,
		&pen,
		&status,
		&payload,
		&record.CreatedAt,
		&record.ProcessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event record: %w", err)
	}

	record.Type = shared.EventType(eventType)
	record.Pen = strings.TrimSpace(pen)
	record.Status = shared.EventStatus(status)
	record.Payload = payload

	return &record, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSION ERROR JOURNAL IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ConversionErrorRepository implements student.ConversionErrorRecorder for
// PostgreSQL. The journal is append-only.
type ConversionErrorRepository struct {
	conn *Connection
}

// NewConversionErrorRepository creates a new ConversionErrorRepository.
func NewConversionErrorRepository(conn *Connection) *ConversionErrorRepository {
	return &ConversionErrorRepository{conn: conn}
}

// Record appends a conversion error for a PEN.
func (r *ConversionErrorRepository) Record(ctx context.Context, pen student.PEN, reason string) error {
	query := `
		INSERT INTO conversion_errors (pen, reason)
		VALUES ($1, $2)
	`

	if _, err := r.conn.Exec(ctx, query, pen.String(), reason); err != nil {
		return fmt.Errorf("failed to record conversion error: %w", err)
	}
	return nil
}

// ListByPEN returns the recorded conversion errors for a PEN, newest first.
func (r *ConversionErrorRepository) ListByPEN(ctx context.Context, pen student.PEN) ([]student.ConversionError, error) {
	query := `
		SELECT pen, reason, created_at
		FROM conversion_errors
		WHERE pen = $1
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, pen.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list conversion errors: %w", err)
	}
	defer rows.Close()

	var result []student.ConversionError
	for rows.Next() {
		var ce student.ConversionError
		var rowPen string
		if err := rows.Scan(&rowPen, &ce.Reason, &ce.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversion error: %w", err)
		}
		ce.Pen = student.PEN(strings.TrimSpace(rowPen))
		result = append(result, ce)
	}

	return result, rows.Err()
}
