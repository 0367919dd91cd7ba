package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRAX EVENT INTAKE
// ══════════════════════════════════════════════════════════════════════════════

// EventIntake defines the interface for accepting raw TRAX change
// notifications from the webhook endpoint.
type EventIntake interface {
	// IngestTraxEvent validates, journals, and publishes a raw event payload.
	IngestTraxEvent(ctx context.Context, payload []byte) (*shared.EventRecord, error)
}

// eventProbe pulls the envelope fields out of the raw payload before the
// typed decode. The rest of the body is event-type specific.
type eventProbe struct {
	ID   string           `json:"id"`
	Type shared.EventType `json:"type"`
	Pen  string           `json:"pen"`
}

// TraxEventIntake journals incoming TRAX events as RECEIVED and publishes
// them onto the event bus. The journal write comes first: an event that was
// accepted but whose publication is lost will be picked up by the replay job.
type TraxEventIntake struct {
	events    shared.EventStore
	publisher shared.EventPublisher
}

// NewTraxEventIntake creates a new TRAX event intake.
func NewTraxEventIntake(events shared.EventStore, publisher shared.EventPublisher) *TraxEventIntake {
	return &TraxEventIntake{
		events:    events,
		publisher: publisher,
	}
}

// IngestTraxEvent implements EventIntake.
func (i *TraxEventIntake) IngestTraxEvent(ctx context.Context, payload []byte) (*shared.EventRecord, error) {
	var probe eventProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, shared.WrapError("event", "Ingest", shared.ErrInvalidFormat, "malformed event payload", err)
	}

	if !probe.Type.IsValid() {
		return nil, shared.ErrUnknownEventType
	}
	if !student.PEN(probe.Pen).IsValid() {
		return nil, shared.ErrInvalidPEN
	}

	// TRAX does not stamp identifiers on its notifications; assign one so the
	// journal and retries stay idempotent from here on.
	if probe.ID == "" {
		probe.ID = uuid.NewString()
		var body map[string]json.RawMessage
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, shared.WrapError("event", "Ingest", shared.ErrInvalidFormat, "malformed event payload", err)
		}
		idJSON, _ := json.Marshal(probe.ID)
		body["id"] = idJSON
		enriched, err := json.Marshal(body)
		if err != nil {
			return nil, shared.WrapError("event", "Ingest", shared.ErrInvalidFormat, "failed to re-encode payload", err)
		}
		payload = enriched
	}

	record := &shared.EventRecord{
		ID:        probe.ID,
		Type:      probe.Type,
		Pen:       probe.Pen,
		Status:    shared.EventStatusReceived,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	// Round-trip through the codec up front so undecodable payloads are
	// rejected at the edge instead of poisoning the journal.
	event, err := shared.DecodeEvent(record)
	if err != nil {
		return nil, err
	}

	if err := i.events.Save(ctx, record); err != nil {
		return nil, shared.WrapError("event", "Ingest", shared.ErrServiceUnavailable, "failed to journal event", err)
	}

	if err := i.publisher.Publish(ctx, event); err != nil {
		// The record is journaled; the replay job will republish it.
		return record, shared.WrapError("event", "Ingest", shared.ErrServiceUnavailable, "failed to publish event", err)
	}

	return record, nil
}
