package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeEventStore struct {
	saved   []*shared.EventRecord
	saveErr error
}

func (s *fakeEventStore) Save(_ context.Context, record *shared.EventRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, record)
	return nil
}

func (s *fakeEventStore) GetByID(_ context.Context, id string) (*shared.EventRecord, error) {
	for _, rec := range s.saved {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *fakeEventStore) MarkProcessed(_ context.Context, id string) error {
	for _, rec := range s.saved {
		if rec.ID == id {
			rec.Status = shared.EventStatusProcessed
			return nil
		}
	}
	return shared.ErrNotFound
}

func (s *fakeEventStore) ListPending(_ context.Context, limit int) ([]*shared.EventRecord, error) {
	var pending []*shared.EventRecord
	for _, rec := range s.saved {
		if rec.Status == shared.EventStatusReceived && len(pending) < limit {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

func (s *fakeEventStore) PurgeProcessed(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakePublisher struct {
	published  []shared.Event
	publishErr error
}

func (p *fakePublisher) Publish(_ context.Context, event shared.Event) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, event)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestIngestTraxEvent_JournalsThenPublishes(t *testing.T) {
	store := &fakeEventStore{}
	pub := &fakePublisher{}
	intake := NewTraxEventIntake(store, pub)

	payload := []byte(`{"type":"NEWSTUDENT","pen":"123456789","timestamp":"2026-08-30T10:00:00Z"}`)

	record, err := intake.IngestTraxEvent(context.Background(), payload)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, shared.EventStatusReceived, record.Status)
	assert.Equal(t, shared.EventNewStudent, record.Type)
	assert.Equal(t, "123456789", record.Pen)

	require.Len(t, store.saved, 1)
	require.Len(t, pub.published, 1)
	assert.Equal(t, record.ID, pub.published[0].EventID())
}

func TestIngestTraxEvent_AssignsIDWhenMissing(t *testing.T) {
	store := &fakeEventStore{}
	intake := NewTraxEventIntake(store, &fakePublisher{})

	payload := []byte(`{"type":"UPD_DEMOG","pen":"987654321"}`)

	record, err := intake.IngestTraxEvent(context.Background(), payload)
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)

	// Идентификатор должен быть вшит в сохранённый payload, чтобы повторная
	// публикация из журнала давала то же самое событие.
	var stored struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(record.Payload, &stored))
	assert.Equal(t, record.ID, stored.ID)
}

func TestIngestTraxEvent_KeepsProvidedID(t *testing.T) {
	intake := NewTraxEventIntake(&fakeEventStore{}, &fakePublisher{})

	payload := []byte(`{"id":"evt-42","type":"FI10ADD","pen":"123456789"}`)

	record, err := intake.IngestTraxEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "evt-42", record.ID)
}

func TestIngestTraxEvent_RejectsUnknownEventType(t *testing.T) {
	intake := NewTraxEventIntake(&fakeEventStore{}, &fakePublisher{})

	_, err := intake.IngestTraxEvent(context.Background(), []byte(`{"type":"BOGUS","pen":"123456789"}`))
	assert.ErrorIs(t, err, shared.ErrUnknownEventType)
}

func TestIngestTraxEvent_RejectsInvalidPEN(t *testing.T) {
	intake := NewTraxEventIntake(&fakeEventStore{}, &fakePublisher{})

	for _, pen := range []string{"", "12345", "12345678X"} {
		_, err := intake.IngestTraxEvent(context.Background(), []byte(`{"type":"STUDENT","pen":"`+pen+`"}`))
		assert.ErrorIs(t, err, shared.ErrInvalidPEN, "pen %q", pen)
	}
}

func TestIngestTraxEvent_RejectsMalformedPayload(t *testing.T) {
	store := &fakeEventStore{}
	intake := NewTraxEventIntake(store, &fakePublisher{})

	_, err := intake.IngestTraxEvent(context.Background(), []byte(`{not json`))
	assert.True(t, shared.IsValidation(err))
	assert.Empty(t, store.saved)
}

func TestIngestTraxEvent_PublishFailureStillJournals(t *testing.T) {
	store := &fakeEventStore{}
	pub := &fakePublisher{publishErr: errors.New("bus down")}
	intake := NewTraxEventIntake(store, pub)

	payload := []byte(`{"type":"UPD_GRAD","pen":"123456789"}`)

	record, err := intake.IngestTraxEvent(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))

	// Запись в журнале уже есть - задача переигрывания опубликует её позже.
	require.NotNil(t, record)
	require.Len(t, store.saved, 1)
	assert.Equal(t, shared.EventStatusReceived, store.saved[0].Status)
}

func TestIngestTraxEvent_JournalFailureRejects(t *testing.T) {
	store := &fakeEventStore{saveErr: errors.New("pg down")}
	pub := &fakePublisher{}
	intake := NewTraxEventIntake(store, pub)

	record, err := intake.IngestTraxEvent(context.Background(), []byte(`{"type":"COURSE","pen":"123456789"}`))
	require.Error(t, err)
	assert.Nil(t, record)
	assert.Empty(t, pub.published)
}
