package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/grad-hub/grad-record-hub/internal/application/query"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
	"github.com/grad-hub/grad-record-hub/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeRepo struct {
	byPEN map[student.PEN]*student.Snapshot
}

func (r *fakeRepo) GetByPEN(_ context.Context, pen student.PEN) (*student.Snapshot, error) {
	snap, ok := r.byPEN[pen]
	if !ok {
		return nil, student.ErrSnapshotNotFound
	}
	return snap, nil
}

func (r *fakeRepo) GetByID(_ context.Context, _ string) (*student.Snapshot, error) {
	return nil, student.ErrSnapshotNotFound
}

func (r *fakeRepo) Create(_ context.Context, _ *student.Snapshot) error { return nil }

func (r *fakeRepo) ApplyUpdate(_ context.Context, _ student.PEN, _ *student.PendingUpdate, _ student.TransitionFlags) error {
	return nil
}

type fakeIntake struct {
	record *shared.EventRecord
	err    error
}

func (i *fakeIntake) IngestTraxEvent(_ context.Context, _ []byte) (*shared.EventRecord, error) {
	return i.record, i.err
}

func testSnapshot(pen string) *student.Snapshot {
	return &student.Snapshot{
		ID:             "11111111-2222-3333-4444-555555555555",
		Pen:            student.PEN(pen),
		Program:        "2018-EN",
		SchoolOfRecord: "00512345",
		StudentGrade:   "12",
		Status:         student.StatusCurrent,
		UpdatedAt:      time.Now().UTC(),
	}
}

func newTestServer(t *testing.T, mutate func(*Config, *Dependencies)) http.Handler {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0 // лимитер здесь не тестируем

	repo := &fakeRepo{byPEN: map[student.PEN]*student.Snapshot{
		"123456789": testSnapshot("123456789"),
	}}

	deps := Dependencies{
		GetStudentRecordHandler: query.NewGetStudentRecordHandler(repo, nil, nil),
		Intake: &fakeIntake{record: &shared.EventRecord{
			ID:        "evt-1",
			Type:      shared.EventGradUpdate,
			Pen:       "123456789",
			Status:    shared.EventStatusReceived,
			CreatedAt: time.Now().UTC(),
		}},
		HealthChecker: handlers.NewCompositeHealthChecker("test"),
	}

	if mutate != nil {
		mutate(&cfg, &deps)
	}

	return NewServer(cfg, deps).httpServer.Handler
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestServer_HealthFailingCheck(t *testing.T) {
	h := newTestServer(t, func(_ *Config, deps *Dependencies) {
		checker := handlers.NewCompositeHealthChecker("test")
		checker.AddCheck("postgres", func(_ context.Context) error {
			return errors.New("connection refused")
		})
		deps.HealthChecker = checker
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Live(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT RECORD READS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_GetStudentRecord(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students/123456789", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result query.GetStudentRecordResult
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "123456789", result.Record.Pen)
	assert.Equal(t, "2018-EN", result.Record.Program)
	assert.Equal(t, "CUR", result.Record.Status)
	assert.NotNil(t, result.Record.OptionalPrograms)
}

func TestServer_GetStudentRecordNotFound(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students/999999999", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "student_not_found", resp.Error.Code)
}

func TestServer_GetStudentRecordInvalidPEN(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students/12345", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_pen", resp.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRAX WEBHOOK
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_TraxWebhookAccepted(t *testing.T) {
	h := newTestServer(t, nil)

	body := strings.NewReader(`{"type":"UPD_GRAD","pen":"123456789"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/trax", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestServer_TraxWebhookUnknownType(t *testing.T) {
	h := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.Intake = &fakeIntake{err: shared.ErrUnknownEventType}
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/trax", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unknown_event_type", resp.Error.Code)
}

func TestServer_TraxWebhookDeferredPublication(t *testing.T) {
	// Событие записано в журнал, но публикация не удалась: вебхук всё равно
	// отвечает 202 - дальше событие подберёт задача переигрывания.
	h := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.Intake = &fakeIntake{
			record: &shared.EventRecord{ID: "evt-2", Status: shared.EventStatusReceived},
			err:    shared.WrapError("event", "Ingest", shared.ErrServiceUnavailable, "bus down", nil),
		}
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/trax", strings.NewReader(`{"type":"UPD_GRAD","pen":"123456789"}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_TraxWebhookAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("trax-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	h := newTestServer(t, func(cfg *Config, _ *Dependencies) {
		cfg.WebhookSecretHash = string(hash)
	})

	// Без секрета - отказ.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/trax", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// С неверным секретом - отказ.
	req := httptest.NewRequest(http.MethodPost, "/webhook/trax", strings.NewReader(`{}`))
	req.Header.Set(webhookSecretHeader, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// С верным секретом - принято.
	req = httptest.NewRequest(http.MethodPost, "/webhook/trax", strings.NewReader(`{"type":"UPD_GRAD","pen":"123456789"}`))
	req.Header.Set(webhookSecretHeader, "trax-secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
	assert.False(t, rl.Allow("10.0.0.1"))

	// Другой клиент лимитируется независимо.
	assert.True(t, rl.Allow("10.0.0.2"))
}
