package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/grad-hub/grad-record-hub/internal/application/query"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot returns basic service information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "grad-record-hub",
		"status":  "running",
	})
}

// handleHealth runs the full health check suite.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status)
}

// handleReady reports whether the service can accept events.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive is the liveness probe; reaching the handler is the check.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT RECORD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStudentRecord returns the current record for a PEN.
func (s *Server) handleGetStudentRecord(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentRecordHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Record reads are not configured")
		return
	}

	q := query.GetStudentRecordQuery{
		Pen:                     r.PathValue("pen"),
		IncludeConversionErrors: r.URL.Query().Get("include_errors") == "true",
	}

	result, err := s.deps.GetStudentRecordHandler.Handle(r.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, student.ErrInvalidPEN), shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "invalid_pen", "PEN must be exactly 9 digits")
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "student_not_found", "No record for this PEN")
		default:
			s.logger.Error("get student record failed", "pen", q.Pen, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to load student record")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRAX WEBHOOK
// ══════════════════════════════════════════════════════════════════════════════

// webhookSecretHeader carries the shared secret TRAX sends with each
// notification.
const webhookSecretHeader = "X-Webhook-Secret"

// handleTraxWebhook accepts a raw TRAX change notification, journals it, and
// publishes it for reconciliation. Responds 202: handling is asynchronous.
func (s *Server) handleTraxWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Intake == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Event intake is not configured")
		return
	}

	if !s.authorizeWebhook(r) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid webhook secret")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read_error", "Failed to read request body")
		return
	}

	record, err := s.deps.Intake.IngestTraxEvent(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrUnknownEventType):
			writeJSONError(w, http.StatusBadRequest, "unknown_event_type", "Unrecognized event type")
		case errors.Is(err, shared.ErrInvalidPEN):
			writeJSONError(w, http.StatusBadRequest, "invalid_pen", "PEN must be exactly 9 digits")
		case shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "malformed_payload", "Event payload could not be parsed")
		case record != nil:
			// Journaled but not yet published; the replay job picks it up.
			s.logger.Warn("event journaled but publication deferred",
				"event_id", record.ID, "error", err)
			writeJSON(w, http.StatusAccepted, map[string]interface{}{
				"event_id": record.ID,
				"status":   string(record.Status),
			})
		default:
			s.logger.Error("event intake failed", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to accept event")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"event_id":    record.ID,
		"status":      string(record.Status),
		"received_at": record.CreatedAt.Format(time.RFC3339),
	})
}

// authorizeWebhook checks the shared secret header against the configured
// bcrypt hash. No hash configured means open intake (local development).
func (s *Server) authorizeWebhook(r *http.Request) bool {
	if s.config.WebhookSecretHash == "" {
		return true
	}

	secret := r.Header.Get(webhookSecretHeader)
	if secret == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(s.config.WebhookSecretHash), []byte(secret)) == nil
}
