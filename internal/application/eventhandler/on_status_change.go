package eventhandler

import (
	"context"
	"errors"

	"github.com/grad-hub/grad-record-hub/internal/application/policy"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// UPD_STD_STATUS
// Смена классификационного статуса. Таблица полей здесь не участвует -
// маркеры пересчёта определяются целевым статусом.
// ═══════════════════════════════════════════════════════════════════════════

// HandleStatusChange обрабатывает событие UPD_STD_STATUS.
func (s *Service) HandleStatusChange(ctx context.Context, event shared.Event) error {
	ev, ok := event.(*shared.StatusChangeEvent)
	if !ok {
		s.logger.Error("unexpected payload type for UPD_STD_STATUS", "event_id", event.EventID())
		s.markProcessed(ctx, event)
		return nil
	}

	pen := student.PEN(ev.PEN())

	snapshot, err := s.loadSnapshot(ctx, pen)
	if err != nil {
		if errors.Is(err, student.ErrSnapshotNotFound) {
			s.recordConversionError(ctx, pen, "status change for unknown student")
		} else {
			s.logger.Error("snapshot lookup failed", "pen", pen, "error", err)
		}
		s.markProcessed(ctx, event)
		return nil
	}

	update := student.NewPendingUpdate()

	newStatus := student.Status(ev.NewStatus)
	if err := policy.ApplyStatusChange(newStatus, update); err != nil {
		s.recordConversionError(ctx, pen, "unknown student status code "+ev.NewStatus)
		s.markProcessed(ctx, event)
		return nil
	}

	if newStatus == snapshot.Status {
		// Статус не меняется - маркеры тоже не трогаем.
		s.markProcessed(ctx, event)
		return nil
	}

	if err := s.persistUpdate(ctx, pen, update, student.TransitionFlags{}); err != nil {
		s.logger.Error("failed to persist status change", "pen", pen, "error", err)
	}

	s.logger.Info("student status changed",
		"pen", pen, "from", snapshot.Status, "to", newStatus)

	s.finish(ctx, event, snapshot, update)
	return nil
}
