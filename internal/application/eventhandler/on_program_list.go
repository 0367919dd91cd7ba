package eventhandler

import (
	"context"
	"errors"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// XPROGRAM
// TRAX прислал полный целевой набор кодов дополнительных программ - сводим
// локальное множество к нему через реконсилятор.
// ═══════════════════════════════════════════════════════════════════════════

// HandleProgramList обрабатывает событие XPROGRAM.
func (s *Service) HandleProgramList(ctx context.Context, event shared.Event) error {
	ev, ok := event.(*shared.ProgramListEvent)
	if !ok {
		s.logger.Error("unexpected payload type for XPROGRAM", "event_id", event.EventID())
		s.markProcessed(ctx, event)
		return nil
	}

	pen := student.PEN(ev.PEN())

	snapshot, err := s.loadSnapshot(ctx, pen)
	if err != nil {
		if errors.Is(err, student.ErrSnapshotNotFound) {
			s.recordConversionError(ctx, pen, "program list for unknown student")
		} else {
			s.logger.Error("snapshot lookup failed", "pen", pen, "error", err)
		}
		s.markProcessed(ctx, event)
		return nil
	}

	diff, err := s.reconciler.Reconcile(ctx, snapshot, ev.ProgramList)
	if err != nil {
		s.logger.Error("program set reconciliation failed", "pen", pen, "error", err)
	} else if !diff.IsEmpty() {
		s.logger.Info("program set reconciled",
			"pen", pen, "added", diff.Added, "removed", diff.Removed)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, pen); err != nil {
			s.logger.Warn("snapshot cache invalidation failed", "pen", pen, "error", err)
		}
	}

	s.markProcessed(ctx, event)
	return nil
}
