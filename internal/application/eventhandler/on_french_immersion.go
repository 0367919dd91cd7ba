package eventhandler

import (
	"context"
	"errors"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// FI10ADD / FI10DEL / FI11ADD / FI11DEL
// Добавление или удаление французского курса. Решение принимает предикат
// "есть подтверждение французских курсов"; код и уровень курса из события
// передаются ему как сигнал, но сами по себе ничего не решают.
// ═══════════════════════════════════════════════════════════════════════════

// HandleFrenchImmersion обрабатывает события французских курсов.
func (s *Service) HandleFrenchImmersion(ctx context.Context, event shared.Event) error {
	ev, ok := event.(*shared.FrenchImmersionEvent)
	if !ok {
		s.logger.Error("unexpected payload type for french immersion event",
			"event_id", event.EventID(), "event_type", event.EventType())
		s.markProcessed(ctx, event)
		return nil
	}

	pen := student.PEN(event.PEN())

	snapshot, err := s.loadSnapshot(ctx, pen)
	if err != nil {
		if errors.Is(err, student.ErrSnapshotNotFound) {
			s.recordConversionError(ctx, pen, "french immersion event for unknown student")
		} else {
			s.logger.Error("snapshot lookup failed", "pen", pen, "error", err)
		}
		s.markProcessed(ctx, event)
		return nil
	}

	signal := student.CourseSignal{CourseCode: ev.CourseCode, CourseLevel: ev.CourseLevel}

	had := snapshot.HasOptionalProgram(string(program.CodeFrenchImmersion))
	has := s.hasFrenchEvidence(ctx, snapshot.Program, pen, signal)

	if err := s.reconciler.SyncFrenchImmersion(ctx, snapshot, had, has); err != nil {
		s.logger.Error("french immersion sync failed", "pen", pen, "error", err)
		s.markProcessed(ctx, event)
		return nil
	}

	update := student.NewPendingUpdate()
	if had != has {
		update.RequireTranscriptRecalc()
		update.RequireProjectedRecalc()

		if s.cache != nil {
			if err := s.cache.Delete(ctx, pen); err != nil {
				s.logger.Warn("snapshot cache invalidation failed", "pen", pen, "error", err)
			}
		}
	}

	s.finish(ctx, event, snapshot, update)
	return nil
}
