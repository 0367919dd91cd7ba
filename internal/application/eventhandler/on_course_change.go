package eventhandler

import (
	"context"
	"errors"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// COURSE / ASSESSMENT
// Изменение курса или экзамена. Полевых правил нет: любое такое изменение
// безусловно требует пересчёта обоих документов.
// ═══════════════════════════════════════════════════════════════════════════

// HandleCourseChange обрабатывает события COURSE и ASSESSMENT.
func (s *Service) HandleCourseChange(ctx context.Context, event shared.Event) error {
	pen := student.PEN(event.PEN())

	snapshot, err := s.loadSnapshot(ctx, pen)
	if err != nil {
		if errors.Is(err, student.ErrSnapshotNotFound) {
			s.recordConversionError(ctx, pen, "course change for unknown student")
		} else {
			s.logger.Error("snapshot lookup failed", "pen", pen, "error", err)
		}
		s.markProcessed(ctx, event)
		return nil
	}

	update := student.NewPendingUpdate()
	update.RequireTranscriptRecalc()
	update.RequireProjectedRecalc()

	s.finish(ctx, event, snapshot, update)
	return nil
}
