package eventhandler

import (
	"context"
	"errors"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
	"github.com/grad-hub/grad-record-hub/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// UPD_GRAD
// Обновление выпускных полей: год требований, школа, класс, гражданство и
// дата SLP. Программа здесь всегда разрешается по таблице невыпускников.
// ═══════════════════════════════════════════════════════════════════════════

// HandleGradUpdate обрабатывает событие UPD_GRAD.
func (s *Service) HandleGradUpdate(ctx context.Context, event shared.Event) error {
	ev, ok := event.(*shared.GradUpdateEvent)
	if !ok {
		s.logger.Error("unexpected payload type for UPD_GRAD", "event_id", event.EventID())
		s.markProcessed(ctx, event)
		return nil
	}

	pen := student.PEN(ev.PEN())

	snapshot, err := s.loadSnapshot(ctx, pen)
	if err != nil {
		if errors.Is(err, student.ErrSnapshotNotFound) {
			s.recordConversionError(ctx, pen, "grad update for unknown student")
		} else {
			s.logger.Error("snapshot lookup failed", "pen", pen, "error", err)
		}
		s.markProcessed(ctx, event)
		return nil
	}

	update := student.NewPendingUpdate()

	newProgram := ""
	if ev.RequirementYear != "" {
		code, err := program.Resolve(program.ResolveInput{
			RequirementYear: ev.RequirementYear,
			SchoolOfRecord:  student.SchoolCode(ev.SchoolOfRecord),
			FrenchIndicator: ev.FrenchDogwood,
			StudentGrade:    student.Grade(ev.StudentGrade),
		})
		if err != nil {
			s.recordConversionError(ctx, pen, err.Error())
		} else {
			newProgram = code
		}
	}

	changes := fieldChanges{newProgram: newProgram}
	if ev.SchoolOfRecord != "" {
		school := student.SchoolCode(ev.SchoolOfRecord)
		changes.schoolOfRecord = &school
	}
	if ev.StudentGrade != "" {
		grade := student.Grade(ev.StudentGrade)
		changes.grade = &grade
	}
	if ev.Citizenship != "" {
		changes.citizenship = &ev.Citizenship
	}
	if ev.SLPDate != "" {
		// Дата в формате TRAX (yyyyMMdd); кривое значение не роняет
		// остальные поля события.
		slp, err := timeutil.ParseTraxDate(ev.SLPDate)
		if err != nil {
			s.recordConversionError(ctx, pen, "malformed SLP date "+ev.SLPDate)
		} else {
			changes.slpDate = &slp
		}
	}

	flags := s.stageFields(ctx, snapshot, update, changes)

	if err := s.persistUpdate(ctx, pen, update, flags); err != nil {
		s.logger.Error("failed to persist grad update", "pen", pen, "error", err)
	}

	s.finish(ctx, event, snapshot, update)
	return nil
}
