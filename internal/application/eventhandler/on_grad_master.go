package eventhandler

import (
	"context"
	"errors"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// STUDENT
// Обновление мастер-записи студента в TRAX: школа, класс, гражданство и
// возможная смена программы.
// ═══════════════════════════════════════════════════════════════════════════

// HandleGradMasterUpdate обрабатывает событие STUDENT.
func (s *Service) HandleGradMasterUpdate(ctx context.Context, event shared.Event) error {
	ev, ok := event.(*shared.GradMasterUpdateEvent)
	if !ok {
		s.logger.Error("unexpected payload type for STUDENT", "event_id", event.EventID())
		s.markProcessed(ctx, event)
		return nil
	}

	pen := student.PEN(ev.PEN())

	snapshot, err := s.loadSnapshot(ctx, pen)
	if err != nil {
		if errors.Is(err, student.ErrSnapshotNotFound) {
			s.recordConversionError(ctx, pen, "grad master update for unknown student")
		} else {
			s.logger.Error("snapshot lookup failed", "pen", pen, "error", err)
		}
		s.markProcessed(ctx, event)
		return nil
	}

	update := student.NewPendingUpdate()

	// Для выпускника программа разрешается по таблице завершённых программ,
	// и французский признак берётся из сертификата, а не из Dogwood.
	frenchIndicator := ev.FrenchDogwood
	if snapshot.IsGraduated() {
		frenchIndicator = ev.FrenchCert
	}

	newProgram := ""
	if ev.RequirementYear != "" {
		code, err := program.Resolve(program.ResolveInput{
			RequirementYear: ev.RequirementYear,
			SchoolOfRecord:  student.SchoolCode(ev.SchoolOfRecord),
			FrenchIndicator: frenchIndicator,
			StudentGrade:    student.Grade(ev.StudentGrade),
			Graduated:       snapshot.IsGraduated(),
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
	if ev.SchoolAtGrad != "" {
		school := student.SchoolCode(ev.SchoolAtGrad)
		changes.schoolAtGrad = &school
	}
	if ev.StudentGrade != "" {
		grade := student.Grade(ev.StudentGrade)
		changes.grade = &grade
	}
	if ev.Citizenship != "" {
		changes.citizenship = &ev.Citizenship
	}

	flags := s.stageFields(ctx, snapshot, update, changes)

	if err := s.persistUpdate(ctx, pen, update, flags); err != nil {
		s.logger.Error("failed to persist grad master update", "pen", pen, "error", err)
	}

	s.finish(ctx, event, snapshot, update)
	return nil
}
