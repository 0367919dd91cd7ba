package eventhandler

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/grad-hub/grad-record-hub/internal/application/policy"
	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// NEWSTUDENT
// Новый студент появился в TRAX: подтягиваем демографию, создаём запись и
// прогоняем полную конвертацию (разрешение программы + начальные маркеры
// пересчёта).
// ═══════════════════════════════════════════════════════════════════════════

// HandleNewStudent обрабатывает событие NEWSTUDENT.
func (s *Service) HandleNewStudent(ctx context.Context, event shared.Event) error {
	ev, ok := event.(*shared.NewStudentEvent)
	if !ok {
		s.logger.Error("unexpected payload type for NEWSTUDENT", "event_id", event.EventID())
		s.markProcessed(ctx, event)
		return nil
	}

	pen := student.PEN(ev.PEN())

	// Повторная доставка: запись уже создана.
	if existing, err := s.repo.GetByPEN(ctx, pen); err == nil && existing != nil {
		s.logger.Info("student already converted, skipping", "pen", pen)
		s.markProcessed(ctx, event)
		return nil
	} else if err != nil && !errors.Is(err, student.ErrSnapshotNotFound) {
		s.logger.Error("snapshot lookup failed", "pen", pen, "error", err)
		s.markProcessed(ctx, event)
		return nil
	}

	status := student.Status(ev.StudentStatus)
	if !status.IsValid() {
		s.recordConversionError(ctx, pen, "unknown student status code "+ev.StudentStatus+", defaulting to CUR")
		status = student.StatusCurrent
	}

	programCode := ""
	code, err := program.Resolve(program.ResolveInput{
		RequirementYear: ev.RequirementYear,
		SchoolOfRecord:  student.SchoolCode(ev.SchoolOfRecord),
		FrenchIndicator: ev.FrenchDogwood,
		StudentGrade:    student.Grade(ev.StudentGrade),
	})
	if err != nil {
		s.recordConversionError(ctx, pen, err.Error())
	} else {
		programCode = code
	}

	// Имя и дата рождения живут только в TRAX; без них запись всё равно
	// создаётся - UPD_DEMOG довезёт позже.
	params := student.NewSnapshotParams{
		ID:             uuid.New().String(),
		Pen:            pen,
		Program:        programCode,
		SchoolOfRecord: student.SchoolCode(ev.SchoolOfRecord),
		StudentGrade:   student.Grade(ev.StudentGrade),
		Status:         status,
		Citizenship:    ev.Citizenship,
	}
	if demog, err := s.demographics.GetStudentDemographics(ctx, pen); err != nil {
		s.logger.Error("demographics fetch failed", "pen", pen, "error", err)
	} else {
		params.FirstName = demog.FirstName
		params.MiddleNames = demog.MiddleNames
		params.LastName = demog.LastName
		params.Birthdate = demog.Birthdate
	}

	snapshot, err := student.NewSnapshot(params)
	if err != nil {
		s.recordConversionError(ctx, pen, "cannot build student snapshot: "+err.Error())
		s.markProcessed(ctx, event)
		return nil
	}

	if err := s.repo.Create(ctx, snapshot); err != nil {
		if errors.Is(err, student.ErrSnapshotAlreadyExists) {
			s.logger.Info("student already converted, skipping", "pen", pen)
		} else {
			s.logger.Error("failed to create student snapshot", "pen", pen, "error", err)
		}
		s.markProcessed(ctx, event)
		return nil
	}

	s.logger.Info("new student converted",
		"pen", pen, "program", snapshot.Program, "status", snapshot.Status)

	// Новая запись требует первичного расчёта обоих документов.
	update := student.NewPendingUpdate()
	update.RequireTranscriptRecalc()
	update.RequireProjectedRecalc()

	if start := policy.DeriveAdultStartDate(snapshot.Program, snapshot); start != nil {
		update.NewAdultStartDate = start
		if err := s.persistUpdate(ctx, pen, update, student.TransitionFlags{}); err != nil {
			s.logger.Error("failed to persist adult start date", "pen", pen, "error", err)
		}
	}

	s.finish(ctx, event, snapshot, update)
	return nil
}
