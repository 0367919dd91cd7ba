package eventhandler

import (
	"context"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/application/policy"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIELD STAGING
// Общий проход по кандидатным полям для событий STUDENT и UPD_GRAD.
// Каждое изменившееся поле проходит через таблицу решений политики;
// применённые изменения накапливаются в PendingUpdate.
// ══════════════════════════════════════════════════════════════════════════════

// fieldChanges - предложенные значения полей из события. nil-указатель
// означает "поле в событии не участвует".
type fieldChanges struct {
	schoolOfRecord *student.SchoolCode
	schoolAtGrad   *student.SchoolCode
	grade          *student.Grade
	citizenship    *string
	slpDate        *time.Time
	// newProgram - уже разрешённый новый код программы; пустая строка
	// означает "программа не меняется".
	newProgram string
}

// stageFields прогоняет предложенные изменения через политику и наполняет
// update. Возвращает флаги перехода программы (ненулевые только если
// изменение программы применено).
func (s *Service) stageFields(
	ctx context.Context,
	snapshot *student.Snapshot,
	update *student.PendingUpdate,
	changes fieldChanges,
) student.TransitionFlags {
	flags := student.TransitionFlags{}

	if changes.schoolOfRecord != nil && *changes.schoolOfRecord != snapshot.SchoolOfRecord {
		if out := policy.Decide(policy.FieldSchoolOfRecord, snapshot); out.Applied {
			update.NewSchoolOfRecord = changes.schoolOfRecord
			out.Mark(update)
		}
	}

	// Школа на момент выпуска следует решению для школы-of-record.
	if changes.schoolAtGrad != nil && *changes.schoolAtGrad != snapshot.SchoolAtGrad {
		if out := policy.Decide(policy.FieldSchoolOfRecord, snapshot); out.Applied {
			update.NewSchoolAtGrad = changes.schoolAtGrad
			out.Mark(update)
		}
	}

	if changes.grade != nil && *changes.grade != snapshot.StudentGrade {
		if out := policy.Decide(policy.FieldGrade, snapshot); out.Applied {
			update.NewStudentGrade = changes.grade
			out.Mark(update)
		}
	}

	if changes.citizenship != nil && *changes.citizenship != snapshot.Citizenship {
		if out := policy.Decide(policy.FieldCitizenship, snapshot); out.Applied {
			update.NewCitizenship = changes.citizenship
			out.Mark(update)
		}
	}

	if changes.slpDate != nil && !sameDate(changes.slpDate, snapshot.ProgramCompletionDate) {
		if out := policy.Decide(policy.FieldSLPDate, snapshot); out.Applied {
			update.NewSLPDate = changes.slpDate
			out.Mark(update)
		}
	}

	if changes.newProgram != "" && changes.newProgram != snapshot.Program {
		if out := policy.Decide(policy.FieldProgram, snapshot); out.Applied {
			newProgram := changes.newProgram
			update.NewProgram = &newProgram
			out.Mark(update)

			// Смена программы не привязана к конкретному курсу - сигнал пустой.
			evidence := s.hasFrenchEvidence(ctx, newProgram, snapshot.Pen, student.CourseSignal{})
			flags = policy.DeriveTransitionFlags(snapshot.Program, newProgram, evidence)

			if start := policy.DeriveAdultStartDate(newProgram, snapshot); start != nil {
				update.NewAdultStartDate = start
			}
		}
	}

	return flags
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
