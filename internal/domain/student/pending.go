package student

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// PENDING UPDATE
// Теневой набор "new_*" полей, создаваемый заново на каждое событие.
// Никогда не сохраняется сам по себе - после применения диффа отбрасывается.
// ══════════════════════════════════════════════════════════════════════════════

// RecalcMark - трёхзначный маркер пересчёта: не задан / требуется ("Y") /
// явная очистка. Явная очистка отличается от "не задан": она сбрасывает
// ранее выставленный маркер в хранилище.
type RecalcMark int

const (
	// RecalcUnset - маркер не трогали.
	RecalcUnset RecalcMark = iota
	// RecalcRequired - нижестоящая система должна пересчитать документ.
	RecalcRequired
	// RecalcCleared - маркер нужно явно сбросить.
	RecalcCleared
)

// String возвращает строковое представление маркера.
func (m RecalcMark) String() string {
	switch m {
	case RecalcRequired:
		return "Y"
	case RecalcCleared:
		return "cleared"
	default:
		return "unset"
	}
}

// IsSet возвращает true, если маркер выставлен в "требуется пересчёт".
func (m RecalcMark) IsSet() bool {
	return m == RecalcRequired
}

// PendingUpdate - рабочий набор изменений, накапливаемый движком в рамках
// обработки одного события. Поля-указатели означают "поле не меняется",
// ненулевой указатель - "новое значение поля".
type PendingUpdate struct {
	// NewProgram - новый производный код программы.
	NewProgram *string

	// NewSchoolOfRecord - новый код школы.
	NewSchoolOfRecord *SchoolCode

	// NewSchoolAtGrad - новый код школы на момент выпуска.
	NewSchoolAtGrad *SchoolCode

	// NewStudentGrade - новый класс обучения.
	NewStudentGrade *Grade

	// NewStatus - новый классификационный статус.
	NewStatus *Status

	// NewCitizenship - новый код гражданства.
	NewCitizenship *string

	// NewSLPDate - новая дата завершения программы (SLP date).
	NewSLPDate *time.Time

	// NewAdultStartDate - производная дата начала взрослой программы.
	NewAdultStartDate *time.Time

	// NewFirstName, NewMiddleNames, NewLastName, NewBirthdate -
	// демографические изменения (UPD_DEMOG).
	NewFirstName   *string
	NewMiddleNames *string
	NewLastName    *string
	NewBirthdate   *time.Time

	// RecalcTranscript - маркер пересчёта официального транскрипта.
	RecalcTranscript RecalcMark

	// RecalcProjected - маркер пересчёта прогноза выпуска.
	RecalcProjected RecalcMark
}

// NewPendingUpdate создаёт пустой рабочий набор.
func NewPendingUpdate() *PendingUpdate {
	return &PendingUpdate{}
}

// RequireTranscriptRecalc выставляет маркер пересчёта транскрипта.
func (p *PendingUpdate) RequireTranscriptRecalc() {
	p.RecalcTranscript = RecalcRequired
}

// RequireProjectedRecalc выставляет маркер пересчёта прогноза выпуска.
func (p *PendingUpdate) RequireProjectedRecalc() {
	p.RecalcProjected = RecalcRequired
}

// ClearProjectedRecalc явно сбрасывает маркер пересчёта прогноза.
func (p *PendingUpdate) ClearProjectedRecalc() {
	p.RecalcProjected = RecalcCleared
}

// AnyRecalc возвращает true, если хотя бы один маркер выставлен в
// "требуется пересчёт".
func (p *PendingUpdate) AnyRecalc() bool {
	return p.RecalcTranscript.IsSet() || p.RecalcProjected.IsSet()
}

// HasChanges возвращает true, если накоплено хотя бы одно изменение поля.
func (p *PendingUpdate) HasChanges() bool {
	return p.NewProgram != nil ||
		p.NewSchoolOfRecord != nil ||
		p.NewSchoolAtGrad != nil ||
		p.NewStudentGrade != nil ||
		p.NewStatus != nil ||
		p.NewCitizenship != nil ||
		p.NewSLPDate != nil ||
		p.NewAdultStartDate != nil ||
		p.NewFirstName != nil ||
		p.NewMiddleNames != nil ||
		p.NewLastName != nil ||
		p.NewBirthdate != nil
}

// ApplyTo переносит накопленные изменения в запись студента.
// Маркеры пересчёта запись не затрагивают - их потребляет нижестоящий
// триггер пересчёта.
func (p *PendingUpdate) ApplyTo(s *Snapshot) {
	if p.NewProgram != nil {
		s.Program = *p.NewProgram
	}
	if p.NewSchoolOfRecord != nil {
		s.SchoolOfRecord = *p.NewSchoolOfRecord
	}
	if p.NewSchoolAtGrad != nil {
		s.SchoolAtGrad = *p.NewSchoolAtGrad
	}
	if p.NewStudentGrade != nil {
		s.StudentGrade = *p.NewStudentGrade
	}
	if p.NewStatus != nil {
		s.Status = *p.NewStatus
	}
	if p.NewCitizenship != nil {
		s.Citizenship = *p.NewCitizenship
	}
	if p.NewSLPDate != nil {
		d := *p.NewSLPDate
		s.ProgramCompletionDate = &d
	}
	if p.NewAdultStartDate != nil {
		d := *p.NewAdultStartDate
		s.AdultStartDate = &d
	}
	if p.NewFirstName != nil {
		s.FirstName = *p.NewFirstName
	}
	if p.NewMiddleNames != nil {
		s.MiddleNames = *p.NewMiddleNames
	}
	if p.NewLastName != nil {
		s.LastName = *p.NewLastName
	}
	if p.NewBirthdate != nil {
		s.Birthdate = *p.NewBirthdate
	}
	s.UpdatedAt = time.Now().UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAM TRANSITION FLAGS
// ══════════════════════════════════════════════════════════════════════════════

// TransitionFlags - флаги перехода программы, вычисляемые один раз на событие
// из сравнения суффиксов старого и нового кода программы. Потребляются слоем
// хранения для добавления/удаления соответствующих строк дополнительных программ.
type TransitionFlags struct {
	// AddDualDogwood - новый код заканчивается на "-PF".
	AddDualDogwood bool

	// DeleteDualDogwood - старый код заканчивался на "-PF", новый - нет.
	DeleteDualDogwood bool

	// AddFrenchImmersion - новый код "-EN" при уходе с "-PF" либо при наличии
	// подтверждения французских курсов для новой программы.
	AddFrenchImmersion bool
}

// IsZero возвращает true, если ни один флаг не выставлен.
func (f TransitionFlags) IsZero() bool {
	return !f.AddDualDogwood && !f.DeleteDualDogwood && !f.AddFrenchImmersion
}
