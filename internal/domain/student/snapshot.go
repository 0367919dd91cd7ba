// Package student содержит доменную модель актуальной записи выпускника.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// PEN представляет персональный номер образования (Personal Education Number) -
// девятизначный идентификатор студента в исходной системе TRAX.
type PEN string

// IsValid проверяет, что PEN состоит ровно из девяти цифр.
func (p PEN) IsValid() bool {
	if len(p) != 9 {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String возвращает строковое представление PEN.
func (p PEN) String() string {
	return string(p)
}

// SchoolCode представляет код школы (mincode) в исходной системе.
type SchoolCode string

// IsValid проверяет корректность кода школы.
func (s SchoolCode) IsValid() bool {
	return len(s) == 8
}

// IsFrancophone возвращает true, если школа относится к франкоязычному
// школьному округу (префикс "093").
func (s SchoolCode) IsFrancophone() bool {
	return strings.HasPrefix(string(s), "093")
}

// String возвращает строковое представление кода школы.
func (s SchoolCode) String() string {
	return string(s)
}

// Grade представляет класс обучения студента ("08".."12", "AD" для взрослых).
type Grade string

// GradeAdult - класс для взрослых учащихся.
const GradeAdult Grade = "AD"

// IsAdult возвращает true, если студент учится по взрослой программе.
func (g Grade) IsAdult() bool {
	return g == GradeAdult
}

// CourseSignal - код и уровень курса из инициирующего события французских
// курсов. Передаётся предикату свидетельств как подсказка; пустой сигнал
// означает, что предикат вызван вне контекста конкретного курса.
type CourseSignal struct {
	CourseCode  string
	CourseLevel string
}

// Demographics - демографическая запись студента из TRAX; используется при
// первичной конвертации NEWSTUDENT.
type Demographics struct {
	Pen         PEN
	FirstName   string
	MiddleNames string
	LastName    string
	Birthdate   time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет классификационный статус записи студента на момент
// поступления изменения. Это не граф переходов - статус меняется только
// отдельной операцией "применить новый статус".
type Status string

const (
	// StatusCurrent - студент числится в текущем учебном году.
	StatusCurrent Status = "CUR"
	// StatusArchived - запись заархивирована после окончания учебного года.
	StatusArchived Status = "ARC"
	// StatusTerminated - студент выбыл из системы.
	StatusTerminated Status = "TER"
	// StatusMerged - запись слита с другой записью (дубликат PEN).
	StatusMerged Status = "MER"
	// StatusDeceased - студент умер.
	StatusDeceased Status = "DEC"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusCurrent, StatusArchived, StatusTerminated, StatusMerged, StatusDeceased:
		return true
	default:
		return false
	}
}

// AllStatuses возвращает закрытое перечисление всех статусов.
// Используется таблицей решений для проверки полноты покрытия.
func AllStatuses() []Status {
	return []Status{StatusCurrent, StatusArchived, StatusTerminated, StatusMerged, StatusDeceased}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - актуальная запись выпускника, синхронизируемая с TRAX.
// Хранится во внешнем хранилище; движок читает и мутирует копию в памяти
// в рамках обработки одного события.
type Snapshot struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// Pen - персональный номер образования из исходной системы.
	Pen PEN

	// Program - текущий производный код программы (например, "2018-EN").
	Program string

	// SchoolOfRecord - код школы, за которой закреплён студент.
	SchoolOfRecord SchoolCode

	// SchoolAtGrad - код школы на момент выпуска.
	SchoolAtGrad SchoolCode

	// StudentGrade - класс обучения.
	StudentGrade Grade

	// Status - текущий классификационный статус (CUR/ARC/TER/MER/DEC).
	Status Status

	// Citizenship - код гражданства.
	Citizenship string

	// ProgramCompletionDate - дата завершения программы; nil, если студент
	// ещё не выпустился.
	ProgramCompletionDate *time.Time

	// AdultStartDate - дата начала взрослой программы (программа "1950");
	// nil, если не назначена.
	AdultStartDate *time.Time

	// Birthdate - дата рождения; нужна для вычисления AdultStartDate.
	Birthdate time.Time

	// FirstName, MiddleNames, LastName - демографические поля из TRAX.
	FirstName   string
	MiddleNames string
	LastName    string

	// OptionalProgramCodes - коды дополнительных программ (DD, FI, CP и др.).
	OptionalProgramCodes []string

	// CareerProgramCodes - коды карьерных программ.
	CareerProgramCodes []string

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// Доменные ошибки записи студента.
var (
	// ErrInvalidPEN - невалидный PEN.
	ErrInvalidPEN = errors.New("invalid pen: must be exactly 9 digits")

	// ErrInvalidStatus - неизвестный код статуса.
	ErrInvalidStatus = errors.New("invalid student status code")

	// ErrSnapshotNotFound - запись студента не найдена.
	ErrSnapshotNotFound = errors.New("student snapshot not found")

	// ErrSnapshotAlreadyExists - запись студента уже существует.
	ErrSnapshotAlreadyExists = errors.New("student snapshot already exists")
)

// NewSnapshotParams содержит параметры для создания новой записи.
type NewSnapshotParams struct {
	ID             string
	Pen            PEN
	Program        string
	SchoolOfRecord SchoolCode
	StudentGrade   Grade
	Status         Status
	Citizenship    string
	Birthdate      time.Time
	FirstName      string
	MiddleNames    string
	LastName       string
}

// NewSnapshot создаёт новую запись студента с валидацией полей.
func NewSnapshot(params NewSnapshotParams) (*Snapshot, error) {
	if params.ID == "" {
		return nil, errors.New("snapshot id is required")
	}

	if !params.Pen.IsValid() {
		return nil, ErrInvalidPEN
	}

	if !params.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	now := time.Now().UTC()

	return &Snapshot{
		ID:                   params.ID,
		Pen:                  params.Pen,
		Program:              params.Program,
		SchoolOfRecord:       params.SchoolOfRecord,
		StudentGrade:         params.StudentGrade,
		Status:               params.Status,
		Citizenship:          params.Citizenship,
		Birthdate:            params.Birthdate,
		FirstName:            params.FirstName,
		MiddleNames:          params.MiddleNames,
		LastName:             params.LastName,
		OptionalProgramCodes: make([]string, 0),
		CareerProgramCodes:   make([]string, 0),
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsGraduated возвращает true, если у студента зафиксирована дата
// завершения программы.
func (s *Snapshot) IsGraduated() bool {
	return s.ProgramCompletionDate != nil
}

// HasOptionalProgram проверяет наличие кода дополнительной программы.
func (s *Snapshot) HasOptionalProgram(code string) bool {
	for _, c := range s.OptionalProgramCodes {
		if c == code {
			return true
		}
	}
	return false
}

// HasCareerProgram проверяет наличие кода карьерной программы.
func (s *Snapshot) HasCareerProgram(code string) bool {
	for _, c := range s.CareerProgramCodes {
		if c == code {
			return true
		}
	}
	return false
}

// AdultStartFromBirthdate вычисляет дату начала взрослой программы:
// дата рождения плюс 18 лет.
func (s *Snapshot) AdultStartFromBirthdate() time.Time {
	return s.Birthdate.AddDate(18, 0, 0)
}

// String возвращает строковое представление записи для логирования.
func (s *Snapshot) String() string {
	return fmt.Sprintf(
		"Snapshot{PEN: %s, Program: %s, School: %s, Grade: %s, Status: %s, Graduated: %t}",
		s.Pen, s.Program, s.SchoolOfRecord, s.StudentGrade, s.Status, s.IsGraduated(),
	)
}

// Clone создаёт глубокую копию записи.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	clone := *s
	clone.OptionalProgramCodes = append([]string(nil), s.OptionalProgramCodes...)
	clone.CareerProgramCodes = append([]string(nil), s.CareerProgramCodes...)
	if s.ProgramCompletionDate != nil {
		d := *s.ProgramCompletionDate
		clone.ProgramCompletionDate = &d
	}
	if s.AdultStartDate != nil {
		d := *s.AdultStartDate
		clone.AdultStartDate = &d
	}
	return &clone
}
