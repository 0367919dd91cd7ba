// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT RECORD QUERY
// Возвращает актуальную запись выпускника: снапшот, привязанные программы
// и журнал ошибок конвертации. Читает сквозь кеш.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentRecordQuery содержит параметры запроса записи студента.
type GetStudentRecordQuery struct {
	// Pen - персональный номер образования.
	Pen string

	// IncludeConversionErrors - включить журнал ошибок конвертации.
	IncludeConversionErrors bool
}

// Validate проверяет корректность параметров.
func (q *GetStudentRecordQuery) Validate() error {
	if !student.PEN(q.Pen).IsValid() {
		return student.ErrInvalidPEN
	}
	return nil
}

// StudentRecordDTO - DTO записи студента для внешних потребителей.
type StudentRecordDTO struct {
	ID                    string     `json:"id"`
	Pen                   string     `json:"pen"`
	Program               string     `json:"program"`
	SchoolOfRecord        string     `json:"school_of_record"`
	SchoolAtGrad          string     `json:"school_at_grad,omitempty"`
	StudentGrade          string     `json:"student_grade"`
	Status                string     `json:"status"`
	Citizenship           string     `json:"citizenship,omitempty"`
	Graduated             bool       `json:"graduated"`
	ProgramCompletionDate *time.Time `json:"program_completion_date,omitempty"`
	AdultStartDate        *time.Time `json:"adult_start_date,omitempty"`
	FirstName             string     `json:"first_name,omitempty"`
	MiddleNames           string     `json:"middle_names,omitempty"`
	LastName              string     `json:"last_name,omitempty"`
	OptionalPrograms      []string   `json:"optional_programs"`
	CareerPrograms        []string   `json:"career_programs"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// ConversionErrorDTO - зафиксированная ошибка конвертации.
type ConversionErrorDTO struct {
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// GetStudentRecordResult содержит результат запроса.
type GetStudentRecordResult struct {
	Record           StudentRecordDTO     `json:"record"`
	ConversionErrors []ConversionErrorDTO `json:"conversion_errors,omitempty"`
	GeneratedAt      time.Time            `json:"generated_at"`
}

// GetStudentRecordHandler обрабатывает запросы записи студента.
type GetStudentRecordHandler struct {
	repo   student.Repository
	cache  student.Cache
	errors student.ConversionErrorRecorder
}

// NewGetStudentRecordHandler создаёт новый обработчик.
func NewGetStudentRecordHandler(
	repo student.Repository,
	cache student.Cache,
	errorRecorder student.ConversionErrorRecorder,
) *GetStudentRecordHandler {
	return &GetStudentRecordHandler{
		repo:   repo,
		cache:  cache,
		errors: errorRecorder,
	}
}

// Handle выполняет запрос.
func (h *GetStudentRecordHandler) Handle(ctx context.Context, query GetStudentRecordQuery) (*GetStudentRecordResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStudentRecord", shared.ErrValidation, err.Error(), err)
	}

	pen := student.PEN(query.Pen)

	snapshot, err := h.loadSnapshot(ctx, pen)
	if err != nil {
		if errors.Is(err, student.ErrSnapshotNotFound) {
			return nil, shared.WrapError("query", "GetStudentRecord", shared.ErrNotFound, "student record not found", err)
		}
		return nil, err
	}

	result := &GetStudentRecordResult{
		Record:      buildStudentRecordDTO(snapshot),
		GeneratedAt: time.Now().UTC(),
	}

	if query.IncludeConversionErrors && h.errors != nil {
		convErrors, err := h.errors.ListByPEN(ctx, pen)
		if err == nil {
			result.ConversionErrors = make([]ConversionErrorDTO, len(convErrors))
			for i, ce := range convErrors {
				result.ConversionErrors[i] = ConversionErrorDTO{
					Reason:    ce.Reason,
					CreatedAt: ce.CreatedAt,
				}
			}
		}
	}

	return result, nil
}

// loadSnapshot читает запись сквозь кеш: промах идёт в хранилище
// и прогревает кеш.
func (h *GetStudentRecordHandler) loadSnapshot(ctx context.Context, pen student.PEN) (*student.Snapshot, error) {
	if h.cache != nil {
		if snapshot, err := h.cache.Get(ctx, pen); err == nil {
			return snapshot, nil
		}
	}

	snapshot, err := h.repo.GetByPEN(ctx, pen)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, snapshot, 0)
	}

	return snapshot, nil
}

// buildStudentRecordDTO строит DTO из доменной записи.
func buildStudentRecordDTO(s *student.Snapshot) StudentRecordDTO {
	dto := StudentRecordDTO{
		ID:                    s.ID,
		Pen:                   s.Pen.String(),
		Program:               s.Program,
		SchoolOfRecord:        string(s.SchoolOfRecord),
		SchoolAtGrad:          string(s.SchoolAtGrad),
		StudentGrade:          string(s.StudentGrade),
		Status:                string(s.Status),
		Citizenship:           s.Citizenship,
		Graduated:             s.IsGraduated(),
		ProgramCompletionDate: s.ProgramCompletionDate,
		AdultStartDate:        s.AdultStartDate,
		FirstName:             s.FirstName,
		MiddleNames:           s.MiddleNames,
		LastName:              s.LastName,
		OptionalPrograms:      s.OptionalProgramCodes,
		CareerPrograms:        s.CareerProgramCodes,
		UpdatedAt:             s.UpdatedAt,
	}

	if dto.OptionalPrograms == nil {
		dto.OptionalPrograms = []string{}
	}
	if dto.CareerPrograms == nil {
		dto.CareerPrograms = []string{}
	}

	return dto
}
