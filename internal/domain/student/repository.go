package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Интерфейсы хранилища записей студентов. Реализации живут в infrastructure.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища записей студентов.
type Repository interface {
	// GetByPEN возвращает запись студента по PEN.
	// Возвращает ErrSnapshotNotFound, если записи нет.
	GetByPEN(ctx context.Context, pen PEN) (*Snapshot, error)

	// GetByID возвращает запись студента по внутреннему идентификатору.
	GetByID(ctx context.Context, id string) (*Snapshot, error)

	// Create создаёт новую запись студента.
	Create(ctx context.Context, snapshot *Snapshot) error

	// ApplyUpdate применяет накопленный дифф к записи студента.
	// Флаги перехода программы транслируются в добавление/удаление строк
	// дополнительных программ на стороне хранилища.
	ApplyUpdate(ctx context.Context, pen PEN, update *PendingUpdate, flags TransitionFlags) error
}

// Cache определяет контракт кеша записей студентов.
// Кеш смягчает нагрузку на хранилище при всплесках событий по одному PEN.
type Cache interface {
	// Get возвращает закешированную запись или ошибку промаха.
	Get(ctx context.Context, pen PEN) (*Snapshot, error)

	// Set кладёт запись в кеш с заданным TTL.
	Set(ctx context.Context, snapshot *Snapshot, ttl time.Duration) error

	// Delete инвалидирует запись в кеше.
	Delete(ctx context.Context, pen PEN) error
}

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONAL / CAREER PROGRAM STORE
// ══════════════════════════════════════════════════════════════════════════════

// OptionalProgramRow - строка дополнительной программы, привязанная к студенту.
type OptionalProgramRow struct {
	// RegistryID - идентификатор записи реестра дополнительных программ.
	RegistryID string

	// Code - код дополнительной программы (например, "DD", "FI", "CP", "AD").
	Code string

	// CreatedAt - время привязки.
	CreatedAt time.Time
}

// ProgramStore определяет контракт хранилища привязок дополнительных и
// карьерных программ студента.
type ProgramStore interface {
	// ListOptional возвращает дополнительные программы студента.
	ListOptional(ctx context.Context, studentID string) ([]OptionalProgramRow, error)

	// AddOptional привязывает дополнительную программу по записи реестра.
	// Повторная привязка - no-op.
	AddOptional(ctx context.Context, studentID, registryID, code string) error

	// RemoveOptional отвязывает дополнительную программу.
	RemoveOptional(ctx context.Context, studentID, registryID string) error

	// ListCareer возвращает коды карьерных программ студента.
	ListCareer(ctx context.Context, studentID string) ([]string, error)

	// AddCareer привязывает карьерную программу по сырому коду.
	AddCareer(ctx context.Context, studentID, code string) error

	// RemoveCareer отвязывает карьерную программу.
	RemoveCareer(ctx context.Context, studentID, code string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSION ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ConversionError - зафиксированная ошибка конвертации по конкретному PEN.
// Ошибки разрешения программы и валидации не прерывают обработку события -
// они записываются и обработка продолжается.
type ConversionError struct {
	Pen       PEN
	Reason    string
	CreatedAt time.Time
}

// ConversionErrorRecorder определяет контракт журнала ошибок конвертации.
type ConversionErrorRecorder interface {
	// Record фиксирует ошибку конвертации для PEN.
	Record(ctx context.Context, pen PEN, reason string) error

	// ListByPEN возвращает зафиксированные ошибки по PEN.
	ListByPEN(ctx context.Context, pen PEN) ([]ConversionError, error)
}
