package program

import (
	"context"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONAL PROGRAM REGISTRY
// Внешний реестр дополнительных программ. Движок классифицирует код из
// входного списка как дополнительную либо карьерную программу по наличию
// записи в реестре для пары (основная программа, код).
// ══════════════════════════════════════════════════════════════════════════════

// RegistryEntry - неизменяемая запись реестра дополнительных программ.
type RegistryEntry struct {
	// ID - идентификатор записи реестра; передаётся слою хранения при
	// привязке/отвязке дополнительной программы.
	ID string

	// MainProgramCode - основная программа, в рамках которой действует код.
	MainProgramCode string

	// OptionalProgramCode - код дополнительной программы.
	OptionalProgramCode string

	// Description - человекочитаемое описание.
	Description string
}

// Registry определяет контракт внешнего реестра дополнительных программ.
type Registry interface {
	// Lookup возвращает запись реестра для пары (основная программа, код)
	// либо shared.ErrRegistryEntryNotFound.
	Lookup(ctx context.Context, mainProgramCode, optionalCode string) (*RegistryEntry, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFICATION (tagged result)
// ══════════════════════════════════════════════════════════════════════════════

// ClassKind - разряд классификации кода программы.
type ClassKind int

const (
	// ClassOptional - код найден в реестре: дополнительная программа.
	ClassOptional ClassKind = iota
	// ClassCareer - кода нет в реестре: карьерная программа.
	ClassCareer
)

// Classification - помеченный результат классификации кода вместо
// nullable-возврата: либо Optional с записью реестра, либо Career с сырым кодом.
type Classification struct {
	Kind  ClassKind
	Code  string
	Entry *RegistryEntry // заполнено только для ClassOptional
}

// Classify определяет разряд кода через реестр. Отсутствие записи реестра -
// штатный итог (карьерная программа), а не ошибка.
func Classify(ctx context.Context, registry Registry, mainProgram, code string) (Classification, error) {
	entry, err := registry.Lookup(ctx, mainProgram, code)
	if err == nil && entry != nil {
		return Classification{Kind: ClassOptional, Code: code, Entry: entry}, nil
	}
	if err != nil && !shared.IsNotFound(err) {
		return Classification{}, err
	}
	return Classification{Kind: ClassCareer, Code: code}, nil
}
