// Package reconcile реализует сверку набора дополнительных/карьерных программ
// студента с полным замещающим списком кодов из события XPROGRAM.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONAL PROGRAM DIFF
// ══════════════════════════════════════════════════════════════════════════════

// Diff - результат теоретико-множественного сравнения запрошенного и текущего
// наборов кодов. Живёт только в рамках обработки одного события XPROGRAM.
type Diff struct {
	// Added - коды из запрошенного набора, которых нет у студента, за вычетом
	// защищённых кодов DD/FI/CP.
	Added []string

	// Removed - коды студента, которых нет в запрошенном наборе, за вычетом
	// защищённых кодов DD/FI/CP.
	Removed []string
}

// IsEmpty возвращает true, если дифф не содержит изменений.
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// ComputeDiff вычисляет дифф между запрошенным и текущим наборами кодов.
// Защищённые коды (DD, FI, CP) не попадают ни в Added, ни в Removed - ими
// управляют выделенные правила, а не явный список. Результат детерминирован:
// оба среза отсортированы.
func ComputeDiff(requested, current []string) Diff {
	requestedSet := toSet(requested)
	currentSet := toSet(current)

	diff := Diff{Added: make([]string, 0), Removed: make([]string, 0)}

	for code := range requestedSet {
		if _, ok := currentSet[code]; ok {
			continue
		}
		if program.IsProtected(code) {
			continue
		}
		diff.Added = append(diff.Added, code)
	}

	for code := range currentSet {
		if _, ok := requestedSet[code]; ok {
			continue
		}
		if program.IsProtected(code) {
			continue
		}
		diff.Removed = append(diff.Removed, code)
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)

	return diff
}

func toSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		set[code] = struct{}{}
	}
	return set
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILER
// ══════════════════════════════════════════════════════════════════════════════

// Reconciler применяет дифф набора программ через коллабораторов хранения и
// поддерживает инвариант агрегата CP: код "CP" присутствует среди
// дополнительных программ тогда и только тогда, когда у студента осталась
// хотя бы одна незащищённая карьерная программа.
type Reconciler struct {
	registry program.Registry
	programs student.ProgramStore
	logger   *slog.Logger
}

// NewReconciler создаёт новый Reconciler.
func NewReconciler(registry program.Registry, programs student.ProgramStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		registry: registry,
		programs: programs,
		logger:   logger,
	}
}

// Reconcile сверяет набор программ студента с полным замещающим списком.
// Каждый код из диффа классифицируется реестром: есть запись - дополнительная
// программа (привязка по идентификатору записи), нет - карьерная (привязка
// по сырому коду). После применения диффа пересчитывается агрегат CP.
func (r *Reconciler) Reconcile(ctx context.Context, snapshot *student.Snapshot, requested []string) (Diff, error) {
	current := make([]string, 0, len(snapshot.OptionalProgramCodes)+len(snapshot.CareerProgramCodes))
	current = append(current, snapshot.OptionalProgramCodes...)
	current = append(current, snapshot.CareerProgramCodes...)

	diff := ComputeDiff(requested, current)

	for _, code := range diff.Added {
		if err := r.applyAdd(ctx, snapshot, code); err != nil {
			return diff, err
		}
	}

	for _, code := range diff.Removed {
		if err := r.applyRemove(ctx, snapshot, code); err != nil {
			return diff, err
		}
	}

	if err := r.SyncCareerAggregate(ctx, snapshot); err != nil {
		return diff, err
	}

	return diff, nil
}

// applyAdd классифицирует и привязывает один код.
func (r *Reconciler) applyAdd(ctx context.Context, snapshot *student.Snapshot, code string) error {
	class, err := program.Classify(ctx, r.registry, snapshot.Program, code)
	if err != nil {
		return fmt.Errorf("reconcile: classify %q: %w", code, err)
	}

	switch class.Kind {
	case program.ClassOptional:
		if err := r.programs.AddOptional(ctx, snapshot.ID, class.Entry.ID, code); err != nil {
			return fmt.Errorf("reconcile: add optional %q: %w", code, err)
		}
		r.logger.Debug("optional program added", "pen", snapshot.Pen, "code", code)
	case program.ClassCareer:
		if err := r.programs.AddCareer(ctx, snapshot.ID, code); err != nil {
			return fmt.Errorf("reconcile: add career %q: %w", code, err)
		}
		r.logger.Debug("career program added", "pen", snapshot.Pen, "code", code)
	}

	return nil
}

// applyRemove классифицирует и отвязывает один код.
func (r *Reconciler) applyRemove(ctx context.Context, snapshot *student.Snapshot, code string) error {
	class, err := program.Classify(ctx, r.registry, snapshot.Program, code)
	if err != nil {
		return fmt.Errorf("reconcile: classify %q: %w", code, err)
	}

	switch class.Kind {
	case program.ClassOptional:
		if err := r.programs.RemoveOptional(ctx, snapshot.ID, class.Entry.ID); err != nil {
			return fmt.Errorf("reconcile: remove optional %q: %w", code, err)
		}
		r.logger.Debug("optional program removed", "pen", snapshot.Pen, "code", code)
	case program.ClassCareer:
		if err := r.programs.RemoveCareer(ctx, snapshot.ID, code); err != nil {
			return fmt.Errorf("reconcile: remove career %q: %w", code, err)
		}
		r.logger.Debug("career program removed", "pen", snapshot.Pen, "code", code)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CP AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// SyncCareerAggregate пересчитывает производный агрегат CP. Операция
// идемпотентна: если агрегат уже в корректном состоянии - no-op.
func (r *Reconciler) SyncCareerAggregate(ctx context.Context, snapshot *student.Snapshot) error {
	careers, err := r.programs.ListCareer(ctx, snapshot.ID)
	if err != nil {
		return fmt.Errorf("reconcile: list career programs: %w", err)
	}

	hasCareer := false
	for _, code := range careers {
		if !program.IsProtected(code) {
			hasCareer = true
			break
		}
	}

	optionals, err := r.programs.ListOptional(ctx, snapshot.ID)
	if err != nil {
		return fmt.Errorf("reconcile: list optional programs: %w", err)
	}

	var cpRow *student.OptionalProgramRow
	for i := range optionals {
		if optionals[i].Code == string(program.CodeCareerPrep) {
			cpRow = &optionals[i]
			break
		}
	}

	switch {
	case hasCareer && cpRow == nil:
		entry, err := r.registry.Lookup(ctx, snapshot.Program, string(program.CodeCareerPrep))
		if err != nil {
			return fmt.Errorf("reconcile: lookup CP entry: %w", err)
		}
		if err := r.programs.AddOptional(ctx, snapshot.ID, entry.ID, string(program.CodeCareerPrep)); err != nil {
			return fmt.Errorf("reconcile: add CP aggregate: %w", err)
		}
		r.logger.Debug("career-prep aggregate added", "pen", snapshot.Pen)

	case !hasCareer && cpRow != nil:
		if err := r.programs.RemoveOptional(ctx, snapshot.ID, cpRow.RegistryID); err != nil {
			return fmt.Errorf("reconcile: remove CP aggregate: %w", err)
		}
		r.logger.Debug("career-prep aggregate removed", "pen", snapshot.Pen)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FRENCH IMMERSION
// ══════════════════════════════════════════════════════════════════════════════

// SyncFrenchImmersion применяет переход предиката наличия французских курсов:
// false→true добавляет FI, true→false удаляет. Внутри одного состояния - no-op.
func (r *Reconciler) SyncFrenchImmersion(ctx context.Context, snapshot *student.Snapshot, hadEvidence, hasEvidence bool) error {
	if hadEvidence == hasEvidence {
		return nil
	}

	if hasEvidence {
		entry, err := r.registry.Lookup(ctx, snapshot.Program, string(program.CodeFrenchImmersion))
		if err != nil {
			return fmt.Errorf("reconcile: lookup FI entry: %w", err)
		}
		if err := r.programs.AddOptional(ctx, snapshot.ID, entry.ID, string(program.CodeFrenchImmersion)); err != nil {
			return fmt.Errorf("reconcile: add FI: %w", err)
		}
		r.logger.Info("french immersion added", "pen", snapshot.Pen)
		return nil
	}

	optionals, err := r.programs.ListOptional(ctx, snapshot.ID)
	if err != nil {
		return fmt.Errorf("reconcile: list optional programs: %w", err)
	}
	for _, row := range optionals {
		if row.Code == string(program.CodeFrenchImmersion) {
			if err := r.programs.RemoveOptional(ctx, snapshot.ID, row.RegistryID); err != nil {
				return fmt.Errorf("reconcile: remove FI: %w", err)
			}
			r.logger.Info("french immersion removed", "pen", snapshot.Pen)
			return nil
		}
	}

	return nil
}
