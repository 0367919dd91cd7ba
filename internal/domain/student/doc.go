// Package student содержит доменную модель актуальной записи выпускника.
//
// Это ядро бизнес-логики системы "Grad Record Hub". Пакет определяет:
//
//   - Сущности (Entities): Snapshot - актуальная запись выпускника
//   - Value Objects: PEN, SchoolCode, Grade, Status, RecalcMark
//   - Рабочий набор изменений: PendingUpdate, TransitionFlags
//   - Интерфейсы репозиториев: Repository, Cache, ProgramStore,
//     ConversionErrorRecorder
//
// # Архитектурные принципы
//
// Пакет следует принципам Clean Architecture и DDD:
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - определяет интерфейсы, которые реализуются в infrastructure
//  3. Rich Domain Model - бизнес-логика инкапсулирована в сущностях
//
// # Модель сверки
//
// Запись Snapshot принадлежит внешнему хранилищу; движок сверки читает
// копию в памяти на каждое событие из TRAX и накапливает изменения в
// PendingUpdate - теневом наборе "new_*" полей с двумя трёхзначными
// маркерами пересчёта (транскрипт и прогноз выпуска). PendingUpdate
// никогда не сохраняется сам по себе: после применения диффа к записи
// он отбрасывается.
//
//	snapshot, err := repo.GetByPEN(ctx, pen)
//	update := NewPendingUpdate()
//	// ... политика обновления полей наполняет update ...
//	err = repo.ApplyUpdate(ctx, pen, update, flags)
//
// # Статусы
//
// Статус записи (CUR/ARC/TER/MER/DEC) - закрытое перечисление. Это
// классификация текущей записи на момент поступления изменения, а не граф
// переходов: сам статус меняется только выделенной операцией "применить
// новый статус".
//
// # Флаги перехода программы
//
// TransitionFlags (addDualDogwood / deleteDualDogwood / addFrenchImmersion)
// вычисляются один раз на событие из сравнения суффиксов старого и нового
// кода программы и потребляются слоем хранения.
package student
