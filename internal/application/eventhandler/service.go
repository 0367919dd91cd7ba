// Package eventhandler содержит обработчики входящих уведомлений TRAX.
// Каждый обработчик - одна синхронная единица работы: прочитать запись,
// вычислить дифф, сохранить, запросить пересчёт, пометить событие обработанным.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/application/reconcile"
	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATOR INTERFACES
// Интерфейсы внешних коллабораторов; реализации живут в infrastructure.
// ══════════════════════════════════════════════════════════════════════════════

// BatchRecomputeRequester запрашивает пересчёт производных документов у
// нижестоящего алгоритма выпуска. Вызов fire-and-forget: ошибка логируется,
// но не влияет на судьбу события.
type BatchRecomputeRequester interface {
	// RequestBatchRecompute просит пересчитать транскрипт и/или прогноз
	// выпуска для студента.
	RequestBatchRecompute(ctx context.Context, studentID string, transcript, projected bool) error
}

// FrenchEvidenceChecker - предикат наличия у студента хотя бы одного
// французского курса, подтверждающего French Immersion. Сигнал курса из
// инициирующего события передаётся коллаборатору как подсказка; пустой
// сигнал допустим.
type FrenchEvidenceChecker interface {
	HasFrenchImmersionEvidence(ctx context.Context, programCode string, pen student.PEN, signal student.CourseSignal) (bool, error)
}

// DemographicsFetcher запрашивает у TRAX демографическую запись студента
// для первичной конвертации NEWSTUDENT.
type DemographicsFetcher interface {
	GetStudentDemographics(ctx context.Context, pen student.PEN) (*student.Demographics, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Config содержит настройки обработчиков.
type Config struct {
	// SnapshotCacheTTL - TTL записи студента в кеше.
	SnapshotCacheTTL time.Duration
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		SnapshotCacheTTL: 10 * time.Minute,
	}
}

// Service агрегирует зависимости всех обработчиков событий.
//
// Политика отказов коллабораторов едина для всех обработчиков: ошибка
// логируется, событие всё равно помечается обработанным ("always advance,
// never block the queue"). Повторная доставка шины не способна починить
// упавший коллаборатор, а застрявшее событие блокирует очередь по PEN.
type Service struct {
	repo         student.Repository
	cache        student.Cache
	programs     student.ProgramStore
	registry     program.Registry
	reconciler   *reconcile.Reconciler
	convErrors   student.ConversionErrorRecorder
	evidence     FrenchEvidenceChecker
	demographics DemographicsFetcher
	recompute    BatchRecomputeRequester
	events       shared.EventStore
	logger       *slog.Logger
	config       Config
}

// NewService создаёт сервис обработчиков.
func NewService(
	repo student.Repository,
	cache student.Cache,
	programs student.ProgramStore,
	registry program.Registry,
	reconciler *reconcile.Reconciler,
	convErrors student.ConversionErrorRecorder,
	evidence FrenchEvidenceChecker,
	demographics DemographicsFetcher,
	recompute BatchRecomputeRequester,
	events shared.EventStore,
	logger *slog.Logger,
	config Config,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SnapshotCacheTTL == 0 {
		config = DefaultConfig()
	}

	return &Service{
		repo:         repo,
		cache:        cache,
		programs:     programs,
		registry:     registry,
		reconciler:   reconciler,
		convErrors:   convErrors,
		evidence:     evidence,
		demographics: demographics,
		recompute:    recompute,
		events:       events,
		logger:       logger,
		config:       config,
	}
}

// RegisterAll подписывает все обработчики на шину событий.
func (s *Service) RegisterAll(bus shared.EventSubscriber) error {
	subscriptions := map[shared.EventType]shared.EventHandler{
		shared.EventNewStudent:               s.HandleNewStudent,
		shared.EventGradMasterUpdate:         s.HandleGradMasterUpdate,
		shared.EventProgramList:              s.HandleProgramList,
		shared.EventFrenchImmersion10Add:     s.HandleFrenchImmersion,
		shared.EventFrenchImmersion10Delete:  s.HandleFrenchImmersion,
		shared.EventFrenchImmersion11Add:     s.HandleFrenchImmersion,
		shared.EventFrenchImmersion11Delete:  s.HandleFrenchImmersion,
		shared.EventCourseChange:             s.HandleCourseChange,
		shared.EventAssessmentChange:         s.HandleCourseChange,
		shared.EventDemographics:             s.HandleDemographics,
		shared.EventGradUpdate:               s.HandleGradUpdate,
		shared.EventStatusChange:             s.HandleStatusChange,
	}

	for eventType, handler := range subscriptions {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return err
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMON HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// loadSnapshot читает запись студента: сначала кеш, затем хранилище.
func (s *Service) loadSnapshot(ctx context.Context, pen student.PEN) (*student.Snapshot, error) {
	if s.cache != nil {
		if snap, err := s.cache.Get(ctx, pen); err == nil && snap != nil {
			return snap, nil
		}
	}

	snap, err := s.repo.GetByPEN(ctx, pen)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap, s.config.SnapshotCacheTTL); err != nil {
			s.logger.Warn("snapshot cache set failed", "pen", pen, "error", err)
		}
	}

	return snap, nil
}

// persistUpdate сохраняет накопленный дифф и инвалидирует кеш.
func (s *Service) persistUpdate(ctx context.Context, pen student.PEN, update *student.PendingUpdate, flags student.TransitionFlags) error {
	if !update.HasChanges() && flags.IsZero() {
		return nil
	}

	if err := s.repo.ApplyUpdate(ctx, pen, update, flags); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, pen); err != nil {
			s.logger.Warn("snapshot cache invalidation failed", "pen", pen, "error", err)
		}
	}

	return nil
}

// finish завершает обработку события: условный запрос пересчёта и перевод
// записи события в PROCESSED. Вызывается на всех штатных путях, включая
// зафиксированные ошибки разрешения/валидации.
func (s *Service) finish(ctx context.Context, event shared.Event, snapshot *student.Snapshot, update *student.PendingUpdate) {
	if update != nil && update.AnyRecalc() && snapshot != nil {
		err := s.recompute.RequestBatchRecompute(ctx, snapshot.ID,
			update.RecalcTranscript.IsSet(), update.RecalcProjected.IsSet())
		if err != nil {
			s.logger.Error("batch recompute request failed",
				"pen", event.PEN(), "event_id", event.EventID(), "error", err)
		}
	}

	s.markProcessed(ctx, event)
}

// markProcessed переводит запись события в терминальный статус.
func (s *Service) markProcessed(ctx context.Context, event shared.Event) {
	if err := s.events.MarkProcessed(ctx, event.EventID()); err != nil {
		s.logger.Error("failed to mark event processed",
			"event_id", event.EventID(), "event_type", event.EventType(), "error", err)
	}
}

// recordConversionError фиксирует ошибку конвертации по PEN и продолжает.
func (s *Service) recordConversionError(ctx context.Context, pen student.PEN, reason string) {
	if err := s.convErrors.Record(ctx, pen, reason); err != nil {
		s.logger.Error("failed to record conversion error", "pen", pen, "reason", reason, "error", err)
	}
	s.logger.Warn("conversion error recorded", "pen", pen, "reason", reason)
}

// hasFrenchEvidence вычисляет предикат французских курсов; при отказе
// коллаборатора возвращает false и логирует.
func (s *Service) hasFrenchEvidence(ctx context.Context, programCode string, pen student.PEN, signal student.CourseSignal) bool {
	has, err := s.evidence.HasFrenchImmersionEvidence(ctx, programCode, pen, signal)
	if err != nil {
		s.logger.Error("french evidence check failed", "pen", pen, "error", err)
		return false
	}
	return has
}
