package eventhandler

import (
	"context"
	"errors"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
	"github.com/grad-hub/grad-record-hub/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// UPD_DEMOG
// Демографические данные (имя, дата рождения) — источник истины всегда TRAX,
// статусные правила здесь не применяются: любое расхождение переносится и
// требует пересчёта обоих документов.
// ═══════════════════════════════════════════════════════════════════════════

// HandleDemographics обрабатывает событие UPD_DEMOG.
func (s *Service) HandleDemographics(ctx context.Context, event shared.Event) error {
	ev, ok := event.(*shared.DemographicsEvent)
	if !ok {
		s.logger.Error("unexpected payload type for UPD_DEMOG", "event_id", event.EventID())
		s.markProcessed(ctx, event)
		return nil
	}

	pen := student.PEN(ev.PEN())

	snapshot, err := s.loadSnapshot(ctx, pen)
	if err != nil {
		if errors.Is(err, student.ErrSnapshotNotFound) {
			s.recordConversionError(ctx, pen, "demographics update for unknown student")
		} else {
			s.logger.Error("snapshot lookup failed", "pen", pen, "error", err)
		}
		s.markProcessed(ctx, event)
		return nil
	}

	update := student.NewPendingUpdate()

	if ev.FirstName != snapshot.FirstName {
		update.NewFirstName = &ev.FirstName
	}
	if ev.MiddleNames != snapshot.MiddleNames {
		update.NewMiddleNames = &ev.MiddleNames
	}
	if ev.LastName != snapshot.LastName {
		update.NewLastName = &ev.LastName
	}
	if ev.Birthdate != "" {
		birthdate, err := timeutil.ParseISODate(ev.Birthdate)
		if err != nil {
			s.recordConversionError(ctx, pen, "malformed birthdate "+ev.Birthdate)
		} else if !birthdate.Equal(snapshot.Birthdate) {
			update.NewBirthdate = &birthdate
		}
	}

	if update.HasChanges() {
		update.RequireTranscriptRecalc()
		update.RequireProjectedRecalc()

		if err := s.persistUpdate(ctx, pen, update, student.TransitionFlags{}); err != nil {
			s.logger.Error("failed to persist demographics update", "pen", pen, "error", err)
		}
	}

	s.finish(ctx, event, snapshot, update)
	return nil
}
