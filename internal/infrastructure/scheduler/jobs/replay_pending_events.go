// Package jobs contains implementations of scheduled jobs for the grad
// record hub: replaying stuck reconciliation events, purging the processed
// journal, and refreshing the optional program registry.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPLAY PENDING EVENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReplayPendingEventsJob republishes reconciliation events that are still in
// RECEIVED status. An event normally flips to PROCESSED within seconds of
// intake; one that lingers means the original publication or its handler run
// was lost (crash, bus hiccup), so the journal is the recovery path.
type ReplayPendingEventsJob struct {
	events    shared.EventStore
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    ReplayPendingEventsConfig
}

// ReplayPendingEventsConfig contains configuration for the replay job.
type ReplayPendingEventsConfig struct {
	// BatchSize is the maximum number of events replayed per run.
	BatchSize int

	// MinAge is how long an event must sit in RECEIVED status before it is
	// considered stuck. Guards against replaying events that are simply
	// still in flight.
	MinAge time.Duration
}

// DefaultReplayPendingEventsConfig returns sensible defaults.
func DefaultReplayPendingEventsConfig() ReplayPendingEventsConfig {
	return ReplayPendingEventsConfig{
		BatchSize: 200,
		MinAge:    5 * time.Minute,
	}
}

// NewReplayPendingEventsJob creates a new replay job.
func NewReplayPendingEventsJob(
	events shared.EventStore,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config ReplayPendingEventsConfig,
) *ReplayPendingEventsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config = DefaultReplayPendingEventsConfig()
	}

	return &ReplayPendingEventsJob{
		events:    events,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *ReplayPendingEventsJob) Name() string {
	return "replay_pending_events"
}

// Description returns a human-readable description.
func (j *ReplayPendingEventsJob) Description() string {
	return "Republishes reconciliation events stuck in RECEIVED status"
}

// Run executes the replay job.
func (j *ReplayPendingEventsJob) Run(ctx context.Context) error {
	records, err := j.events.ListPending(ctx, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list pending events: %w", err)
	}

	cutoff := time.Now().UTC().Add(-j.config.MinAge)

	var replayed, skipped, failed int
	for _, record := range records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if record.CreatedAt.After(cutoff) {
			skipped++
			continue
		}

		event, err := shared.DecodeEvent(record)
		if err != nil {
			// Undecodable payloads would loop forever; park them as
			// processed and leave the journal row for inspection.
			j.logger.Error("undecodable pending event",
				"event_id", record.ID, "event_type", record.Type, "error", err)
			if markErr := j.events.MarkProcessed(ctx, record.ID); markErr != nil {
				j.logger.Error("failed to park undecodable event",
					"event_id", record.ID, "error", markErr)
			}
			failed++
			continue
		}

		if err := j.publisher.Publish(ctx, event); err != nil {
			j.logger.Error("failed to republish event",
				"event_id", record.ID, "event_type", record.Type, "pen", record.Pen, "error", err)
			failed++
			continue
		}
		replayed++
	}

	if replayed > 0 || failed > 0 {
		j.logger.Info("pending event replay finished",
			"replayed", replayed, "skipped", skipped, "failed", failed)
	}

	return nil
}
