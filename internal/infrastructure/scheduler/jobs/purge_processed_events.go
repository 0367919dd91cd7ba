package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PURGE PROCESSED EVENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// PurgeProcessedEventsJob deletes PROCESSED journal rows older than the
// retention window. The journal exists for replay and audit; once an event
// has been handled and the retention period has passed, the row is dead
// weight on the pending-scan indexes.
type PurgeProcessedEventsJob struct {
	events shared.EventStore
	logger *slog.Logger
	config PurgeProcessedEventsConfig
}

// PurgeProcessedEventsConfig contains configuration for the purge job.
type PurgeProcessedEventsConfig struct {
	// Retention is how long processed events are kept before deletion.
	Retention time.Duration
}

// DefaultPurgeProcessedEventsConfig returns sensible defaults.
func DefaultPurgeProcessedEventsConfig() PurgeProcessedEventsConfig {
	return PurgeProcessedEventsConfig{
		Retention: 30 * 24 * time.Hour,
	}
}

// NewPurgeProcessedEventsJob creates a new purge job.
func NewPurgeProcessedEventsJob(
	events shared.EventStore,
	logger *slog.Logger,
	config PurgeProcessedEventsConfig,
) *PurgeProcessedEventsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Retention <= 0 {
		config = DefaultPurgeProcessedEventsConfig()
	}

	return &PurgeProcessedEventsJob{
		events: events,
		logger: logger,
		config: config,
	}
}

// Name returns the job name.
func (j *PurgeProcessedEventsJob) Name() string {
	return "purge_processed_events"
}

// Description returns a human-readable description.
func (j *PurgeProcessedEventsJob) Description() string {
	return "Deletes processed reconciliation events past the retention window"
}

// Run executes the purge job.
func (j *PurgeProcessedEventsJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.config.Retention)

	removed, err := j.events.PurgeProcessed(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge processed events: %w", err)
	}

	if removed > 0 {
		j.logger.Info("processed event journal purged",
			"removed", removed, "older_than", cutoff.Format(time.RFC3339))
	}

	return nil
}
