package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH REGISTRY JOB
// ══════════════════════════════════════════════════════════════════════════════

// RegistryFetcher pulls the authoritative optional program registry from TRAX.
type RegistryFetcher interface {
	GetOptionalProgramRegistry(ctx context.Context) ([]program.RegistryEntry, error)
}

// RegistryWriter persists registry entries locally.
type RegistryWriter interface {
	Replace(ctx context.Context, entries []program.RegistryEntry) error
}

// RefreshRegistryJob keeps the local optional program registry in sync with
// TRAX. Reconciliation decisions (optional vs career classification, DD/FI
// attachment) read the local copy, so staleness here shows up as wrong set
// diffs downstream.
type RefreshRegistryJob struct {
	fetcher RegistryFetcher
	writer  RegistryWriter
	logger  *slog.Logger
}

// NewRefreshRegistryJob creates a new registry refresh job.
func NewRefreshRegistryJob(
	fetcher RegistryFetcher,
	writer RegistryWriter,
	logger *slog.Logger,
) *RefreshRegistryJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshRegistryJob{
		fetcher: fetcher,
		writer:  writer,
		logger:  logger,
	}
}

// Name returns the job name.
func (j *RefreshRegistryJob) Name() string {
	return "refresh_optional_program_registry"
}

// Description returns a human-readable description.
func (j *RefreshRegistryJob) Description() string {
	return "Syncs the optional program registry from TRAX"
}

// Run executes the refresh job.
func (j *RefreshRegistryJob) Run(ctx context.Context) error {
	entries, err := j.fetcher.GetOptionalProgramRegistry(ctx)
	if err != nil {
		return fmt.Errorf("fetch optional program registry: %w", err)
	}

	// An empty response is far more likely a TRAX-side outage than a real
	// registry wipe; keep the local copy.
	if len(entries) == 0 {
		j.logger.Warn("registry fetch returned no entries, keeping local copy")
		return nil
	}

	if err := j.writer.Replace(ctx, entries); err != nil {
		return fmt.Errorf("replace optional program registry: %w", err)
	}

	j.logger.Info("optional program registry refreshed", "entries", len(entries))

	return nil
}
