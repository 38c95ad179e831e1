package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sublarr/sublarr/internal/config"
)

// cacheAndJobStore is the narrow store slice the cleanup task needs.
type cacheAndJobStore interface {
	PruneExpiredCache() (int64, error)
	PruneHookLogs(cutoff time.Time) (int64, error)
}

// zombieJobQueue is the narrow jobqueue slice the cleanup task needs.
type zombieJobQueue interface {
	ExpireZombies(ctx context.Context) (int, error)
	PruneTerminal(ctx context.Context) (int64, error)
}

// whisperQueue is the narrow whisper.Queue slice the cleanup task needs.
type whisperQueue interface {
	PruneTerminal(ctx context.Context) (int64, error)
}

// hookLogRetention is the default window before hook-log rows are
// pruned.
const hookLogRetention = 30 * 24 * time.Hour

// NewCleanupTask builds the fixed rule list the cleanup schedule runs
// every cfg.Scheduler.CleanupHours: expired provider-cache
// rows, hook-log rows past retention, zombie job expiry, terminal job rows
// past retention, and terminal whisper-job rows past retention.
func NewCleanupTask(st cacheAndJobStore, jobs zombieJobQueue, whisper whisperQueue) Task {
	return Task{
		Name:          "cleanup",
		IntervalHours: func(cfg *config.Config) int { return cfg.Scheduler.CleanupHours },
		Run: func(ctx context.Context) error {
			var errs []error

			if _, err := st.PruneExpiredCache(); err != nil {
				errs = append(errs, fmt.Errorf("prune cache: %w", err))
			}
			if _, err := st.PruneHookLogs(time.Now().UTC().Add(-hookLogRetention)); err != nil {
				errs = append(errs, fmt.Errorf("prune hook logs: %w", err))
			}
			if jobs != nil {
				if _, err := jobs.ExpireZombies(ctx); err != nil {
					errs = append(errs, fmt.Errorf("expire zombie jobs: %w", err))
				}
				if _, err := jobs.PruneTerminal(ctx); err != nil {
					errs = append(errs, fmt.Errorf("prune terminal jobs: %w", err))
				}
			}
			if whisper != nil {
				if _, err := whisper.PruneTerminal(ctx); err != nil {
					errs = append(errs, fmt.Errorf("prune terminal whisper jobs: %w", err))
				}
			}

			if len(errs) > 0 {
				return fmt.Errorf("cleanup: %d of 5 steps failed: %v", len(errs), errs)
			}
			return nil
		},
	}
}
