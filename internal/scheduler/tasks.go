package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sublarr/sublarr/internal/config"
	"github.com/sublarr/sublarr/internal/store"
)

// scannerIface is the narrow scanner.Scanner slice the wanted-scan task
// needs.
type scannerIface interface {
	Scan(ctx context.Context) (inserted, updated int, err error)
}

// searchLoopIface is the narrow scanner.SearchLoop slice the wanted-search
// task needs.
type searchLoopIface interface {
	RunBatch(ctx context.Context, maxItems int) (int, error)
}

// NewWantedScanTask wraps scanner.Scanner.Scan as a periodic task, run
// every cfg.Scheduler.WantedScanHours.
func NewWantedScanTask(s scannerIface) Task {
	return Task{
		Name:          "wanted_scan",
		IntervalHours: func(cfg *config.Config) int { return cfg.Scheduler.WantedScanHours },
		Run: func(ctx context.Context) error {
			_, _, err := s.Scan(ctx)
			return err
		},
	}
}

// NewWantedSearchTask wraps scanner.SearchLoop.RunBatch as a periodic
// task, run every cfg.Scheduler.WantedSearchHours, draining up to
// cfg.Scheduler.MaxItemsPerRun pending items per tick.
func NewWantedSearchTask(cfg *config.Config, loop searchLoopIface) Task {
	return Task{
		Name:          "wanted_search",
		IntervalHours: func(cfg *config.Config) int { return cfg.Scheduler.WantedSearchHours },
		Run: func(ctx context.Context) error {
			_, err := loop.RunBatch(ctx, cfg.Scheduler.MaxItemsPerRun)
			return err
		},
	}
}

// NewAniDBRefreshTask wraps an anidb.Syncer.Sync call (passed as a plain
// func returning only the error, so the caller's closure drops the sync
// result) as a periodic task, run every cfg.Scheduler.AniDBRefreshHours.
func NewAniDBRefreshTask(sync func(ctx context.Context, sourceURL string) error) Task {
	return Task{
		Name:          "anidb_refresh",
		IntervalHours: func(cfg *config.Config) int { return cfg.Scheduler.AniDBRefreshHours },
		Run: func(ctx context.Context) error {
			return sync(ctx, "")
		},
	}
}

// backupStore is the narrow store.Store slice the backup task needs.
type backupStore interface {
	Backup(dir string, label store.BackupLabel, at time.Time) (string, error)
}

// NewBackupFunc builds the fixed-clock backup callback Scheduler.SetBackup
// expects, writing a daily-labeled snapshot to dir and rotating it down to
// store.RetentionLimits.
func NewBackupFunc(st backupStore, dir string) func(ctx context.Context, at time.Time) error {
	return func(ctx context.Context, at time.Time) error {
		if _, err := st.Backup(dir, store.BackupDaily, at); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		if _, err := store.Rotate(dir, store.BackupDaily); err != nil {
			return fmt.Errorf("rotate: %w", err)
		}
		return nil
	}
}
