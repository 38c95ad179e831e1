// Package scheduler runs the five periodic background tasks that drive
// the rest of the engine without an external trigger: wanted scan, wanted
// search, cleanup (which also runs job-queue zombie expiry), AniDB mapping
// refresh, and the daily database backup.
//
// The first four are a single timer-per-task loop built on the standard
// time.Timer. Each loop re-reads its own interval from config on every
// tick, so a live config
// reload takes effect after the current cycle with no restart. The daily
// backup is the one genuinely fixed-clock-time schedule (03:00 UTC), so it
// alone uses github.com/robfig/cron/v3 rather than a relative timer.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/config"
)

// Emitter is the narrow event-bus slice this package needs, matching the
// local-interface idiom used throughout the engine.
type Emitter interface {
	Emit(name string, payload map[string]any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, map[string]any) {}

// Task is one periodic job: a name (for logging/events) and the function
// to run each tick. intervalHours reads the *current* configured interval
// on every tick; a value <= 0 disables the task until the next tick sees
// a positive interval.
type Task struct {
	Name          string
	IntervalHours func(cfg *config.Config) int
	Run           func(ctx context.Context) error
}

// Scheduler owns one goroutine+timer per Task plus a robfig/cron runner
// for the fixed-clock-time backup job.
type Scheduler struct {
	cfg     *config.Config
	emitter Emitter
	log     zerolog.Logger

	tasks []Task
	cron  *cron.Cron

	backupFn func(ctx context.Context, at time.Time) error

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// New builds a Scheduler. Call AddTask for each of the four interval-based
// tasks and SetBackup for the fixed-clock job, then Start.
func New(cfg *config.Config, emitter Emitter, log zerolog.Logger) *Scheduler {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Scheduler{
		cfg:     cfg,
		emitter: emitter,
		log:     log.With().Str("component", "scheduler").Logger(),
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// AddTask registers an interval-based periodic task.
func (s *Scheduler) AddTask(t Task) {
	s.tasks = append(s.tasks, t)
}

// SetBackup registers the fixed-clock-time daily backup job, run at
// cfg.Scheduler.BackupHourUTC:00 UTC every day.
func (s *Scheduler) SetBackup(fn func(ctx context.Context, at time.Time) error) {
	s.backupFn = fn
}

// Start launches every registered task's timer loop and the cron runner.
// The loops run under a context derived from ctx that Stop cancels.
// Idempotent: a second call is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.runLoop(ctx, t)
		}(t)
	}

	if s.backupFn != nil {
		spec := cronSpecForHour(s.cfg.Scheduler.BackupHourUTC)
		s.cron.AddFunc(spec, func() {
			s.runBackup(ctx)
		})
		s.cron.Start()
	}

	go func() {
		wg.Wait()
		close(s.done)
	}()
}

// Stop cancels every task loop and stops the cron runner, blocking until
// all task goroutines have returned.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Scheduler) runLoop(ctx context.Context, t Task) {
	for {
		hours := t.IntervalHours(s.cfg)
		if hours <= 0 {
			// disabled: check again in an hour in case config changes it
			hours = 1
		}
		interval := time.Duration(hours) * time.Hour

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if t.IntervalHours(s.cfg) <= 0 {
			continue // disabled between scheduling and firing; skip this tick
		}
		s.runTask(ctx, t)
	}
}

func (s *Scheduler) runTask(ctx context.Context, t Task) {
	s.emitter.Emit("scheduler_task_started", map[string]any{"task": t.Name})
	if err := t.Run(ctx); err != nil {
		s.log.Error().Err(err).Str("task", t.Name).Msg("scheduled task failed")
		s.emitter.Emit("scheduler_task_failed", map[string]any{"task": t.Name, "error": err.Error()})
		return
	}
	s.emitter.Emit("scheduler_task_finished", map[string]any{"task": t.Name})
}

func (s *Scheduler) runBackup(ctx context.Context) {
	s.emitter.Emit("scheduler_task_started", map[string]any{"task": "backup"})
	if err := s.backupFn(ctx, time.Now().UTC()); err != nil {
		s.log.Error().Err(err).Msg("scheduled backup failed")
		s.emitter.Emit("scheduler_task_failed", map[string]any{"task": "backup", "error": err.Error()})
		return
	}
	s.emitter.Emit("scheduler_task_finished", map[string]any{"task": "backup"})
}

// cronSpecForHour builds a standard 5-field cron spec firing daily at
// hourUTC:00, clamping out-of-range hours to 03:00.
func cronSpecForHour(hourUTC int) string {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 3
	}
	return fmt.Sprintf("0 %d * * *", hourUTC)
}
