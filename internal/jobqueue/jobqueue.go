// Package jobqueue implements the bounded in-process job queue: a fixed
// number of worker slots pull queued jobs and run an arbitrary
// translator-engine function against them, persisting status transitions
// to the store and emitting queue events as they go. Concurrency is
// bounded by a semaphore channel sized to the worker-slot count.
package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/model"
	"github.com/sublarr/sublarr/internal/store"
)

// terminalRetention is how long a finished job's persisted row is kept
// before PruneTerminal deletes it.
const terminalRetention = 24 * time.Hour

// zombieAge is how long a running job may go without finishing before
// the housekeeping task considers its worker dead.
const zombieAge = 2 * time.Hour

// Emitter is the narrow slice of the event bus the job queue needs.
// Defined locally to avoid a dependency from jobqueue on events.
type Emitter interface {
	Emit(name string, payload map[string]any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, map[string]any) {}

// Func is the unit of work a job runs — normally the translator engine's
// ProcessFile, but any function matching this shape can be queued.
type Func func(ctx context.Context, filePath string, force bool) (outputPath string, stats map[string]any, err error)

// Queue is the bounded worker-slot job runner.
type Queue struct {
	store   *store.Store
	emitter Emitter
	log     zerolog.Logger

	slots chan struct{} // one token per worker slot

	mu      sync.Mutex
	active  map[string]context.CancelFunc // running job id -> cancel (for zombie bookkeeping only, never user-cancellable)
	queued  int
	backend string
	workers int
}

// New builds a queue with the given number of worker slots.
func New(st *store.Store, emitter Emitter, workers int, log zerolog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Queue{
		store:   st,
		emitter: emitter,
		log:     log.With().Str("component", "jobqueue").Logger(),
		slots:   make(chan struct{}, workers),
		active:  make(map[string]context.CancelFunc),
		backend: "in-process",
		workers: workers,
	}
}

// Submit records a queued job and spawns a goroutine that blocks on a free
// worker slot before running fn. Returns the job id immediately.
func (q *Queue) Submit(ctx context.Context, filePath string, force bool, configFingerprint string, fn Func) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	job := model.Job{
		ID:                id,
		FilePath:          filePath,
		Force:             force,
		ConfigFingerprint: configFingerprint,
		Status:            model.JobQueued,
		QueuedAt:          now,
	}
	if err := q.store.InsertJob(job); err != nil {
		return "", fmt.Errorf("jobqueue: insert: %w", err)
	}
	q.emitter.Emit("job_queued", map[string]any{"job_id": id, "file_path": filePath})

	q.mu.Lock()
	q.queued++
	q.mu.Unlock()

	go q.run(ctx, id, filePath, force, fn)
	return id, nil
}

func (q *Queue) run(ctx context.Context, id, filePath string, force bool, fn Func) {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		q.mu.Lock()
		q.queued--
		q.mu.Unlock()
		return
	}
	q.mu.Lock()
	q.queued--
	q.mu.Unlock()
	defer func() { <-q.slots }()

	runCtx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.active[id] = cancel
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		delete(q.active, id)
		q.mu.Unlock()
		cancel()
	}()

	startedAt := time.Now().UTC()
	if err := q.store.MarkJobRunning(id, startedAt); err != nil {
		q.log.Error().Err(err).Str("job_id", id).Msg("failed to mark job running")
	}
	q.emitter.Emit("job_started", map[string]any{"job_id": id, "file_path": filePath})

	outputPath, stats, err := q.safeRun(runCtx, filePath, force, fn)
	finishedAt := time.Now().UTC()

	status := model.JobCompleted
	errText := ""
	if err != nil {
		status = model.JobFailed
		errText = err.Error()
	}
	if finishErr := q.store.FinishJob(id, status, stats, outputPath, errText, finishedAt); finishErr != nil {
		q.log.Error().Err(finishErr).Str("job_id", id).Msg("failed to persist job completion")
	}

	event := "job_completed"
	if err != nil {
		event = "job_failed"
	}
	q.emitter.Emit(event, map[string]any{
		"job_id": id, "file_path": filePath, "output_path": outputPath, "error": errText,
	})
}

// safeRun recovers a panicking job function into a failure result rather
// than crashing the worker goroutine, matching the panic-recovery posture
// the provider manager applies to provider calls.
func (q *Queue) safeRun(ctx context.Context, filePath string, force bool, fn Func) (outputPath string, stats map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jobqueue: job panicked: %v", r)
		}
	}()
	return fn(ctx, filePath, force)
}

// GetJob returns one job's current persisted state.
func (q *Queue) GetJob(id string) (model.Job, error) {
	return q.store.GetJob(id)
}

// Stats is the observable queue state: queue length, active count,
// recent failures, and backend info.
type Stats struct {
	Queued      int
	Running     int
	RecentFailed []model.Job
	BackendType string
	MaxWorkers  int
}

// Snapshot reports current queue occupancy. Queued/Running counts reflect
// worker-slot usage, which is the authoritative concurrency bound; recent
// failures are read back from the store.
func (q *Queue) Snapshot(recentFailedLimit int) Stats {
	q.mu.Lock()
	running := len(q.active)
	queued := q.queued
	q.mu.Unlock()

	recent, err := q.store.RecentFailedJobs(recentFailedLimit)
	if err != nil {
		q.log.Error().Err(err).Msg("failed to read recent failed jobs")
	}

	return Stats{
		Queued:       queued,
		Running:      running,
		RecentFailed: recent,
		BackendType:  q.backend,
		MaxWorkers:   q.workers,
	}
}

// ExpireZombies marks any job that has been running longer than zombieAge
// as failed, guarding against a worker goroutine that died without
// updating the store.
func (q *Queue) ExpireZombies(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-zombieAge)
	zombies, err := q.store.ZombieJobs(cutoff)
	if err != nil {
		return 0, err
	}
	for _, j := range zombies {
		if err := q.store.FinishJob(j.ID, model.JobFailed, j.Stats, j.OutputPath, "zombie expiry: worker did not report completion", time.Now().UTC()); err != nil {
			q.log.Error().Err(err).Str("job_id", j.ID).Msg("failed to expire zombie job")
			continue
		}
		q.emitter.Emit("job_failed", map[string]any{"job_id": j.ID, "file_path": j.FilePath, "error": "zombie expiry"})
	}
	return len(zombies), nil
}

// PruneTerminal deletes terminal job rows older than the retention window.
func (q *Queue) PruneTerminal(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-terminalRetention)
	return q.store.PruneTerminalJobs(cutoff)
}
