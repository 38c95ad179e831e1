// Package whisper implements the whisper transcription queue: a
// semaphore-gated worker that transcribes a source-language audio track
// into an SRT subtitle when no subtitle source was found for either the
// target or the source language.
//
// The HTTP backend speaks the OpenAI-compatible audio-transcription wire
// format (/audio/transcriptions, response_format=verbose_json) and renders
// the returned segments as SRT. Each job moves
// through three phases, extracting then transcribing then saving, with
// progress reported on the event bus.
package whisper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/store"
)

// terminalRetention is how long terminal job metadata is kept before
// pruning, the same 24h window the job queue uses.
const terminalRetention = 24 * time.Hour

// Result is one backend's transcription outcome.
type Result struct {
	SRTContent          string
	DetectedLanguage    string
	LanguageProbability float64
	SegmentCount        int
	DurationSeconds     float64
	BackendName         string
}

// ProgressFunc reports phase/percentage updates, wired to the event bus by
// the caller so the transcribing phase's 10-95% band can emit fine-grained
// whisper_progress events.
type ProgressFunc func(phase string, progress float64)

// Backend is the contract a concrete ASR engine implements.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, wavPath, languageHint string, onProgress ProgressFunc) (Result, error)
}

// Emitter is the narrow slice of the event bus this package needs,
// matching the local-interface idiom internal/jobqueue and
// internal/translator already use to stay decoupled from internal/events.
type Emitter interface {
	Emit(name string, payload map[string]any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, map[string]any) {}

// Queue is the semaphore-gated transcription worker. It implements
// internal/translator.Transcriber, so the translator engine's Case C4 can
// call TranscribeAudio directly without importing this package's
// concrete type.
type Queue struct {
	store   *store.Store
	backend Backend
	emitter Emitter
	log     zerolog.Logger

	sem chan struct{}
}

// New builds a queue with the configured semaphore capacity (default 1,
// transcription is GPU-bound).
func New(st *store.Store, backend Backend, capacity int, emitter Emitter, log zerolog.Logger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Queue{
		store:   st,
		backend: backend,
		emitter: emitter,
		log:     log.With().Str("component", "whisper_queue").Logger(),
		sem:     make(chan struct{}, capacity),
	}
}

// TranscribeAudio runs one transcription job to completion and returns the
// path to a temporary SRT file holding the result, implementing
// internal/translator.Transcriber. The queued job blocks on a semaphore
// slot before doing any work, so at most `capacity` transcriptions run
// concurrently process-wide.
func (q *Queue) TranscribeAudio(ctx context.Context, audioPath, languageHint string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	if err := q.store.InsertWhisperJob(store.WhisperJob{
		ID: id, FilePath: audioPath, Language: languageHint,
		Status: "queued", Phase: "queued", CreatedAt: now,
	}); err != nil {
		return "", err
	}

	select {
	case q.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-q.sem }()

	q.setPhase(id, audioPath, "extracting", 0.0)
	// Audio extraction (container -> 16kHz mono WAV) is already done by
	// internal/transcoder.ExtractAudio before this call; the queue's own
	// "extracting" phase covers only the final decode step some backends
	// perform on first read, so it advances immediately to 10%, the start
	// of the transcribing band.
	q.setPhase(id, audioPath, "extracting", 0.10)

	onProgress := func(phase string, pct float64) {
		// Rescale the backend's own 0-100% transcribing progress into the
		// 10-95% band between extraction and saving.
		if phase == "transcribing" {
			pct = 0.10 + pct*0.85
		}
		q.setPhase(id, audioPath, phase, pct)
	}

	result, err := q.backend.Transcribe(ctx, audioPath, languageHint, onProgress)
	if err != nil {
		q.fail(id, audioPath, err)
		return "", err
	}

	q.setPhase(id, audioPath, "saving", 0.95)
	srtPath, writeErr := writeTempSRT(result.SRTContent)
	if writeErr != nil {
		q.fail(id, audioPath, writeErr)
		return "", writeErr
	}

	completedAt := time.Now().UTC()
	if err := q.store.CompleteWhisperJob(id, result.BackendName, result.DetectedLanguage,
		result.LanguageProbability, result.SRTContent, result.SegmentCount, result.DurationSeconds,
		completedAt.Sub(now).Milliseconds(), completedAt); err != nil {
		q.log.Error().Err(err).Str("job_id", id).Msg("failed to persist whisper completion")
	}
	q.emitter.Emit("whisper_completed", map[string]any{"job_id": id, "file_path": audioPath})

	return srtPath, nil
}

func (q *Queue) setPhase(id, filePath, phase string, progress float64) {
	status := phase
	if err := q.store.UpdateWhisperProgress(id, status, phase, progress); err != nil {
		q.log.Error().Err(err).Str("job_id", id).Msg("failed to persist whisper progress")
	}
	q.emitter.Emit("whisper_progress", map[string]any{
		"job_id": id, "file_path": filePath, "phase": phase, "progress": progress,
	})
}

func (q *Queue) fail(id, filePath string, err error) {
	if dbErr := q.store.FailWhisperJob(id, err.Error(), time.Now().UTC()); dbErr != nil {
		q.log.Error().Err(dbErr).Str("job_id", id).Msg("failed to persist whisper failure")
	}
	q.emitter.Emit("whisper_failed", map[string]any{"job_id": id, "file_path": filePath, "error": err.Error()})
}

// Cancel marks a still-queued job cancelled; running jobs run to
// completion.
func (q *Queue) Cancel(id string) (bool, error) {
	return q.store.CancelWhisperJob(id)
}

// PruneTerminal deletes terminal whisper_job rows past the retention
// window, called by the cleanup schedule.
func (q *Queue) PruneTerminal(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-terminalRetention)
	return q.store.PruneTerminalWhisperJobs(cutoff)
}
