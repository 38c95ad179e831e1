package store

import (
	"database/sql"
	"time"
)

// WhisperJob tracks a transcription job's phase machine: extracting
// (0-10%), transcribing (10-95%), saving (95-100%), then a terminal
// state.
type WhisperJob struct {
	ID                  string
	FilePath            string
	Language            string
	Status              string // queued|extracting|transcribing|saving|completed|failed|cancelled
	Phase               string
	Progress            float64
	BackendName         string
	DetectedLanguage    string
	LanguageProbability float64
	SRTContent          string
	SegmentCount        int
	DurationSeconds     float64
	ProcessingTimeMS    int64
	Error               string
	CreatedAt           time.Time
	StartedAt           time.Time
	CompletedAt         time.Time
}

// InsertWhisperJob records a newly submitted transcription job.
func (s *Store) InsertWhisperJob(j WhisperJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO whisper_jobs (id, file_path, language, status, phase, progress, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.FilePath, j.Language, j.Status, j.Phase, j.Progress, j.CreatedAt,
	)
	return err
}

// UpdateWhisperProgress updates status/phase/progress mid-flight, matching
// the original's in-memory progress callback mirrored to the DB.
func (s *Store) UpdateWhisperProgress(id, status, phase string, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE whisper_jobs SET status = ?, phase = ?, progress = ? WHERE id = ?`,
		status, phase, progress, id,
	)
	return err
}

// CompleteWhisperJob persists a successful transcription's result set.
func (s *Store) CompleteWhisperJob(id, backendName, detectedLanguage string, languageProbability float64, srtContent string, segmentCount int, durationSeconds float64, processingTimeMS int64, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE whisper_jobs SET status = 'completed', phase = 'completed', progress = 1,
			backend_name = ?, detected_language = ?, language_probability = ?, srt_content = ?,
			segment_count = ?, duration_seconds = ?, processing_time_ms = ?, completed_at = ?
		 WHERE id = ?`,
		backendName, detectedLanguage, languageProbability, srtContent, segmentCount,
		durationSeconds, processingTimeMS, completedAt, id,
	)
	return err
}

// FailWhisperJob persists a failure, truncating the error to 500 chars.
func (s *Store) FailWhisperJob(id, errText string, completedAt time.Time) error {
	if len(errText) > 500 {
		errText = errText[:500]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE whisper_jobs SET status = 'failed', error = ?, completed_at = ? WHERE id = ?`,
		errText, completedAt, id,
	)
	return err
}

// CancelWhisperJob marks a job cancelled. Callers must only call this
// for jobs still in status "queued"; running jobs cannot be cancelled.
func (s *Store) CancelWhisperJob(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`UPDATE whisper_jobs SET status = 'cancelled' WHERE id = ? AND status = 'queued'`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetWhisperJob returns one job by id.
func (s *Store) GetWhisperJob(id string) (WhisperJob, error) {
	var j WhisperJob
	var startedAt, completedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, file_path, language, status, phase, progress, backend_name, detected_language,
			language_probability, srt_content, segment_count, duration_seconds, processing_time_ms,
			error, created_at, started_at, completed_at
		 FROM whisper_jobs WHERE id = ?`,
		id,
	).Scan(
		&j.ID, &j.FilePath, &j.Language, &j.Status, &j.Phase, &j.Progress, &j.BackendName,
		&j.DetectedLanguage, &j.LanguageProbability, &j.SRTContent, &j.SegmentCount,
		&j.DurationSeconds, &j.ProcessingTimeMS, &j.Error, &j.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return WhisperJob{}, err
	}
	if startedAt.Valid {
		j.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = completedAt.Time
	}
	return j, nil
}

// PruneTerminalWhisperJobs deletes completed/failed/cancelled rows
// older than cutoff, the same retention window the job queue uses.
func (s *Store) PruneTerminalWhisperJobs(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`DELETE FROM whisper_jobs WHERE status IN ('completed', 'failed', 'cancelled') AND completed_at IS NOT NULL AND completed_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
