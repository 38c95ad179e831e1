package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sublarr/sublarr/internal/model"
)

// InsertJob records a newly queued job.
func (s *Store) InsertJob(j model.Job) error {
	ctxJSON, _ := json.Marshal(j.Context)
	statsJSON, _ := json.Marshal(j.Stats)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO jobs (id, file_path, force, context_json, output_path, stats_json, error, config_fingerprint, status, queued_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.FilePath, boolToInt(j.Force), string(ctxJSON), j.OutputPath, string(statsJSON),
		j.Error, j.ConfigFingerprint, string(j.Status), j.QueuedAt,
	)
	return err
}

// MarkJobRunning transitions a queued job to running.
func (s *Store) MarkJobRunning(id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(model.JobRunning), startedAt, id,
	)
	return err
}

// FinishJob transitions a running job to its terminal state, persisting
// stats and/or an error string.
func (s *Store) FinishJob(id string, status model.JobStatus, stats map[string]any, outputPath, jobErr string, finishedAt time.Time) error {
	statsJSON, _ := json.Marshal(stats)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = ?, stats_json = ?, output_path = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), string(statsJSON), outputPath, jobErr, finishedAt, id,
	)
	return err
}

// GetJob returns one job by id.
func (s *Store) GetJob(id string) (model.Job, error) {
	return scanJob(s.db.QueryRow(
		`SELECT id, file_path, force, context_json, output_path, stats_json, error, config_fingerprint, status, queued_at, started_at, finished_at FROM jobs WHERE id = ?`,
		id,
	))
}

// ZombieJobs returns every running job whose started_at is older than
// cutoff, for the zombie-expiry housekeeping task.
func (s *Store) ZombieJobs(cutoff time.Time) ([]model.Job, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, force, context_json, output_path, stats_json, error, config_fingerprint, status, queued_at, started_at, finished_at
		 FROM jobs WHERE status = ? AND started_at IS NOT NULL AND started_at < ?`,
		string(model.JobRunning), cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// RecentFailedJobs returns up to limit failed jobs, most recent first,
// for the job queue's observable state.
func (s *Store) RecentFailedJobs(limit int) ([]model.Job, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, force, context_json, output_path, stats_json, error, config_fingerprint, status, queued_at, started_at, finished_at
		 FROM jobs WHERE status = ? ORDER BY finished_at DESC LIMIT ?`,
		string(model.JobFailed), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// PruneTerminalJobs deletes completed/failed job rows older than
// cutoff, for the queue's PruneTerminal.
func (s *Store) PruneTerminalJobs(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`DELETE FROM jobs WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		string(model.JobCompleted), string(model.JobFailed), cutoff,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row *sql.Row) (model.Job, error) {
	return scanJobRows(row)
}

func scanJobRows(row rowScanner) (model.Job, error) {
	var j model.Job
	var force int
	var ctxJSON, statsJSON, status string
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(
		&j.ID, &j.FilePath, &force, &ctxJSON, &j.OutputPath, &statsJSON,
		&j.Error, &j.ConfigFingerprint, &status, &j.QueuedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return model.Job{}, err
	}

	j.Force = force != 0
	j.Status = model.JobStatus(status)
	json.Unmarshal([]byte(ctxJSON), &j.Context)
	json.Unmarshal([]byte(statsJSON), &j.Stats)
	if startedAt.Valid {
		j.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		j.FinishedAt = finishedAt.Time
	}
	return j, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
