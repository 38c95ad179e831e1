package store

import "time"

// HookConfig is a configured script hook: an event binding, a script
// path, and a timeout.
type HookConfig struct {
	ID             int64
	Name           string
	EventName      string
	ScriptPath     string
	TimeoutSeconds int
	Enabled        bool
}

// UpsertHookConfig inserts or updates a script hook by name, letting
// cmd/sublarrd sync config.Config.Hooks into the store on every startup.
func (s *Store) UpsertHookConfig(h HookConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO hook_configs (name, event_name, script_path, timeout_seconds, enabled) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET event_name = excluded.event_name, script_path = excluded.script_path,
			timeout_seconds = excluded.timeout_seconds, enabled = excluded.enabled`,
		h.Name, h.EventName, h.ScriptPath, h.TimeoutSeconds, boolToInt(h.Enabled),
	)
	return err
}

// HooksForEvent returns every enabled hook bound to name, for the hook
// engine's dispatch loop.
func (s *Store) HooksForEvent(name string) ([]HookConfig, error) {
	rows, err := s.db.Query(
		`SELECT id, name, event_name, script_path, timeout_seconds, enabled FROM hook_configs WHERE event_name = ? AND enabled = 1`,
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HookConfig
	for rows.Next() {
		var h HookConfig
		var enabled int
		if err := rows.Scan(&h.ID, &h.Name, &h.EventName, &h.ScriptPath, &h.TimeoutSeconds, &enabled); err != nil {
			return nil, err
		}
		h.Enabled = enabled != 0
		out = append(out, h)
	}
	return out, nil
}

// LogHookExecution records one hook run's outcome (captured
// stdout/stderr, exit code, and duration) to the hook_log table.
func (s *Store) LogHookExecution(hookID int64, eventName string, success bool, exitCode int, stdout, stderr string, durationMS int64, ranAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO hook_logs (hook_id, event_name, success, exit_code, stdout, stderr, duration_ms, ran_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		hookID, eventName, boolToInt(success), exitCode, stdout, stderr, durationMS, ranAt,
	)
	return err
}

// PruneHookLogs deletes hook_log rows older than cutoff, for the admin
// surface and the cleanup schedule.
func (s *Store) PruneHookLogs(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM hook_logs WHERE ran_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
