package store

import "time"

// WebhookConfig is one configured outbound webhook: URL,
// optional HMAC secret, retry count, timeout, and the auto-disable
// consecutive-failure counter.
type WebhookConfig struct {
	ID                   int64
	Name                 string
	EventName            string // exact event name, or "*" for every event
	URL                  string
	Secret               string
	RetryCount           int
	TimeoutSeconds       int
	Enabled              bool
	ConsecutiveFailures  int
}

// UpsertWebhookConfig inserts or updates an outbound webhook by name,
// letting cmd/sublarrd sync config.Config.Webhooks into the store on every
// startup. ConsecutiveFailures is intentionally not
// reset here — syncing configuration must not clear an operator's pending
// auto-skip state; use a direct UPDATE for that.
func (s *Store) UpsertWebhookConfig(w WebhookConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO webhook_configs (name, event_name, url, secret, retry_count, timeout_seconds, enabled) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET event_name = excluded.event_name, url = excluded.url, secret = excluded.secret,
			retry_count = excluded.retry_count, timeout_seconds = excluded.timeout_seconds, enabled = excluded.enabled`,
		w.Name, w.EventName, w.URL, w.Secret, w.RetryCount, w.TimeoutSeconds, boolToInt(w.Enabled),
	)
	return err
}

// WebhooksForEvent returns every enabled webhook exactly matching name,
// plus every enabled wildcard ("*") webhook — the dispatcher merges both
// sets, per the original's exact-match-plus-wildcard query shape.
func (s *Store) WebhooksForEvent(name string) ([]WebhookConfig, error) {
	rows, err := s.db.Query(
		`SELECT id, name, event_name, url, secret, retry_count, timeout_seconds, enabled, consecutive_failures
		 FROM webhook_configs WHERE enabled = 1 AND (event_name = ? OR event_name = '*')`,
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WebhookConfig
	for rows.Next() {
		var w WebhookConfig
		var enabled int
		if err := rows.Scan(&w.ID, &w.Name, &w.EventName, &w.URL, &w.Secret, &w.RetryCount, &w.TimeoutSeconds, &enabled, &w.ConsecutiveFailures); err != nil {
			return nil, err
		}
		w.Enabled = enabled != 0
		out = append(out, w)
	}
	return out, nil
}

// RecordWebhookOutcome updates the consecutive-failure counter (reset to 0
// on success, incremented on failure) and appends a webhook_logs row. A
// webhook whose counter reaches the auto-skip threshold is NOT otherwise
// modified; the dispatcher skips it from then on, so no later delivery
// can succeed and delivery resumes only once the counter is reset by hand.
func (s *Store) RecordWebhookOutcome(id int64, eventName string, success bool, statusCode int, errText string, durationMS int64, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if success {
		if _, err := s.db.Exec(`UPDATE webhook_configs SET consecutive_failures = 0 WHERE id = ?`, id); err != nil {
			return err
		}
	} else {
		if _, err := s.db.Exec(`UPDATE webhook_configs SET consecutive_failures = consecutive_failures + 1 WHERE id = ?`, id); err != nil {
			return err
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO webhook_logs (webhook_id, event_name, success, status_code, error, duration_ms, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, eventName, boolToInt(success), statusCode, errText, durationMS, sentAt,
	)
	return err
}
