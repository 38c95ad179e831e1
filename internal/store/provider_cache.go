package store

import (
	"encoding/json"
	"time"

	"github.com/sublarr/sublarr/internal/model"
)

// CacheTTL is the provider-cache entry lifetime.
var CacheTTL = 15 * time.Minute

// Get implements provider.Cache. A row whose expires_at has passed is
// treated as a miss (and opportunistically deleted).
func (s *Store) Get(providerName, key string) ([]model.SubtitleResult, bool) {
	var resultsJSON string
	var expiresAt time.Time
	err := s.db.QueryRow(
		`SELECT results_json, expires_at FROM provider_cache WHERE provider_name = ? AND cache_key = ?`,
		providerName, key,
	).Scan(&resultsJSON, &expiresAt)
	if err != nil {
		return nil, false
	}
	if time.Now().After(expiresAt) {
		s.mu.Lock()
		s.db.Exec(`DELETE FROM provider_cache WHERE provider_name = ? AND cache_key = ?`, providerName, key)
		s.mu.Unlock()
		return nil, false
	}

	var results []model.SubtitleResult
	if err := json.Unmarshal([]byte(resultsJSON), &results); err != nil {
		return nil, false
	}
	return results, true
}

// Set implements provider.Cache, upserting the (possibly empty) result list.
func (s *Store) Set(providerName, key string, results []model.SubtitleResult) {
	if results == nil {
		results = []model.SubtitleResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Exec(
		`INSERT INTO provider_cache (provider_name, cache_key, results_json, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(provider_name, cache_key) DO UPDATE SET
		   results_json = excluded.results_json,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		providerName, key, string(payload), now, now.Add(CacheTTL),
	)
}

// PruneExpiredCache deletes every provider_cache row past its TTL, for
// the cleanup schedule.
func (s *Store) PruneExpiredCache() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM provider_cache WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// IsBlacklisted implements provider.Blacklist.
func (s *Store) IsBlacklisted(providerName, subtitleID string) bool {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM blacklist WHERE provider_name = ? AND subtitle_id = ?`,
		providerName, subtitleID,
	).Scan(&one)
	return err == nil
}

// Add implements provider.Blacklist. Blacklist entries are never
// auto-pruned.
func (s *Store) Add(entry model.BlacklistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Exec(
		`INSERT INTO blacklist (provider_name, subtitle_id, reason, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(provider_name, subtitle_id) DO UPDATE SET reason = excluded.reason`,
		entry.ProviderName, entry.SubtitleID, entry.Reason, entry.CreatedAt,
	)
}

// RecordAttempt implements provider.StatsRecorder: an idempotent upsert
// incrementing the attempt/success counters for a provider.
func (s *Store) RecordAttempt(providerName string, success bool) {
	successInc := 0
	if success {
		successInc = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Exec(
		`INSERT INTO provider_stats (provider_name, attempts, successes, updated_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(provider_name) DO UPDATE SET
		   attempts = attempts + 1,
		   successes = successes + excluded.successes,
		   updated_at = excluded.updated_at`,
		providerName, successInc, time.Now(),
	)
}

// SuccessRate implements provider.StatsRecorder, used for
// auto-prioritise ordering. A provider with no recorded attempts ranks
// neutrally at 0.5 so it is neither favoured nor starved on first run.
func (s *Store) SuccessRate(providerName string) float64 {
	var attempts, successes int
	err := s.db.QueryRow(
		`SELECT attempts, successes FROM provider_stats WHERE provider_name = ?`,
		providerName,
	).Scan(&attempts, &successes)
	if err != nil || attempts == 0 {
		return 0.5
	}
	return float64(successes) / float64(attempts)
}
