// Package store is the engine's one embedded database: jobs, daily
// stats, wanted items, provider cache, provider stats, subtitle
// downloads, blacklist, language profiles, scoring overrides, provider
// modifiers, config entries, media-manager-mapping cache, hook configs,
// webhook configs, hook logs, whisper jobs.
//
// A *sql.DB behind a sync.Once singleton, WAL mode, a bounded connection
// pool, raw SQL with no ORM, and a process-wide write mutex serialising
// every write path.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Store wraps the embedded database. All write paths take mu; reads
// rely on SQLite's own MVCC under WAL and do not take mu.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

var (
	instance *Store
	once     sync.Once
	openErr  error
)

// Open returns the process-wide Store singleton, creating and migrating
// the schema on first call. Subsequent calls with a different path are
// ignored.
func Open(path string, log zerolog.Logger) (*Store, error) {
	once.Do(func() {
		instance, openErr = newStore(path, log)
	})
	return instance, openErr
}

func newStore(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every pooled connection to ":memory:" is its own database;
		// pin the pool to one so the schema is visible everywhere.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle. Tests that want an isolated Store
// should use OpenForTest instead of the singleton.
func (s *Store) Close() error { return s.db.Close() }

// Ping runs a trivial query against the schema, for the startup compat
// check (internal/core/startup) to confirm the database is reachable and
// migrated rather than merely open.
func (s *Store) Ping() error {
	var one int
	return s.db.QueryRow(`SELECT 1`).Scan(&one)
}

// OpenForTest bypasses the singleton for package tests that need an
// isolated, disposable database (e.g. ":memory:" or a temp-dir file).
func OpenForTest(path string, log zerolog.Logger) (*Store, error) {
	return newStore(path, log)
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			force INTEGER NOT NULL DEFAULT 0,
			context_json TEXT NOT NULL DEFAULT '{}',
			output_path TEXT NOT NULL DEFAULT '',
			stats_json TEXT NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT '',
			config_fingerprint TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			queued_at DATETIME NOT NULL,
			started_at DATETIME,
			finished_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at)`,

		`CREATE TABLE IF NOT EXISTS wanted_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_type TEXT NOT NULL,
			series_id TEXT NOT NULL DEFAULT '',
			episode_id TEXT NOT NULL DEFAULT '',
			movie_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			season_episode TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL,
			existing_sub_path TEXT NOT NULL DEFAULT '',
			missing_languages TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			last_search DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			target_language TEXT NOT NULL,
			subtitle_type TEXT NOT NULL,
			UNIQUE(file_path, target_language, subtitle_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wanted_status ON wanted_items(status)`,

		`CREATE TABLE IF NOT EXISTS provider_cache (
			provider_name TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			results_json TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			PRIMARY KEY (provider_name, cache_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_provider_cache_expires ON provider_cache(expires_at)`,

		`CREATE TABLE IF NOT EXISTS blacklist (
			provider_name TEXT NOT NULL,
			subtitle_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			PRIMARY KEY (provider_name, subtitle_id)
		)`,

		`CREATE TABLE IF NOT EXISTS provider_stats (
			provider_name TEXT PRIMARY KEY,
			attempts INTEGER NOT NULL DEFAULT 0,
			successes INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS daily_stats (
			stat_date TEXT NOT NULL,
			metric TEXT NOT NULL,
			value INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (stat_date, metric)
		)`,

		`CREATE TABLE IF NOT EXISTS subtitle_downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider_name TEXT NOT NULL,
			subtitle_id TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL,
			language TEXT NOT NULL,
			format TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT '',
			downloaded_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_file ON subtitle_downloads(file_path)`,

		`CREATE TABLE IF NOT EXISTS language_profiles (
			name TEXT PRIMARY KEY,
			source_language TEXT NOT NULL,
			target_language TEXT NOT NULL,
			glossary_json TEXT NOT NULL DEFAULT '[]',
			anidb_absolute_order INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS scoring_overrides (
			category TEXT NOT NULL,
			match_kind TEXT NOT NULL,
			weight INTEGER NOT NULL,
			PRIMARY KEY (category, match_kind)
		)`,
		`CREATE TABLE IF NOT EXISTS format_bonus_overrides (
			category TEXT PRIMARY KEY,
			bonus INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS provider_modifiers (
			provider_name TEXT PRIMARY KEY,
			modifier INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS config_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			value_type TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS anidb_mappings (
			tvdb_id TEXT NOT NULL,
			season INTEGER NOT NULL,
			tvdb_episode INTEGER NOT NULL,
			absolute_episode INTEGER NOT NULL,
			PRIMARY KEY (tvdb_id, season, tvdb_episode)
		)`,

		`CREATE TABLE IF NOT EXISTS hook_configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			event_name TEXT NOT NULL,
			script_path TEXT NOT NULL,
			timeout_seconds INTEGER NOT NULL DEFAULT 30,
			enabled INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS hook_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hook_id INTEGER NOT NULL,
			event_name TEXT NOT NULL,
			success INTEGER NOT NULL,
			exit_code INTEGER NOT NULL DEFAULT 0,
			stdout TEXT NOT NULL DEFAULT '',
			stderr TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			ran_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hook_logs_ran ON hook_logs(ran_at)`,

		`CREATE TABLE IF NOT EXISTS webhook_configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			event_name TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL DEFAULT 3,
			timeout_seconds INTEGER NOT NULL DEFAULT 10,
			enabled INTEGER NOT NULL DEFAULT 1,
			consecutive_failures INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			webhook_id INTEGER NOT NULL,
			event_name TEXT NOT NULL,
			success INTEGER NOT NULL,
			status_code INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			sent_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS whisper_jobs (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			phase TEXT NOT NULL DEFAULT '',
			progress REAL NOT NULL DEFAULT 0,
			backend_name TEXT NOT NULL DEFAULT '',
			detected_language TEXT NOT NULL DEFAULT '',
			language_probability REAL NOT NULL DEFAULT 0,
			srt_content TEXT NOT NULL DEFAULT '',
			segment_count INTEGER NOT NULL DEFAULT 0,
			duration_seconds REAL NOT NULL DEFAULT 0,
			processing_time_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_whisper_status ON whisper_jobs(status)`,

		`CREATE TABLE IF NOT EXISTS media_server_config (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			base_url TEXT NOT NULL,
			token TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}
