package store

import "time"

// SubtitleDownload is one row of the download-history table.
type SubtitleDownload struct {
	ProviderName string
	SubtitleID   string
	FilePath     string
	Language     string
	Format       string
	Score        int
	Source       string
	DownloadedAt time.Time
}

// RecordDownload inserts one subtitle_downloads row.
func (s *Store) RecordDownload(d SubtitleDownload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO subtitle_downloads (provider_name, subtitle_id, file_path, language, format, score, source, downloaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ProviderName, d.SubtitleID, d.FilePath, d.Language, d.Format, d.Score, d.Source, d.DownloadedAt,
	)
	return err
}

// IncrDailyStat idempotently upserts a daily counter, keyed by today's
// date and a metric name ("translated", "downloaded", "failed", ...).
func (s *Store) IncrDailyStat(date, metric string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO daily_stats (stat_date, metric, value) VALUES (?, ?, ?)
		 ON CONFLICT(stat_date, metric) DO UPDATE SET value = value + excluded.value`,
		date, metric, delta,
	)
	return err
}

// DailyStat returns a single counter's current value.
func (s *Store) DailyStat(date, metric string) (int, error) {
	var v int
	err := s.db.QueryRow(`SELECT value FROM daily_stats WHERE stat_date = ? AND metric = ?`, date, metric).Scan(&v)
	if err != nil {
		return 0, nil
	}
	return v, nil
}
