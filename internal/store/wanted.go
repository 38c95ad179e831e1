package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sublarr/sublarr/internal/model"
)

// UpsertWanted inserts or updates a WantedItem, idempotent on
// (file_path, target_language, subtitle_type).
func (s *Store) UpsertWanted(w model.WantedItem) (int64, error) {
	missingJSON, _ := json.Marshal(w.MissingLanguages)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO wanted_items (item_type, series_id, episode_id, movie_id, title, season_episode,
			file_path, existing_sub_path, missing_languages, status, last_search, attempt_count, last_error,
			target_language, subtitle_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_path, target_language, subtitle_type) DO UPDATE SET
			item_type = excluded.item_type,
			series_id = excluded.series_id,
			episode_id = excluded.episode_id,
			movie_id = excluded.movie_id,
			title = excluded.title,
			season_episode = excluded.season_episode,
			existing_sub_path = excluded.existing_sub_path,
			missing_languages = excluded.missing_languages,
			status = CASE WHEN wanted_items.status = 'completed' THEN wanted_items.status ELSE excluded.status END`,
		string(w.Type), w.SeriesID, w.EpisodeID, w.MovieID, w.Title, w.SeasonEpisode,
		w.FilePath, w.ExistingSubPath, string(missingJSON), string(w.Status), nullTime(w.LastSearch),
		w.AttemptCount, w.LastError, w.TargetLanguage, string(w.SubtitleType),
	)
	if err != nil {
		return 0, err
	}

	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}

	var id int64
	err = s.db.QueryRow(
		`SELECT id FROM wanted_items WHERE file_path = ? AND target_language = ? AND subtitle_type = ?`,
		w.FilePath, w.TargetLanguage, string(w.SubtitleType),
	).Scan(&id)
	return id, err
}

// RecordWantedAttempt increments the attempt count and records the
// outcome of a search-loop pass for one WantedItem.
func (s *Store) RecordWantedAttempt(id int64, status model.WantedStatus, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE wanted_items SET status = ?, last_search = ?, attempt_count = attempt_count + 1, last_error = ? WHERE id = ?`,
		string(status), time.Now(), lastErr, id,
	)
	return err
}

// WantedByStatus returns up to limit items in the given status, oldest
// last_search first, for the batch search loop.
func (s *Store) WantedByStatus(status model.WantedStatus, limit int) ([]model.WantedItem, error) {
	rows, err := s.db.Query(
		`SELECT id, item_type, series_id, episode_id, movie_id, title, season_episode, file_path,
			existing_sub_path, missing_languages, status, last_search, attempt_count, last_error,
			target_language, subtitle_type
		 FROM wanted_items WHERE status = ? ORDER BY last_search ASC NULLS FIRST LIMIT ?`,
		string(status), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WantedItem
	for rows.Next() {
		w, err := scanWanted(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func scanWanted(row rowScanner) (model.WantedItem, error) {
	var w model.WantedItem
	var itemType, status, missingJSON, subType string
	var lastSearch sql.NullTime

	err := row.Scan(
		&w.ID, &itemType, &w.SeriesID, &w.EpisodeID, &w.MovieID, &w.Title, &w.SeasonEpisode,
		&w.FilePath, &w.ExistingSubPath, &missingJSON, &status, &lastSearch, &w.AttemptCount,
		&w.LastError, &w.TargetLanguage, &subType,
	)
	if err != nil {
		return model.WantedItem{}, err
	}

	w.Type = model.ItemType(itemType)
	w.Status = model.WantedStatus(status)
	w.SubtitleType = model.SubtitleType(subType)
	json.Unmarshal([]byte(missingJSON), &w.MissingLanguages)
	if lastSearch.Valid {
		w.LastSearch = lastSearch.Time
	}
	return w, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
