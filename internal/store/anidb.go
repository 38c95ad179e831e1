package store

// UpsertAniDBMapping records one (tvdb_id, season, tvdb_episode) ->
// absolute_anidb_episode row.
func (s *Store) UpsertAniDBMapping(tvdbID string, season, tvdbEpisode, absoluteEpisode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO anidb_mappings (tvdb_id, season, tvdb_episode, absolute_episode) VALUES (?, ?, ?, ?)
		 ON CONFLICT(tvdb_id, season, tvdb_episode) DO UPDATE SET absolute_episode = excluded.absolute_episode`,
		tvdbID, season, tvdbEpisode, absoluteEpisode,
	)
	return err
}

// AniDBAbsoluteEpisode looks up the absolute episode number for a
// (tvdb_id, season, tvdb_episode) triple, used to rewrite a VideoQuery's
// AbsEpisode field before certain providers are queried.
func (s *Store) AniDBAbsoluteEpisode(tvdbID string, season, tvdbEpisode int) (int, bool) {
	var abs int
	err := s.db.QueryRow(
		`SELECT absolute_episode FROM anidb_mappings WHERE tvdb_id = ? AND season = ? AND tvdb_episode = ?`,
		tvdbID, season, tvdbEpisode,
	).Scan(&abs)
	return abs, err == nil
}

// ClearAniDBMappings truncates the table before a full weekly re-import.
func (s *Store) ClearAniDBMappings() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM anidb_mappings`)
	return err
}
