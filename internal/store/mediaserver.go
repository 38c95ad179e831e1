package store

// MediaServerConfig is one entry of the media-server JSON array,
// persisted as individual rows for easier admin editing.
type MediaServerConfig struct {
	ID      int64
	Name    string
	Kind    string // "jellyfin" | "plex"
	BaseURL string
	Token   string
	Enabled bool
}

// MediaServers returns every configured media-server instance.
func (s *Store) MediaServers() ([]MediaServerConfig, error) {
	rows, err := s.db.Query(`SELECT id, name, kind, base_url, token, enabled FROM media_server_config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MediaServerConfig
	for rows.Next() {
		var m MediaServerConfig
		var enabled int
		if err := rows.Scan(&m.ID, &m.Name, &m.Kind, &m.BaseURL, &m.Token, &enabled); err != nil {
			return nil, err
		}
		m.Enabled = enabled != 0
		out = append(out, m)
	}
	return out, nil
}

// UpsertMediaServer inserts or updates a media-server instance by name.
func (s *Store) UpsertMediaServer(m MediaServerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`UPDATE media_server_config SET kind = ?, base_url = ?, token = ?, enabled = ? WHERE name = ?`,
		m.Kind, m.BaseURL, m.Token, boolToInt(m.Enabled), m.Name,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.Exec(
		`INSERT INTO media_server_config (name, kind, base_url, token, enabled) VALUES (?, ?, ?, ?, ?)`,
		m.Name, m.Kind, m.BaseURL, m.Token, boolToInt(m.Enabled),
	)
	return err
}
