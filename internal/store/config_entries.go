package store

import (
	"strconv"
	"time"
)

// ConfigEntry is a single runtime override row; its As* methods parse the
// raw value, falling back to the caller's default when the value is empty
// or malformed.
type ConfigEntry struct {
	Key       string
	Value     string
	ValueType string // "string" | "int" | "bool" | "float"
	UpdatedAt time.Time
}

// SetConfigEntry upserts one override row.
func (s *Store) SetConfigEntry(key, value, valueType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO config_entries (key, value, value_type, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, value_type = excluded.value_type, updated_at = excluded.updated_at`,
		key, value, valueType, time.Now(),
	)
	return err
}

// ConfigEntries returns every override row, keyed by name. internal/config
// does not read these rows, so they are not applied over its defaults.
func (s *Store) ConfigEntries() (map[string]ConfigEntry, error) {
	rows, err := s.db.Query(`SELECT key, value, value_type, updated_at FROM config_entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]ConfigEntry{}
	for rows.Next() {
		var e ConfigEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.ValueType, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out[e.Key] = e
	}
	return out, nil
}

// AsString/AsInt/AsBool apply a typed parser over the raw value column,
// dropping a malformed value back to the supplied default rather than
// failing the merge.
func (e ConfigEntry) AsString(def string) string {
	if e.Value == "" {
		return def
	}
	return e.Value
}

func (e ConfigEntry) AsInt(def int) int {
	v, err := strconv.Atoi(e.Value)
	if err != nil {
		return def
	}
	return v
}

func (e ConfigEntry) AsBool(def bool) bool {
	v, err := strconv.ParseBool(e.Value)
	if err != nil {
		return def
	}
	return v
}

func (e ConfigEntry) AsFloat(def float64) float64 {
	v, err := strconv.ParseFloat(e.Value, 64)
	if err != nil {
		return def
	}
	return v
}
