package mediaserver

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/store"
)

// BuildManager constructs a Manager from the persisted media-server
// instances, dispatching each row to a concrete Backend by its Kind. An
// unknown kind is skipped with a logged warning rather than failing
// startup — one misconfigured instance should not block refreshes to the
// others.
func BuildManager(entries []store.MediaServerConfig, log zerolog.Logger) *Manager {
	m := NewManager(log)
	for _, e := range entries {
		b, err := buildOne(e)
		if err != nil {
			log.Warn().Str("server", e.Name).Err(err).Msg("skipping media server instance")
			continue
		}
		m.Register(b, e.Enabled)
	}
	return m
}

func buildOne(e store.MediaServerConfig) (Backend, error) {
	switch e.Kind {
	case "jellyfin":
		return NewJellyfin(e.Name, e.BaseURL, e.Token), nil
	case "plex":
		return NewPlex(e.Name, e.BaseURL, e.Token), nil
	default:
		return nil, fmt.Errorf("unknown media server kind %q", e.Kind)
	}
}
