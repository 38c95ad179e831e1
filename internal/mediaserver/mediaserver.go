// Package mediaserver fans a refresh out to every enabled,
// circuit-closed media-player backend, distinguishing itself from the
// translation-backend manager by never stopping at the first success.
package mediaserver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/breaker"
)

// ItemType names what is being refreshed, so a backend that cannot locate
// an item by path can fall back to a library-wide refresh appropriately.
type ItemType string

const (
	ItemEpisode ItemType = "episode"
	ItemMovie   ItemType = "movie"
)

// Backend is the contract every media-server client implements.
type Backend interface {
	Name() string
	HealthCheck(ctx context.Context) (bool, string)
	RefreshItem(ctx context.Context, filePath string, itemType ItemType) error
	RefreshLibrary(ctx context.Context) error
}

// Result is one backend's outcome from a RefreshAll call.
type Result struct {
	Backend string
	Success bool
	Error   string
}

// instance pairs a backend with its enabled flag; its breaker lives in the
// manager's registry, keyed by backend name.
type instance struct {
	backend Backend
	enabled bool
}

// Manager holds N backend instances, each with its own circuit breaker
// and enabled flag, loaded from configuration.
type Manager struct {
	breakers  *breaker.Registry
	instances []instance
	log       zerolog.Logger
}

// NewManager builds an empty manager; instances are added, in order, with
// Register.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		breakers: breaker.NewRegistry(5, 30*time.Second, log.With().Str("component", "mediaserver").Logger()),
		log:      log.With().Str("component", "mediaserver_manager").Logger(),
	}
}

// Register adds one configured media-server instance.
func (m *Manager) Register(b Backend, enabled bool) {
	m.instances = append(m.instances, instance{backend: b, enabled: enabled})
}

// RefreshAll notifies every enabled, circuit-closed instance exactly
// once. It does not stop at the first success, and it returns one Result
// per notified instance regardless of individual failures.
func (m *Manager) RefreshAll(ctx context.Context, filePath string, itemType ItemType) []Result {
	var results []Result

	for _, inst := range m.instances {
		if !inst.enabled {
			continue
		}
		name := inst.backend.Name()
		br := m.breakers.Get(name)
		if !br.AllowRequest() {
			m.log.Debug().Str("server", name).Msg("circuit open, skipping refresh")
			continue
		}

		err := inst.backend.RefreshItem(ctx, filePath, itemType)
		if err != nil {
			// A failed item refresh is retried as a library-wide refresh;
			// only a failure of that fallback counts against the breaker.
			err = inst.backend.RefreshLibrary(ctx)
		}

		if err != nil {
			br.RecordFailure()
			results = append(results, Result{Backend: name, Success: false, Error: err.Error()})
			continue
		}
		br.RecordSuccess()
		results = append(results, Result{Backend: name, Success: true})
	}
	return results
}

// HealthCheck reports every registered instance's reachability.
func (m *Manager) HealthCheck(ctx context.Context) map[string]string {
	out := make(map[string]string, len(m.instances))
	for _, inst := range m.instances {
		ok, msg := inst.backend.HealthCheck(ctx)
		if ok {
			out[inst.backend.Name()] = "OK"
			continue
		}
		out[inst.backend.Name()] = fmt.Sprintf("unhealthy: %s", msg)
	}
	return out
}
