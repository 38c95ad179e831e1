package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Subscriber receives a synchronous callback for every matching event.
type Subscriber func(name string, payload map[string]any)

// Dispatcher is the narrow contract an async delivery engine (hooks,
// webhooks) implements, so Bus.Emit can fan out to both without importing
// their concrete types.
type Dispatcher interface {
	Dispatch(name string, payload map[string]any)
}

// Bus is the process-wide event bus: Emit runs every synchronous
// subscriber immediately, then hands the event to each registered async
// Dispatcher on its own goroutine, so neither dispatch engine can block
// event producers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	dispatchers []Dispatcher
	log         zerolog.Logger
}

// New builds an empty Bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{log: log.With().Str("component", "event_bus").Logger()}
}

// Subscribe registers a synchronous in-process callback.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// AddDispatcher registers an async delivery engine (a HookEngine or a
// WebhookDispatcher).
func (b *Bus) AddDispatcher(d Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatchers = append(b.dispatchers, d)
}

// Emit dispatches name/payload to every synchronous subscriber inline,
// then to every async Dispatcher on its own goroutine. Emit never blocks
// on a slow subscriber beyond the synchronous pass, and a panicking
// subscriber is recovered so one bad listener cannot take the emitter
// down with it.
func (b *Bus) Emit(name string, payload map[string]any) {
	if _, known := Catalog[name]; !known {
		b.log.Warn().Str("event", name).Msg("emitting event outside the closed catalog")
	}

	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers...)
	dispatchers := append([]Dispatcher(nil), b.dispatchers...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.safeNotify(s, name, payload)
	}

	for _, d := range dispatchers {
		go d.Dispatch(name, payload)
	}

	// hook_executed is a meta-event emitted by the hook engine itself
	// after a successful run; it is deliberately never re-routed back
	// through the hook dispatcher (see eligibleForHooks).
}

func (b *Bus) safeNotify(s Subscriber, name string, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("event", name).Interface("panic", r).Msg("event subscriber panicked")
		}
	}()
	s(name, payload)
}
