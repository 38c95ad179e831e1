// Package breaker provides a tri-state circuit breaker: one gate per named
// collaborator (a subtitle provider, a translation backend, a media-server
// instance), opened after N consecutive failures, lazily probed for
// recovery after a cooldown window.
//
// Built on github.com/sony/gobreaker/v2 with ReadyToTrip keyed on
// ConsecutiveFailures rather than a failure ratio: a collaborator that
// fails every call in a row is down, however many calls it served before.
package breaker

import (
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/rs/zerolog"
)

// State is the breaker's externally visible state, so callers never need
// to import gobreaker themselves.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen is the error value for an open circuit (or a taken half-open
// trial slot). Breaker methods do not return it: AllowRequest reports the
// same condition as false.
var ErrOpen = errors.New("breaker: circuit open")

// Snapshot is a point-in-time status read.
type Snapshot struct {
	Name                string
	State               State
	ConsecutiveFailures int
	Threshold           int
	Cooldown            time.Duration
}

// Breaker gates calls to one named collaborator.
type Breaker struct {
	mu        sync.Mutex
	name      string
	threshold int
	cooldown  time.Duration
	log       zerolog.Logger
	cb        *gobreaker.TwoStepCircuitBreaker[any]
	pending   []func(bool)
}

// New creates a breaker for a named collaborator. threshold is the
// consecutive-failure count that trips it open; cooldown is the wall-clock
// window an OPEN breaker waits before becoming eligible for a HALF_OPEN probe.
func New(name string, threshold int, cooldown time.Duration, log zerolog.Logger) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		log:       log.With().Str("breaker", name).Logger(),
	}
	b.cb = b.newGoBreaker()
	return b
}

func (b *Breaker) newGoBreaker() *gobreaker.TwoStepCircuitBreaker[any] {
	return gobreaker.NewTwoStepCircuitBreaker[any](gobreaker.Settings{
		Name: b.name,
		// Never clear counts on a timer while closed: only consecutive
		// failures matter, and gobreaker already zeroes those on any success.
		Interval:    0,
		Timeout:     b.cooldown,
		MaxRequests: 1, // exactly one HALF_OPEN trial at a time
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= b.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Info().Str("from", goStateString(from)).Str("to", goStateString(to)).Msg("circuit breaker state change")
		},
	})
}

// AllowRequest reports whether a call to the collaborator may proceed right
// now. A call to AllowRequest that returns true MUST be paired with exactly
// one subsequent RecordSuccess or RecordFailure call.
func (b *Breaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	done, err := b.cb.Allow()
	if err != nil {
		return false
	}
	b.pending = append(b.pending, done)
	return true
}

// Allows reports whether the breaker would admit a request right now,
// without reserving a probe slot. Reading the state performs the lazy
// OPEN -> HALF_OPEN transition, so an open breaker past its cooldown
// answers true here. Callers that go on to issue the request must still
// pair AllowRequest with a RecordSuccess or RecordFailure.
func (b *Breaker) Allows() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cb.State() != gobreaker.StateOpen
}

// RecordSuccess completes the oldest outstanding AllowRequest as a success.
func (b *Breaker) RecordSuccess() {
	b.complete(true)
}

// RecordFailure completes the oldest outstanding AllowRequest as a failure.
func (b *Breaker) RecordFailure() {
	b.complete(false)
}

func (b *Breaker) complete(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return
	}
	done := b.pending[0]
	b.pending = b.pending[1:]
	done(success)
}

// Reset forces the breaker back to CLOSED with a zeroed failure counter,
// for administrative use (e.g. an operator clears a stuck provider).
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = nil
	b.cb = b.newGoBreaker()
}

// Status returns a point-in-time snapshot. Reading State() on the
// underlying breaker may itself perform the lazy OPEN -> HALF_OPEN
// transition once the cooldown has elapsed.
func (b *Breaker) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := b.cb.Counts()
	return Snapshot{
		Name:                b.name,
		State:               fromGoState(b.cb.State()),
		ConsecutiveFailures: int(counts.ConsecutiveFailures),
		Threshold:           b.threshold,
		Cooldown:            b.cooldown,
	}
}

func fromGoState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func goStateString(s gobreaker.State) string {
	return string(fromGoState(s))
}

// Registry keeps one breaker per named collaborator, built lazily.
type Registry struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	log       zerolog.Logger
	breakers  map[string]*Breaker
}

// NewRegistry creates a registry sharing one threshold/cooldown pair across
// every collaborator it names (per-call overrides are unusual in this
// engine; each manager constructs its own registry with the setting that
// applies to its own collaborators).
func NewRegistry(threshold int, cooldown time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		threshold: threshold,
		cooldown:  cooldown,
		log:       log,
		breakers:  make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, r.threshold, r.cooldown, r.log)
	r.breakers[name] = b
	return b
}

// Snapshot returns a status read for every breaker currently registered.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	names := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		names = append(names, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(names))
	for _, b := range names {
		out = append(out, b.Status())
	}
	return out
}
