package breaker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// TestConsecutiveFailuresTripsOpen verifies: with threshold N, N-1 failures
// keep state CLOSED; the Nth sets OPEN.
func TestConsecutiveFailuresTripsOpen(t *testing.T) {
	b := New("test-provider", 3, 50*time.Millisecond, testLogger())

	for i := 0; i < 2; i++ {
		if !b.AllowRequest() {
			t.Fatalf("expected request %d to be allowed", i)
		}
		b.RecordFailure()
	}

	if got := b.Status().State; got != StateClosed {
		t.Fatalf("after 2 failures (threshold 3): got %s, want CLOSED", got)
	}

	if !b.AllowRequest() {
		t.Fatal("3rd request should still be allowed before it fails")
	}
	b.RecordFailure()

	if got := b.Status().State; got != StateOpen {
		t.Fatalf("after 3rd consecutive failure: got %s, want OPEN", got)
	}
}

// TestCooldownAllowsHalfOpenProbe verifies: after wall-clock >= cooldown,
// AllowRequest returns true and state reads as HALF_OPEN.
func TestCooldownAllowsHalfOpenProbe(t *testing.T) {
	b := New("test-provider", 1, 30*time.Millisecond, testLogger())

	if !b.AllowRequest() {
		t.Fatal("first request should be allowed")
	}
	b.RecordFailure()

	if got := b.Status().State; got != StateOpen {
		t.Fatalf("got %s, want OPEN", got)
	}

	if b.AllowRequest() {
		t.Fatal("requests during cooldown should be rejected")
	}

	time.Sleep(40 * time.Millisecond)

	if !b.AllowRequest() {
		t.Fatal("expected allow_request to return true after cooldown elapsed")
	}
	if got := b.Status().State; got != StateHalfOpen {
		t.Fatalf("got %s, want HALF_OPEN after cooldown", got)
	}
}

// TestHalfOpenSuccessCloses verifies HALF_OPEN -> CLOSED on first success.
func TestHalfOpenSuccessCloses(t *testing.T) {
	b := New("test-provider", 1, 20*time.Millisecond, testLogger())

	b.AllowRequest()
	b.RecordFailure() // CLOSED -> OPEN

	time.Sleep(30 * time.Millisecond)

	if !b.AllowRequest() {
		t.Fatal("expected probe to be allowed after cooldown")
	}
	b.RecordSuccess()

	if got := b.Status().State; got != StateClosed {
		t.Fatalf("got %s, want CLOSED after successful probe", got)
	}
}

// TestHalfOpenFailureReopens verifies HALF_OPEN -> OPEN on first failure,
// and that the cooldown timer restarts.
func TestHalfOpenFailureReopens(t *testing.T) {
	b := New("test-provider", 1, 20*time.Millisecond, testLogger())

	b.AllowRequest()
	b.RecordFailure()

	time.Sleep(30 * time.Millisecond)
	b.AllowRequest()
	b.RecordFailure() // HALF_OPEN -> OPEN again

	if got := b.Status().State; got != StateOpen {
		t.Fatalf("got %s, want OPEN after probe failure", got)
	}

	// immediately after, still within the new cooldown window
	if b.AllowRequest() {
		t.Fatal("expected cooldown to have restarted")
	}
}

// TestSuccessResetsConsecutiveFailures verifies any success resets the
// failure counter.
func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	b := New("test-provider", 3, time.Second, testLogger())

	b.AllowRequest()
	b.RecordFailure()
	b.AllowRequest()
	b.RecordSuccess()

	if got := b.Status().ConsecutiveFailures; got != 0 {
		t.Fatalf("got %d consecutive failures, want 0 after a success", got)
	}
	if got := b.Status().State; got != StateClosed {
		t.Fatalf("got %s, want CLOSED", got)
	}
}

// TestAllowsDoesNotConsumeProbeSlot verifies Allows is a pure read: an
// open breaker answers false, a cooled-down breaker answers true, and the
// single half-open probe slot is still free for AllowRequest afterwards.
func TestAllowsDoesNotConsumeProbeSlot(t *testing.T) {
	b := New("test-provider", 1, 30*time.Millisecond, testLogger())

	b.AllowRequest()
	b.RecordFailure()
	if b.Allows() {
		t.Fatal("expected Allows false while open")
	}

	time.Sleep(40 * time.Millisecond)
	if !b.Allows() {
		t.Fatal("expected Allows true after cooldown")
	}
	if !b.AllowRequest() {
		t.Fatal("expected the half-open probe slot to still be free after Allows")
	}
	b.RecordSuccess()
	if got := b.Status().State; got != StateClosed {
		t.Fatalf("got %s, want CLOSED after probe success", got)
	}
}

func TestRegistryReusesBreakerByName(t *testing.T) {
	r := NewRegistry(2, time.Second, testLogger())

	a := r.Get("opensubtitles")
	b := r.Get("opensubtitles")
	if a != b {
		t.Fatal("expected the same breaker instance for the same name")
	}

	other := r.Get("subdl")
	if other == a {
		t.Fatal("expected a distinct breaker instance for a distinct name")
	}
}

func TestResetClearsOpenState(t *testing.T) {
	b := New("test-provider", 1, time.Hour, testLogger())

	b.AllowRequest()
	b.RecordFailure()
	if got := b.Status().State; got != StateOpen {
		t.Fatalf("got %s, want OPEN", got)
	}

	b.Reset()

	if got := b.Status().State; got != StateClosed {
		t.Fatalf("got %s, want CLOSED after Reset", got)
	}
	if !b.AllowRequest() {
		t.Fatal("expected a request to be allowed right after Reset")
	}
}
