package events

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.OpenForTest(filepath.Join(dir, "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBusEmitRunsSubscribersSynchronously(t *testing.T) {
	bus := New(zerolog.Nop())

	var received string
	bus.Subscribe(func(name string, payload map[string]any) {
		received = name
	})
	bus.Emit("config_update", nil)

	if received != "config_update" {
		t.Fatalf("subscriber did not run synchronously, got %q", received)
	}
}

func TestBusEmitRecoversPanickingSubscriber(t *testing.T) {
	bus := New(zerolog.Nop())
	bus.Subscribe(func(string, map[string]any) { panic("boom") })

	var ran bool
	bus.Subscribe(func(string, map[string]any) { ran = true })

	bus.Emit("config_update", nil)
	if !ran {
		t.Fatal("a panicking subscriber should not prevent later subscribers from running")
	}
}

func TestHookEngineRunsScriptAndLogsExecution(t *testing.T) {
	st := testStore(t)

	script := filepath.Join(t.TempDir(), "hook.sh")
	os.WriteFile(script, []byte("#!/bin/sh\necho \"$SUBLARR_EVENT:$SUBLARR_FILE_PATH\"\n"), 0o755)

	if err := st.UpsertHookConfig(store.HookConfig{
		Name: "test-hook", EventName: "download_complete", ScriptPath: script,
		TimeoutSeconds: 5, Enabled: true,
	}); err != nil {
		t.Fatalf("insert hook config: %v", err)
	}

	bus := New(zerolog.Nop())
	engine := NewHookEngine(st, bus, 2, zerolog.Nop())
	bus.AddDispatcher(engine)

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(func(name string, payload map[string]any) {
		if name == "hook_executed" {
			wg.Done()
		}
	})

	bus.Emit("download_complete", map[string]any{"file_path": "/media/ep1.mkv"})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("hook_executed was not emitted in time")
	}

	hooks, err := st.HooksForEvent("download_complete")
	if err != nil {
		t.Fatalf("query hooks: %v", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("expected one registered hook, got %d", len(hooks))
	}

	pruned, err := st.PruneHookLogs(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune hook logs: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected exactly one hook_logs row to have been written, got %d", pruned)
	}
}

func TestHookEngineNeverDispatchesHookExecuted(t *testing.T) {
	if eligibleForHooks("hook_executed") {
		t.Fatal("hook_executed must be excluded from the hook-triggering event set")
	}
}

func TestWebhookDispatcherSignsBodyAndRetriesOn500(t *testing.T) {
	st := testStore(t)

	var attempts int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		sig := r.Header.Get("X-Sublarr-Signature")
		if sig == "" {
			t.Error("expected an HMAC signature header")
		}
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := st.UpsertWebhookConfig(store.WebhookConfig{
		Name: "test-webhook", EventName: "*", URL: srv.URL, Secret: "shh",
		RetryCount: 3, TimeoutSeconds: 5, Enabled: true,
	}); err != nil {
		t.Fatalf("insert webhook config: %v", err)
	}

	d := NewWebhookDispatcher(st, zerolog.Nop())
	d.Dispatch("download_complete", map[string]any{"file_path": "/media/ep1.mkv"})

	mu.Lock()
	got := attempts
	mu.Unlock()
	if got < 2 {
		t.Fatalf("expected at least 2 attempts (one retry after 500), got %d", got)
	}
}
