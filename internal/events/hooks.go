package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/store"
)

// maxEnvValue caps SUBLARR_EVENT_DATA and every SUBLARR_<KEY> value.
const maxEnvValue = 4096

// maxCaptured is the per-stream cap on captured stdout/stderr.
const maxCaptured = 4096

// HookEngine runs configured script hooks in a bounded worker pool with a
// restricted environment. It implements Dispatcher so
// Bus.Emit can hand it events without a direct dependency the other way.
type HookEngine struct {
	store   *store.Store
	bus     *Bus
	workers chan struct{}
	log     zerolog.Logger
}

// NewHookEngine builds an engine with the given worker-pool concurrency.
func NewHookEngine(st *store.Store, bus *Bus, concurrency int, log zerolog.Logger) *HookEngine {
	if concurrency < 1 {
		concurrency = 2
	}
	return &HookEngine{
		store:   st,
		bus:     bus,
		workers: make(chan struct{}, concurrency),
		log:     log.With().Str("component", "hook_engine").Logger(),
	}
}

// Dispatch looks up every enabled hook bound to name and runs each on its
// own worker-pool slot. hook_executed is never looked up here — the
// catalog declares which events may trigger hooks (see eligibleForHooks),
// so a hook_executed emission from a prior run can never recurse back
// into this method through event routing.
func (h *HookEngine) Dispatch(name string, payload map[string]any) {
	if !eligibleForHooks(name) {
		return
	}
	hooks, err := h.store.HooksForEvent(name)
	if err != nil {
		h.log.Error().Err(err).Str("event", name).Msg("failed to load hooks for event")
		return
	}
	for _, hc := range hooks {
		h.workers <- struct{}{}
		go func(hc store.HookConfig) {
			defer func() { <-h.workers }()
			h.run(hc, name, payload)
		}(hc)
	}
}

func (h *HookEngine) run(hc store.HookConfig, eventName string, payload map[string]any) {
	timeout := time.Duration(hc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tmpHome, err := os.MkdirTemp("", "sublarr-hook-")
	if err != nil {
		h.log.Error().Err(err).Str("hook", hc.Name).Msg("failed to create hook home dir")
		return
	}
	defer os.RemoveAll(tmpHome)

	cmd := exec.CommandContext(ctx, hc.ScriptPath)
	cmd.Env = buildEnv(tmpHome, eventName, payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	duration := time.Since(started)

	exitCode := 0
	success := runErr == nil
	if !success {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if err := h.store.LogHookExecution(hc.ID, eventName, success, exitCode,
		capString(stdout.String(), maxCaptured), capString(stderr.String(), maxCaptured),
		duration.Milliseconds(), started); err != nil {
		h.log.Error().Err(err).Str("hook", hc.Name).Msg("failed to log hook execution")
	}

	h.log.Info().Str("hook", hc.Name).Str("event", eventName).Bool("success", success).
		Dur("duration", duration).Msg("hook executed")

	if h.bus != nil {
		h.bus.Emit("hook_executed", map[string]any{
			"hook_name": hc.Name, "event_name": eventName, "success": success,
		})
	}
}

// buildEnv constructs the restricted hook environment:
// PATH, HOME pointed at a scratch temp dir, SUBLARR_EVENT, SUBLARR_EVENT_DATA
// (JSON, capped), and one SUBLARR_<KEY> per payload key (capped, sorted for
// determinism).
func buildEnv(home, eventName string, payload map[string]any) []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + home,
		"SUBLARR_EVENT=" + eventName,
	}

	if data, err := json.Marshal(payload); err == nil {
		env = append(env, "SUBLARR_EVENT_DATA="+capString(string(data), maxEnvValue))
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("SUBLARR_%s=%s", strings.ToUpper(k), capString(fmt.Sprint(payload[k]), maxEnvValue)))
	}
	return env
}

func capString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
