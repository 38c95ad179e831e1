package translate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/breaker"
	"github.com/sublarr/sublarr/internal/config"
)

// Manager keeps exactly one active translation backend (chosen by
// Backends.Active; the store's config_entries rows are not read), gated by a
// per-backend circuit breaker, and implements the chunk/retry/fallback
// algorithm. Backend instances are built lazily from namespaced config
// fields and cached until a config-update invalidates them.
type Manager struct {
	mu       sync.Mutex
	cfg      *config.Config
	breakers *breaker.Registry
	log      zerolog.Logger
	cached   map[string]Backend
}

// NewManager builds a manager over cfg, sharing one circuit-breaker
// registry across every backend it constructs (5-consecutive-failure trip,
// 30s cooldown, the same defaults the provider manager uses).
func NewManager(cfg *config.Config, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		breakers: breaker.NewRegistry(5, 30*time.Second, log.With().Str("component", "translate").Logger()),
		log:      log.With().Str("component", "translate").Logger(),
		cached:   make(map[string]Backend),
	}
}

// InvalidateCache drops every lazily-built backend instance, so the next
// call to Translate rebuilds from the latest config (wired to the
// config-update broadcast).
func (m *Manager) InvalidateCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = make(map[string]Backend)
}

func (m *Manager) backendFor(name string) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.cached[name]; ok {
		return b, nil
	}

	fields := m.cfg.BackendFields(name)
	var b Backend
	switch name {
	case "local":
		temp := parseFloatField(fields, "temperature", 0.3)
		b = NewLocalBackend(fields["endpoint"], fields["model"], temp, 0)
	case "openai_compat", "openai":
		temp := parseFloatField(fields, "temperature", 0.3)
		b = NewOpenAIBackend(fields["api_key"], fields["base_url"], fields["model"], temp, 0)
	case "deepl":
		b = NewGlossaryBackend(fields["api_key"], fields["base_url"])
	default:
		return nil, fmt.Errorf("translate: unsupported backend %q", name)
	}

	m.cached[name] = b
	return b, nil
}

func parseFloatField(fields map[string]string, key string, def float64) float64 {
	v, ok := fields[key]
	if !ok {
		return def
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
		return def
	}
	return f
}

// Translate runs the full pipeline over lines: chunk by the active
// backend's max batch size, retry each chunk with exponential backoff on
// failure or hallucination, fall back to per-line translation after
// exhausting retries, and concatenate chunk outputs in order.
func (m *Manager) Translate(ctx context.Context, lines []string, sourceLang, targetLang string, glossary []GlossaryEntry) (Result, error) {
	if len(glossary) > 15 {
		glossary = glossary[:15]
	}

	backendName := m.cfg.Backends.Active
	b, err := m.backendFor(backendName)
	if err != nil {
		return Result{}, err
	}

	br := m.breakers.Get(backendName)
	maxRetries := m.cfg.Backends.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	guardHallucination := m.cfg.Backends.HallucinationGuard

	chunks := chunkLines(lines, b.MaxBatchSize())
	var (
		out            []string
		degradedLines  int
		totalChars     int
		totalElapsedMS float64
	)

	for _, chunk := range chunks {
		res, err := m.translateChunkWithRetry(ctx, b, br, chunk, sourceLang, targetLang, glossary, maxRetries, guardHallucination)
		totalElapsedMS += res.ElapsedMS
		totalChars += res.CharactersUsed

		if res.Success {
			out = append(out, res.Lines...)
			continue
		}

		fallback := m.translateSingles(ctx, b, br, chunk, sourceLang, targetLang, glossary, maxRetries, guardHallucination)
		out = append(out, fallback.lines...)
		degradedLines += fallback.degradedCount
		totalChars += fallback.charsUsed

		if err != nil {
			m.log.Warn().Err(err).Str("backend", backendName).Msg("chunk translation failed, used per-line fallback")
		}
	}

	degraded := degradedLines > 0
	success := true
	if len(lines) > 0 && float64(degradedLines)/float64(len(lines)) > 0.5 {
		success = false
	}

	return Result{
		Lines:          out,
		BackendName:    backendName,
		ElapsedMS:      totalElapsedMS,
		CharactersUsed: totalChars,
		Success:        success,
		Degraded:       degraded,
	}, nil
}

func (m *Manager) translateChunkWithRetry(ctx context.Context, b Backend, br *breaker.Breaker, lines []string, sourceLang, targetLang string, glossary []GlossaryEntry, maxRetries int, guardHallucination bool) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if !br.AllowRequest() {
			return Result{BackendName: b.Name()}, fmt.Errorf("translate: backend %q circuit open", b.Name())
		}

		res, err := b.TranslateBatch(ctx, lines, sourceLang, targetLang, glossary)
		if err != nil || !res.Success {
			br.RecordFailure()
			lastErr = err
		} else if guardHallucination && !IsCJKTarget(targetLang) && anyHallucinated(res.Lines) {
			br.RecordFailure()
			lastErr = fmt.Errorf("translate: hallucination guard tripped")
		} else {
			br.RecordSuccess()
			return res, nil
		}

		if attempt < maxRetries {
			sleepBackoff(ctx, attempt)
		}
	}
	return Result{BackendName: b.Name()}, lastErr
}

type fallbackResult struct {
	lines         []string
	degradedCount int
	charsUsed     int
}

// translateSingles translates a chunk one line at a time as a last
// resort, keeping the original source line for any that still fail after
// retries.
func (m *Manager) translateSingles(ctx context.Context, b Backend, br *breaker.Breaker, lines []string, sourceLang, targetLang string, glossary []GlossaryEntry, maxRetries int, guardHallucination bool) fallbackResult {
	out := make([]string, len(lines))
	degraded := 0
	chars := 0

	for i, line := range lines {
		res, err := m.translateChunkWithRetry(ctx, b, br, []string{line}, sourceLang, targetLang, glossary, maxRetries, guardHallucination)
		chars += len(line)
		if err == nil && res.Success && len(res.Lines) == 1 {
			out[i] = res.Lines[0]
			continue
		}
		out[i] = line
		degraded++
	}

	return fallbackResult{lines: out, degradedCount: degraded, charsUsed: chars}
}

func anyHallucinated(lines []string) bool {
	for _, l := range lines {
		if HasCJKHallucination(l) {
			return true
		}
	}
	return false
}

func chunkLines(lines []string, size int) [][]string {
	if size <= 0 {
		size = len(lines)
	}
	var chunks [][]string
	for i := 0; i < len(lines); i += size {
		end := i + size
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, lines[i:end])
	}
	return chunks
}

func sleepBackoff(ctx context.Context, attempt int) {
	wait := time.Duration(1<<uint(attempt-1)) * time.Second
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
