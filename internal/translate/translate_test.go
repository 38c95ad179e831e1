package translate

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/config"
)

func TestBuildPromptIncludesGlossaryAndNumbering(t *testing.T) {
	prompt := BuildPrompt([]string{"hello", "world"}, "en", "de", []GlossaryEntry{{SourceTerm: "foo", TargetTerm: "bar"}})
	if !containsAll(prompt, "glossary: foo → bar", "1. hello", "2. world") {
		t.Fatalf("prompt missing expected parts: %s", prompt)
	}
}

func TestBuildPromptCapsGlossaryAt15(t *testing.T) {
	var g []GlossaryEntry
	for i := 0; i < 20; i++ {
		g = append(g, GlossaryEntry{SourceTerm: "a", TargetTerm: "b"})
	}
	prompt := BuildPrompt([]string{"x"}, "en", "de", g)
	if count := countOccurrences(prompt, "a → b"); count != 15 {
		t.Fatalf("expected glossary capped at 15 entries, got %d", count)
	}
}

func TestParseResponseBasic(t *testing.T) {
	resp := "1. Hallo\n2. Welt"
	lines, ok := ParseResponse(resp, 2)
	if !ok {
		t.Fatal("expected parse success")
	}
	if lines[0] != "Hallo" || lines[1] != "Welt" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestParseResponseColonPrefix(t *testing.T) {
	resp := "1: Hallo\n2: Welt"
	lines, ok := ParseResponse(resp, 2)
	if !ok || lines[0] != "Hallo" || lines[1] != "Welt" {
		t.Fatalf("unexpected result: %v, ok=%v", lines, ok)
	}
}

func TestParseResponseMergesWrappedLines(t *testing.T) {
	resp := "1. Hallo\nund weiter\n2. Welt"
	lines, ok := ParseResponse(resp, 2)
	if !ok {
		t.Fatal("expected merge-based parse success")
	}
	if lines[0] != "Hallo\nund weiter" {
		t.Fatalf("expected merged wrapped line, got %q", lines[0])
	}
}

func TestParseResponseMismatchFails(t *testing.T) {
	resp := "1. Hallo"
	if _, ok := ParseResponse(resp, 2); ok {
		t.Fatal("expected mismatch to fail")
	}
}

func TestHasCJKHallucination(t *testing.T) {
	if !HasCJKHallucination("你好") {
		t.Error("expected Chinese text to be detected")
	}
	if HasCJKHallucination("Hallo Welt") {
		t.Error("expected plain German text to not be detected")
	}
}

// stubBackend is a minimal in-memory Backend for manager tests.
type stubBackend struct {
	name       string
	maxBatch   int
	fail       map[string]bool // line text -> force failure
	translator func(line string) string
}

func (s *stubBackend) Name() string           { return s.name }
func (s *stubBackend) MaxBatchSize() int      { return s.maxBatch }
func (s *stubBackend) SupportsGlossary() bool { return true }
func (s *stubBackend) HealthCheck(ctx context.Context) error { return nil }

func (s *stubBackend) TranslateBatch(ctx context.Context, lines []string, sourceLang, targetLang string, glossary []GlossaryEntry) (Result, error) {
	for _, l := range lines {
		if s.fail[l] {
			return Result{BackendName: s.name, Error: "forced failure"}, nil
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = s.translator(l)
	}
	return Result{Lines: out, BackendName: s.name, Success: true}, nil
}

func TestManagerTranslateAllSuccess(t *testing.T) {
	cfg := config.Default()
	cfg.Backends.Active = "local"
	cfg.Backends.MaxRetries = 1

	m := NewManager(cfg, zerolog.Nop())
	m.cached["local"] = &stubBackend{
		name:     "local",
		maxBatch: 10,
		fail:     map[string]bool{},
		translator: func(l string) string { return "translated:" + l },
	}

	res, err := m.Translate(context.Background(), []string{"a", "b"}, "en", "de", nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !res.Success || res.Degraded {
		t.Fatalf("expected clean success, got %+v", res)
	}
	if res.Lines[0] != "translated:a" || res.Lines[1] != "translated:b" {
		t.Fatalf("unexpected lines: %v", res.Lines)
	}
}

func TestManagerTranslateFallsBackPerLine(t *testing.T) {
	cfg := config.Default()
	cfg.Backends.Active = "local"
	cfg.Backends.MaxRetries = 1

	m := NewManager(cfg, zerolog.Nop())
	m.cached["local"] = &stubBackend{
		name:       "local",
		maxBatch:   10,
		fail:       map[string]bool{"bad": true},
		translator: func(l string) string { return "translated:" + l },
	}

	res, err := m.Translate(context.Background(), []string{"a", "bad", "c"}, "en", "de", nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success (only 1/3 lines degraded), got %+v", res)
	}
	if !res.Degraded {
		t.Fatal("expected degraded flag to be set")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func countOccurrences(s, sub string) int {
	return strings.Count(s, sub)
}
