// Package translate implements the translation-backend manager: an
// active-backend selection with per-backend circuit breakers, batch
// chunking, a CJK-hallucination retry guard, and per-line fallback with
// a degraded-success threshold.
package translate

import (
	"context"
	"fmt"
)

// GlossaryEntry is one glossary pair a language profile supplies to
// steer consistent terminology (capped at 15 entries upstream).
type GlossaryEntry struct {
	SourceTerm string
	TargetTerm string
}

// Result is the outcome of a translate_batch call, in the same line order
// as the input.
type Result struct {
	Lines          []string
	BackendName    string
	ElapsedMS      float64
	CharactersUsed int
	Success        bool
	Degraded       bool
	Error          string
}

// Backend is the contract every translation backend implements.
type Backend interface {
	Name() string
	MaxBatchSize() int
	SupportsGlossary() bool
	TranslateBatch(ctx context.Context, lines []string, sourceLang, targetLang string, glossary []GlossaryEntry) (Result, error)
	HealthCheck(ctx context.Context) error
}

// ProviderError is a typed backend failure a caller can classify
// without string matching.
type ProviderError struct {
	Backend string
	Code    string
	Message string
	Retry   bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Backend, e.Code, e.Message)
}
