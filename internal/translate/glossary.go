package translate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sublarr/sublarr/internal/httpclient"
)

// deeplLangMap maps ISO 639-1 codes to DeepL's (mostly uppercase, a few
// regional) language codes.
var deeplLangMap = map[string]string{
	"en": "EN", "de": "DE", "fr": "FR", "es": "ES", "it": "IT", "ja": "JA",
	"zh": "ZH", "ko": "KO", "pt": "PT-BR", "ru": "RU", "pl": "PL", "nl": "NL",
	"sv": "SV", "da": "DA", "fi": "FI", "cs": "CS", "hu": "HU", "tr": "TR",
	"el": "EL", "ro": "RO", "bg": "BG", "sk": "SK", "sl": "SL", "lt": "LT",
	"lv": "LV", "et": "ET", "id": "ID", "uk": "UK", "nb": "NB", "ar": "AR",
}

func toDeepLLang(iso string) string {
	if v, ok := deeplLangMap[strings.ToLower(iso)]; ok {
		return v
	}
	return strings.ToUpper(iso)
}

// GlossaryBackend is a glossary-native translation service backend (the
// DeepL REST API is the concrete instance the original ships). It creates
// and caches remote glossary objects keyed by (source, target,
// content-hash) so repeated translations of the same series reuse the
// glossary instead of re-uploading it every batch.
type GlossaryBackend struct {
	apiKey   string
	baseURL  string
	maxBatch int
	client   *http.Client

	mu        sync.Mutex
	glossary  map[string]string // cache key -> remote glossary id
}

// NewGlossaryBackend builds a DeepL-REST-backed glossary-native backend.
// baseURL distinguishes Free ("https://api-free.deepl.com/v2") from Pro
// ("https://api.deepl.com/v2") accounts.
func NewGlossaryBackend(apiKey, baseURL string) *GlossaryBackend {
	if baseURL == "" {
		baseURL = "https://api-free.deepl.com/v2"
	}
	opts := httpclient.DefaultOptions()
	opts.MaxRetries = 2
	opts.Timeout = 30 * time.Second
	return &GlossaryBackend{
		apiKey:   apiKey,
		baseURL:  baseURL,
		maxBatch: 50,
		client:   httpclient.New(opts).StandardClient(),
		glossary: make(map[string]string),
	}
}

func (g *GlossaryBackend) Name() string           { return "deepl" }
func (g *GlossaryBackend) MaxBatchSize() int      { return g.maxBatch }
func (g *GlossaryBackend) SupportsGlossary() bool { return true }

// glossaryCacheKey reproduces the original's cache key exactly: sort
// entries by source term, JSON-encode, sha256, first 16 hex characters.
func glossaryCacheKey(sourceLang, targetLang string, entries []GlossaryEntry) string {
	sorted := make([]GlossaryEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SourceTerm < sorted[j].SourceTerm })

	type pair struct {
		SourceTerm string `json:"source_term"`
		TargetTerm string `json:"target_term"`
	}
	pairs := make([]pair, len(sorted))
	for i, e := range sorted {
		pairs[i] = pair{SourceTerm: e.SourceTerm, TargetTerm: e.TargetTerm}
	}
	encoded, _ := json.Marshal(pairs)
	sum := sha256.Sum256(encoded)
	hash := hex.EncodeToString(sum[:])[:16]

	return sourceLang + "|" + targetLang + "|" + hash
}

type deeplGlossaryResponse struct {
	GlossaryID string `json:"glossary_id"`
}

func (g *GlossaryBackend) getOrCreateGlossary(ctx context.Context, sourceLang, targetLang string, entries []GlossaryEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	key := glossaryCacheKey(sourceLang, targetLang, entries)

	g.mu.Lock()
	if id, ok := g.glossary[key]; ok {
		g.mu.Unlock()
		return id, nil
	}
	g.mu.Unlock()

	entriesTSV := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.SourceTerm == "" || e.TargetTerm == "" {
			continue
		}
		entriesTSV = append(entriesTSV, e.SourceTerm+"\t"+e.TargetTerm)
	}
	if len(entriesTSV) == 0 {
		return "", nil
	}

	reqBody := map[string]any{
		"name":              fmt.Sprintf("sublarr_%s_%s", sourceLang, targetLang),
		"source_lang":       sourceLang,
		"target_lang":       targetLang,
		"entries":           strings.Join(entriesTSV, "\n"),
		"entries_format":    "tsv",
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("translate: marshal glossary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/glossaries", bytes.NewReader(reqJSON))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &ProviderError{Backend: g.Name(), Code: "network_error", Message: err.Error(), Retry: true}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", nil // glossary creation is best-effort; translation proceeds without it
	}

	var parsed deeplGlossaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", nil
	}

	g.mu.Lock()
	g.glossary[key] = parsed.GlossaryID
	g.mu.Unlock()

	return parsed.GlossaryID, nil
}

type deeplTranslateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

func (g *GlossaryBackend) TranslateBatch(ctx context.Context, lines []string, sourceLang, targetLang string, glossary []GlossaryEntry) (Result, error) {
	start := time.Now()
	if len(lines) == 0 {
		return Result{Success: true, BackendName: g.Name()}, nil
	}

	source := toDeepLLang(sourceLang)
	target := toDeepLLang(targetLang)

	glossaryID, _ := g.getOrCreateGlossary(ctx, source, target, glossary)

	form := url.Values{}
	for _, l := range lines {
		form.Add("text", l)
	}
	form.Set("source_lang", source)
	form.Set("target_lang", target)
	if glossaryID != "" {
		form.Set("glossary_id", glossaryID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return Result{BackendName: g.Name()}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{BackendName: g.Name()}, &ProviderError{Backend: g.Name(), Code: "network_error", Message: err.Error(), Retry: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{BackendName: g.Name()}, &ProviderError{Backend: g.Name(), Code: "rate_limit", Message: "DeepL rate limited", Retry: true}
	}
	if resp.StatusCode == http.StatusForbidden {
		return Result{BackendName: g.Name()}, &ProviderError{Backend: g.Name(), Code: "invalid_key", Message: "DeepL authorization failed"}
	}
	if resp.StatusCode >= 300 {
		return Result{BackendName: g.Name(), Error: fmt.Sprintf("DeepL returned status %d", resp.StatusCode)}, nil
	}

	var parsed deeplTranslateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{BackendName: g.Name()}, fmt.Errorf("translate: deepl returned invalid JSON: %w", err)
	}
	if len(parsed.Translations) != len(lines) {
		return Result{BackendName: g.Name(), Error: "line count mismatch"}, nil
	}

	translated := make([]string, len(parsed.Translations))
	for i, t := range parsed.Translations {
		translated[i] = t.Text
	}

	return Result{
		Lines:          translated,
		BackendName:    g.Name(),
		ElapsedMS:      float64(time.Since(start).Milliseconds()),
		CharactersUsed: charCount(lines),
		Success:        true,
	}, nil
}

func (g *GlossaryBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/usage", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("translate: deepl health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("translate: deepl backend returned status %d", resp.StatusCode)
	}
	return nil
}
