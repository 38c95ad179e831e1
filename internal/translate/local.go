package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sublarr/sublarr/internal/httpclient"
)

// LocalBackend calls a single-completion local LLM server (Ollama,
// LM Studio) over its /api/generate-style endpoint.
type LocalBackend struct {
	endpoint    string
	model       string
	temperature float64
	maxBatch    int
	client      *http.Client
}

// NewLocalBackend builds a local-LLM backend. maxBatch defaults to 25
// (the original's Ollama batch ceiling) when <= 0.
func NewLocalBackend(endpoint, model string, temperature float64, maxBatch int) *LocalBackend {
	if maxBatch <= 0 {
		maxBatch = 25
	}
	opts := httpclient.DefaultOptions()
	opts.MaxRetries = 2
	opts.Timeout = 90 * time.Second
	return &LocalBackend{
		endpoint:    endpoint,
		model:       model,
		temperature: temperature,
		maxBatch:    maxBatch,
		client:      httpclient.New(opts).StandardClient(),
	}
}

func (l *LocalBackend) Name() string           { return "local" }
func (l *LocalBackend) MaxBatchSize() int      { return l.maxBatch }
func (l *LocalBackend) SupportsGlossary() bool { return true }

type localGenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options options `json:"options"`
}

type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (l *LocalBackend) TranslateBatch(ctx context.Context, lines []string, sourceLang, targetLang string, glossary []GlossaryEntry) (Result, error) {
	start := time.Now()
	if len(lines) == 0 {
		return Result{Success: true, BackendName: l.Name()}, nil
	}

	prompt := BuildPrompt(lines, sourceLang, targetLang, glossary)
	text, err := l.call(ctx, prompt)
	if err != nil {
		return Result{BackendName: l.Name(), Error: err.Error()}, err
	}

	parsed, ok := ParseResponse(text, len(lines))
	if !ok {
		return Result{BackendName: l.Name(), Error: "line count mismatch"}, nil
	}

	return Result{
		Lines:          parsed,
		BackendName:    l.Name(),
		ElapsedMS:      float64(time.Since(start).Milliseconds()),
		CharactersUsed: charCount(lines),
		Success:        true,
	}, nil
}

func (l *LocalBackend) call(ctx context.Context, prompt string) (string, error) {
	reqBody := localGenerateRequest{
		Model:  l.model,
		Prompt: prompt,
		Stream: false,
		Options: options{
			Temperature: l.temperature,
			NumPredict:  4096,
		},
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("translate: marshal local request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+"/api/generate", bytes.NewReader(reqJSON))
	if err != nil {
		return "", fmt.Errorf("translate: build local request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", &ProviderError{Backend: l.Name(), Code: "network_error", Message: err.Error(), Retry: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &ProviderError{Backend: l.Name(), Code: "rate_limit", Message: "rate limited", Retry: true}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("translate: read local response: %w", err)
	}

	var parsed localGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("translate: local returned invalid JSON: %w", err)
	}
	if parsed.Error != "" {
		return "", &ProviderError{Backend: l.Name(), Code: "inference_error", Message: parsed.Error}
	}
	return parsed.Response, nil
}

func (l *LocalBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("translate: local health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("translate: local backend returned status %d", resp.StatusCode)
	}
	return nil
}

func charCount(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l)
	}
	return n
}
