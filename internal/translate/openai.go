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

// OpenAIBackend calls an OpenAI-compatible chat/completions endpoint
// (OpenAI itself, Azure OpenAI, LM Studio, vLLM — anything sharing the
// wire format), with a configurable base URL.
type OpenAIBackend struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxBatch    int
	client      *http.Client
}

// NewOpenAIBackend builds an OpenAI-compatible backend. maxBatch defaults
// to 25 (the original's ceiling) when <= 0.
func NewOpenAIBackend(apiKey, baseURL, model string, temperature float64, maxBatch int) *OpenAIBackend {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if maxBatch <= 0 {
		maxBatch = 25
	}
	opts := httpclient.DefaultOptions()
	opts.MaxRetries = 2
	opts.Timeout = 120 * time.Second
	return &OpenAIBackend{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxBatch:    maxBatch,
		client:      httpclient.New(opts).StandardClient(),
	}
}

func (o *OpenAIBackend) Name() string           { return "openai_compat" }
func (o *OpenAIBackend) MaxBatchSize() int      { return o.maxBatch }
func (o *OpenAIBackend) SupportsGlossary() bool { return true }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (o *OpenAIBackend) TranslateBatch(ctx context.Context, lines []string, sourceLang, targetLang string, glossary []GlossaryEntry) (Result, error) {
	start := time.Now()
	if len(lines) == 0 {
		return Result{Success: true, BackendName: o.Name()}, nil
	}

	prompt := BuildPrompt(lines, sourceLang, targetLang, glossary)

	reqBody := chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: o.temperature,
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return Result{BackendName: o.Name()}, fmt.Errorf("translate: marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(reqJSON))
	if err != nil {
		return Result{BackendName: o.Name()}, fmt.Errorf("translate: build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{BackendName: o.Name()}, &ProviderError{Backend: o.Name(), Code: "network_error", Message: err.Error(), Retry: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{BackendName: o.Name()}, fmt.Errorf("translate: read openai response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{BackendName: o.Name()}, fmt.Errorf("translate: openai returned invalid JSON: %w", err)
	}
	if parsed.Error != nil {
		code := "unknown"
		retry := false
		if parsed.Error.Type == "insufficient_quota" || parsed.Error.Code == "rate_limit_exceeded" {
			code, retry = "rate_limit", true
		} else if parsed.Error.Code == "invalid_api_key" {
			code = "invalid_key"
		}
		return Result{BackendName: o.Name()}, &ProviderError{Backend: o.Name(), Code: code, Message: parsed.Error.Message, Retry: retry}
	}
	if len(parsed.Choices) == 0 {
		return Result{BackendName: o.Name(), Error: "no choices in response"}, nil
	}

	translated, ok := ParseResponse(parsed.Choices[0].Message.Content, len(lines))
	if !ok {
		return Result{BackendName: o.Name(), Error: "line count mismatch"}, nil
	}

	return Result{
		Lines:          translated,
		BackendName:    o.Name(),
		ElapsedMS:      float64(time.Since(start).Milliseconds()),
		CharactersUsed: charCount(lines),
		Success:        true,
	}, nil
}

func (o *OpenAIBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("translate: openai health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return &ProviderError{Backend: o.Name(), Code: "invalid_key", Message: "invalid API key"}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("translate: openai backend returned status %d", resp.StatusCode)
	}
	return nil
}
