package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sublarr/sublarr/internal/httpclient"
)

// HTTPBackend calls an OpenAI-compatible audio-transcription endpoint
// (OpenAI's own Whisper API, or a self-hosted faster-whisper-server/
// whisper.cpp server speaking the same multipart contract). Grounded on
// internal/translate.OpenAIBackend's shape (configurable base URL, shared
// retry session via internal/httpclient), returning plain wrapped errors
// on an API error body or a non-200 status,
// adapted from a JSON chat request to a multipart/form-data upload since
// /audio/transcriptions takes the WAV as a file field rather than JSON.
type HTTPBackend struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPBackend builds a whisper HTTP backend. baseURL defaults to
// OpenAI's own endpoint; point it at a local server to run fully offline.
func NewHTTPBackend(apiKey, baseURL, model string) *HTTPBackend {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	opts := httpclient.DefaultOptions()
	opts.MaxRetries = 1 // a failed transcription is expensive to retry blindly; one retry only
	opts.Timeout = 10 * time.Minute
	return &HTTPBackend{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  httpclient.New(opts).StandardClient(),
	}
}

func (b *HTTPBackend) Name() string { return "whisper_http" }

type transcriptionResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Transcribe uploads the WAV file and renders the response's segments into
// an SRT document. The progress callback only reports the request's start
// and completion (0% then 100%) since streaming progress is not part of
// the OpenAI-compatible wire contract; a local server with finer-grained
// progress would need its own Backend implementation.
func (b *HTTPBackend) Transcribe(ctx context.Context, wavPath, languageHint string, onProgress ProgressFunc) (Result, error) {
	onProgress("transcribing", 0.0)

	body, contentType, err := buildMultipartRequest(wavPath, b.model, languageHint)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: read response: %w", err)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("whisper: invalid JSON response: %w", err)
	}
	if parsed.Error != nil {
		return Result{}, fmt.Errorf("whisper: %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("whisper: server returned status %d", resp.StatusCode)
	}

	onProgress("transcribing", 1.0)

	srt := renderSRT(parsed.Segments, parsed.Text)
	return Result{
		SRTContent:          srt,
		DetectedLanguage:    parsed.Language,
		LanguageProbability: 1.0, // the wire format carries no confidence score
		SegmentCount:        len(parsed.Segments),
		DurationSeconds:     parsed.Duration,
		BackendName:         b.Name(),
	}, nil
}

func buildMultipartRequest(wavPath, model, languageHint string) (*bytes.Buffer, string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	part, err := w.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}

	_ = w.WriteField("model", model)
	_ = w.WriteField("response_format", "verbose_json")
	if languageHint != "" {
		_ = w.WriteField("language", languageHint)
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// renderSRT builds an SRT document from timed segments, falling back to a
// single untimed cue spanning the whole file when the backend returned no
// segment boundaries (some self-hosted servers only return `text`).
func renderSRT(segments []struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}, fullText string) string {
	if len(segments) == 0 {
		if strings.TrimSpace(fullText) == "" {
			return ""
		}
		return fmt.Sprintf("1\n%s --> %s\n%s\n\n", srtTimestamp(0), srtTimestamp(3600), strings.TrimSpace(fullText))
	}

	var sb strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(seg.Start), srtTimestamp(seg.End), strings.TrimSpace(seg.Text))
	}
	return sb.String()
}

func srtTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
