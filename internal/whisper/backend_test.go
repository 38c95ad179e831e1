package whisper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func writeFixtureFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func TestSRTTimestampFormatting(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{61.5, "00:01:01,500"},
		{3661.25, "01:01:01,250"},
	}
	for _, c := range cases {
		if got := srtTimestamp(c.seconds); got != c.want {
			t.Errorf("srtTimestamp(%v) = %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestRenderSRTFallsBackToFullTextWithoutSegments(t *testing.T) {
	out := renderSRT(nil, "hello world")
	if !strings.Contains(out, "hello world") {
		t.Errorf("expected fallback cue to contain full text, got %q", out)
	}
	if !strings.HasPrefix(out, "1\n") {
		t.Errorf("expected a single numbered cue, got %q", out)
	}
}

func TestHTTPBackendTranscribeParsesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("expected Authorization header to carry the API key")
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("expected model field whisper-1, got %q", r.FormValue("model"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"language":"en","duration":2.0,"text":"hi there","segments":[{"start":0,"end":1,"text":"hi there"}]}`))
	}))
	defer srv.Close()

	wav := t.TempDir() + "/audio.wav"
	if err := writeFixtureFile(wav, []byte("RIFF....WAVEfmt ")); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	backend := NewHTTPBackend("test-key", srv.URL, "")
	var progressed bool
	result, err := backend.Transcribe(context.Background(), wav, "en", func(phase string, pct float64) { progressed = true })
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.DetectedLanguage != "en" {
		t.Errorf("expected detected language en, got %q", result.DetectedLanguage)
	}
	if result.SegmentCount != 1 {
		t.Errorf("expected 1 segment, got %d", result.SegmentCount)
	}
	if !strings.Contains(result.SRTContent, "hi there") {
		t.Errorf("expected srt content to contain transcript text, got %q", result.SRTContent)
	}
	if !progressed {
		t.Error("expected onProgress to be called")
	}
}
