package whisper

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenForTest(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) Emit(name string, payload map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, name)
}

func (e *recordingEmitter) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	copy(out, e.events)
	return out
}

type stubBackend struct {
	result Result
	err    error
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Transcribe(ctx context.Context, wavPath, languageHint string, onProgress ProgressFunc) (Result, error) {
	onProgress("transcribing", 0.5)
	return b.result, b.err
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func TestTranscribeAudioWritesSRTAndCompletesJob(t *testing.T) {
	st := newTestStore(t)
	emitter := &recordingEmitter{}
	backend := &stubBackend{result: Result{
		SRTContent:       "1\n00:00:00,000 --> 00:00:01,000\nhello\n\n",
		DetectedLanguage: "en",
		SegmentCount:     1,
		BackendName:      "stub",
	}}
	q := New(st, backend, 1, emitter, zerolog.Nop())

	srtPath, err := q.TranscribeAudio(context.Background(), "/media/a.wav", "en")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	defer os.Remove(srtPath)

	data, err := os.ReadFile(srtPath)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	if string(data) != backend.result.SRTContent {
		t.Errorf("unexpected srt content: %q", data)
	}

	names := emitter.names()
	if !containsName(names, "whisper_completed") {
		t.Errorf("expected whisper_completed event, got %v", names)
	}
	if !containsName(names, "whisper_progress") {
		t.Errorf("expected whisper_progress events, got %v", names)
	}
}

func TestTranscribeAudioFailurePersistsErrorAndEmits(t *testing.T) {
	st := newTestStore(t)
	emitter := &recordingEmitter{}
	backend := &stubBackend{err: context.DeadlineExceeded}
	q := New(st, backend, 1, emitter, zerolog.Nop())

	_, err := q.TranscribeAudio(context.Background(), "/media/b.wav", "en")
	if err == nil {
		t.Fatal("expected transcription error to propagate")
	}

	if !containsName(emitter.names(), "whisper_failed") {
		t.Errorf("expected whisper_failed event, got %v", emitter.names())
	}
}

func TestSemaphoreBoundsConcurrentTranscriptions(t *testing.T) {
	st := newTestStore(t)
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	backend := &blockingBackend{started: started, release: release}
	q := New(st, backend, 1, &recordingEmitter{}, zerolog.Nop())

	go func() { _, _ = q.TranscribeAudio(context.Background(), "/media/c.wav", "en") }()
	go func() { _, _ = q.TranscribeAudio(context.Background(), "/media/d.wav", "en") }()

	<-started
	select {
	case <-started:
		t.Fatal("a second transcription started before the first released its semaphore slot")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
}

type blockingBackend struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Name() string { return "blocking" }

func (b *blockingBackend) Transcribe(ctx context.Context, wavPath, languageHint string, onProgress ProgressFunc) (Result, error) {
	b.started <- struct{}{}
	<-b.release
	return Result{SRTContent: "", BackendName: "blocking"}, nil
}

func TestCancelOnlyAffectsQueuedJobs(t *testing.T) {
	st := newTestStore(t)
	if err := st.InsertWhisperJob(store.WhisperJob{
		ID: "job1", FilePath: "/media/e.wav", Status: "queued", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	q := New(st, &stubBackend{}, 1, &recordingEmitter{}, zerolog.Nop())
	ok, err := q.Cancel("job1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !ok {
		t.Fatal("expected queued job to be cancellable")
	}

	job, err := st.GetWhisperJob("job1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != "cancelled" {
		t.Errorf("expected status cancelled, got %q", job.Status)
	}
}
