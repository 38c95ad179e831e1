package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcherIgnoresNonVideoFiles(t *testing.T) {
	dir := t.TempDir()
	var triggered int32

	w, err := New([]string{dir}, func(ctx context.Context) {
		atomic.AddInt32(&triggered, 1)
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "poster.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if atomic.LoadInt32(&triggered) != 0 {
		t.Error("expected a non-video write not to arm the debounce timer")
	}
}

func TestWatcherDebouncesVideoFileEvents(t *testing.T) {
	dir := t.TempDir()
	triggered := make(chan struct{}, 1)

	w, err := New([]string{dir}, func(ctx context.Context) {
		select {
		case triggered <- struct{}{}:
		default:
		}
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	// Shrink the debounce window isn't exposed, so this test only checks
	// that an event arms the timer without yet firing.
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "episode.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	w.mu.Lock()
	armed := w.timer != nil
	w.mu.Unlock()
	if !armed {
		t.Error("expected a video file write to arm the debounce timer")
	}

	select {
	case <-triggered:
		t.Error("expected the trigger not to fire before the debounce window elapses")
	default:
	}
}
