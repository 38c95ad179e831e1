// Package watch is the optional filesystem trigger for the wanted
// scanner: instead of waiting for the next scheduled sweep, it watches the
// configured library roots and nudges a rescan shortly after new media
// files settle.
//
// Every event across every watched root collapses into a single rescan
// trigger, since the scanner's unit of work is a full library sweep, not
// one file.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceWindow is how long the watcher waits for filesystem activity to
// settle before firing a single rescan trigger.
const debounceWindow = 10 * time.Second

// videoExtensions gates which events are worth debouncing at all; a
// directory full of .nfo/.jpg sidecar writes shouldn't trigger a rescan.
var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {},
}

// Watcher monitors one or more library roots and calls Trigger, debounced,
// whenever a video file is created or written under them.
type Watcher struct {
	fw      *fsnotify.Watcher
	roots   []string
	trigger func(ctx context.Context)
	log     zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Watcher over roots, calling trigger (debounced) after
// filesystem activity settles. trigger is handed a context cancelled when
// Stop is called.
func New(roots []string, trigger func(ctx context.Context), log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fw: fw, roots: roots, trigger: trigger,
		log: log.With().Str("component", "watch").Logger(),
		ctx: ctx, cancel: cancel,
	}
	return w, nil
}

// Start adds every root (recursively) to the underlying fsnotify watch set
// and begins the event loop.
func (w *Watcher) Start() error {
	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return err
		}
	}
	go w.eventLoop()
	return nil
}

// Stop cancels any pending debounce timer and closes the underlying watch.
func (w *Watcher) Stop() {
	w.cancel()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.fw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // a vanished or unreadable subdirectory shouldn't abort the whole walk
		}
		if d.IsDir() {
			if addErr := w.fw.Add(path); addErr != nil {
				w.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			}
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("filesystem watch error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if _, ok := videoExtensions[strings.ToLower(filepath.Ext(event.Name))]; !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, func() {
		w.trigger(w.ctx)
	})
}
