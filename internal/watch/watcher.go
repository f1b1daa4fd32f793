// Package watch monitors the workspace for Apex source changes and turns
// file-system events into graph lifecycle callbacks. The parser collaborator
// owns re-parsing; this package only reports which files changed or vanished.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/apexls/apexls/internal/debug"
)

// DefaultDebounce collapses editor save bursts into one event per file.
const DefaultDebounce = 100 * time.Millisecond

// apex source extensions watched for changes.
var watchedExtensions = map[string]bool{
	".cls":     true,
	".trigger": true,
	".apex":    true,
}

// EventType classifies a reported change.
type EventType int

const (
	EventChanged EventType = iota
	EventRemoved
)

// Watcher monitors a workspace root.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration

	onChanged func(path string)
	onRemoved func(path string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]EventType
	timer   *time.Timer
}

// New creates a watcher for a workspace root. Callbacks fire on the
// watcher's own goroutine after the debounce window.
func New(root string, debounce time.Duration, onChanged, onRemoved func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher:   fsw,
		root:      root,
		debounce:  debounce,
		onChanged: onChanged,
		onRemoved: onRemoved,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]EventType),
	}, nil
}

// Start begins watching the root and its subdirectories.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != w.root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop()
	debug.Infof("WATCH", "watching %s", w.root)
	return nil
}

// Stop halts the watcher and waits for its goroutine.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.Warnf("WATCH", "fs error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories join the watch set immediately.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				debug.Warnf("WATCH", "cannot watch %s: %v", event.Name, err)
			}
			return
		}
	}

	if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	kind := EventChanged
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		kind = EventRemoved
	}

	w.mu.Lock()
	// A remove followed by a write within the window is a change.
	if existing, ok := w.pending[event.Name]; !ok || kind == EventRemoved || existing == EventRemoved {
		w.pending[event.Name] = kind
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
	w.mu.Unlock()
}

// flush delivers the debounced batch.
func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]EventType)
	w.timer = nil
	w.mu.Unlock()

	for path, kind := range batch {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		switch kind {
		case EventRemoved:
			if w.onRemoved != nil {
				w.onRemoved(path)
			}
		default:
			if w.onChanged != nil {
				w.onChanged(path)
			}
		}
	}
}
