// Package watcher reports changes to configuration files.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmountifield/vector/internal/logger"
)

// DefaultDelay is how long the watcher waits for writes to settle.
const DefaultDelay = time.Second

// Watcher coalesces file system events on a set of files into reload
// notifications.
type Watcher struct {
	fs      *fsnotify.Watcher
	log     *logger.Logger
	delay   time.Duration
	files   map[string]struct{}
	reloads chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New watches paths. The parent directories are watched so that editors
// replacing a file by rename are noticed.
func New(paths []string, delay time.Duration, log *logger.Logger) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fs:      fsw,
		log:     log,
		delay:   delay,
		files:   make(map[string]struct{}, len(paths)),
		reloads: make(chan struct{}, 1),
	}

	dirs := make(map[string]struct{})
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		log.WithFields(map[string]any{"path": dir}).Debug("Watching configuration directory.")
	}

	return w, nil
}

// Reloads fires once per settled burst of changes.
func (w *Watcher) Reloads() <-chan struct{} {
	return w.reloads
}

// Run processes events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(fmt.Sprintf("Configuration watcher error: %v", err))
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if _, ok := w.files[filepath.Clean(ev.Name)]; !ok {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}

	w.log.WithFields(map[string]any{"path": ev.Name, "op": ev.Op.String()}).Debug("Configuration file changed.")

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.fire)
}

func (w *Watcher) fire() {
	w.log.Info("Configuration files changed.")
	select {
	case w.reloads <- struct{}{}:
	default:
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}
