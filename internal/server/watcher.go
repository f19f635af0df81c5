package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"shotdeck/internal/domain"
)

// InboxWatcher keeps a current snapshot of the pending inbox by
// watching the directory for changes. If the watcher cannot start,
// callers fall back to scanning on every request.
type InboxWatcher struct {
	lib    *Library
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot []domain.PendingItem
	watching bool
}

// NewInboxWatcher creates a watcher over lib's inbox.
func NewInboxWatcher(lib *Library, logger *slog.Logger) *InboxWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxWatcher{lib: lib, logger: logger}
}

// Start scans the inbox once and then watches it until ctx is done.
// The returned error covers the initial scan only; watch failures
// degrade to rescan-on-request and are logged.
func (w *InboxWatcher) Start(ctx context.Context) error {
	if err := w.rescan(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("inbox watcher unavailable, falling back to rescans", "error", err)
		return nil
	}
	if err := fw.Add(w.lib.InboxDir()); err != nil {
		w.logger.Warn("cannot watch inbox, falling back to rescans", "error", err)
		fw.Close()
		return nil
	}

	w.mu.Lock()
	w.watching = true
	w.mu.Unlock()

	go w.loop(ctx, fw)
	return nil
}

func (w *InboxWatcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()
	defer func() {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if err := w.rescan(); err != nil {
				w.logger.Error("inbox rescan failed", "error", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("inbox watch error", "error", err)
		}
	}
}

func (w *InboxWatcher) rescan() error {
	items, err := w.lib.Pending()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.snapshot = items
	w.mu.Unlock()
	return nil
}

// Pending returns the current inbox contents. While the watcher runs
// this is the cached snapshot; otherwise it scans the directory.
func (w *InboxWatcher) Pending() ([]domain.PendingItem, error) {
	w.mu.RLock()
	watching := w.watching
	items := w.snapshot
	w.mu.RUnlock()

	if watching {
		return items, nil
	}
	return w.lib.Pending()
}

// Invalidate forces a rescan, used after imports consume inbox files.
func (w *InboxWatcher) Invalidate() {
	if err := w.rescan(); err != nil {
		w.logger.Error("inbox rescan failed", "error", err)
	}
}
