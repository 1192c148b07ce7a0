package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store when another process rewrites its table files.
// Reload events are debounced because a single external import touches
// several files in a burst. Watch returns after starting the watcher; it
// stops when ctx is canceled.
func (s *Store) Watch(ctx context.Context, onReload func()) error {
	if err := s.ready(); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Join(s.dataDir, dbDir)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watching data directory: %w", err)
	}
	go func() {
		defer func() { _ = w.Close() }()
		var timer *time.Timer
		reload := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if !strings.HasSuffix(event.Name, ".jsonl") {
					continue
				}
				// Debounce bursts of writes into one reload.
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(200*time.Millisecond, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			case <-reload:
				if err := s.Reload(); err != nil {
					slog.WarnContext(ctx, "Failed to reload store", "err", err)
					continue
				}
				if onReload != nil {
					onReload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching data directory", "err", err)
			}
		}
	}()
	return nil
}
