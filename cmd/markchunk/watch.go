package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long a file must stay quiet before it is regenerated.
const settle = 100 * time.Millisecond

// watch calls onChange for every input that is written or recreated until
// ctx is done. Directories are watched rather than files so editors that
// replace files on save are still seen.
func watch(ctx context.Context, paths []string, log *slog.Logger, onChange func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	inputs := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		inputs[abs] = p
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return err
		}
	}
	log.Info("watching inputs", "files", len(inputs), "dirs", len(dirs))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := inputs[abs]; ok {
				pending[abs] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		case now := <-ticker.C:
			for abs, at := range pending {
				if now.Sub(at) < settle {
					continue
				}
				delete(pending, abs)
				log.Debug("input changed", "path", inputs[abs])
				onChange(inputs[abs])
			}
		}
	}
}
