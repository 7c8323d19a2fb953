package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/server/metrics"
)

// reloadDelay coalesces the burst of events an editor or a rename produces.
const reloadDelay = 250 * time.Millisecond

// watchDataset reloads store when another process modifies the dataset file.
// It blocks until ctx is done.
//
// The directory is watched rather than the file because atomic writes replace
// the file's inode.
func watchDataset(ctx context.Context, store *dataset.Store, m *metrics.Metrics) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	path := filepath.Clean(store.Path())
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				continue
			}
			timer.Reset(reloadDelay)
		case <-timer.C:
			changed, err := store.Reload()
			if err != nil {
				m.ObserveReload(err)
				slog.WarnContext(ctx, "Failed to reload dataset, keeping the current one", "path", path, "err", err)
				continue
			}
			if changed {
				m.ObserveReload(nil)
				m.SetRecords(store.Len())
				slog.InfoContext(ctx, "Dataset reloaded", "path", path, "records", store.Len())
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Error watching dataset", "err", err)
		}
	}
}

// watchExecutable stops the server when its binary is replaced, so a
// supervisor can restart the new version.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
