package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch monitors path and calls onChange with the reloaded Config each time the
// file is written or replaced. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that rename a
// temporary file over path keep being seen.
//
// A reload that fails (unreadable file, invalid YAML, failed validation) is
// logged and the previous config stays active.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	logger.Info("config: watching for changes", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				logger.Error("config: reload failed, keeping previous config",
					zap.String("path", path), zap.Error(err))
				continue
			}

			logger.Info("config: reloaded", zap.String("path", path))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config: watcher error", zap.Error(err))
		}
	}
}
