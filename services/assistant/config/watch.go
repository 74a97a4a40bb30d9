// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchGateRules loads an override rule file and hot-reloads it on change.
//
// Description:
//
//	Loads the file at path immediately, replacing the embedded defaults,
//	then watches the containing directory for writes to that file (editors
//	and configmap mounts replace files rather than writing in place, so
//	watching the file inode directly misses updates). A reload that fails
//	to parse or validate keeps the previous config and logs a warning.
//
// Inputs:
//   - ctx: Cancelling it stops the watcher goroutine.
//   - path: The override YAML file. Must exist at startup.
//   - logger: Destination for reload events. Must not be nil.
//
// Outputs:
//   - error: Non-nil if the initial load or watcher setup fails.
//
// Thread Safety: Safe to call once at startup. The reload swap is
// synchronized with GetGateConfig readers.
func WatchGateRules(ctx context.Context, path string, logger *slog.Logger) error {
	if err := loadGateRulesFile(ctx, path); err != nil {
		return fmt.Errorf("WatchGateRules: initial load: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("WatchGateRules: creating watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("WatchGateRules: watching %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	logger.Info("watching gate rules for changes", slog.String("path", target))

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := loadGateRulesFile(ctx, target); err != nil {
					logger.Warn("gate rules reload failed, keeping previous config",
						slog.String("path", target),
						slog.String("error", err.Error()),
					)
					continue
				}
				logger.Info("gate rules reloaded", slog.String("path", target))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("gate rules watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// loadGateRulesFile reads, validates, and installs a rule file.
func loadGateRulesFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxYAMLFileSize {
		return fmt.Errorf("%s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := LoadGateConfig(ctx, data)
	if err != nil {
		return err
	}

	setGateConfig(cfg)
	return nil
}
