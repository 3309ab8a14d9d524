// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ManifestWatcher reloads the default registry when the external manifest
// changes on disk.
//
// The parent directory is watched rather than the file itself so editors
// that save by rename are still noticed.
//
// Thread Safety: Start should only be called once.
type ManifestWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
}

// NewManifestWatcher creates a watcher for one manifest file.
//
// Inputs:
//
//	path - Manifest file. It does not need to exist yet.
//	onChange - Called after every relevant change. Nil means ResetDefault.
//
// Outputs:
//
//	*ManifestWatcher - Ready-to-start watcher.
//	error - Non-nil if the watcher or directory watch cannot be created.
func NewManifestWatcher(path string, onChange func()) (*ManifestWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}
	if onChange == nil {
		onChange = ResetDefault
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(absPath), err)
	}
	return &ManifestWatcher{path: absPath, watcher: watcher, onChange: onChange}, nil
}

// Start processes events until ctx is done. Should be run in a goroutine.
func (w *ManifestWatcher) Start(ctx context.Context) {
	slog.Debug("Started watching impact function manifest", slog.String("path", w.path))
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Manifest watcher error", slog.String("error", err.Error()))

		case <-ctx.Done():
			slog.Debug("Manifest watcher stopping", slog.String("path", w.path))
			return
		}
	}
}

func (w *ManifestWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	slog.Info("Impact function manifest changed, reloading registry",
		slog.String("path", w.path),
		slog.String("op", event.Op.String()))
	w.onChange()
}

// Stop releases the watcher. Safe to call multiple times.
func (w *ManifestWatcher) Stop() error {
	return w.watcher.Close()
}

// Watch resets the default registry whenever the manifest at path changes.
// It blocks until ctx is done.
func Watch(ctx context.Context, path string) error {
	w, err := NewManifestWatcher(path, ResetDefault)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	w.Start(ctx)
	return nil
}
