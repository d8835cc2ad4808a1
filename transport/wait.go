// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForSocket blocks until a socket file exists at path or ctx is
// done. The parent directory must exist. A client that has just
// spawned a detached server uses this before dialing.
func WaitForSocket(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher for %s: %w", path, err)
	}
	defer watcher.Close()

	directory := filepath.Dir(path)
	if err := watcher.Add(directory); err != nil {
		return fmt.Errorf("watching %s: %w", directory, err)
	}

	// Check after the watch is registered so a socket created between
	// the two steps is not missed.
	if isSocket(path) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for socket %s: %w", path, ctx.Err())
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher for %s closed", directory)
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Has(fsnotify.Create) && isSocket(path) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher for %s closed", directory)
			}
			return fmt.Errorf("watching %s: %w", directory, err)
		}
	}
}

func isSocket(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSocket != 0
}
