// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LayoutFileName is the cached layout's file name inside a session's
// cache folder.
const LayoutFileName = "session-layout.yaml"

// ErrNotFound is returned when a named session, or its cache folder,
// does not exist.
var ErrNotFound = errors.New("session not found")

// LayoutCache stores serialized layouts, one folder per session, under
// a root directory. The layout bytes are opaque to it.
type LayoutCache struct {
	root string
}

// NewLayoutCache returns a cache rooted at directory. The directory is
// created on first Save.
func NewLayoutCache(directory string) *LayoutCache {
	return &LayoutCache{root: directory}
}

// Root returns the cache root directory.
func (c *LayoutCache) Root() string { return c.root }

// Folder returns the cache folder for name.
func (c *LayoutCache) Folder(name string) string {
	return filepath.Join(c.root, name)
}

// LayoutPath returns the layout file path for name.
func (c *LayoutCache) LayoutPath(name string) string {
	return filepath.Join(c.root, name, LayoutFileName)
}

// Save writes layout for name, replacing any previous layout. The write
// goes through a temporary file so a reader never sees a partial
// layout.
func (c *LayoutCache) Save(name string, layout []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	folder := c.Folder(name)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("creating cache folder for %s: %w", name, err)
	}
	temporary, err := os.CreateTemp(folder, ".layout-*")
	if err != nil {
		return fmt.Errorf("caching layout for %s: %w", name, err)
	}
	defer os.Remove(temporary.Name())
	if _, err := temporary.Write(layout); err != nil {
		temporary.Close()
		return fmt.Errorf("caching layout for %s: %w", name, err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("caching layout for %s: %w", name, err)
	}
	if err := os.Rename(temporary.Name(), c.LayoutPath(name)); err != nil {
		return fmt.Errorf("caching layout for %s: %w", name, err)
	}
	return nil
}

// Load returns the cached layout for name. The boolean is false when
// no non-empty layout is cached.
func (c *LayoutCache) Load(name string) ([]byte, bool, error) {
	if err := ValidateName(name); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(c.LayoutPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached layout for %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

// Remove deletes the cache folder for name. A missing folder is
// reported as ErrNotFound.
func (c *LayoutCache) Remove(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	folder := c.Folder(name)
	if _, err := os.Lstat(folder); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: no cached session %q", ErrNotFound, name)
		}
		return fmt.Errorf("removing cache folder for %s: %w", name, err)
	}
	if err := os.RemoveAll(folder); err != nil {
		return fmt.Errorf("removing cache folder for %s: %w", name, err)
	}
	return nil
}

// CachedLayout describes one resurrectable entry.
type CachedLayout struct {
	Name     string
	CachedAt time.Time
}

// List returns every folder holding a non-empty layout file. A missing
// root is an empty cache.
func (c *LayoutCache) List() ([]CachedLayout, error) {
	entries, err := os.ReadDir(c.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading layout cache %s: %w", c.root, err)
	}

	var layouts []CachedLayout
	for _, entry := range entries {
		if !entry.IsDir() || ValidateName(entry.Name()) != nil {
			continue
		}
		info, err := os.Stat(c.LayoutPath(entry.Name()))
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}
		layouts = append(layouts, CachedLayout{
			Name:     entry.Name(),
			CachedAt: fileCreationTime(c.LayoutPath(entry.Name()), info),
		})
	}
	return layouts, nil
}
