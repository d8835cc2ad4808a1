// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Layout is what a session caches so it can be started again after it
// dies. The session registry treats the serialized form as opaque.
type Layout struct {
	Session   string    `yaml:"session"`
	Shell     string    `yaml:"shell"`
	Directory string    `yaml:"directory,omitempty"`
	Rows      uint16    `yaml:"rows,omitempty"`
	Cols      uint16    `yaml:"cols,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

// MarshalLayout serializes layout as YAML.
func MarshalLayout(layout Layout) ([]byte, error) {
	data, err := yaml.Marshal(layout)
	if err != nil {
		return nil, fmt.Errorf("serializing layout for %s: %w", layout.Session, err)
	}
	return data, nil
}

// ParseLayout parses a cached layout.
func ParseLayout(data []byte) (Layout, error) {
	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return Layout{}, fmt.Errorf("parsing cached layout: %w", err)
	}
	return layout, nil
}
