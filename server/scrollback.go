// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import "sync"

// Scrollback keeps the most recent pane output, escape sequences
// included, for replay to newly attached clients. Once full, each write
// discards the oldest bytes.
type Scrollback struct {
	mu     sync.Mutex
	data   []byte
	start  int
	length int
	total  uint64
}

// NewScrollback returns a buffer holding at most capacity bytes.
func NewScrollback(capacity int) *Scrollback {
	if capacity <= 0 {
		capacity = 1
	}
	return &Scrollback{data: make([]byte, capacity)}
}

// Write appends output. It always consumes all of p.
func (s *Scrollback) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := len(p)
	s.total += uint64(written)
	capacity := len(s.data)
	if len(p) >= capacity {
		copy(s.data, p[len(p)-capacity:])
		s.start = 0
		s.length = capacity
		return written, nil
	}

	end := (s.start + s.length) % capacity
	first := copy(s.data[end:], p)
	copy(s.data, p[first:])

	s.length += len(p)
	if s.length > capacity {
		s.start = (s.start + s.length - capacity) % capacity
		s.length = capacity
	}
	return written, nil
}

// Bytes returns a copy of the retained output, oldest first.
func (s *Scrollback) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]byte, s.length)
	first := copy(result, s.data[s.start:min(s.start+s.length, len(s.data))])
	copy(result[first:], s.data[:s.length-first])
	return result
}

// Total returns the number of bytes ever written, including discarded
// ones.
func (s *Scrollback) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
