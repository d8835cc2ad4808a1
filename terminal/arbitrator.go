// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"errors"
	"io"
	"sync"
)

// ErrSessionEnded is returned by Arbitrator.Read when the session that
// started the read is no longer the active one. The bytes from that
// read are kept for the next reader.
var ErrSessionEnded = errors.New("terminal: session ended during read")

// readBufferSize is large enough to take everything a terminal delivers
// in one readiness window, including a big paste.
const readBufferSize = 64 * 1024

// Arbitrator hands stdin to whichever session is active.
type Arbitrator struct {
	input io.Reader

	// readMu serializes physical reads. It is held across the blocking
	// read so a second caller waits and then finds the handoff buffer.
	readMu sync.Mutex
	buffer []byte

	mu            sync.Mutex
	activeSession string
	hasActive     bool
	handoff       []byte
}

// NewArbitrator returns an Arbitrator reading from input.
func NewArbitrator(input io.Reader) *Arbitrator {
	return &Arbitrator{
		input:  input,
		buffer: make([]byte, readBufferSize),
	}
}

// SetActiveSession records which session owns input from now on.
func (a *Arbitrator) SetActiveSession(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeSession = name
	a.hasActive = true
}

// ActiveSession returns the active session name, if one is set.
func (a *Arbitrator) ActiveSession() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeSession, a.hasActive
}

// Read returns the next chunk of input. If a previous read was cut
// short by a session change, its parked bytes are returned immediately
// without touching the underlying reader. Otherwise Read performs one
// blocking read. If a session was active when the read started and a
// different one is active when it returns, the bytes are parked and
// ErrSessionEnded is returned.
//
// An empty handoff slot is never treated as parked input, and a
// zero-length read from the underlying reader is returned as is.
func (a *Arbitrator) Read() ([]byte, error) {
	a.readMu.Lock()
	defer a.readMu.Unlock()

	a.mu.Lock()
	if a.handoff != nil {
		parked := a.handoff
		a.handoff = nil
		a.mu.Unlock()
		return parked, nil
	}
	sessionAtStart, hadActive := a.activeSession, a.hasActive
	a.mu.Unlock()

	count, err := a.input.Read(a.buffer)
	chunk := make([]byte, count)
	copy(chunk, a.buffer[:count])
	if err != nil {
		return chunk, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if hadActive && a.activeSession != sessionAtStart {
		if count > 0 {
			a.handoff = chunk
		}
		return nil, ErrSessionEnded
	}
	return chunk, nil
}
