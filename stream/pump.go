// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/loom/lib/clock"
)

// ReadBufferSize is the size of each pty read.
const ReadBufferSize = 65536

// Source is a pty master that supports bounded reads.
type Source interface {
	// ReadBefore reads into buffer, giving up at deadline with an error
	// matching os.ErrDeadlineExceeded. A zero deadline blocks until data
	// or EOF.
	ReadBefore(buffer []byte, deadline time.Time) (int, error)
}

// FileSource adapts a pollable *os.File, such as a pty master, to
// Source using read deadlines.
type FileSource struct {
	File *os.File
}

// ReadBefore implements Source.
func (s FileSource) ReadBefore(buffer []byte, deadline time.Time) (int, error) {
	if err := s.File.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("setting pty read deadline: %w", err)
	}
	return s.File.Read(buffer)
}

type pumpState int

const (
	stateIdle pumpState = iota
	stateAwaitingData
	stateForwarding
)

func (s pumpState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAwaitingData:
		return "awaiting_data"
	case stateForwarding:
		return "forwarding"
	default:
		return "unknown"
	}
}

// Pump forwards one pane's output to a Consumer.
type Pump struct {
	source     Source
	consumer   Consumer
	terminalID uint32
	clock      clock.Clock
	logger     *slog.Logger

	throttle *Throttle
	state    pumpState
	buffer   []byte
}

// NewPump returns a Pump for the pane with terminalID.
func NewPump(source Source, consumer Consumer, terminalID uint32, config ThrottleConfig, clock clock.Clock, logger *slog.Logger) *Pump {
	return &Pump{
		source:     source,
		consumer:   consumer,
		terminalID: terminalID,
		clock:      clock,
		logger:     logger,
		throttle:   NewThrottle(config),
		state:      stateIdle,
		buffer:     make([]byte, ReadBufferSize),
	}
}

// Throttle exposes the pump's render throttle for inspection.
func (p *Pump) Throttle() *Throttle { return p.throttle }

// Run pumps until the source reports EOF or an error, then sends a
// final best-effort Render. It returns nil when the source ended and an
// error when the consumer rejected an instruction.
func (p *Pump) Run() error {
	err := p.loop()
	if finalErr := p.consumer.Send(Render{}); finalErr != nil {
		p.logger.Debug("final render not delivered", "terminal", p.terminalID, "error", finalErr)
	}
	return err
}

func (p *Pump) loop() error {
	for {
		var deadline time.Time
		if p.state == stateAwaitingData {
			deadline, _ = p.throttle.Deadline()
			if !p.clock.Now().Before(deadline) {
				if err := p.render(); err != nil {
					return err
				}
				continue
			}
		}

		count, err := p.source.ReadBefore(p.buffer, deadline)
		if count > 0 {
			p.state = stateForwarding
			chunk := make([]byte, count)
			copy(chunk, p.buffer[:count])
			if sendErr := p.consumer.Send(PtyBytes{TerminalID: p.terminalID, Bytes: chunk}); sendErr != nil {
				return fmt.Errorf("forwarding output of terminal %d: %w", p.terminalID, sendErr)
			}
			p.throttle.ScheduleRender(p.clock.Now())
			p.state = stateAwaitingData
		}

		switch {
		case err == nil:
			// A zero-length read with no error is not EOF.
		case errors.Is(err, os.ErrDeadlineExceeded):
			if p.state == stateAwaitingData {
				if err := p.render(); err != nil {
					return err
				}
			}
		default:
			p.logger.Debug("pty stream ended", "terminal", p.terminalID, "state", p.state, "error", err)
			return nil
		}
	}
}

// render sends a Render, times the send, and returns to Idle.
func (p *Pump) render() error {
	start := p.clock.Now()
	if err := p.consumer.Send(Render{}); err != nil {
		return fmt.Errorf("requesting render for terminal %d: %w", p.terminalID, err)
	}
	now := p.clock.Now()
	p.throttle.Rendered(now, now.Sub(start))
	if p.throttle.BackedUp() {
		p.logger.Debug("renderer backed up", "terminal", p.terminalID, "latency", now.Sub(start), "minimum_gap", p.throttle.MinimumGap())
	}
	p.state = stateIdle
	return nil
}
