// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package terminal

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultPollTimeout bounds a Ready call made with a zero timeout.
const DefaultPollTimeout = 10 * time.Millisecond

// Poller waits for one file descriptor to become readable. The poll
// set is built once and reused. Not safe for concurrent use.
type Poller struct {
	logger *slog.Logger
	set    []unix.PollFd
}

// NewPoller registers fd for readability.
func NewPoller(fd int, logger *slog.Logger) *Poller {
	return &Poller{
		logger: logger,
		set:    []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}},
	}
}

// Ready blocks for up to timeout (DefaultPollTimeout if zero) and
// reports whether the descriptor is readable. A hang-up or error on the
// descriptor counts as readable so the next read observes it. An
// interrupted poll reports false.
func (p *Poller) Ready(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	p.set[0].Revents = 0
	count, err := unix.Poll(p.set, pollMilliseconds(timeout))
	if err != nil {
		if !errors.Is(err, unix.EINTR) {
			p.logger.Debug("polling stdin", "error", err)
		}
		return false
	}
	if count == 0 {
		return false
	}
	return p.set[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
}

// pollMilliseconds rounds timeout up to whole milliseconds so a
// sub-millisecond wait does not become a non-blocking poll.
func pollMilliseconds(timeout time.Duration) int {
	return int((timeout + time.Millisecond - 1) / time.Millisecond)
}
