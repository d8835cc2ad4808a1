// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies socket errors seen on session
// connections.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is the normal result of the
// peer going away: EOF, a locally closed connection, a broken pipe, or
// a reset. Session servers exit and clients detach all the time, so
// these are logged at debug level rather than treated as failures.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

// IsConnectionRefused reports whether err is ECONNREFUSED. On a unix
// socket this means the file exists but nothing is listening, which is
// how a crashed session server leaves its socket behind.
func IsConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
