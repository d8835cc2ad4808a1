// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// UnixDialer connects to session sockets.
type UnixDialer struct {
	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

// DialContext connects to the Unix socket at path.
func (d *UnixDialer) DialContext(ctx context.Context, path string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	return conn, nil
}

// Dial connects to the Unix socket at path with no timeout beyond the
// kernel's own.
func Dial(path string) (net.Conn, error) {
	return (&UnixDialer{}).DialContext(context.Background(), path)
}

// Listener accepts connections on a session socket and removes the
// socket file when closed.
type Listener struct {
	listener *net.UnixListener
	path     string
}

// Listen binds a Unix socket at path. The caller must have already
// established that no live server owns path (the server does this with
// its per-session lock); any file left at path is treated as stale and
// removed first.
func Listen(path string) (*Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	// Close removes the file itself below; leaving unlink to the
	// runtime would race with a new server binding the same name.
	listener.SetUnlinkOnClose(false)
	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		os.Remove(path)
		return nil, fmt.Errorf("restricting socket permissions on %s: %w", path, err)
	}
	return &Listener{listener: listener, path: path}, nil
}

// Accept waits for the next connection. Returns an error wrapping
// net.ErrClosed once Close has been called.
func (l *Listener) Accept() (net.Conn, error) {
	return l.listener.Accept()
}

// Path returns the socket file path.
func (l *Listener) Path() string { return l.path }

// Close stops accepting connections and removes the socket file.
// Connections already accepted stay open.
func (l *Listener) Close() error {
	closeErr := l.listener.Close()
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) && closeErr == nil {
		closeErr = fmt.Errorf("removing socket %s: %w", l.path, err)
	}
	return closeErr
}
