// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
)

// Dialer opens a connection to a session endpoint.
type Dialer interface {
	// DialContext connects to the socket at path.
	DialContext(ctx context.Context, path string) (net.Conn, error)
}

// Compile-time interface check.
var _ Dialer = (*UnixDialer)(nil)
