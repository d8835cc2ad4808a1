// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport opens the local stream connections that carry
// loom's client/server protocol.
//
// Every live session owns exactly one endpoint: a Unix domain socket in
// the socket directory whose file name is the session name. A server
// binds it with [Listen]; clients and the session registry reach it
// with a [Dialer]. [WaitForSocket] lets a client that just spawned a
// server block until the endpoint appears, using fsnotify rather than
// polling the directory.
//
// A dial that fails with ECONNREFUSED means the socket file outlived
// its server. [netutil.IsConnectionRefused] classifies that case so the
// registry can remove the stale file.
//
// The package knows nothing about message encoding; lib/ipc layers the
// typed protocol on top of the net.Conn values returned here.
package transport
