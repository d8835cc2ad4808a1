// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server runs one loom session: a background process that owns
// a shell on a pseudo-terminal and serves attached clients over the
// session's Unix socket.
//
// A [Server] holds an exclusive lock file next to its socket so two
// servers never bind the same name, answers the liveness handshake
// (ConnStatus → Connected) for the session registry, and streams pane
// output through a [stream.Pump] into a passthrough renderer that
// forwards bytes to every attached client. Newly attached clients first
// receive the recent output kept in a [Scrollback] buffer.
//
// On start the server writes a small YAML layout into the layout cache,
// which is what makes a session resurrectable after it dies. The
// session ends when the shell exits, a client sends KillSession, or the
// context passed to Run is cancelled. Every attached client is told why
// with SessionEnded, and the socket file is removed.
package server
