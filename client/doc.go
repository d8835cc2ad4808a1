// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client attaches the user's terminal to a running loom
// session.
//
// While attached the terminal is in raw mode. Keystrokes are read
// through a [terminal.Arbitrator] after the readiness poller reports
// input, and sent to the server as Input messages. Output arrives as
// Render messages and is written to stdout unchanged. Resize signals
// become TerminalResize messages.
//
// When the server relays a SwitchSession, the client connects to the
// named session on the same channel and moves input ownership to it;
// input read on behalf of the old session is delivered to the new one.
// The terminal mode captured at attach time is restored on every exit
// path.
package client
