// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package terminal owns the controlling terminal of an attached loom
// client.
//
// [Terminal] snapshots and restores the terminal mode, switches to raw
// mode, reports sizes, and toggles mouse reporting. The snapshot is
// taken at most once per process: restoring always returns to the mode
// the user had before loom touched the terminal, however many times
// raw mode was entered in between.
//
// [Poller] answers "is stdin readable within this timeout" so the input
// loop can notice that its session ended without blocking forever in
// read. The registration is made once and reused across calls.
//
// [SignalRouter] is the only place loom registers for OS signals. It
// coalesces bursts of SIGWINCH into at most one resize notification per
// throttle window and turns SIGTERM, SIGINT, SIGQUIT, and SIGHUP into a
// single terminate notification.
//
// [Arbitrator] decides which session owns the bytes read from stdin.
// When the active session changes while a read is blocked, the bytes
// from that read are parked in a one-slot handoff buffer and delivered
// to the next reader instead of the session that just ended.
//
// Only Unix-like systems are supported.
package terminal
