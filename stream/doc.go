// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream moves a pane's pty output to the renderer.
//
// A [Pump] reads from one pty in 64 KiB chunks and forwards each chunk
// as a [PtyBytes] instruction tagged with the pane's terminal ID. It
// does not ask for a render after every chunk: output usually arrives
// in bursts, and rendering mid-burst wastes work and produces tearing.
// Instead the pump arms a render deadline when bytes arrive and keeps
// forwarding until either the deadline passes or a read times out, then
// sends a single [Render] instruction.
//
// The pump is a small state machine:
//
//	Idle                  no render pending; read blocks indefinitely
//	AwaitingData(d)       a render is due at d; read blocks until d
//	Forwarding            a chunk was read and is being handed on
//
// Render sends are timed. A consumer that takes longer than the
// backpressure threshold to accept a render is backed up, and the
// [Throttle] widens the minimum gap between renders (doubling from the
// gap step up to the maximum). Fast sends halve the gap again until it
// drops back to zero. A consumer that always accepts instantly never
// sees a gap.
//
// When the pty reports EOF or an error the pump stops reading and sends
// one last Render, ignoring any error from it, so the final output is
// drawn even if the consumer is shutting down too.
package stream
