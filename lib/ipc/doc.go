// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc is the typed message channel between a loom client and a
// session server.
//
// Messages travel as a stream of CBOR [Envelope] values over the
// connection returned by the transport package. Each envelope carries a
// [Kind] tag, the message payload, and an [ErrorContext] naming the
// chain of call sites that produced it, so a failure on the far side
// can be logged with its origin.
//
// A [Channel] has independently guarded send and receive halves: a
// goroutine blocked in Receive never delays a Send. Receive acquires its
// half with a try-lock and sleeps between attempts (100ms by default)
// rather than queueing on the mutex. If a goroutine panics while holding
// the receive half, the half is marked poisoned and every later Receive
// returns [ErrPoisoned]; callers treat that as fatal.
//
// Sending on a Channel that has no connection, or whose peer has gone,
// logs and drops the message. The error is still returned for callers
// that need to act on it (the liveness probe, kill-session), but most
// callers ignore it and carry on.
package ipc
