// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by loom's package tests.
//
// [SocketDir] returns a short directory under /tmp for session
// sockets. Unix domain socket paths are limited to 108 bytes
// (sun_path), and t.TempDir() paths for long test names exceed that.
//
// [SessionName] returns a session name unique within the test binary.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the select
// with a wall-clock safety valve so a broken test fails instead of
// hanging. They are the only place tests wait on real time.
//
// Helpers call t.Fatalf on failure; setup failures are not recoverable.
package testutil
