// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for loom binaries that run
// without a terminal, such as the detached session server, where an
// unrecoverable error must still reach stderr before the logger exists.
package process
