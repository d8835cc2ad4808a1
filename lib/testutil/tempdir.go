// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
)

// SocketDir creates a temporary directory in /tmp for socket files and
// removes it when the test finishes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "loom-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

var sessionCounter atomic.Uint64

// SessionName returns prefix followed by a process-unique counter,
// e.g. "session-7". The result is always a valid session name.
func SessionName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, sessionCounter.Add(1))
}
