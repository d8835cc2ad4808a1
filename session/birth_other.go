// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package session

import (
	"os"
	"time"
)

// fileCreationTime returns the modification time of path, which for a
// socket or a layout written once is its creation time.
func fileCreationTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
