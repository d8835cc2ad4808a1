// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// fileCreationTime returns the birth time of path when the filesystem
// records one, and the modification time otherwise.
func fileCreationTime(path string, info os.FileInfo) time.Time {
	var statx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &statx)
	if err != nil || statx.Mask&unix.STATX_BTIME == 0 {
		return info.ModTime()
	}
	return time.Unix(statx.Btime.Sec, int64(statx.Btime.Nsec))
}
