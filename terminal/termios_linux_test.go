// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import "golang.org/x/sys/unix"

const ioctlGetTermios = unix.TCGETS
