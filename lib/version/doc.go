// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which loom build is running.
//
// [Version], [GitCommit] and [BuildTime] are injected with -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/loom/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/loom
//
// When they are not injected, the VCS stamp that the Go toolchain
// embeds in module builds fills in the commit and time.
package version
