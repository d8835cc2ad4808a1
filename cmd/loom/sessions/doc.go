// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessions implements the loom session commands: listing,
// attaching, creating, killing, deleting and switching sessions, plus
// the hidden server command that new sessions run as.
//
// Every command resolves its configuration and session registry through
// an [Environment], built once per invocation by the loader passed to
// [Commands]. Tests build an Environment directly over temporary
// directories.
package sessions
