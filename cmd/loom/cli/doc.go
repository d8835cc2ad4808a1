// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the loom binary.
//
// The central type is [Command]: a named command with optional nested
// [Command.Subcommands], a [pflag.FlagSet] factory, and a Run function.
// [Command.Execute] handles help flags, subcommand routing (including
// aliases), flag parsing, and help output with examples.
//
// An unknown command or flag gets a "did you mean" suggestion when a
// known name is within Levenshtein distance 3. The same machinery backs
// [ClosestMatch], which session commands use to suggest a live session
// when a name is not found.
//
// Commands report failures as [ToolError] values carrying an
// [ErrorCategory], or as [ExitError] when they have already printed
// their own output and only need a specific exit code.
package cli
