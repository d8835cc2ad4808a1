// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Loom is a terminal session multiplexer: sessions keep running in
// background servers while terminals attach, detach and switch between
// them.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/loom/cmd/loom/cli"
	"github.com/bureau-foundation/loom/cmd/loom/sessions"
	"github.com/bureau-foundation/loom/lib/config"
	"github.com/bureau-foundation/loom/lib/process"
	"github.com/bureau-foundation/loom/lib/version"
)

func main() {
	err := run(os.Args[1:])
	code, report := cli.ExitStatus(err)
	if report {
		process.Fatal(err)
	}
	os.Exit(code)
}

func run(args []string) error {
	args, configPath, err := extractConfigFlag(args)
	if err != nil {
		return err
	}
	if configPath != "" {
		absolute, err := filepath.Abs(configPath)
		if err != nil {
			return cli.Validation("--config: %w", err)
		}
		// Spawned session servers inherit the environment, so they
		// read the same file.
		if err := os.Setenv(config.EnvironmentVariable, absolute); err != nil {
			return cli.Internal("setting %s: %w", config.EnvironmentVariable, err)
		}
	}
	return root().Execute(args)
}

func root() *cli.Command {
	return &cli.Command{
		Name:    "loom",
		Summary: "Terminal session multiplexer",
		Description: `Loom runs shells in background session servers. Terminals attach to a
session, detach from it with Ctrl-\, and switch between sessions
without the shells noticing.

Dead sessions whose layout was cached can be resurrected by attaching
to them by name.

Global flags:
  --config <path>   configuration file (default: $LOOM_CONFIG)`,
		Usage: "loom [--config <path>] <command> [arguments]",
		Examples: []cli.Example{
			{Description: "Start a session with a generated name", Command: "loom new-session"},
			{Description: "Attach to a session by prefix", Command: "loom attach ora"},
			{Description: "List sessions", Command: "loom ls"},
		},
		Subcommands: append(sessions.Commands(sessions.LoadEnvironment), versionCommand()),
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print build information",
		Usage:   "loom version",
		Run: func(args []string) error {
			if err := cli.MaxArgs("version", args, 0); err != nil {
				return err
			}
			fmt.Println("loom " + version.Current().Full())
			return nil
		},
	}
}

// extractConfigFlag removes --config from anywhere before a "--"
// terminator and returns its value.
func extractConfigFlag(args []string) (remaining []string, path string, err error) {
	remaining = make([]string, 0, len(args))
	for index := 0; index < len(args); index++ {
		arg := args[index]
		switch {
		case arg == "--":
			return append(remaining, args[index:]...), path, nil
		case arg == "--config":
			if index+1 >= len(args) {
				return nil, "", cli.Validation("--config requires a path")
			}
			index++
			path = args[index]
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
			if path == "" {
				return nil, "", cli.Validation("--config requires a path")
			}
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, path, nil
}
