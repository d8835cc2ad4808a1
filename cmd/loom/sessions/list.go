// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/loom/cmd/loom/cli"
	"github.com/bureau-foundation/loom/session"
)

type listOptions struct {
	noFormatting bool
	short        bool
	reverse      bool
}

func listCommand(load Loader) *cli.Command {
	var options listOptions
	return &cli.Command{
		Name:    "list-sessions",
		Aliases: []string{"ls"},
		Summary: "List live and resurrectable sessions",
		Description: `List sessions, oldest first. Live sessions are found by probing the
sockets in the socket directory; dead sessions with a cached layout
are shown as EXITED and can be resurrected by attaching to them.`,
		Usage: "loom list-sessions [--no-formatting] [--short] [--reverse]",
		Examples: []cli.Example{
			{Description: "Names only, newest first", Command: "loom list-sessions --short --reverse"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list-sessions", pflag.ContinueOnError)
			flagSet.BoolVarP(&options.noFormatting, "no-formatting", "n", false, "plain output without colours")
			flagSet.BoolVarP(&options.short, "short", "s", false, "print session names only")
			flagSet.BoolVarP(&options.reverse, "reverse", "r", false, "list the newest session first")
			return flagSet
		},
		Run: func(args []string) error {
			if err := cli.MaxArgs("list-sessions", args, 0); err != nil {
				return err
			}
			env, err := load()
			if err != nil {
				return err
			}
			return listSessions(context.Background(), env, options)
		},
	}
}

func listSessions(ctx context.Context, env *Environment, options listOptions) error {
	order := session.OldestFirst
	if options.reverse {
		order = session.NewestFirst
	}
	sessions, err := env.Registry.Merged(ctx, order)
	if err != nil {
		return cli.Internal("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(env.Stderr, "No active sessions found.")
		return &cli.ExitError{Code: 1}
	}
	return WriteSessionList(env.Stdout, sessions, ListFormat{
		Short:   options.short,
		Profile: outputProfile(env.Stdout, options.noFormatting),
		Current: env.CurrentSession,
	})
}
