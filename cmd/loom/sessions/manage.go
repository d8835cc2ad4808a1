// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/loom/cmd/loom/cli"
	"github.com/bureau-foundation/loom/session"
)

func killCommand(load Loader) *cli.Command {
	return &cli.Command{
		Name:    "kill-session",
		Aliases: []string{"k"},
		Summary: "End a running session",
		Usage:   "loom kill-session <name>",
		Run: func(args []string) error {
			if err := cli.ExactArgs("kill-session", args, 1); err != nil {
				return err
			}
			env, err := load()
			if err != nil {
				return err
			}
			return killSession(context.Background(), env, args[0])
		},
	}
}

func killSession(ctx context.Context, env *Environment, name string) error {
	if err := session.ValidateName(name); err != nil {
		return cli.Validation("%w", err)
	}
	exists, err := env.Registry.Exists(ctx, name)
	if err != nil {
		return cli.Internal("listing sessions: %w", err)
	}
	if !exists {
		return notFound(ctx, env, name)
	}
	if err := env.Registry.Kill(ctx, name); err != nil {
		return cli.Transient("%w", err)
	}
	return nil
}

func deleteCommand(load Loader) *cli.Command {
	var force bool
	return &cli.Command{
		Name:    "delete-session",
		Aliases: []string{"d"},
		Summary: "Forget a dead session so it can no longer be resurrected",
		Description: `Remove a session's cached layout. A running session is refused unless
--force is given, in which case it is killed first.

Exits with status 2 when there is nothing cached for the name.`,
		Usage: "loom delete-session <name> [--force]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("delete-session", pflag.ContinueOnError)
			flagSet.BoolVarP(&force, "force", "f", false, "kill the session first if it is running")
			return flagSet
		},
		Run: func(args []string) error {
			if err := cli.ExactArgs("delete-session", args, 1); err != nil {
				return err
			}
			env, err := load()
			if err != nil {
				return err
			}
			return deleteSession(context.Background(), env, args[0], force)
		},
	}
}

func deleteSession(ctx context.Context, env *Environment, name string, force bool) error {
	if _, err := env.Registry.CheckDeletable(ctx, name, force); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidName):
			return cli.Validation("%w", err)
		case errors.Is(err, session.ErrActive):
			return cli.Conflict("session %q is running; kill it first or pass --force", name)
		default:
			return cli.Internal("checking session %q: %w", name, err)
		}
	}
	if err := env.Registry.Delete(ctx, name, force); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			fmt.Fprintf(env.Stderr, "No resurrectable session named %q.\n", name)
			return &cli.ExitError{Code: 2}
		}
		return cli.Internal("deleting session %q: %w", name, err)
	}
	return nil
}

func newSessionCommand(load Loader) *cli.Command {
	var detached bool
	return &cli.Command{
		Name:    "new-session",
		Aliases: []string{"new"},
		Summary: "Start a new session and attach to it",
		Description: `Start a new session. Without a name, a random adjective-noun name is
chosen. The name must not belong to a live session or to a dead one
that can still be resurrected.`,
		Usage: "loom new-session [name] [--detached]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("new-session", pflag.ContinueOnError)
			flagSet.BoolVarP(&detached, "detached", "d", false, "start the session without attaching")
			return flagSet
		},
		Run: func(args []string) error {
			if err := cli.MaxArgs("new-session", args, 1); err != nil {
				return err
			}
			env, err := load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			requested := ""
			if len(args) == 1 {
				requested = args[0]
			}
			name, err := createSession(ctx, env, requested)
			if err != nil {
				return err
			}
			if detached {
				fmt.Fprintln(env.Stdout, name)
				return nil
			}
			return attachTo(ctx, env, name)
		},
	}
}

// createSession starts a server for a new session and returns its
// name.
func createSession(ctx context.Context, env *Environment, name string) (string, error) {
	if name == "" {
		generated, err := env.Registry.GenerateUniqueName(ctx)
		if err != nil {
			return "", cli.Internal("choosing a session name: %w", err)
		}
		name = generated
	}
	if err := env.Registry.CheckNewName(ctx, name); err != nil {
		return "", newNameError(name, err)
	}
	if err := spawnServer(ctx, env, name, false); err != nil {
		return "", cli.Transient("%w", err)
	}
	return name, nil
}
