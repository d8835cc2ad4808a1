// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/loom/cmd/loom/cli"
	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/session"
	"github.com/bureau-foundation/loom/transport"
)

func switchCommand(load Loader) *cli.Command {
	return &cli.Command{
		Name:    "switch",
		Aliases: []string{"sw"},
		Summary: "Move the attached terminal to another session",
		Description: `Run from inside a session to move every client attached to it over
to another live session. The current session keeps running.`,
		Usage: "loom switch <name-or-prefix>",
		Run: func(args []string) error {
			if err := cli.ExactArgs("switch", args, 1); err != nil {
				return err
			}
			env, err := load()
			if err != nil {
				return err
			}
			return switchSession(context.Background(), env, args[0])
		},
	}
}

func switchSession(ctx context.Context, env *Environment, prefix string) error {
	if env.CurrentSession == "" {
		return cli.Validation("not inside a loom session (%s is unset)", session.NameVariable)
	}
	target, err := resolveLive(ctx, env, prefix)
	if err != nil {
		return err
	}
	if target == env.CurrentSession {
		fmt.Fprintf(env.Stderr, "Already in session %s.\n", target)
		return nil
	}

	dialer := &transport.UnixDialer{Timeout: env.Config.Registry.ProbeTimeout}
	conn, err := dialer.DialContext(ctx, env.Registry.SocketPath(env.CurrentSession))
	if err != nil {
		return cli.Transient("connecting to session %s: %w", env.CurrentSession, err)
	}
	channel := ipc.NewClientChannel(conn, env.Logger)
	defer channel.Close()
	if err := channel.Send(ipc.SwitchSession{Name: target}, ipc.ErrorContext{}.With("cli/switch")); err != nil {
		return cli.Transient("asking session %s to switch: %w", env.CurrentSession, err)
	}
	return nil
}
