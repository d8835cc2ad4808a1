// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/loom/client"
	"github.com/bureau-foundation/loom/cmd/loom/cli"
	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/session"
	"github.com/bureau-foundation/loom/terminal"
	"github.com/bureau-foundation/loom/transport"
)

// picker chooses one of several sessions.
type picker func(sessions []session.Info) (string, error)

// attachPlan is what attach does once the target is known.
type attachPlan struct {
	name string

	// start means no server is running and one must be spawned.
	start bool

	// resurrect starts the server from the cached layout.
	resurrect bool
}

func attachCommand(load Loader) *cli.Command {
	var create bool
	return &cli.Command{
		Name:    "attach",
		Aliases: []string{"a"},
		Summary: "Attach to a session",
		Description: `Attach this terminal to a session. The name may be any unique prefix
of a live session. A dead session with a cached layout is
resurrected. Without a name, the only live session is attached, or a
picker is shown when there are several.

Press Ctrl-\ to detach and leave the session running.`,
		Usage: "loom attach [name-or-prefix] [--create]",
		Examples: []cli.Example{
			{Description: "Attach to the session whose name starts with 'ora'", Command: "loom attach ora"},
			{Description: "Attach to 'build', starting it if needed", Command: "loom attach build --create"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("attach", pflag.ContinueOnError)
			flagSet.BoolVarP(&create, "create", "c", false, "start the session if it does not exist")
			return flagSet
		},
		Run: func(args []string) error {
			if err := cli.MaxArgs("attach", args, 1); err != nil {
				return err
			}
			env, err := load()
			if err != nil {
				return err
			}
			if env.CurrentSession != "" {
				return cli.Validation("already inside session %q; use 'loom switch' to move to another session", env.CurrentSession)
			}
			ctx := context.Background()
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			plan, err := planAttach(ctx, env, prefix, create, terminalPicker())
			if err != nil {
				return err
			}
			if plan.start {
				if err := spawnServer(ctx, env, plan.name, plan.resurrect); err != nil {
					return cli.Transient("%w", err)
				}
			}
			return attachTo(ctx, env, plan.name)
		},
	}
}

// planAttach decides which session attach connects to and whether a
// server has to be started for it first.
func planAttach(ctx context.Context, env *Environment, prefix string, create bool, pick picker) (attachPlan, error) {
	live, err := env.Registry.ListLive(ctx)
	if err != nil {
		return attachPlan{}, cli.Internal("listing sessions: %w", err)
	}

	if prefix == "" {
		switch len(live) {
		case 0:
			if !create {
				return attachPlan{}, cli.NotFound("no active sessions found; start one with 'loom new-session'")
			}
			name, err := env.Registry.GenerateUniqueName(ctx)
			if err != nil {
				return attachPlan{}, cli.Internal("choosing a session name: %w", err)
			}
			return attachPlan{name: name, start: true}, nil
		case 1:
			return attachPlan{name: live[0].Name}, nil
		default:
			name, err := pick(live)
			if err != nil {
				return attachPlan{}, err
			}
			return attachPlan{name: name}, nil
		}
	}

	if err := session.ValidateName(prefix); err != nil {
		return attachPlan{}, cli.Validation("%w", err)
	}
	names := make([]string, len(live))
	for index, info := range live {
		names[index] = info.Name
	}
	match := session.ResolvePrefix(names, prefix)
	switch match.Kind {
	case session.MatchExact, session.MatchUniquePrefix:
		name, _ := match.Name()
		return attachPlan{name: name}, nil
	case session.MatchAmbiguousPrefix:
		var candidates []session.Info
		for _, info := range live {
			if strings.HasPrefix(info.Name, prefix) {
				candidates = append(candidates, info)
			}
		}
		name, err := pick(candidates)
		if err != nil {
			return attachPlan{}, err
		}
		return attachPlan{name: name}, nil
	}

	if env.Registry.IsResurrectable(prefix) {
		return attachPlan{name: prefix, start: true, resurrect: true}, nil
	}
	if create {
		if err := env.Registry.CheckNewName(ctx, prefix); err != nil {
			return attachPlan{}, newNameError(prefix, err)
		}
		return attachPlan{name: prefix, start: true}, nil
	}
	return attachPlan{}, notFound(ctx, env, prefix)
}

// terminalPicker shows the interactive picker when stdin and stderr
// are terminals, and otherwise fails with the list of candidates.
func terminalPicker() picker {
	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
	return func(sessions []session.Info) (string, error) {
		if !interactive {
			return "", ambiguousError(sessions)
		}
		name, err := pickSession(sessions, os.Stdin, os.Stderr)
		if errors.Is(err, errPickerCancelled) {
			return "", &cli.ExitError{Code: 1}
		}
		return name, err
	}
}

func ambiguousError(sessions []session.Info) error {
	names := make([]string, len(sessions))
	for index, info := range sessions {
		names[index] = info.Name
	}
	return cli.Validation("several sessions match: %s; give a longer prefix", strings.Join(names, ", "))
}

// attachTo runs the attach client on this process's terminal until the
// session ends or the client detaches.
func attachTo(ctx context.Context, env *Environment, name string) error {
	// Anything written to the terminal while it is raw corrupts the
	// display, so the client logs to a file beside the sockets.
	logger, closeLog := clientLogger(env)
	defer closeLog()

	console := terminal.New(logger)
	config := client.Config{
		SocketDir:   env.Registry.SocketDir(),
		PollTimeout: env.Config.Client.PollTimeout,
		Mouse:       env.Config.Client.Mouse,
	}
	attachClient := client.New(
		config,
		console,
		console.Stdin(),
		terminal.NewPoller(int(console.Stdin().Fd()), logger),
		terminal.NewSignalRouter(env.Clock, env.Config.Client.ResizeThrottle, logger),
		&transport.UnixDialer{Timeout: env.Config.Registry.ProbeTimeout},
		env.Clock,
		logger,
	)

	reason, err := attachClient.Attach(ctx, name)
	if err != nil {
		if errors.Is(err, ipc.ErrPoisoned) {
			return cli.Internal("session %s: %w", name, err)
		}
		return cli.Transient("%w", err)
	}
	fmt.Fprintln(env.Stderr, exitMessage(reason, attachClient.ActiveSession()))
	if reason == ipc.ExitError {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// exitMessage is printed after the terminal is restored.
func exitMessage(reason ipc.ExitReason, name string) string {
	switch reason {
	case ipc.ExitDetached:
		return fmt.Sprintf("[detached from %s]", name)
	case ipc.ExitKilled:
		return fmt.Sprintf("[session %s was killed]", name)
	case ipc.ExitPaneExited:
		return fmt.Sprintf("[session %s exited]", name)
	case ipc.ExitError:
		return fmt.Sprintf("[session %s ended with an error]", name)
	default:
		return "Bye from loom!"
	}
}

func clientLogger(env *Environment) (*slog.Logger, func()) {
	path := filepath.Join(env.Registry.SocketDir(), ".client.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		env.Logger.Debug("client log unavailable, discarding", "path", path, "error", err)
		return slog.New(slog.DiscardHandler), func() {}
	}
	level, err := env.Config.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return cli.NewFileLogger(file, level), func() { file.Close() }
}
