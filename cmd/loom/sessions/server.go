// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/loom/cmd/loom/cli"
	"github.com/bureau-foundation/loom/lib/config"
	"github.com/bureau-foundation/loom/lib/version"
	"github.com/bureau-foundation/loom/server"
	"github.com/bureau-foundation/loom/session"
	"github.com/bureau-foundation/loom/stream"
)

type serverOptions struct {
	name       string
	layoutFile string
}

func serverCommand(load Loader) *cli.Command {
	var options serverOptions
	return &cli.Command{
		Name:    "server",
		Summary: "Run a session server (started by attach and new-session)",
		Usage:   "loom server --session <name> [--layout-file <path>]",
		Hidden:  true,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("server", pflag.ContinueOnError)
			flagSet.StringVar(&options.name, "session", "", "session name")
			flagSet.StringVar(&options.layoutFile, "layout-file", "", "cached layout to resurrect from")
			return flagSet
		},
		Run: func(args []string) error {
			if err := cli.MaxArgs("server", args, 0); err != nil {
				return err
			}
			if options.name == "" {
				return cli.Validation("server: --session is required")
			}
			env, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
			defer stop()
			return runServer(ctx, env, options)
		},
	}
}

func runServer(ctx context.Context, env *Environment, options serverOptions) error {
	if err := session.ValidateName(options.name); err != nil {
		return cli.Validation("%w", err)
	}
	socketDir := env.Registry.SocketDir()
	if err := os.MkdirAll(socketDir, 0o700); err != nil {
		return cli.Internal("creating socket directory: %w", err)
	}

	logPath := server.LogPath(socketDir, options.name)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return cli.Internal("opening server log: %w", err)
	}
	defer logFile.Close()
	level, err := env.Config.LogLevel()
	if err != nil {
		return cli.Validation("%w", err)
	}
	logger := cli.NewFileLogger(logFile, level).With("session", options.name)

	var resurrect []byte
	if options.layoutFile != "" {
		resurrect, err = os.ReadFile(options.layoutFile)
		if err != nil {
			return cli.Internal("reading layout: %w", err)
		}
	}
	var layouts *session.LayoutCache
	if env.Config.Server.CacheLayout {
		layouts = env.Registry.Layouts()
	}

	sessionServer := server.New(server.Config{
		Name:            options.name,
		SocketDir:       socketDir,
		Shell:           env.Config.Server.Shell,
		ScrollbackBytes: env.Config.Server.ScrollbackBytes,
		RenderQueue:     env.Config.Server.RenderQueue,
		Throttle:        throttleConfig(env.Config),
		Layouts:         layouts,
		Resurrect:       resurrect,
	}, env.Clock, logger)

	logger.Info("starting session server", "version", version.Current().String(), "pid", os.Getpid())
	reason, err := sessionServer.Run(ctx)
	if err != nil {
		logger.Error("session server failed", "error", err)
		if errors.Is(err, server.ErrAlreadyRunning) {
			return cli.Conflict("%w", err)
		}
		return cli.Internal("session %s: %w", options.name, err)
	}
	logger.Info("session server exited", "reason", string(reason))
	return nil
}

// throttleConfig maps the stream section of the configuration onto the
// pump's tuning.
func throttleConfig(cfg *config.Config) stream.ThrottleConfig {
	return stream.ThrottleConfig{
		RenderDelay:           cfg.Stream.RenderDelay,
		BackpressureThreshold: cfg.Stream.BackpressureThreshold,
		GapStep:               cfg.Stream.GapStep,
		MaxGap:                cfg.Stream.MaxGap,
	}
}
