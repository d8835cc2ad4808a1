// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/loom/cmd/loom/cli"
	"github.com/bureau-foundation/loom/lib/clock"
	"github.com/bureau-foundation/loom/lib/config"
	"github.com/bureau-foundation/loom/session"
	"github.com/bureau-foundation/loom/transport"
)

// Environment is what session commands run against.
type Environment struct {
	Config   *config.Config
	Registry *session.Registry
	Clock    clock.Clock
	Logger   *slog.Logger
	Stdout   io.Writer
	Stderr   io.Writer

	// CurrentSession is the session this process runs inside, if any.
	CurrentSession string

	// Executable is the loom binary used to spawn session servers.
	Executable string
}

// Loader builds the Environment for one command invocation.
type Loader func() (*Environment, error)

// LoadEnvironment reads the configuration named by LOOM_CONFIG, or the
// defaults, and prepares the directories.
func LoadEnvironment() (*Environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, cli.Internal("%w", err)
	}
	executable, err := os.Executable()
	if err != nil {
		return nil, cli.Internal("locating the loom binary: %w", err)
	}
	return NewEnvironment(cfg, cli.NewCommandLogger(level), executable), nil
}

// NewEnvironment assembles an Environment over cfg.
func NewEnvironment(cfg *config.Config, logger *slog.Logger, executable string) *Environment {
	realClock := clock.Real()
	registry := session.NewRegistry(session.Config{
		SocketDir:    cfg.Paths.SocketDir,
		CacheDir:     cfg.Paths.CacheDir,
		ProbeTimeout: cfg.Registry.ProbeTimeout,
	}, &transport.UnixDialer{Timeout: cfg.Registry.ProbeTimeout}, realClock, logger)
	return &Environment{
		Config:         cfg,
		Registry:       registry,
		Clock:          realClock,
		Logger:         logger,
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		CurrentSession: os.Getenv(session.NameVariable),
		Executable:     executable,
	}
}
