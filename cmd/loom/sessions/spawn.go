// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/bureau-foundation/loom/server"
	"github.com/bureau-foundation/loom/transport"
)

// serverStartTimeout bounds how long a spawned server has to bind its
// socket.
const serverStartTimeout = 5 * time.Second

// spawnServer starts a detached server for name and waits for its
// socket. With resurrect, the server starts from the cached layout.
// The server inherits the environment, LOOM_CONFIG included.
func spawnServer(ctx context.Context, env *Environment, name string, resurrect bool) error {
	args := []string{"server", "--session", name}
	if resurrect {
		args = append(args, "--layout-file", env.Registry.Layouts().LayoutPath(name))
	}
	command := exec.Command(env.Executable, args...)
	// A new session and no inherited stdio: the server outlives this
	// process and logs to its own file.
	command.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := command.Start(); err != nil {
		return fmt.Errorf("starting server for session %s: %w", name, err)
	}
	pid := command.Process.Pid
	if err := command.Process.Release(); err != nil {
		env.Logger.Debug("releasing server process", "pid", pid, "error", err)
	}
	env.Logger.Debug("spawned session server", "session", name, "pid", pid, "resurrect", resurrect)

	waitCtx, cancel := context.WithTimeout(ctx, serverStartTimeout)
	defer cancel()
	if err := transport.WaitForSocket(waitCtx, env.Registry.SocketPath(name)); err != nil {
		return fmt.Errorf("session %s did not start (see %s): %w",
			name, server.LogPath(env.Registry.SocketDir(), name), err)
	}
	return nil
}
