// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/stream"
)

// Pane is a program running on a pseudo-terminal.
type Pane struct {
	command *exec.Cmd
	master  *os.File

	exited  chan struct{}
	waitErr error
}

// PaneConfig describes the program to start.
type PaneConfig struct {
	Program   string
	Args      []string
	Directory string
	Env       []string
	Size      ipc.Size
}

// StartPane starts the program on a new pty of the given size.
func StartPane(config PaneConfig) (*Pane, error) {
	command := exec.Command(config.Program, config.Args...)
	command.Dir = config.Directory
	command.Env = config.Env

	size := normalizeSize(config.Size)
	master, err := pty.StartWithSize(command, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return nil, fmt.Errorf("starting %s on a pty: %w", config.Program, err)
	}

	pollable, err := pollableMaster(master)
	if err != nil {
		_ = command.Process.Kill()
		_ = command.Wait()
		return nil, err
	}

	pane := &Pane{
		command: command,
		master:  pollable,
		exited:  make(chan struct{}),
	}
	go func() {
		pane.waitErr = command.Wait()
		close(pane.exited)
	}()
	return pane, nil
}

// pollableMaster returns a non-blocking duplicate of master registered
// with the runtime poller, so read deadlines work on it, and closes the
// original.
func pollableMaster(master *os.File) (*os.File, error) {
	defer master.Close()
	duplicate, err := unix.Dup(int(master.Fd()))
	if err != nil {
		return nil, fmt.Errorf("duplicating pty master: %w", err)
	}
	if err := unix.SetNonblock(duplicate, true); err != nil {
		unix.Close(duplicate)
		return nil, fmt.Errorf("making pty master non-blocking: %w", err)
	}
	return os.NewFile(uintptr(duplicate), master.Name()), nil
}

func normalizeSize(size ipc.Size) ipc.Size {
	if size.Rows == 0 || size.Cols == 0 {
		return ipc.Size{Rows: 24, Cols: 80}
	}
	return size
}

// Source returns the pane output for a stream.Pump.
func (p *Pane) Source() stream.Source {
	return stream.FileSource{File: p.master}
}

// Write sends input bytes to the program.
func (p *Pane) Write(input []byte) (int, error) {
	return p.master.Write(input)
}

// Resize changes the pty window size; the program receives SIGWINCH.
func (p *Pane) Resize(size ipc.Size) error {
	size = normalizeSize(size)
	raw, err := p.master.SyscallConn()
	if err != nil {
		return fmt.Errorf("resizing pane: %w", err)
	}
	var ioctlErr error
	err = raw.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetWinsize(int(fd), unix.TIOCSWINSZ, &unix.Winsize{Row: size.Rows, Col: size.Cols})
	})
	if err == nil {
		err = ioctlErr
	}
	if err != nil {
		return fmt.Errorf("resizing pane to %dx%d: %w", size.Cols, size.Rows, err)
	}
	return nil
}

// Exited is closed once the program has exited and been reaped.
func (p *Pane) Exited() <-chan struct{} { return p.exited }

// ExitError returns the program's wait result. Only valid after Exited
// is closed.
func (p *Pane) ExitError() error { return p.waitErr }

// Pid returns the program's process ID.
func (p *Pane) Pid() int { return p.command.Process.Pid }

// Close hangs up the program's process group, the way closing a
// terminal does, and closes the pty master.
func (p *Pane) Close() error {
	select {
	case <-p.exited:
	default:
		// The program is a session leader, so its pid is the group id.
		if err := unix.Kill(-p.command.Process.Pid, unix.SIGHUP); err != nil && !errors.Is(err, unix.ESRCH) {
			_ = p.command.Process.Kill()
		}
	}
	return p.master.Close()
}
