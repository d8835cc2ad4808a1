// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package terminal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal controls the process's controlling terminal.
type Terminal struct {
	logger *slog.Logger
	stdin  *os.File
	stdout io.Writer
	files  [3]*os.File

	mu       sync.Mutex
	snapshot *term.State
}

// New returns a Terminal over the process's standard streams.
func New(logger *slog.Logger) *Terminal {
	return NewWithFiles(os.Stdin, os.Stdout, os.Stderr, logger)
}

// NewWithFiles returns a Terminal over explicit streams. Tests pass the
// slave side of a pty.
func NewWithFiles(stdin, stdout, stderr *os.File, logger *slog.Logger) *Terminal {
	return &Terminal{
		logger: logger,
		stdin:  stdin,
		stdout: stdout,
		files:  [3]*os.File{stdin, stdout, stderr},
	}
}

// Stdin returns the input stream for the Arbitrator.
func (t *Terminal) Stdin() *os.File { return t.stdin }

// Stdout returns the output stream renders are written to.
func (t *Terminal) Stdout() io.Writer { return t.stdout }

// IsTerminal reports whether the stream for role is a terminal.
func (t *Terminal) IsTerminal(role Role) bool {
	file := t.file(role)
	return file != nil && term.IsTerminal(int(file.Fd()))
}

// CaptureMode records the current mode of stdin. Only the first
// successful capture is kept; later calls are no-ops. If stdin is not a
// terminal nothing is captured and the failure is only logged.
func (t *Terminal) CaptureMode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.captureLocked(); err != nil {
		t.logger.Debug("terminal mode not captured", "error", err)
	}
}

func (t *Terminal) captureLocked() error {
	if t.snapshot != nil {
		return nil
	}
	state, err := term.GetState(int(t.stdin.Fd()))
	if err != nil {
		return fmt.Errorf("capturing terminal mode: %w", err)
	}
	t.snapshot = state
	return nil
}

// EnterRawMode puts stdin into raw mode: no echo, no line buffering, no
// signal generation from control characters. The prior mode is captured
// first if CaptureMode has not been called.
func (t *Terminal) EnterRawMode() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.captureLocked(); err != nil {
		return err
	}
	if _, err := term.MakeRaw(int(t.stdin.Fd())); err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	return nil
}

// RestoreMode returns stdin to the captured mode. Without a snapshot it
// logs a warning and does nothing.
func (t *Terminal) RestoreMode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshot == nil {
		t.logger.Warn("no saved terminal mode to restore")
		return
	}
	if err := term.Restore(int(t.stdin.Fd()), t.snapshot); err != nil {
		t.logger.Warn("restoring terminal mode", "error", err)
	}
}

// Size returns the size of the terminal behind role, or DefaultSize if
// it cannot be queried or either dimension is zero.
func (t *Terminal) Size(role Role) Size {
	file := t.file(role)
	if file == nil {
		return DefaultSize
	}
	winsize, err := unix.IoctlGetWinsize(int(file.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		t.logger.Debug("querying terminal size", "stream", role, "error", err)
		return DefaultSize
	}
	return Size{Cols: winsize.Col, Rows: winsize.Row}.normalize()
}

// EnableMouse turns on mouse reporting.
func (t *Terminal) EnableMouse() error {
	return writeSequence(t.stdout, EnableMouseSequence)
}

// DisableMouse turns off mouse reporting.
func (t *Terminal) DisableMouse() error {
	return writeSequence(t.stdout, DisableMouseSequence)
}

func (t *Terminal) file(role Role) *os.File {
	if role < Stdin || role > Stderr {
		return nil
	}
	return t.files[role]
}

type flusher interface {
	Flush() error
}

// writeSequence writes an escape sequence and flushes it so the
// terminal acts on it before any following output.
func writeSequence(w io.Writer, sequence string) error {
	if _, err := io.WriteString(w, sequence); err != nil {
		return fmt.Errorf("writing terminal control sequence: %w", err)
	}
	if buffered, ok := w.(flusher); ok {
		if err := buffered.Flush(); err != nil {
			return fmt.Errorf("flushing terminal control sequence: %w", err)
		}
	}
	return nil
}
