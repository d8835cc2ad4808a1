// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/loom/lib/clock"
	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/terminal"
	"github.com/bureau-foundation/loom/transport"
)

// DetachKey (Ctrl-\) detaches from the session and leaves it running.
const DetachKey = 0x1c

// Controller is the terminal the client draws on.
type Controller interface {
	CaptureMode()
	EnterRawMode() error
	RestoreMode()
	Size(role terminal.Role) terminal.Size
	EnableMouse() error
	DisableMouse() error
	Stdout() io.Writer
}

// Readiness reports whether input can be read without blocking.
type Readiness interface {
	Ready(timeout time.Duration) bool
}

// SignalSource delivers resize and terminate notifications.
type SignalSource interface {
	Run(ctx context.Context, onResize func(), onTerminate func())
}

// Config configures an attach.
type Config struct {
	SocketDir   string
	PollTimeout time.Duration
	Mouse       bool

	// WaitTimeout bounds how long Attach waits for the session socket
	// to appear, for sessions that are still starting.
	WaitTimeout time.Duration
}

// Client attaches one terminal to sessions.
type Client struct {
	config    Config
	terminal  Controller
	input     *terminal.Arbitrator
	readiness Readiness
	signals   SignalSource
	dialer    transport.Dialer
	clock     clock.Clock
	logger    *slog.Logger

	channel *ipc.ClientChannel
}

// New returns a Client. signals may be nil, in which case resizes and
// terminate signals are not handled.
func New(config Config, controller Controller, input io.Reader, readiness Readiness, signals SignalSource, dialer transport.Dialer, clock clock.Clock, logger *slog.Logger) *Client {
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = 5 * time.Second
	}
	return &Client{
		config:    config,
		terminal:  controller,
		input:     terminal.NewArbitrator(input),
		readiness: readiness,
		signals:   signals,
		dialer:    dialer,
		clock:     clock,
		logger:    logger,
	}
}

// ActiveSession returns the session the client is attached to.
func (c *Client) ActiveSession() string {
	name, _ := c.input.ActiveSession()
	return name
}

type attachResult struct {
	reason ipc.ExitReason
	err    error
}

// Attach connects to the session called name and runs until the
// session ends, the client detaches, or a terminate signal arrives. The
// terminal is restored before Attach returns.
func (c *Client) Attach(ctx context.Context, name string) (ipc.ExitReason, error) {
	conn, err := c.connect(ctx, name)
	if err != nil {
		return ipc.ExitError, err
	}
	c.channel = ipc.NewClientChannel(conn, c.logger)
	defer c.channel.Close()
	c.input.SetActiveSession(name)

	c.terminal.CaptureMode()
	if err := c.terminal.EnterRawMode(); err != nil {
		return ipc.ExitError, fmt.Errorf("entering raw mode: %w", err)
	}
	defer c.terminal.RestoreMode()
	if c.config.Mouse {
		if err := c.terminal.EnableMouse(); err != nil {
			c.logger.Warn("enabling mouse reporting failed", "error", err)
		}
		defer c.terminal.DisableMouse()
	}

	c.sendAttach("client/attach")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan attachResult, 3)

	if c.signals != nil {
		go c.signals.Run(ctx, func() {
			c.channel.Send(ipc.TerminalResize{Size: c.size()}, ipc.ErrorContext{}.With("client/signals"))
		}, func() {
			c.channel.Send(ipc.ClientExited{}, ipc.ErrorContext{}.With("client/signals"))
			results <- attachResult{reason: ipc.ExitNormal}
		})
	}
	go c.inputLoop(ctx, results)
	go c.receiveLoop(results)

	select {
	case result := <-results:
		return result.reason, result.err
	case <-ctx.Done():
		c.channel.Send(ipc.ClientExited{}, ipc.ErrorContext{}.With("client/attach"))
		return ipc.ExitNormal, nil
	}
}

// connect waits for the session's socket and dials it.
func (c *Client) connect(ctx context.Context, name string) (net.Conn, error) {
	path := filepath.Join(c.config.SocketDir, name)
	waitCtx, cancel := context.WithTimeout(ctx, c.config.WaitTimeout)
	defer cancel()
	if err := transport.WaitForSocket(waitCtx, path); err != nil {
		return nil, fmt.Errorf("waiting for session %s: %w", name, err)
	}
	conn, err := c.dialer.DialContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("connecting to session %s: %w", name, err)
	}
	return conn, nil
}

func (c *Client) size() ipc.Size {
	size := c.terminal.Size(terminal.Stdout)
	return ipc.Size{Rows: uint16(size.Rows), Cols: uint16(size.Cols)}
}

func (c *Client) sendAttach(call string) {
	c.channel.Send(ipc.AttachClient{Size: c.size()}, ipc.ErrorContext{}.With(call))
}

// inputLoop forwards keyboard input to the active session.
func (c *Client) inputLoop(ctx context.Context, results chan<- attachResult) {
	origin := ipc.ErrorContext{}.With("client/input")
	for ctx.Err() == nil {
		if !c.readiness.Ready(c.config.PollTimeout) {
			continue
		}
		chunk, err := c.input.Read()
		if errors.Is(err, terminal.ErrSessionEnded) {
			// Parked for the new session's first read.
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Warn("reading terminal input failed", "error", err)
			}
			c.channel.Send(ipc.ClientExited{}, origin)
			results <- attachResult{reason: ipc.ExitNormal}
			return
		}
		if len(chunk) == 0 {
			continue
		}
		if index := bytes.IndexByte(chunk, DetachKey); index >= 0 {
			if index > 0 {
				c.channel.Send(ipc.Input{Bytes: chunk[:index]}, origin)
			}
			// The server answers with SessionEnded, which ends the
			// receive loop.
			c.channel.Send(ipc.DetachSession{}, origin)
			return
		}
		c.channel.Send(ipc.Input{Bytes: chunk}, origin)
	}
}

// receiveLoop draws output and follows session switches until the
// session ends or the connection fails.
func (c *Client) receiveLoop(results chan<- attachResult) {
	stdout := c.terminal.Stdout()
	for {
		message, origin, err := c.channel.Receive()
		if err != nil {
			if errors.Is(err, ipc.ErrPoisoned) {
				results <- attachResult{reason: ipc.ExitError, err: err}
				return
			}
			results <- attachResult{
				reason: ipc.ExitError,
				err:    fmt.Errorf("lost connection to session %s: %w", c.ActiveSession(), err),
			}
			return
		}

		switch message := message.(type) {
		case ipc.Render:
			if _, err := stdout.Write(message.Content); err != nil {
				c.logger.Warn("writing to terminal failed", "error", err)
			}
		case ipc.SessionEnded:
			results <- attachResult{reason: message.Reason}
			return
		case ipc.SwitchSession:
			c.switchTo(message.Name)
		case ipc.Connected:
		default:
			c.logger.Debug("unhandled server message", "kind", message.Kind(), "calls", origin.Calls)
		}
	}
}

// switchTo moves the channel and input ownership to another session.
// On failure the client stays on the current session.
func (c *Client) switchTo(name string) {
	current := c.ActiveSession()
	if name == current {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.WaitTimeout)
	defer cancel()
	conn, err := c.connect(ctx, name)
	if err != nil {
		c.logger.Warn("cannot switch session", "from", current, "to", name, "error", err)
		return
	}
	c.channel.Connect(conn)
	c.input.SetActiveSession(name)
	c.sendAttach("client/switch")
	c.logger.Info("switched session", "from", current, "to", name)
}
