// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/bureau-foundation/loom/lib/clock"
	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/lib/netutil"
	"github.com/bureau-foundation/loom/session"
	"github.com/bureau-foundation/loom/stream"
	"github.com/bureau-foundation/loom/transport"
)

// ErrAlreadyRunning is returned by Run when another server holds the
// session's lock.
var ErrAlreadyRunning = errors.New("session server already running")

// paneTerminalID identifies the single pane in pump instructions.
const paneTerminalID = 1

// paneDrainTimeout bounds how long output is still forwarded after the
// pane's program exits.
const paneDrainTimeout = time.Second

// Config configures one session server.
type Config struct {
	// Name is the session name. The socket is SocketDir/Name.
	Name      string
	SocketDir string

	// Shell is the program to run when Resurrect does not name one.
	Shell string

	// Directory is the pane's working directory. Empty inherits the
	// server's.
	Directory string

	ScrollbackBytes int
	RenderQueue     int
	Throttle        stream.ThrottleConfig

	// Layouts, when set, receives this session's layout on start.
	Layouts *session.LayoutCache

	// Resurrect is a cached layout to start from instead of Shell and
	// Directory.
	Resurrect []byte
}

// LockPath returns the lock file guarding the session called name.
func LockPath(socketDir, name string) string {
	return filepath.Join(socketDir, "."+name+".lock")
}

// LogPath returns the log file of the session called name.
func LogPath(socketDir, name string) string {
	return filepath.Join(socketDir, "."+name+".log")
}

// Server serves one session.
type Server struct {
	config Config
	clock  clock.Clock
	logger *slog.Logger

	pane       *Pane
	scrollback *Scrollback

	// mu guards clients and orders scrollback writes against attach
	// replays, so an attaching client sees each byte exactly once.
	mu      sync.Mutex
	clients map[string]*attachedClient

	end       chan ipc.ExitReason
	endOnce   sync.Once
	endReason ipc.ExitReason
}

// New returns a Server for config. Nothing happens until Run.
func New(config Config, clock clock.Clock, logger *slog.Logger) *Server {
	return &Server{
		config:     config,
		clock:      clock,
		logger:     logger.With("session", config.Name),
		scrollback: NewScrollback(config.ScrollbackBytes),
		clients:    make(map[string]*attachedClient),
		end:        make(chan ipc.ExitReason, 1),
	}
}

// SocketPath returns the socket the server binds.
func (s *Server) SocketPath() string {
	return filepath.Join(s.config.SocketDir, s.config.Name)
}

// Run serves the session until the pane exits, a client kills it, or
// ctx is cancelled, and returns why it ended.
func (s *Server) Run(ctx context.Context) (ipc.ExitReason, error) {
	if err := session.ValidateName(s.config.Name); err != nil {
		return ipc.ExitError, err
	}
	if err := os.MkdirAll(s.config.SocketDir, 0700); err != nil {
		return ipc.ExitError, fmt.Errorf("creating socket directory: %w", err)
	}

	lock := flock.New(LockPath(s.config.SocketDir, s.config.Name))
	locked, err := lock.TryLock()
	if err != nil {
		return ipc.ExitError, fmt.Errorf("locking session %s: %w", s.config.Name, err)
	}
	if !locked {
		return ipc.ExitError, fmt.Errorf("%w: %s", ErrAlreadyRunning, s.config.Name)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	layout, err := s.startingLayout()
	if err != nil {
		return ipc.ExitError, err
	}

	listener, err := transport.Listen(s.SocketPath())
	if err != nil {
		return ipc.ExitError, err
	}
	defer listener.Close()

	pane, err := StartPane(PaneConfig{
		Program:   layout.Shell,
		Directory: layout.Directory,
		Env:       append(os.Environ(), session.NameVariable+"="+s.config.Name),
		Size:      ipc.Size{Rows: layout.Rows, Cols: layout.Cols},
	})
	if err != nil {
		return ipc.ExitError, err
	}
	s.pane = pane
	defer pane.Close()

	s.cacheLayout(layout)

	renderer := newPassthroughRenderer(s.config.RenderQueue, s.publish)
	go renderer.run()

	pump := stream.NewPump(pane.Source(), renderer, paneTerminalID, s.config.Throttle, s.clock, s.logger)
	pumpDone := make(chan error, 1)
	go func() { pumpDone <- pump.Run() }()

	go s.acceptLoop(listener)

	s.logger.Info("session started", "socket", s.SocketPath(), "pid", pane.Pid(), "shell", layout.Shell)

	var reason ipc.ExitReason
	select {
	case reason = <-s.end:
	case <-pane.Exited():
		reason = ipc.ExitPaneExited
		// Drain what the program wrote before exiting. A background
		// process still holding the pty keeps the stream open.
		select {
		case err := <-pumpDone:
			if err != nil {
				s.logger.Warn("pump ended with error", "error", err)
			}
		case <-s.clock.After(paneDrainTimeout):
		}
	case err := <-pumpDone:
		if err != nil {
			s.logger.Warn("pump ended with error", "error", err)
		}
		reason = ipc.ExitPaneExited
	case <-ctx.Done():
		reason = ipc.ExitNormal
	}
	s.requestEnd(reason)

	listener.Close()
	renderer.Stop()
	s.endClients(s.endReason)
	s.logger.Info("session ended", "reason", s.endReason)
	return s.endReason, nil
}

// startingLayout is the resurrected layout when one was given, or a
// fresh one from the configuration.
func (s *Server) startingLayout() (Layout, error) {
	layout := Layout{
		Session:   s.config.Name,
		Shell:     s.config.Shell,
		Directory: s.config.Directory,
		CreatedAt: s.clock.Now().UTC(),
	}
	if len(s.config.Resurrect) > 0 {
		cached, err := ParseLayout(s.config.Resurrect)
		if err != nil {
			return Layout{}, err
		}
		if cached.Shell != "" {
			layout.Shell = cached.Shell
		}
		if cached.Directory != "" {
			layout.Directory = cached.Directory
		}
		layout.Rows, layout.Cols = cached.Rows, cached.Cols
	}
	if layout.Shell == "" {
		return Layout{}, fmt.Errorf("no shell configured for session %s", s.config.Name)
	}
	return layout, nil
}

// cacheLayout makes the session resurrectable. Failure only costs
// resurrection, so it is logged.
func (s *Server) cacheLayout(layout Layout) {
	if s.config.Layouts == nil {
		return
	}
	data, err := MarshalLayout(layout)
	if err == nil {
		err = s.config.Layouts.Save(s.config.Name, data)
	}
	if err != nil {
		s.logger.Warn("failed to cache session layout", "error", err)
	}
}

func (s *Server) requestEnd(reason ipc.ExitReason) {
	s.endOnce.Do(func() {
		s.endReason = reason
		s.end <- reason
	})
}

func (s *Server) acceptLoop(listener *transport.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}
		go s.serve(conn)
	}
}

// serve handles one connection until the client leaves or the session
// ends.
func (s *Server) serve(conn net.Conn) {
	id := uuid.NewString()
	logger := s.logger.With("client", id)
	client := newAttachedClient(id, conn, logger)
	go client.writeLoop()
	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()
	defer s.removeClient(client)

	for {
		message, origin, err := client.channel.Receive()
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Debug("client connection ended", "error", err, "calls", origin.Calls)
			}
			return
		}
		if done := s.handle(client, message, logger); done {
			return
		}
	}
}

// handle applies one client message. It returns true when the client
// is finished with the connection.
func (s *Server) handle(client *attachedClient, message ipc.ClientMessage, logger *slog.Logger) bool {
	reply := ipc.ErrorContext{}.With("server/handle")
	switch message := message.(type) {
	case ipc.ConnStatus:
		client.enqueue(ipc.Connected{}, reply)
	case ipc.AttachClient:
		if err := s.pane.Resize(message.Size); err != nil {
			logger.Warn("resize on attach failed", "error", err)
		}
		s.attach(client)
		logger.Info("client attached", "rows", message.Size.Rows, "cols", message.Size.Cols)
	case ipc.TerminalResize:
		if err := s.pane.Resize(message.Size); err != nil {
			logger.Warn("resize failed", "error", err)
		}
	case ipc.Input:
		if _, err := s.pane.Write(message.Bytes); err != nil {
			logger.Warn("writing input to pane failed", "error", err)
		}
	case ipc.DetachSession:
		client.enqueue(ipc.SessionEnded{Reason: ipc.ExitDetached}, reply)
		logger.Info("client detached")
		return true
	case ipc.KillSession:
		logger.Info("kill requested")
		s.requestEnd(ipc.ExitKilled)
		return true
	case ipc.SwitchSession:
		logger.Info("switching attached clients", "target", message.Name)
		s.broadcast(message)
	case ipc.ClientExited:
		return true
	default:
		logger.Warn("unhandled client message", "kind", message.Kind())
	}
	return false
}

// attach replays the scrollback and starts forwarding output to client.
func (s *Server) attach(client *attachedClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	origin := ipc.ErrorContext{}.With("server/attach")
	client.enqueue(ipc.Connected{}, origin)
	if history := s.scrollback.Bytes(); len(history) > 0 {
		client.enqueue(ipc.Render{Content: history}, origin)
	}
	client.attached = true
}

// publish is the renderer's output: record content for replay and
// queue it for every attached client. Queuing never blocks, so the
// renderer's pace is independent of the slowest client.
func (s *Server) publish(content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollback.Write(content)
	origin := ipc.ErrorContext{}.With("server/render")
	for _, client := range s.clients {
		if client.attached {
			client.enqueue(ipc.Render{Content: content}, origin)
		}
	}
}

func (s *Server) broadcast(message ipc.ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	origin := ipc.ErrorContext{}.With("server/broadcast")
	for _, client := range s.clients {
		if client.attached {
			client.enqueue(message, origin)
		}
	}
}

func (s *Server) removeClient(client *attachedClient) {
	s.mu.Lock()
	delete(s.clients, client.id)
	s.mu.Unlock()
	client.finish()
}

// endClients tells attached clients the session is over, waits a
// bounded time for the messages to go out, and closes every connection.
func (s *Server) endClients(reason ipc.ExitReason) {
	s.mu.Lock()
	clients := make([]*attachedClient, 0, len(s.clients))
	attached := make(map[string]bool, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
		attached[client.id] = client.attached
	}
	s.mu.Unlock()

	origin := ipc.ErrorContext{}.With("server/end")
	for _, client := range clients {
		if attached[client.id] {
			client.enqueue(ipc.SessionEnded{Reason: reason}, origin)
		}
		client.finish()
	}
	deadline := s.clock.After(clientFlushTimeout)
	expired := false
	for _, client := range clients {
		if !expired {
			select {
			case <-client.flushed:
				continue
			case <-deadline:
				expired = true
			}
		}
		s.logger.Warn("client did not take its final messages", "client", client.id)
		client.conn.Close()
	}
}

// ClientCount returns the number of open client connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
