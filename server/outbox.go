// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/loom/lib/ipc"
)

const (
	// clientQueueLength is how many messages may wait for one client
	// before it is disconnected as stalled.
	clientQueueLength = 256

	// clientWriteTimeout bounds a single socket write to a client.
	clientWriteTimeout = 2 * time.Second

	// clientFlushTimeout bounds how long shutdown waits for clients to
	// receive their final messages.
	clientFlushTimeout = 2 * time.Second
)

type outgoing struct {
	message ipc.ServerMessage
	origin  ipc.ErrorContext
}

// attachedClient is one client connection. Messages to it go through a
// bounded queue drained by its own writer goroutine, so a client that
// stops reading never blocks the session.
type attachedClient struct {
	id      string
	conn    net.Conn
	channel *ipc.ServerChannel
	logger  *slog.Logger

	// attached is guarded by Server.mu.
	attached bool

	mu      sync.Mutex
	closed  bool
	outbox  chan outgoing
	flushed chan struct{}
}

func newAttachedClient(id string, conn net.Conn, logger *slog.Logger) *attachedClient {
	return &attachedClient{
		id:      id,
		conn:    conn,
		channel: ipc.NewServerChannel(conn, logger),
		logger:  logger,
		outbox:  make(chan outgoing, clientQueueLength),
		flushed: make(chan struct{}),
	}
}

// enqueue queues message without blocking. A full queue disconnects
// the client.
func (c *attachedClient) enqueue(message ipc.ServerMessage, origin ipc.ErrorContext) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.outbox <- outgoing{message: message, origin: origin}:
		return true
	default:
		c.logger.Warn("client is not reading, disconnecting", "queued", len(c.outbox))
		c.closed = true
		close(c.outbox)
		c.conn.Close()
		return false
	}
}

// finish stops accepting messages. The writer delivers what is already
// queued and then closes the connection.
func (c *attachedClient) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.outbox)
	}
}

// writeLoop sends queued messages until the queue is closed. A failed
// or timed-out write drops the rest.
func (c *attachedClient) writeLoop() {
	defer close(c.flushed)
	defer c.conn.Close()
	for next := range c.outbox {
		_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		if err := c.channel.Send(next.message, next.origin); err != nil {
			c.conn.Close()
			for range c.outbox {
			}
			return
		}
	}
}
