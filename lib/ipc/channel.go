// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/loom/lib/clock"
	"github.com/bureau-foundation/loom/lib/codec"
	"github.com/bureau-foundation/loom/lib/netutil"
)

var (
	// ErrNotConnected is returned when a Channel has no connection.
	ErrNotConnected = errors.New("ipc: channel not connected")

	// ErrPoisoned is returned by Receive after a goroutine panicked
	// while holding the receive half. The channel cannot be trusted to
	// be positioned at an envelope boundary, so this is unrecoverable.
	ErrPoisoned = errors.New("ipc: receive guard poisoned")
)

// DefaultReceiveRetry is how long Receive sleeps between attempts to
// take the receive half.
const DefaultReceiveRetry = 100 * time.Millisecond

// Channel is a bidirectional typed message channel. Out is the type
// this side sends, In the type it receives.
type Channel[Out Message, In Message] struct {
	logger *slog.Logger
	clock  clock.Clock
	decode func(Envelope) (In, error)

	// receiveRetry is the sleep between try-lock attempts on the
	// receive half.
	receiveRetry time.Duration

	sendMu  sync.Mutex
	conn    net.Conn
	encoder *codec.Encoder

	receiveMu       sync.Mutex
	receivePoisoned atomic.Bool
	decoder         *codec.Decoder
}

// ClientChannel is the client's end: it sends ClientMessage values and
// receives ServerMessage values.
type ClientChannel = Channel[ClientMessage, ServerMessage]

// ServerChannel is the server's end of one client connection.
type ServerChannel = Channel[ServerMessage, ClientMessage]

// NewClientChannel returns a client channel over conn. A nil conn
// yields an unconnected channel; call Connect later.
func NewClientChannel(conn net.Conn, logger *slog.Logger) *ClientChannel {
	return newChannel[ClientMessage](conn, DecodeServerMessage, logger)
}

// NewServerChannel returns a server channel over conn.
func NewServerChannel(conn net.Conn, logger *slog.Logger) *ServerChannel {
	return newChannel[ServerMessage](conn, DecodeClientMessage, logger)
}

func newChannel[Out Message, In Message](conn net.Conn, decode func(Envelope) (In, error), logger *slog.Logger) *Channel[Out, In] {
	channel := &Channel[Out, In]{
		logger:       logger,
		clock:        clock.Real(),
		decode:       decode,
		receiveRetry: DefaultReceiveRetry,
	}
	if conn != nil {
		channel.conn = conn
		channel.encoder = codec.NewEncoder(conn)
		channel.decoder = codec.NewDecoder(conn)
	}
	return channel
}

// Connect closes any current connection and switches the channel to
// conn. A goroutine blocked in Receive on the old connection returns an
// error first, which releases the receive half for the new decoder.
func (c *Channel[Out, In]) Connect(conn net.Conn) {
	c.sendMu.Lock()
	previous := c.conn
	c.conn = conn
	c.encoder = codec.NewEncoder(conn)
	c.sendMu.Unlock()

	if previous != nil {
		previous.Close()
	}

	c.receiveMu.Lock()
	c.decoder = codec.NewDecoder(conn)
	c.receiveMu.Unlock()
}

// Connected reports whether the channel currently has a connection.
func (c *Channel[Out, In]) Connected() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn != nil
}

// Send writes message. Failures are logged and the message dropped;
// the error is returned for callers that need it.
func (c *Channel[Out, In]) Send(message Out, context ErrorContext) error {
	envelope, err := seal(message, context)
	if err != nil {
		c.logger.Error("dropping message that failed to encode", "kind", message.Kind(), "error", err)
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.encoder == nil {
		c.logger.Warn("peer not ready, dropping message", "kind", message.Kind())
		return ErrNotConnected
	}
	if err := c.encoder.Encode(envelope); err != nil {
		if netutil.IsExpectedCloseError(err) {
			c.logger.Debug("peer gone, dropping message", "kind", message.Kind(), "error", err)
		} else {
			c.logger.Warn("failed to send message", "kind", message.Kind(), "error", err)
		}
		return fmt.Errorf("sending %s: %w", message.Kind(), err)
	}
	return nil
}

// Receive blocks until the next message arrives. The receive half is
// taken with a try-lock, sleeping receiveRetry between attempts.
func (c *Channel[Out, In]) Receive() (In, ErrorContext, error) {
	for !c.receiveMu.TryLock() {
		c.clock.Sleep(c.receiveRetry)
	}
	return c.receiveLocked()
}

func (c *Channel[Out, In]) receiveLocked() (message In, context ErrorContext, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.receivePoisoned.Store(true)
			c.receiveMu.Unlock()
			panic(recovered)
		}
		c.receiveMu.Unlock()
	}()

	if c.receivePoisoned.Load() {
		return message, context, ErrPoisoned
	}
	if c.decoder == nil {
		return message, context, ErrNotConnected
	}

	var envelope Envelope
	if err := c.decoder.Decode(&envelope); err != nil {
		return message, context, fmt.Errorf("receiving envelope: %w", err)
	}
	message, err = c.decode(envelope)
	if err != nil {
		return message, envelope.Context, err
	}
	return message, envelope.Context, nil
}

// Close closes the underlying connection. Blocked Receive calls return
// an error; later Sends are dropped.
func (c *Channel[Out, In]) Close() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.encoder = nil
	return err
}
