// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

// Instruction is a message from a pump to its consumer.
type Instruction interface {
	instruction()
}

// PtyBytes is a chunk of output from the pane with the given terminal
// ID. Bytes is owned by the receiver.
type PtyBytes struct {
	TerminalID uint32
	Bytes      []byte
}

// Render asks the consumer to draw everything received so far.
type Render struct{}

func (PtyBytes) instruction() {}
func (Render) instruction()   {}

// Consumer receives pump instructions in the order they are sent. Send
// may block to apply backpressure; an error means the consumer is gone.
type Consumer interface {
	Send(Instruction) error
}
