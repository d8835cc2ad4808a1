// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"

	"github.com/bureau-foundation/loom/stream"
)

var errRendererStopped = errors.New("renderer stopped")

// passthroughRenderer is the pump's consumer. It accumulates pane bytes
// and, on each render, hands everything accumulated since the previous
// render to publish in one piece. A bounded queue sits between the
// pump and the render loop, so a slow publish shows up as send latency
// in the pump.
type passthroughRenderer struct {
	queue   chan stream.Instruction
	stop    chan struct{}
	done    chan struct{}
	publish func(content []byte)
}

func newPassthroughRenderer(queueLength int, publish func([]byte)) *passthroughRenderer {
	return &passthroughRenderer{
		queue:   make(chan stream.Instruction, queueLength),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		publish: publish,
	}
}

// Send implements stream.Consumer.
func (r *passthroughRenderer) Send(instruction stream.Instruction) error {
	select {
	case <-r.stop:
		return errRendererStopped
	default:
	}
	select {
	case r.queue <- instruction:
		return nil
	case <-r.stop:
		return errRendererStopped
	}
}

// run processes instructions until Stop. Pending bytes are published
// when the loop ends so nothing read from the pane is lost.
func (r *passthroughRenderer) run() {
	defer close(r.done)
	var pending []byte
	flush := func() {
		if len(pending) == 0 {
			return
		}
		r.publish(pending)
		pending = nil
	}
	handle := func(instruction stream.Instruction) {
		switch instruction := instruction.(type) {
		case stream.PtyBytes:
			pending = append(pending, instruction.Bytes...)
		case stream.Render:
			flush()
		}
	}

	for {
		select {
		case instruction := <-r.queue:
			handle(instruction)
		case <-r.stop:
			for {
				select {
				case instruction := <-r.queue:
					handle(instruction)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Stop ends the render loop and waits for it to drain.
func (r *passthroughRenderer) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}
