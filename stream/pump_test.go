// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bureau-foundation/loom/lib/clock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// readStep is one scripted result from a scriptedSource. advance moves
// the fake clock before the read returns, modelling time spent blocked.
type readStep struct {
	data    string
	err     error
	advance time.Duration
}

type scriptedSource struct {
	clock     *clock.FakeClock
	steps     []readStep
	deadlines []time.Time
}

func (s *scriptedSource) ReadBefore(buffer []byte, deadline time.Time) (int, error) {
	s.deadlines = append(s.deadlines, deadline)
	if len(s.steps) == 0 {
		return 0, io.EOF
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.clock.Advance(step.advance)
	return copy(buffer, step.data), step.err
}

// recordingConsumer records instructions. renderLatency is charged to
// the fake clock on each Render; failRenders makes Render sends fail.
type recordingConsumer struct {
	clock         *clock.FakeClock
	renderLatency time.Duration
	failRenders   bool
	received      []Instruction
}

func (c *recordingConsumer) Send(instruction Instruction) error {
	c.received = append(c.received, instruction)
	if _, ok := instruction.(Render); ok {
		c.clock.Advance(c.renderLatency)
		if c.failRenders {
			return errors.New("renderer gone")
		}
	}
	return nil
}

func (c *recordingConsumer) describe() []string {
	var out []string
	for _, instruction := range c.received {
		switch value := instruction.(type) {
		case PtyBytes:
			out = append(out, fmt.Sprintf("bytes(%d):%s", value.TerminalID, value.Bytes))
		case Render:
			out = append(out, "render")
		}
	}
	return out
}

func timeout(advance time.Duration) readStep {
	return readStep{err: os.ErrDeadlineExceeded, advance: advance}
}

func expectSequence(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("instructions = %v, want %v", got, want)
		}
	}
}

func TestPumpForwardsInOrderAndRendersOnTimeout(t *testing.T) {
	fake := clock.Fake(epoch)
	source := &scriptedSource{clock: fake, steps: []readStep{
		{data: "hel"},
		{data: "lo"},
		timeout(5 * time.Millisecond),
		{data: "!"},
	}}
	consumer := &recordingConsumer{clock: fake}

	if err := NewPump(source, consumer, 3, DefaultThrottleConfig(), fake, discardLogger()).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectSequence(t, consumer.describe(), []string{
		"bytes(3):hel", "bytes(3):lo", "render", "bytes(3):!", "render",
	})
}

func TestPumpReadDeadlines(t *testing.T) {
	fake := clock.Fake(epoch)
	config := DefaultThrottleConfig()
	source := &scriptedSource{clock: fake, steps: []readStep{
		{data: "a"},
		timeout(config.RenderDelay),
	}}
	consumer := &recordingConsumer{clock: fake}

	if err := NewPump(source, consumer, 1, config, fake, discardLogger()).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Idle reads block without a deadline; after output the read is
	// bounded by the render deadline; after the render it is idle again.
	want := []time.Time{{}, epoch.Add(config.RenderDelay), {}}
	if len(source.deadlines) != len(want) {
		t.Fatalf("deadlines = %v, want %v", source.deadlines, want)
	}
	for i := range want {
		if !source.deadlines[i].Equal(want[i]) {
			t.Fatalf("deadline %d = %v, want %v", i, source.deadlines[i], want[i])
		}
	}
}

func TestPumpRendersWhenDeadlinePassesUnderSteadyOutput(t *testing.T) {
	fake := clock.Fake(epoch)
	config := DefaultThrottleConfig()
	// Each chunk arrives 3ms after the previous one: never a timeout.
	source := &scriptedSource{clock: fake, steps: []readStep{
		{data: "1", advance: 3 * time.Millisecond},
		{data: "2", advance: 3 * time.Millisecond},
		{data: "3", advance: 3 * time.Millisecond},
		{data: "4", advance: 3 * time.Millisecond},
	}}
	consumer := &recordingConsumer{clock: fake}

	if err := NewPump(source, consumer, 1, config, fake, discardLogger()).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Chunk 1 at +3ms arms a deadline at +8ms. Chunk 2 lands at +6ms,
	// chunk 3 at +9ms is past it, so a render follows before chunk 4.
	expectSequence(t, consumer.describe(), []string{
		"bytes(1):1", "bytes(1):2", "bytes(1):3", "render", "bytes(1):4", "render",
	})
}

func TestPumpZeroLengthReadIsNotEOF(t *testing.T) {
	fake := clock.Fake(epoch)
	source := &scriptedSource{clock: fake, steps: []readStep{
		{data: ""},
		{data: ""},
		{data: "after"},
	}}
	consumer := &recordingConsumer{clock: fake}

	if err := NewPump(source, consumer, 9, DefaultThrottleConfig(), fake, discardLogger()).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectSequence(t, consumer.describe(), []string{"bytes(9):after", "render"})
}

func TestPumpFinalRenderErrorIsSwallowed(t *testing.T) {
	fake := clock.Fake(epoch)
	source := &scriptedSource{clock: fake, steps: []readStep{
		{data: "bye", err: io.EOF},
	}}
	consumer := &recordingConsumer{clock: fake, failRenders: true}

	if err := NewPump(source, consumer, 2, DefaultThrottleConfig(), fake, discardLogger()).Run(); err != nil {
		t.Fatalf("Run returned %v; final render failure must be swallowed", err)
	}
	expectSequence(t, consumer.describe(), []string{"bytes(2):bye", "render"})
}

func TestPumpReadErrorEndsStream(t *testing.T) {
	fake := clock.Fake(epoch)
	source := &scriptedSource{clock: fake, steps: []readStep{
		{data: "x"},
		{err: errors.New("input/output error")},
		{data: "never"},
	}}
	consumer := &recordingConsumer{clock: fake}

	if err := NewPump(source, consumer, 1, DefaultThrottleConfig(), fake, discardLogger()).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectSequence(t, consumer.describe(), []string{"bytes(1):x", "render"})
}

func TestPumpAdaptsToSlowConsumer(t *testing.T) {
	fake := clock.Fake(epoch)
	config := DefaultThrottleConfig()
	var steps []readStep
	for range 4 {
		steps = append(steps, readStep{data: "frame"}, timeout(config.RenderDelay))
	}
	source := &scriptedSource{clock: fake, steps: steps}
	consumer := &recordingConsumer{clock: fake, renderLatency: config.BackpressureThreshold * 2}

	pump := NewPump(source, consumer, 1, config, fake, discardLogger())
	if err := pump.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Four slow renders inside the loop: 30ms, 60ms, 120ms, 240ms.
	if got := pump.Throttle().MinimumGap(); got != 8*config.GapStep {
		t.Fatalf("minimum gap = %v, want %v", got, 8*config.GapStep)
	}
	if !pump.Throttle().BackedUp() {
		t.Fatal("slow consumer not marked backed up")
	}
}

type rejectingConsumer struct{}

func (rejectingConsumer) Send(Instruction) error { return errors.New("closed") }

func TestPumpStopsWhenConsumerRejectsBytes(t *testing.T) {
	fake := clock.Fake(epoch)
	source := &scriptedSource{clock: fake, steps: []readStep{{data: "x"}}}
	if err := NewPump(source, rejectingConsumer{}, 1, DefaultThrottleConfig(), fake, discardLogger()).Run(); err == nil {
		t.Fatal("Run succeeded although the consumer rejected output")
	}
}
