// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/loom/lib/clock"
	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/lib/testutil"
	"github.com/bureau-foundation/loom/terminal"
	"github.com/bureau-foundation/loom/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeController records mode changes and collects output.
type fakeController struct {
	mu       sync.Mutex
	calls    []string
	output   bytes.Buffer
	rawError error
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) CaptureMode() { f.record("capture") }
func (f *fakeController) EnterRawMode() error {
	f.record("raw")
	return f.rawError
}
func (f *fakeController) RestoreMode() { f.record("restore") }
func (f *fakeController) EnableMouse() error {
	f.record("mouse_on")
	return nil
}
func (f *fakeController) DisableMouse() error {
	f.record("mouse_off")
	return nil
}
func (f *fakeController) Size(terminal.Role) terminal.Size {
	return terminal.Size{Cols: 132, Rows: 43}
}
func (f *fakeController) Stdout() io.Writer { return lockedWriter{f} }

func (f *fakeController) snapshot() ([]string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), f.output.String()
}

type lockedWriter struct{ controller *fakeController }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.controller.mu.Lock()
	defer w.controller.mu.Unlock()
	return w.controller.output.Write(p)
}

type alwaysReady struct{}

func (alwaysReady) Ready(time.Duration) bool { return true }

// scriptedSignals fires the given callbacks once, then waits for ctx.
type scriptedSignals struct {
	resize    bool
	terminate bool
}

func (s scriptedSignals) Run(ctx context.Context, onResize func(), onTerminate func()) {
	if s.resize {
		onResize()
	}
	if s.terminate {
		onTerminate()
		return
	}
	<-ctx.Done()
}

// fakeSession accepts connections on a session socket and reports
// every client message. Tests reply through the most recent
// connection.
type fakeSession struct {
	listener *transport.Listener
	received chan ipc.ClientMessage

	mu      sync.Mutex
	channel *ipc.ServerChannel
}

func startFakeSession(t *testing.T, socketDir, name string) *fakeSession {
	t.Helper()
	listener, err := transport.Listen(filepath.Join(socketDir, name))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	fake := &fakeSession{listener: listener, received: make(chan ipc.ClientMessage, 64)}
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			channel := ipc.NewServerChannel(conn, discardLogger())
			fake.mu.Lock()
			fake.channel = channel
			fake.mu.Unlock()
			go func() {
				defer channel.Close()
				for {
					message, _, err := channel.Receive()
					if err != nil {
						return
					}
					if _, ok := message.(ipc.AttachClient); ok {
						channel.Send(ipc.Connected{}, ipc.ErrorContext{})
					}
					if _, ok := message.(ipc.DetachSession); ok {
						channel.Send(ipc.SessionEnded{Reason: ipc.ExitDetached}, ipc.ErrorContext{})
					}
					fake.received <- message
				}
			}()
		}
	}()
	return fake
}

func (f *fakeSession) send(t *testing.T, message ipc.ServerMessage) {
	t.Helper()
	f.mu.Lock()
	channel := f.channel
	f.mu.Unlock()
	if channel == nil {
		t.Fatal("no client connected to fake session")
	}
	if err := channel.Send(message, ipc.ErrorContext{}.With("fake")); err != nil {
		t.Fatalf("fake session Send: %v", err)
	}
}

// expect skips messages until one of type M arrives.
func expect[M ipc.ClientMessage](t *testing.T, f *fakeSession) M {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case message := <-f.received:
			if typed, ok := message.(M); ok {
				return typed
			}
		case <-deadline:
			var zero M
			t.Fatalf("timed out waiting for %T", zero)
		}
	}
}

type harness struct {
	controller *fakeController
	input      *io.PipeWriter
	client     *Client
	socketDir  string
}

func newHarness(t *testing.T, signals SignalSource) *harness {
	t.Helper()
	reader, writer := io.Pipe()
	t.Cleanup(func() { writer.Close() })
	controller := &fakeController{}
	socketDir := testutil.SocketDir(t)
	client := New(Config{
		SocketDir:   socketDir,
		PollTimeout: 10 * time.Millisecond,
		Mouse:       true,
		WaitTimeout: time.Second,
	}, controller, reader, alwaysReady{}, signals, &transport.UnixDialer{}, clock.Real(), discardLogger())
	return &harness{controller: controller, input: writer, client: client, socketDir: socketDir}
}

func (h *harness) attachAsync(name string) <-chan attachResult {
	done := make(chan attachResult, 1)
	go func() {
		reason, err := h.client.Attach(context.Background(), name)
		done <- attachResult{reason, err}
	}()
	return done
}

func TestAttachDrawsOutputAndRestoresTerminal(t *testing.T) {
	h := newHarness(t, nil)
	session := startFakeSession(t, h.socketDir, "orange-yak")
	done := h.attachAsync("orange-yak")

	attach := expect[ipc.AttachClient](t, session)
	if attach.Size != (ipc.Size{Rows: 43, Cols: 132}) {
		t.Fatalf("AttachClient size = %+v", attach.Size)
	}
	session.send(t, ipc.Render{Content: []byte("hello\r\n")})
	session.send(t, ipc.SessionEnded{Reason: ipc.ExitPaneExited})

	result := testutil.RequireReceive(t, done, 5*time.Second, "Attach to return")
	if result.err != nil || result.reason != ipc.ExitPaneExited {
		t.Fatalf("Attach = %s, %v; want pane_exited", result.reason, result.err)
	}
	calls, output := h.controller.snapshot()
	if output != "hello\r\n" {
		t.Fatalf("stdout = %q", output)
	}
	want := []string{"capture", "raw", "mouse_on", "mouse_off", "restore"}
	if len(calls) != len(want) {
		t.Fatalf("terminal calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("terminal calls = %v, want %v", calls, want)
		}
	}
}

func TestAttachForwardsInputAndDetaches(t *testing.T) {
	h := newHarness(t, nil)
	session := startFakeSession(t, h.socketDir, "work")
	done := h.attachAsync("work")
	expect[ipc.AttachClient](t, session)

	h.input.Write([]byte("ls\r"))
	if input := expect[ipc.Input](t, session); string(input.Bytes) != "ls\r" {
		t.Fatalf("Input = %q", input.Bytes)
	}

	h.input.Write([]byte{'q', DetachKey})
	if input := expect[ipc.Input](t, session); string(input.Bytes) != "q" {
		t.Fatalf("Input before detach key = %q", input.Bytes)
	}
	expect[ipc.DetachSession](t, session)

	result := testutil.RequireReceive(t, done, 5*time.Second, "Attach to return")
	if result.err != nil || result.reason != ipc.ExitDetached {
		t.Fatalf("Attach = %s, %v; want detached", result.reason, result.err)
	}
}

func TestAttachFollowsSwitchSession(t *testing.T) {
	h := newHarness(t, nil)
	first := startFakeSession(t, h.socketDir, "first")
	second := startFakeSession(t, h.socketDir, "second")
	done := h.attachAsync("first")
	expect[ipc.AttachClient](t, first)

	first.send(t, ipc.SwitchSession{Name: "second"})
	expect[ipc.AttachClient](t, second)
	if active := h.client.ActiveSession(); active != "second" {
		t.Fatalf("ActiveSession = %q, want second", active)
	}

	h.input.Write([]byte("x"))
	if input := expect[ipc.Input](t, second); string(input.Bytes) != "x" {
		t.Fatalf("Input on switched session = %q", input.Bytes)
	}

	second.send(t, ipc.SessionEnded{Reason: ipc.ExitKilled})
	result := testutil.RequireReceive(t, done, 5*time.Second, "Attach to return")
	if result.reason != ipc.ExitKilled {
		t.Fatalf("Attach = %s, %v; want killed", result.reason, result.err)
	}
}

func TestSwitchToMissingSessionStays(t *testing.T) {
	h := newHarness(t, nil)
	h.client.config.WaitTimeout = 100 * time.Millisecond
	session := startFakeSession(t, h.socketDir, "home")
	done := h.attachAsync("home")
	expect[ipc.AttachClient](t, session)

	session.send(t, ipc.SwitchSession{Name: "nowhere"})
	session.send(t, ipc.Render{Content: []byte("still here")})
	session.send(t, ipc.SessionEnded{Reason: ipc.ExitNormal})

	result := testutil.RequireReceive(t, done, 5*time.Second, "Attach to return")
	if result.reason != ipc.ExitNormal {
		t.Fatalf("Attach = %s, %v", result.reason, result.err)
	}
	if _, output := h.controller.snapshot(); output != "still here" {
		t.Fatalf("stdout = %q", output)
	}
	if h.client.ActiveSession() != "home" {
		t.Fatalf("ActiveSession = %q after failed switch", h.client.ActiveSession())
	}
}

func TestAttachSignals(t *testing.T) {
	h := newHarness(t, scriptedSignals{resize: true, terminate: true})
	session := startFakeSession(t, h.socketDir, "signalled")
	done := h.attachAsync("signalled")

	resize := expect[ipc.TerminalResize](t, session)
	if resize.Size != (ipc.Size{Rows: 43, Cols: 132}) {
		t.Fatalf("TerminalResize size = %+v", resize.Size)
	}
	expect[ipc.ClientExited](t, session)

	result := testutil.RequireReceive(t, done, 5*time.Second, "Attach to return")
	if result.err != nil || result.reason != ipc.ExitNormal {
		t.Fatalf("Attach = %s, %v; want normal", result.reason, result.err)
	}
	calls, _ := h.controller.snapshot()
	if calls[len(calls)-1] != "restore" {
		t.Fatalf("terminal not restored last: %v", calls)
	}
}

func TestAttachMissingSessionLeavesTerminalAlone(t *testing.T) {
	h := newHarness(t, nil)
	h.client.config.WaitTimeout = 100 * time.Millisecond

	if _, err := h.client.Attach(context.Background(), "absent"); err == nil {
		t.Fatal("Attach to a missing session succeeded")
	}
	if calls, _ := h.controller.snapshot(); len(calls) != 0 {
		t.Fatalf("terminal touched: %v", calls)
	}
}

func TestAttachLostConnection(t *testing.T) {
	h := newHarness(t, nil)
	session := startFakeSession(t, h.socketDir, "fragile")
	done := h.attachAsync("fragile")
	expect[ipc.AttachClient](t, session)

	session.mu.Lock()
	session.channel.Close()
	session.mu.Unlock()

	result := testutil.RequireReceive(t, done, 5*time.Second, "Attach to return")
	if result.err == nil || result.reason != ipc.ExitError {
		t.Fatalf("Attach = %s, %v; want an error", result.reason, result.err)
	}
	calls, _ := h.controller.snapshot()
	if calls[len(calls)-1] != "restore" {
		t.Fatalf("terminal not restored after lost connection: %v", calls)
	}
}
