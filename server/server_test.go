// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/loom/lib/clock"
	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/lib/testutil"
	"github.com/bureau-foundation/loom/session"
	"github.com/bureau-foundation/loom/stream"
	"github.com/bureau-foundation/loom/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type runResult struct {
	reason ipc.ExitReason
	err    error
}

type testSession struct {
	server   *Server
	registry *session.Registry
	name     string
	cancel   context.CancelFunc
	result   chan runResult
}

func testConfig(t *testing.T, shell string) Config {
	t.Helper()
	return Config{
		Name:            testutil.SessionName("server"),
		SocketDir:       testutil.SocketDir(t),
		Shell:           shell,
		Directory:       t.TempDir(),
		ScrollbackBytes: 1 << 16,
		RenderQueue:     16,
		Throttle:        stream.DefaultThrottleConfig(),
		Layouts:         session.NewLayoutCache(filepath.Join(t.TempDir(), "session_info")),
	}
}

// startSession runs a server and waits for its socket.
func startSession(t *testing.T, config Config) *testSession {
	t.Helper()
	server := New(config, clock.Real(), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan runResult, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		reason, err := server.Run(ctx)
		result <- runResult{reason, err}
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, finished, 10*time.Second, "server Run to return")
	})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := transport.WaitForSocket(waitCtx, server.SocketPath()); err != nil {
		t.Fatalf("server socket never appeared: %v", err)
	}

	registry := session.NewRegistry(session.Config{
		SocketDir:    config.SocketDir,
		CacheDir:     config.Layouts.Root(),
		ProbeTimeout: time.Second,
	}, &transport.UnixDialer{}, clock.Real(), discardLogger())
	return &testSession{server: server, registry: registry, name: config.Name, cancel: cancel, result: result}
}

func (s *testSession) dial(t *testing.T) *ipc.ClientChannel {
	t.Helper()
	conn, err := transport.Dial(s.server.SocketPath())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	channel := ipc.NewClientChannel(conn, discardLogger())
	t.Cleanup(func() { channel.Close() })
	return channel
}

// receiveAll pumps a channel's messages into a Go channel until the
// connection closes.
func receiveAll(channel *ipc.ClientChannel) <-chan ipc.ServerMessage {
	messages := make(chan ipc.ServerMessage, 64)
	go func() {
		defer close(messages)
		for {
			message, _, err := channel.Receive()
			if err != nil {
				return
			}
			messages <- message
		}
	}()
	return messages
}

// waitForOutput reads Render messages until their concatenation
// contains want.
func waitForOutput(t *testing.T, messages <-chan ipc.ServerMessage, want string) {
	t.Helper()
	var output bytes.Buffer
	deadline := time.After(10 * time.Second)
	for !bytes.Contains(output.Bytes(), []byte(want)) {
		select {
		case message, ok := <-messages:
			if !ok {
				t.Fatalf("connection closed before %q appeared; output so far %q", want, output.String())
			}
			if render, isRender := message.(ipc.Render); isRender {
				output.Write(render.Content)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q; output so far %q", want, output.String())
		}
	}
}

// waitForMessage skips messages until one satisfies match.
func waitForMessage(t *testing.T, messages <-chan ipc.ServerMessage, match func(ipc.ServerMessage) bool) ipc.ServerMessage {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case message, ok := <-messages:
			if !ok {
				t.Fatal("connection closed before the expected message")
			}
			if match(message) {
				return message
			}
		case <-deadline:
			t.Fatal("timed out waiting for message")
		}
	}
}

func attach(t *testing.T, channel *ipc.ClientChannel) <-chan ipc.ServerMessage {
	t.Helper()
	messages := receiveAll(channel)
	if err := channel.Send(ipc.AttachClient{Size: ipc.Size{Rows: 30, Cols: 100}}, ipc.ErrorContext{}.With("test/attach")); err != nil {
		t.Fatalf("Send AttachClient: %v", err)
	}
	message := testutil.RequireReceive(t, messages, 5*time.Second, "attach acknowledgement")
	if _, ok := message.(ipc.Connected); !ok {
		t.Fatalf("first message after attach = %T, want Connected", message)
	}
	return messages
}

func TestServerIsListedAliveAndCachesLayout(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	running := startSession(t, config)

	live, err := running.registry.ListLive(context.Background())
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 1 || live[0].Name != config.Name {
		t.Fatalf("ListLive = %+v, want only %s", live, config.Name)
	}

	data, ok, err := config.Layouts.Load(config.Name)
	if err != nil || !ok {
		t.Fatalf("layout not cached: ok %v, err %v", ok, err)
	}
	layout, err := ParseLayout(data)
	if err != nil {
		t.Fatalf("ParseLayout: %v", err)
	}
	if layout.Session != config.Name || layout.Shell != "/bin/sh" || layout.Directory != config.Directory {
		t.Fatalf("cached layout = %+v", layout)
	}

	if _, err := os.Stat(LockPath(config.SocketDir, config.Name)); err != nil {
		t.Fatalf("lock file missing while running: %v", err)
	}
}

func TestServerEchoesInputAndEndsOnKill(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	running := startSession(t, config)

	channel := running.dial(t)
	messages := attach(t, channel)

	if err := channel.Send(ipc.Input{Bytes: []byte("echo loom-$((6*7))\n")}, ipc.ErrorContext{}.With("test/input")); err != nil {
		t.Fatalf("Send Input: %v", err)
	}
	waitForOutput(t, messages, "loom-42")

	if err := running.registry.Kill(context.Background(), config.Name); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	ended := waitForMessage(t, messages, func(message ipc.ServerMessage) bool {
		_, ok := message.(ipc.SessionEnded)
		return ok
	})
	if reason := ended.(ipc.SessionEnded).Reason; reason != ipc.ExitKilled {
		t.Fatalf("SessionEnded reason = %s, want killed", reason)
	}

	result := testutil.RequireReceive(t, running.result, 10*time.Second, "Run to return")
	if result.err != nil || result.reason != ipc.ExitKilled {
		t.Fatalf("Run = %s, %v; want killed", result.reason, result.err)
	}
	if _, err := os.Stat(running.server.SocketPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("socket remains after the session ended: %v", err)
	}
}

func TestServerKillEndsSessionWithStalledClient(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	running := startSession(t, config)

	// Attached but never reads.
	stalled := running.dial(t)
	if err := stalled.Send(ipc.AttachClient{Size: ipc.Size{Rows: 30, Cols: 100}}, ipc.ErrorContext{}.With("test/attach")); err != nil {
		t.Fatalf("Send AttachClient: %v", err)
	}

	active := running.dial(t)
	messages := attach(t, active)
	if err := active.Send(ipc.Input{Bytes: []byte("head -c 20000000 /dev/zero | tr '\\0' x\n")}, ipc.ErrorContext{}.With("test/input")); err != nil {
		t.Fatalf("Send Input: %v", err)
	}
	waitForOutput(t, messages, "xxxxxxxxxxxxxxxx")
	go func() {
		for range messages {
		}
	}()

	if err := running.registry.Kill(context.Background(), config.Name); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	result := testutil.RequireReceive(t, running.result, 10*time.Second, "Run to return after KillSession with a stalled client")
	if result.err != nil || result.reason != ipc.ExitKilled {
		t.Fatalf("Run = %s, %v; want killed", result.reason, result.err)
	}
}

func TestServerReplaysScrollbackToLateClient(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	running := startSession(t, config)

	first := running.dial(t)
	firstMessages := attach(t, first)
	first.Send(ipc.Input{Bytes: []byte("echo replay-$((1+1))\n")}, ipc.ErrorContext{}.With("test/input"))
	waitForOutput(t, firstMessages, "replay-2")

	second := running.dial(t)
	secondMessages := attach(t, second)
	waitForOutput(t, secondMessages, "replay-2")
}

func TestServerDetachLeavesSessionRunning(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	running := startSession(t, config)

	channel := running.dial(t)
	messages := attach(t, channel)
	channel.Send(ipc.DetachSession{}, ipc.ErrorContext{}.With("test/detach"))
	ended := waitForMessage(t, messages, func(message ipc.ServerMessage) bool {
		_, ok := message.(ipc.SessionEnded)
		return ok
	})
	if reason := ended.(ipc.SessionEnded).Reason; reason != ipc.ExitDetached {
		t.Fatalf("reason = %s, want detached", reason)
	}

	if !running.registry.Probe(context.Background(), config.Name) {
		t.Fatal("session not alive after a client detached")
	}
}

func TestServerRelaysSwitchSession(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	running := startSession(t, config)

	requester := running.dial(t)
	requesterMessages := attach(t, requester)
	bystander := running.dial(t)
	bystanderMessages := attach(t, bystander)

	requester.Send(ipc.SwitchSession{Name: "elsewhere"}, ipc.ErrorContext{}.With("test/switch"))
	for _, messages := range []<-chan ipc.ServerMessage{requesterMessages, bystanderMessages} {
		message := waitForMessage(t, messages, func(message ipc.ServerMessage) bool {
			_, ok := message.(ipc.SwitchSession)
			return ok
		})
		if name := message.(ipc.SwitchSession).Name; name != "elsewhere" {
			t.Fatalf("SwitchSession name = %q", name)
		}
	}
}

func TestServerRefusesSecondInstance(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	startSession(t, config)

	_, err := New(config, clock.Real(), discardLogger()).Run(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

func TestServerEndsWhenPaneExits(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	// The resurrected layout names a program that exits at once.
	resurrect, err := MarshalLayout(Layout{Session: config.Name, Shell: "/bin/true"})
	if err != nil {
		t.Fatalf("MarshalLayout: %v", err)
	}
	config.Resurrect = resurrect

	server := New(config, clock.Real(), discardLogger())
	done := make(chan runResult, 1)
	go func() {
		reason, err := server.Run(context.Background())
		done <- runResult{reason, err}
	}()
	result := testutil.RequireReceive(t, done, 10*time.Second, "Run to return after the pane exits")
	if result.err != nil || result.reason != ipc.ExitPaneExited {
		t.Fatalf("Run = %s, %v; want pane_exited", result.reason, result.err)
	}
	if _, err := os.Stat(server.SocketPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("socket remains: %v", err)
	}
	// The session is now dead but resurrectable.
	if _, ok, _ := config.Layouts.Load(config.Name); !ok {
		t.Fatal("layout not cached for a dead session")
	}
}

func TestServerRejectsInvalidName(t *testing.T) {
	config := testConfig(t, "/bin/sh")
	config.Name = "bad/name"
	_, err := New(config, clock.Real(), discardLogger()).Run(context.Background())
	if !errors.Is(err, session.ErrInvalidName) {
		t.Fatalf("Run = %v, want ErrInvalidName", err)
	}
}
