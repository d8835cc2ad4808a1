// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/loom/lib/config"
	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/lib/testutil"
	"github.com/bureau-foundation/loom/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnvironment struct {
	*Environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnvironment(t *testing.T) testEnvironment {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.SocketDir = testutil.SocketDir(t)
	cfg.Paths.CacheDir = filepath.Join(t.TempDir(), "session_info")
	cfg.Registry.ProbeTimeout = 500 * time.Millisecond

	env := NewEnvironment(cfg, discardLogger(), "/nonexistent/loom")
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	env.Stdout, env.Stderr = stdout, stderr
	env.CurrentSession = ""
	return testEnvironment{Environment: env, stdout: stdout, stderr: stderr}
}

// fakeSession answers liveness probes and reports every other message
// it receives.
type fakeSession struct {
	listener *transport.Listener
	received chan ipc.ClientMessage
}

func startFakeSession(t *testing.T, env testEnvironment, name string) *fakeSession {
	t.Helper()
	listener, err := transport.Listen(env.Registry.SocketPath(name))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	fake := &fakeSession{listener: listener, received: make(chan ipc.ClientMessage, 16)}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go fake.serve(conn)
		}
	}()
	return fake
}

func (f *fakeSession) serve(conn net.Conn) {
	channel := ipc.NewServerChannel(conn, discardLogger())
	defer channel.Close()
	for {
		message, _, err := channel.Receive()
		if err != nil {
			return
		}
		switch message.(type) {
		case ipc.ConnStatus:
			channel.Send(ipc.Connected{}, ipc.ErrorContext{}.With("fake/conn_status"))
			continue
		case ipc.KillSession:
			f.listener.Close()
		}
		f.received <- message
	}
}

func cacheLayout(t *testing.T, env testEnvironment, name string) {
	t.Helper()
	if err := env.Registry.Layouts().Save(name, []byte("session: "+name+"\n")); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
