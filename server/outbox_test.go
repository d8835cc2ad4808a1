// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/lib/testutil"
)

func TestFullQueueDisconnectsClient(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer clientEnd.Close()
	client := newAttachedClient("stalled", serverEnd, discardLogger())
	origin := ipc.ErrorContext{}.With("test/flood")

	for index := range clientQueueLength {
		if !client.enqueue(ipc.Render{Content: []byte("x")}, origin) {
			t.Fatalf("enqueue %d rejected before the queue was full", index)
		}
	}
	if client.enqueue(ipc.Render{Content: []byte("x")}, origin) {
		t.Fatal("enqueue beyond the queue length was accepted")
	}
	if client.enqueue(ipc.Connected{}, origin) {
		t.Fatal("enqueue after disconnect was accepted")
	}
	if _, err := serverEnd.Write([]byte{0}); err == nil {
		t.Fatal("connection still open after overflow")
	}

	go client.writeLoop()
	testutil.RequireClosed(t, client.flushed, 5*time.Second, "writer exit after overflow")
}

func TestFinishDeliversQueuedMessages(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	client := newAttachedClient("leaving", serverEnd, discardLogger())
	go client.writeLoop()

	client.enqueue(ipc.Connected{}, ipc.ErrorContext{}.With("test/connected"))
	client.enqueue(ipc.SessionEnded{Reason: ipc.ExitDetached}, ipc.ErrorContext{}.With("test/ended"))
	client.finish()
	client.finish()

	reader := ipc.NewClientChannel(clientEnd, discardLogger())
	defer reader.Close()
	first, _, err := reader.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if _, ok := first.(ipc.Connected); !ok {
		t.Fatalf("first message = %T, want Connected", first)
	}
	second, _, err := reader.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if ended, ok := second.(ipc.SessionEnded); !ok || ended.Reason != ipc.ExitDetached {
		t.Fatalf("second message = %#v, want SessionEnded detached", second)
	}
	if _, _, err := reader.Receive(); err == nil {
		t.Fatal("connection still open after the queue drained")
	}
	testutil.RequireClosed(t, client.flushed, 5*time.Second, "writer exit")
}
