// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"fmt"

	"github.com/bureau-foundation/loom/lib/codec"
)

// Kind tags an envelope with the type of its payload.
type Kind string

const (
	KindConnStatus     Kind = "conn_status"
	KindAttachClient   Kind = "attach_client"
	KindTerminalResize Kind = "terminal_resize"
	KindInput          Kind = "input"
	KindDetachSession  Kind = "detach_session"
	KindKillSession    Kind = "kill_session"
	KindSwitchSession  Kind = "switch_session"
	KindClientExited   Kind = "client_exited"

	KindConnected    Kind = "connected"
	KindRender       Kind = "render"
	KindSessionEnded Kind = "session_ended"
)

// Message is any value that can travel in an envelope.
type Message interface {
	Kind() Kind
}

// ClientMessage is sent from a client to a session server.
type ClientMessage interface {
	Message
	clientMessage()
}

// ServerMessage is sent from a session server to a client.
type ServerMessage interface {
	Message
	serverMessage()
}

// Size is a terminal size in character cells.
type Size struct {
	Rows uint16 `cbor:"rows"`
	Cols uint16 `cbor:"cols"`
}

// ConnStatus asks the server to confirm it is alive. The server answers
// with Connected.
type ConnStatus struct{}

// AttachClient registers the connection as an interactive client with
// the given terminal size.
type AttachClient struct {
	Size Size `cbor:"size"`
}

// TerminalResize reports a new client terminal size.
type TerminalResize struct {
	Size Size `cbor:"size"`
}

// Input carries raw keyboard and mouse bytes for the focused pane.
type Input struct {
	Bytes []byte `cbor:"bytes"`
}

// DetachSession disconnects the client and leaves the session running.
type DetachSession struct{}

// KillSession asks the server to end the session.
type KillSession struct{}

// SwitchSession moves attached clients to another session. A client
// sends it to its own server; the server relays it to every attached
// client.
type SwitchSession struct {
	Name string `cbor:"name"`
}

// ClientExited tells the server the client process is going away.
type ClientExited struct{}

// Connected answers ConnStatus and acknowledges AttachClient.
type Connected struct{}

// Render carries terminal output to draw.
type Render struct {
	Content []byte `cbor:"content"`
}

// ExitReason says why a session ended for a client.
type ExitReason string

const (
	ExitNormal     ExitReason = "normal"
	ExitDetached   ExitReason = "detached"
	ExitKilled     ExitReason = "killed"
	ExitPaneExited ExitReason = "pane_exited"
	ExitError      ExitReason = "error"
)

// SessionEnded tells the client its session is over.
type SessionEnded struct {
	Reason ExitReason `cbor:"reason"`
	Detail string     `cbor:"detail,omitempty"`
}

func (ConnStatus) Kind() Kind     { return KindConnStatus }
func (AttachClient) Kind() Kind   { return KindAttachClient }
func (TerminalResize) Kind() Kind { return KindTerminalResize }
func (Input) Kind() Kind          { return KindInput }
func (DetachSession) Kind() Kind  { return KindDetachSession }
func (KillSession) Kind() Kind    { return KindKillSession }
func (SwitchSession) Kind() Kind  { return KindSwitchSession }
func (ClientExited) Kind() Kind   { return KindClientExited }
func (Connected) Kind() Kind      { return KindConnected }
func (Render) Kind() Kind         { return KindRender }
func (SessionEnded) Kind() Kind   { return KindSessionEnded }

func (ConnStatus) clientMessage()     {}
func (AttachClient) clientMessage()   {}
func (TerminalResize) clientMessage() {}
func (Input) clientMessage()          {}
func (DetachSession) clientMessage()  {}
func (KillSession) clientMessage()    {}
func (SwitchSession) clientMessage()  {}
func (ClientExited) clientMessage()   {}

func (Connected) serverMessage()     {}
func (Render) serverMessage()        {}
func (SessionEnded) serverMessage()  {}
func (SwitchSession) serverMessage() {}

// ErrorContext records the call sites a message passed through before
// being sent. Logged alongside any failure the receiver hits while
// handling the message.
type ErrorContext struct {
	Calls []string `cbor:"calls,omitempty"`
}

// With returns a copy of c with call appended.
func (c ErrorContext) With(call string) ErrorContext {
	calls := make([]string, len(c.Calls), len(c.Calls)+1)
	copy(calls, c.Calls)
	return ErrorContext{Calls: append(calls, call)}
}

// Envelope is the wire form of one message.
type Envelope struct {
	Kind    Kind             `cbor:"kind"`
	Payload codec.RawMessage `cbor:"payload,omitempty"`
	Context ErrorContext     `cbor:"context"`
}

func seal(message Message, context ErrorContext) (Envelope, error) {
	payload, err := codec.Marshal(message)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s: %w", message.Kind(), err)
	}
	return Envelope{Kind: message.Kind(), Payload: payload, Context: context}, nil
}

func open[M Message](envelope Envelope) (M, error) {
	var message M
	if len(envelope.Payload) > 0 {
		if err := codec.Unmarshal(envelope.Payload, &message); err != nil {
			return message, fmt.Errorf("decoding %s payload: %w", envelope.Kind, err)
		}
	}
	return message, nil
}

// DecodeClientMessage converts an envelope into the ClientMessage its
// Kind names.
func DecodeClientMessage(envelope Envelope) (ClientMessage, error) {
	switch envelope.Kind {
	case KindConnStatus:
		return open[ConnStatus](envelope)
	case KindAttachClient:
		return open[AttachClient](envelope)
	case KindTerminalResize:
		return open[TerminalResize](envelope)
	case KindInput:
		return open[Input](envelope)
	case KindDetachSession:
		return open[DetachSession](envelope)
	case KindKillSession:
		return open[KillSession](envelope)
	case KindSwitchSession:
		return open[SwitchSession](envelope)
	case KindClientExited:
		return open[ClientExited](envelope)
	default:
		return nil, fmt.Errorf("unknown client message kind %q", envelope.Kind)
	}
}

// DecodeServerMessage converts an envelope into the ServerMessage its
// Kind names.
func DecodeServerMessage(envelope Envelope) (ServerMessage, error) {
	switch envelope.Kind {
	case KindConnected:
		return open[Connected](envelope)
	case KindRender:
		return open[Render](envelope)
	case KindSessionEnded:
		return open[SessionEnded](envelope)
	case KindSwitchSession:
		return open[SwitchSession](envelope)
	default:
		return nil, fmt.Errorf("unknown server message kind %q", envelope.Kind)
	}
}
