package core

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestConnectOpensAndRequestsList(t *testing.T) {
	conn := newFakeConn()
	var gotAddr string
	dial := func(ctx context.Context, addr string) (Conn, error) {
		gotAddr = addr
		return conn, nil
	}
	opened := make(chan string, 1)
	s := NewSession("ws://chat.local/ws/chat/", dial, staticToken("tok-123"), Handlers{
		Open: func() { opened <- "open" },
	}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	mustRecv(t, opened)
	if !s.Connected() {
		t.Fatal("session should be open")
	}

	u, err := url.Parse(gotAddr)
	if err != nil {
		t.Fatalf("parse handshake addr: %v", err)
	}
	if u.Query().Get("token") != "tok-123" {
		t.Fatalf("handshake address missing token: %s", gotAddr)
	}

	if w := mustWrite(t, conn); w.Type != "list" {
		t.Fatalf("expected automatic list request, got %+v", w)
	}
}

func TestConnectWhileNotClosedFails(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, addr string) (Conn, error) { return conn, nil }
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	if err := s.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestCommandsFailFastWhenClosed(t *testing.T) {
	dialCalled := false
	dial := func(ctx context.Context, addr string) (Conn, error) {
		dialCalled = true
		return nil, errors.New("must not dial")
	}
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{}, nil)

	checks := map[string]error{
		"list":       s.List(),
		"join":       s.Join("general"),
		"part":       s.Part("general"),
		"talk":       s.Talk("general", "hello"),
		"custom":     s.Custom("general", "stock", "aapl.us"),
		"disconnect": s.Disconnect(),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotConnected) {
			t.Fatalf("%s: expected ErrNotConnected, got %v", name, err)
		}
	}
	if dialCalled {
		t.Fatal("precondition failures must not touch the transport")
	}
}

func TestTalkSendsExactEnvelope(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, addr string) (Conn, error) { return conn, nil }
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()
	mustWrite(t, conn) // automatic list request

	if err := s.Talk("general", "hello"); err != nil {
		t.Fatalf("talk: %v", err)
	}
	w := mustWrite(t, conn)
	if w.Type != "message" || w.RoomName != "general" || w.Body != "hello" || w.Command != "" || w.Payload != "" {
		t.Fatalf("unexpected envelope: %+v", w)
	}
}

func TestServerFatalEndsSession(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, addr string) (Conn, error) { return conn, nil }
	fatal := make(chan string, 1)
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{
		Fatal: func(code string) { fatal <- code },
	}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	mustWrite(t, conn)

	conn.in <- []byte(`{"type":"fatal","code":"already-chatting"}`)

	if code := mustRecv(t, fatal); code != "already-chatting" {
		t.Fatalf("unexpected fatal code %q", code)
	}
	mustClosed(t, conn)
	if s.Connected() {
		t.Fatal("session must be closed after a fatal")
	}
}

func TestTransportErrorReportsWebsocketFatal(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, addr string) (Conn, error) { return conn, nil }
	fatal := make(chan string, 1)
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{
		Fatal: func(code string) { fatal <- code },
	}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	mustWrite(t, conn)

	conn.readErr <- errors.New("connection reset")

	if code := mustRecv(t, fatal); code != "websocket" {
		t.Fatalf("unexpected fatal code %q", code)
	}
	if s.Connected() {
		t.Fatal("session must be closed after a transport error")
	}
}

func TestCleanServerCloseIsQuiet(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, addr string) (Conn, error) { return conn, nil }
	fatal := make(chan string, 1)
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{
		Fatal: func(code string) { fatal <- code },
	}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	mustWrite(t, conn)

	close(conn.in)
	mustClosed(t, conn)

	if s.Connected() {
		t.Fatal("session must be closed after the server hangs up")
	}
	select {
	case code := <-fatal:
		t.Fatalf("clean close must not report a fatal, got %q", code)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDisconnectThenReconnect(t *testing.T) {
	dial := func(ctx context.Context, addr string) (Conn, error) { return newFakeConn(), nil }
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if s.Connected() {
		t.Fatal("session should be closed")
	}
	if err := s.Disconnect(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("second disconnect: expected ErrNotConnected, got %v", err)
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer s.Disconnect()
	if !s.Connected() {
		t.Fatal("session should be open again")
	}
}

func TestInboundFlowUpdatesStateInOrder(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, addr string) (Conn, error) { return conn, nil }
	events := make(chan string, 16)
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{
		History: func(room string, msgs []Message) { events <- "history" },
		Joined:  func(room, user string, you bool) { events <- "joined" },
		Message: func(room string, msg Message) { events <- "message" },
	}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()
	mustWrite(t, conn)

	conn.in <- []byte(`{"type":"notification","code":"joined","room_name":"general","stamp":2,"user":"alice","you":true,` +
		`"status":{"users":[{"name":"alice","you":true}],"messages":[{"stamp":1,"user":"bob","body":"hi","you":false}]}}`)
	conn.in <- []byte(`{"type":"notification","code":"message","room_name":"general","stamp":3,"user":"bob","you":false,"body":"welcome"}`)

	for _, want := range []string{"history", "joined", "message"} {
		if got := mustRecv(t, events); got != want {
			t.Fatalf("expected %s event, got %s", want, got)
		}
	}

	state := s.State()
	if state.ActiveRoom() != "general" {
		t.Fatalf("active room not set: %q", state.ActiveRoom())
	}
	msgs := state.Messages("general")
	if len(msgs) != 3 || msgs[0].Body != "hi" || msgs[2].Body != "welcome" {
		t.Fatalf("unexpected message sequence: %+v", msgs)
	}
}

func TestProtocolErrorLeavesStateAlone(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, addr string) (Conn, error) { return conn, nil }
	errs := make(chan string, 1)
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{
		Error: func(code, details string) { errs <- code + ":" + details },
	}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()
	mustWrite(t, conn)

	conn.in <- []byte(`{"type":"error","code":"room:not-joined","details":"general"}`)

	if got := mustRecv(t, errs); got != "room:not-joined:general" {
		t.Fatalf("unexpected error event %q", got)
	}
	if !s.Connected() {
		t.Fatal("protocol errors must not close the connection")
	}
	if names := s.State().RoomNames(); len(names) != 1 || names[0] != PseudoRoom {
		t.Fatalf("protocol errors must not touch room state: %v", names)
	}
}

func TestUnknownCodeIsDropped(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, addr string) (Conn, error) { return conn, nil }
	events := make(chan string, 2)
	s := NewSession("ws://chat.local/ws", dial, staticToken(""), Handlers{
		Joined: func(room, user string, you bool) { events <- "joined" },
	}, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()
	mustWrite(t, conn)

	conn.in <- []byte(`{"type":"notification","code":"motd","content":"welcome"}`)
	conn.in <- []byte(`{"type":"notification","code":"joined","room_name":"general","user":"alice","you":true,` +
		`"status":{"users":[{"name":"alice","you":true}],"messages":[]}}`)

	// Only the recognized envelope surfaces; the unknown one vanished.
	if got := mustRecv(t, events); got != "joined" {
		t.Fatalf("unexpected event %q", got)
	}
}
