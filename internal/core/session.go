package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/finchat-client/internal/proto"
)

// Conn is one physical connection to the chat server.
type Conn interface {
	// ReadEnvelope blocks until the next inbound envelope arrives.
	// It returns ErrConnClosed when the peer closed cleanly; any
	// other error is a transport failure.
	ReadEnvelope(ctx context.Context) ([]byte, error)
	// WriteJSON sends one outbound envelope.
	WriteJSON(ctx context.Context, v any) error
	// Close requests transport close.
	Close() error
}

// Dialer opens the physical connection to the given handshake address.
type Dialer func(ctx context.Context, addr string) (Conn, error)

// TokenSource supplies the bearer token embedded in the handshake
// address at connect time.
type TokenSource interface {
	Token() string
}

// ConnState is the connection lifecycle state.
type ConnState int

const (
	// StateClosed means no connection exists.
	StateClosed ConnState = iota
	// StateOpening means the transport handshake is in flight.
	StateOpening
	// StateOpen means the connection is established and usable.
	StateOpen
)

func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Session owns the single logical chat connection, the dispatch loop
// and the room state. At most one connection is alive at a time;
// Connect enforces that. There is no reconnect policy here: after a
// close or fatal the caller decides whether to Connect again.
type Session struct {
	addr   string
	dial   Dialer
	tokens TokenSource
	state  *State
	log    *zerolog.Logger

	mu       sync.Mutex
	handlers Handlers
	status   ConnState
	conn     Conn
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSession builds a session around an injected dialer and token
// source so sessions and tests can coexist without shared globals.
func NewSession(addr string, dial Dialer, tokens TokenSource, handlers Handlers, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Session{
		addr:     addr,
		dial:     dial,
		tokens:   tokens,
		handlers: handlers,
		state:    NewState(),
		log:      logger,
	}
}

// Subscribe replaces the handler set. Passing a zero Handlers detaches
// every listener; events keep flowing into the state store either way.
func (s *Session) Subscribe(h Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

func (s *Session) handlerSet() Handlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers
}

// State exposes the room cache. Renderers read it and never mutate it.
func (s *Session) State() *State {
	return s.state
}

// Connected reports whether the connection is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StateOpen
}

// Connect opens the transport with the current token in the handshake
// address, fires the open hook, requests the room list and starts the
// read loop. The context bounds the connection's lifetime.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StateClosed {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.status = StateOpening
	s.mu.Unlock()

	addr, err := s.handshakeAddr()
	if err != nil {
		s.resetClosed()
		return err
	}

	conn, err := s.dial(ctx, addr)
	if err != nil {
		s.resetClosed()
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.status = StateOpen
	s.conn = conn
	s.ctx = loopCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info().Str("addr", s.addr).Msg("connection open")
	if h := s.handlerSet(); h.Open != nil {
		h.Open()
	}
	// Refresh the sidebar as soon as the connection is up.
	if err := conn.WriteJSON(loopCtx, proto.ListCommand()); err != nil {
		s.log.Warn().Err(err).Msg("initial list request failed")
	}

	go s.readLoop(loopCtx, conn)
	return nil
}

func (s *Session) handshakeAddr() (string, error) {
	u, err := url.Parse(s.addr)
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", s.addr, err)
	}
	q := u.Query()
	q.Set("token", s.tokens.Token())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Session) resetClosed() {
	s.mu.Lock()
	s.status = StateClosed
	s.mu.Unlock()
}

// Disconnect requests transport close. It fails when no connection is
// established.
func (s *Session) Disconnect() error {
	if !s.closeTransport() {
		return ErrNotConnected
	}
	s.log.Info().Msg("connection closed by client")
	return nil
}

// closeTransport drops the connection reference and moves the state
// machine to closed. Returns false when it already was.
func (s *Session) closeTransport() bool {
	s.mu.Lock()
	if s.status == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.status = StateClosed
	conn := s.conn
	cancel := s.cancel
	s.conn = nil
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	return true
}

// List requests the room summaries. Like every session command it is
// fire-and-forget: the outcome arrives later on the list channel.
func (s *Session) List() error {
	return s.send(proto.ListCommand())
}

// Join requests to join a room.
func (s *Session) Join(room string) error {
	return s.send(proto.JoinCommand(room))
}

// Part requests to leave a room.
func (s *Session) Part(room string) error {
	return s.send(proto.PartCommand(room))
}

// Talk broadcasts a chat message to a room.
func (s *Session) Talk(room, body string) error {
	return s.send(proto.TalkCommand(room, body))
}

// Custom broadcasts a custom command to a room.
func (s *Session) Custom(room, command, payload string) error {
	return s.send(proto.CustomCommand(room, command, payload))
}

func (s *Session) send(cmd proto.Outbound) error {
	s.mu.Lock()
	if s.status != StateOpen || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	ctx := s.ctx
	s.mu.Unlock()

	if err := conn.WriteJSON(ctx, cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	return nil
}

// readLoop applies inbound envelopes one at a time: decode, reconcile
// state, then dispatch to the handler slot. Arrival order is delivery
// order.
func (s *Session) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.ReadEnvelope(ctx)
		if err != nil {
			s.teardown(err)
			return
		}
		ev, err := proto.Decode(data)
		if err != nil {
			s.log.Warn().Err(err).Msg("dropping malformed envelope")
			continue
		}
		s.handle(ev)
	}
}

// teardown handles the transport going away underneath the session.
// Clean closes just move the machine to closed; anything else is a
// transport failure reported as a websocket fatal.
func (s *Session) teardown(err error) {
	if !s.closeTransport() {
		return
	}
	if errors.Is(err, ErrConnClosed) || errors.Is(err, context.Canceled) {
		s.log.Info().Msg("connection closed by server")
		return
	}
	s.log.Error().Err(err).Msg("transport error")
	if h := s.handlerSet(); h.Fatal != nil {
		h.Fatal(proto.FatalWebsocket)
	}
}

func (s *Session) handle(ev proto.Event) {
	h := s.handlerSet()
	switch ev.Kind {
	case proto.KindFatal:
		s.log.Error().Str("code", ev.Code).Msg("fatal from server")
		s.closeTransport()
		if h.Fatal != nil {
			h.Fatal(ev.Code)
		}
	case proto.KindError:
		// Recoverable; room state is untouched.
		s.log.Warn().Str("code", ev.Code).Str("details", ev.Details).Msg("protocol error")
		if h.Error != nil {
			h.Error(ev.Code, ev.Details)
		}
	case proto.KindList:
		s.state.applyList(ev)
		if h.List != nil {
			h.List(ev.Rooms)
		}
	case proto.KindUsers:
		s.state.applyUsers(ev)
		if h.Users != nil {
			h.Users(ev.Room, ev.Users)
		}
	case proto.KindJoined:
		backfill := s.state.applyJoined(ev)
		if len(backfill) > 0 && h.History != nil {
			h.History(ev.Room, backfill)
		}
		if h.Joined != nil {
			h.Joined(ev.Room, ev.User, ev.You)
		}
	case proto.KindParted:
		s.state.applyParted(ev)
		if h.Parted != nil {
			h.Parted(ev.Room, ev.User, ev.You)
		}
	case proto.KindMessage:
		msg := s.state.applyMessage(ev)
		if h.Message != nil {
			h.Message(ev.Room, msg)
		}
	case proto.KindCustom:
		msg := s.state.applyCustom(ev)
		if h.Custom != nil {
			h.Custom(ev.Room, msg)
		}
	case proto.KindUnknown:
		// Unknown codes are dropped; newer servers stay compatible
		// with this client.
		s.log.Debug().Msg("dropping envelope with unknown code")
	}
}
