package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/finchat-client/internal/proto"
)

// fakeConn is an in-memory Conn for session tests. Inbound envelopes
// are pushed on in; closing in simulates a clean peer close and an
// error on readErr simulates a transport failure.
type fakeConn struct {
	in      chan []byte
	readErr chan error
	writes  chan proto.Outbound

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan []byte, 16),
		readErr: make(chan error, 1),
		writes:  make(chan proto.Outbound, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadEnvelope(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-c.readErr:
		return nil, err
	case data, ok := <-c.in:
		if !ok {
			return nil, ErrConnClosed
		}
		return data, nil
	}
}

func (c *fakeConn) WriteJSON(_ context.Context, v any) error {
	out, ok := v.(proto.Outbound)
	if !ok {
		return fmt.Errorf("unexpected write type %T", v)
	}
	c.writes <- out
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

func mustWrite(t *testing.T, c *fakeConn) proto.Outbound {
	t.Helper()
	select {
	case w := <-c.writes:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound write")
		return proto.Outbound{}
	}
}

func mustRecv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func mustClosed(t *testing.T, c *fakeConn) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport close")
	}
}
