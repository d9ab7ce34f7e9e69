// Package ws implements the session's transport seam over websockets.
package ws

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/finchat-client/internal/core"
)

// Conn wraps one websocket connection.
type Conn struct {
	conn *websocket.Conn
}

// Dial opens a websocket connection to addr. It satisfies core.Dialer.
func Dial(ctx context.Context, addr string) (core.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// ReadEnvelope returns the next inbound frame. Normal and going-away
// closes map to core.ErrConnClosed; everything else is a transport
// failure.
func (c *Conn) ReadEnvelope(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, core.ErrConnClosed
		}
		return nil, err
	}
	return data, nil
}

// WriteJSON sends one outbound envelope.
func (c *Conn) WriteJSON(ctx context.Context, v any) error {
	return wsjson.Write(ctx, c.conn, v)
}

// Close requests a normal transport close.
func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
