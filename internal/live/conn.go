package live

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// Conn carries binary frames to and from the service.
type Conn interface {
	// Read returns the next message. Errors wrapping ErrConnClosed mean no
	// further messages will arrive.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, msg []byte) error
	Close() error
}

// Dialer opens a Conn to a websocket endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with github.com/coder/websocket.
type WebsocketDialer struct {
	Options *websocket.DialOptions
}

var _ Dialer = (*WebsocketDialer)(nil)

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, d.Options)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

// Read treats every error as terminal: the websocket library closes the
// connection whenever a read fails.
func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status != -1 {
			return nil, fmt.Errorf("%w: status %d: %w", ErrConnClosed, status, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnClosed, err)
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, msg []byte) error {
	return c.conn.Write(ctx, websocket.MessageBinary, msg)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
