package poolclient

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Transport dials a pool connection and hands back a framed byte stream.
// client.go's readLoop and call are transport-agnostic: they read and write
// newline-delimited JSON-RPC over whatever Transport returns.
type Transport interface {
	Dial(ctx context.Context, addr string, timeout time.Duration) (io.ReadWriteCloser, error)
}

// TCPTransport dials a raw TCP connection, the default for "stratum+tcp://"
// pools.
type TCPTransport struct{}

// Dial opens a plain TCP connection to addr.
func (TCPTransport) Dial(ctx context.Context, addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", addr)
}

// WebsocketTransport dials a websocket-framed variant of the Stratum
// protocol, the client-side inverse of a pool that frames JSON-RPC over
// gorilla/websocket the way this module's own status surface could.
type WebsocketTransport struct{}

// Dial opens a websocket connection to ws://addr/ws and wraps it so the
// caller sees a plain io.ReadWriteCloser of newline-delimited messages.
func (WebsocketTransport) Dial(ctx context.Context, addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, "ws://"+addr+"/ws", nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// wsConn adapts a *websocket.Conn to io.ReadWriteCloser by framing each
// Write call as one text message and buffering partial reads across
// message boundaries.
type wsConn struct {
	conn *websocket.Conn
	buf  []byte
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.buf = data
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
