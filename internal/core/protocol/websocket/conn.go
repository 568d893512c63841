// Package websocket carries permission messages as websocket text frames.
package websocket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/glowline/internal/core/protocol"
)

var _ protocol.Conn = (*Conn)(nil)

type Conn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  int32
}

func newConn(c *websocket.Conn) *Conn {
	c.SetReadLimit(protocol.MaxMessageSize)
	return &Conn{conn: c}
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Conn) Send(ctx context.Context, m protocol.Message) error {
	if c.IsClosed() {
		return protocol.ErrConnectionClosed
	}
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Receive blocks until a frame arrives, ctx is done or the connection closes.
// After a Receive cut short by ctx the Conn can only be closed.
func (c *Conn) Receive(ctx context.Context) (protocol.Message, error) {
	if c.IsClosed() {
		return protocol.Message{}, protocol.ErrConnectionClosed
	}
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Message{}, ctxErr
		}
		if c.IsClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return protocol.Message{}, protocol.ErrConnectionClosed
		}
		return protocol.Message{}, errors.Wrap(err, "failed to read message")
	}
	if messageType != websocket.TextMessage {
		return protocol.Message{}, errors.Wrap(protocol.ErrInvalidMessage, "expected text message")
	}
	return protocol.Decode(data)
}

// Close sends a normal close frame and releases the socket.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
