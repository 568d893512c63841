package protocol

import (
	"context"
	"net"
)

// Conn is a message-oriented connection. Send may be called concurrently
// with Receive; neither may be called concurrently with itself.
type Conn interface {
	Send(ctx context.Context, m Message) error
	Receive(ctx context.Context) (Message, error)
	RemoteAddr() net.Addr
	Close() error
}

// Dialer opens a client Conn to addr.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Listener accepts server side Conns.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() net.Addr
	Close() error
}
