package quic

import (
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/glowline/internal/core/protocol"
)

var _ protocol.Listener = (*Listener)(nil)

type Listener struct {
	listener *quic.Listener
	closed   int32
}

// Listen starts accepting QUIC connections on addr.
func Listen(addr string, tlsConfig *tls.Config) (*Listener, error) {
	l, err := quic.ListenAddr(addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return &Listener{listener: l}, nil
}

func (l *Listener) Accept(ctx context.Context) (protocol.Conn, error) {
	if atomic.LoadInt32(&l.closed) == 1 {
		return nil, protocol.ErrConnectionClosed
	}
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		if atomic.LoadInt32(&l.closed) == 1 {
			return nil, protocol.ErrConnectionClosed
		}
		return nil, protocol.WrapError(err, "failed to accept QUIC connection")
	}
	return &Conn{conn: conn, accept: true}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil
	}
	return l.listener.Close()
}
