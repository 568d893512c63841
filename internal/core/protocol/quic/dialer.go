package quic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/quic-go/quic-go"

	"github.com/zeusync/glowline/internal/core/protocol"
)

var _ protocol.Dialer = (*Dialer)(nil)

type Dialer struct {
	TLS *tls.Config
}

func NewDialer(tlsConfig *tls.Config) *Dialer {
	return &Dialer{TLS: tlsConfig}
}

func (d *Dialer) Dial(ctx context.Context, addr string) (protocol.Conn, error) {
	tlsConfig := d.TLS
	if tlsConfig == nil {
		tlsConfig = ClientTLS(false)
	}
	tlsConfig = tlsConfig.Clone()
	if tlsConfig.ServerName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			tlsConfig.ServerName = host
		} else {
			tlsConfig.ServerName = addr
		}
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, &protocol.Error{
			Code:    protocol.ErrorCodeDialFailed,
			Message: "dial quic://" + addr,
			Cause:   fmt.Errorf("%w: %w", protocol.ErrDialFailed, err),
		}
	}
	return &Conn{conn: conn}, nil
}
