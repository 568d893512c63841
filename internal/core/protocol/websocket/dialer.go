package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/glowline/internal/core/protocol"
)

var _ protocol.Dialer = (*Dialer)(nil)

type Dialer struct {
	// Path is the HTTP path of the permission endpoint.
	Path             string
	HandshakeTimeout time.Duration
	Header           http.Header
}

func NewDialer(path string) *Dialer {
	return &Dialer{Path: path, HandshakeTimeout: 5 * time.Second}
}

// Dial connects to ws://addr/Path.
func (d *Dialer) Dial(ctx context.Context, addr string) (protocol.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: d.Path}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	c, resp, err := dialer.DialContext(ctx, u.String(), d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, &protocol.Error{
			Code:    protocol.ErrorCodeDialFailed,
			Message: "dial " + u.String(),
			Cause:   fmt.Errorf("%w: %w", protocol.ErrDialFailed, err),
		}
	}
	return newConn(c), nil
}
