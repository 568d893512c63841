package quic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/glowline/internal/core/protocol"
)

func listen(t *testing.T) *Listener {
	t.Helper()
	tlsConfig, err := GenerateSelfSignedTLS()
	require.NoError(t, err)
	l, err := Listen("127.0.0.1:0", tlsConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func serveEcho(ctx context.Context, l *Listener) {
	go func() {
		for {
			c, err := l.Accept(ctx)
			if err != nil {
				return
			}
			go func(c protocol.Conn) {
				defer c.Close()
				for {
					m, err := c.Receive(ctx)
					if err != nil {
						return
					}
					if m.Type == protocol.TypePermissionRequest {
						_ = c.Send(ctx, protocol.NewPermission(protocol.Permission{Allowed: false, Reason: "quic"}))
					}
				}
			}(c)
		}
	}()
}

func TestLoopbackRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l := listen(t)
	serveEcho(ctx, l)

	conn, err := NewDialer(ClientTLS(true)).Dial(ctx, l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send(ctx, protocol.NewPermissionRequest()))
	m, err := conn.Receive(ctx)
	require.NoError(t, err)
	p, err := m.Permission()
	require.NoError(t, err)
	assert.Equal(t, protocol.Permission{Allowed: false, Reason: "quic"}, p)

	// second request on the same stream
	require.NoError(t, conn.Send(ctx, protocol.NewPermissionRequest()))
	_, err = conn.Receive(ctx)
	require.NoError(t, err)
}

func TestReceiveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l := listen(t)
	serveEcho(ctx, l)

	conn, err := NewDialer(ClientTLS(true)).Dial(ctx, l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Send(ctx, protocol.NewPermissionRequest()))
	_, err = conn.Receive(ctx)
	require.NoError(t, err)

	short, cancelShort := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelShort()
	_, err = conn.Receive(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosedConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l := listen(t)
	serveEcho(ctx, l)

	conn, err := NewDialer(ClientTLS(true)).Dial(ctx, l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send(ctx, protocol.NewPermissionRequest()), protocol.ErrConnectionClosed)
}

func TestCloseWhileAcceptingStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l := listen(t)

	accepted := make(chan protocol.Conn, 1)
	go func() {
		c, err := l.Accept(ctx)
		if err == nil {
			accepted <- c
		}
	}()
	client, err := NewDialer(ClientTLS(true)).Dial(ctx, l.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var srv protocol.Conn
	select {
	case srv = <-accepted:
	case <-ctx.Done():
		t.Fatal("no connection accepted")
	}

	// The client never opens a stream, so this Receive parks in AcceptStream.
	received := make(chan error, 1)
	go func() {
		_, err := srv.Receive(ctx)
		received <- err
	}()
	time.Sleep(50 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- srv.Close() }()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a pending stream accept")
	}
	select {
	case err := <-received:
		assert.ErrorIs(t, err, protocol.ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

func TestDialWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewDialer(ClientTLS(true)).Dial(ctx, "127.0.0.1:1")
	require.Error(t, err)
	assert.Equal(t, protocol.ErrorCodeDialFailed, protocol.GetErrorCode(err))
}

func TestListenerClose(t *testing.T) {
	l := listen(t)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	_, err := l.Accept(context.Background())
	assert.ErrorIs(t, err, protocol.ErrConnectionClosed)
}
