package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/glowline/internal/config"
	"github.com/zeusync/glowline/internal/core/events/bus"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/protocol"
	"github.com/zeusync/glowline/internal/server"
)

type refusingDialer struct {
	calls int32
}

func (d *refusingDialer) Dial(context.Context, string) (protocol.Conn, error) {
	atomic.AddInt32(&d.calls, 1)
	return nil, protocol.ErrDialFailed
}

// heldConn never delivers a message; it records how it was used.
type heldConn struct {
	receives  int32
	closeOnce sync.Once
	done      chan struct{}
}

func newHeldConn() *heldConn {
	return &heldConn{done: make(chan struct{})}
}

func (c *heldConn) Send(context.Context, protocol.Message) error { return nil }

func (c *heldConn) Receive(ctx context.Context) (protocol.Message, error) {
	atomic.AddInt32(&c.receives, 1)
	select {
	case <-c.done:
		return protocol.Message{}, protocol.ErrConnectionClosed
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

func (c *heldConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (c *heldConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *heldConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// gatedDialer holds every Dial until release is closed.
type gatedDialer struct {
	dialing chan struct{}
	release chan struct{}
	conn    *heldConn
}

func newGatedDialer() *gatedDialer {
	return &gatedDialer{
		dialing: make(chan struct{}),
		release: make(chan struct{}),
		conn:    newHeldConn(),
	}
}

func (d *gatedDialer) Dial(context.Context, string) (protocol.Conn, error) {
	close(d.dialing)
	<-d.release
	return d.conn, nil
}

func startServer(t *testing.T, transport string, allowed bool) *server.Server {
	t.Helper()
	policy := server.NewPolicy("", nil)
	require.NoError(t, policy.SetAllowed(allowed, ""))

	cfg := server.DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Transport = transport
	s, err := server.NewServer(cfg, policy, server.WithLogger(log.NewNop()))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newClient(t *testing.T, s *server.Server, transport string, opts ...Option) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.Transport = transport
	cfg.ServerAddr = s.Addr().String()
	cfg.InsecureSkipVerify = true
	opts = append([]Option{WithLogger(log.NewNop())}, opts...)
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNotRequiredIsAlwaysAllowed(t *testing.T) {
	d := &refusingDialer{}
	cfg := DefaultClientConfig()
	cfg.Required = false
	c, err := NewClient(cfg, WithDialer(d), WithLogger(log.NewNop()))
	require.NoError(t, err)

	require.NoError(t, c.Join(context.Background()))
	assert.True(t, c.Allowed())
	assert.Zero(t, atomic.LoadInt32(&d.calls))
}

func TestUnreachableServerBlocks(t *testing.T) {
	var blocked string
	state := NewPermissionState()
	state.OnBlocked(func(reason string) { blocked = reason })

	c, err := NewClient(DefaultClientConfig(), WithDialer(&refusingDialer{}), WithState(state), WithLogger(log.NewNop()))
	require.NoError(t, err)

	require.NoError(t, c.Join(context.Background()))
	assert.False(t, c.Allowed())
	assert.True(t, state.Received())
	assert.Equal(t, ReasonUnsupported, blocked)
	assert.False(t, c.IsConnected())
}

func TestUnknownTransport(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Transport = "smoke-signals"
	_, err := NewClient(cfg, WithLogger(log.NewNop()))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestJoinWebSocketAllowed(t *testing.T) {
	s := startServer(t, config.TransportWebSocket, true)
	b := bus.New()
	var flips int32
	_, err := b.Subscribe(bus.PermissionChanged, func(e bus.Event) error {
		if e.Data().(bool) {
			atomic.AddInt32(&flips, 1)
		}
		return nil
	})
	require.NoError(t, err)

	c := newClient(t, s, config.TransportWebSocket, WithEventBus(b))
	require.NoError(t, c.Join(context.Background()))
	assert.ErrorIs(t, c.Join(context.Background()), ErrAlreadyConnected)

	assert.Eventually(t, c.Allowed, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&flips) == 1 }, time.Second, 10*time.Millisecond)
}

func TestJoinQUICBlocked(t *testing.T) {
	s := startServer(t, config.TransportQUIC, false)
	c := newClient(t, s, config.TransportQUIC)
	require.NoError(t, c.Join(context.Background()))

	assert.Eventually(t, c.State().Received, 2*time.Second, 10*time.Millisecond)
	assert.False(t, c.Allowed())
	assert.Equal(t, server.ReasonBlocked, c.State().Reason())
}

func TestServerPolicyChangeReachesClient(t *testing.T) {
	s := startServer(t, config.TransportWebSocket, true)
	c := newClient(t, s, config.TransportWebSocket)
	require.NoError(t, c.Join(context.Background()))
	require.Eventually(t, c.Allowed, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.SetAllowed(false, "event mode"))
	assert.Eventually(t, func() bool { return !c.Allowed() }, 2*time.Second, 10*time.Millisecond)
}

func TestLeaveResets(t *testing.T) {
	s := startServer(t, config.TransportWebSocket, true)
	c := newClient(t, s, config.TransportWebSocket)
	require.NoError(t, c.Join(context.Background()))
	require.Eventually(t, c.Allowed, 2*time.Second, 10*time.Millisecond)

	c.Leave()
	assert.False(t, c.Allowed())
	assert.False(t, c.State().Received())
	assert.False(t, c.IsConnected())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Join(context.Background()), ErrClientClosed)
}

func joinWhileDialing(t *testing.T, interrupt func(c *Client)) (*Client, *gatedDialer, error) {
	t.Helper()
	d := newGatedDialer()
	c, err := NewClient(DefaultClientConfig(), WithDialer(d), WithLogger(log.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	result := make(chan error, 1)
	go func() { result <- c.Join(context.Background()) }()

	<-d.dialing
	interrupt(c)
	close(d.release)

	select {
	case err = <-result:
	case <-time.After(2 * time.Second):
		t.Fatal("Join did not return")
	}
	return c, d, err
}

func TestCloseDuringDialDropsConn(t *testing.T) {
	c, d, err := joinWhileDialing(t, func(c *Client) { require.NoError(t, c.Close()) })

	assert.ErrorIs(t, err, ErrClientClosed)
	assert.True(t, d.conn.isClosed())
	assert.False(t, c.IsConnected())
	assert.False(t, c.State().Received())

	// No receiver was started for the dropped conn.
	c.workerGroup.Wait()
	assert.Zero(t, atomic.LoadInt32(&d.conn.receives))
}

func TestLeaveDuringDialDropsConn(t *testing.T) {
	c, d, err := joinWhileDialing(t, func(c *Client) { c.Leave() })

	assert.ErrorIs(t, err, ErrJoinAborted)
	assert.True(t, d.conn.isClosed())
	assert.False(t, c.IsConnected())
	c.workerGroup.Wait()
	assert.Zero(t, atomic.LoadInt32(&d.conn.receives))

	// The client is still usable after a cancelled join.
	d2 := newGatedDialer()
	close(d2.release)
	c.dialer = d2
	require.NoError(t, c.Join(context.Background()))
	assert.True(t, c.IsConnected())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&d2.conn.receives) > 0 }, time.Second, 5*time.Millisecond)
}
