// Package client joins a game server's permission handshake and tracks the
// verdict.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/glowline/internal/config"
	"github.com/zeusync/glowline/internal/core/events/bus"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/observability/metrics"
	"github.com/zeusync/glowline/internal/core/protocol"
	"github.com/zeusync/glowline/internal/core/protocol/quic"
	"github.com/zeusync/glowline/internal/core/protocol/websocket"
)

// ReasonUnsupported is recorded when the server does not speak the protocol.
const ReasonUnsupported = "server does not support the permission handshake"

type Config struct {
	// Required false means offline play: outlines are always allowed and
	// Join never dials.
	Required           bool
	Transport          string
	ServerAddr         string
	Path               string
	DialTimeout        time.Duration
	InsecureSkipVerify bool
}

func DefaultClientConfig() Config {
	return Config{
		Required:    true,
		Transport:   config.TransportWebSocket,
		ServerAddr:  "localhost:25580",
		Path:        "/permission",
		DialTimeout: 5 * time.Second,
	}
}

// ConfigFrom maps the permission section of the settings file.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Required:           c.Permission.Required,
		Transport:          c.Permission.Transport,
		ServerAddr:         c.Permission.Addr,
		Path:               c.Permission.Path,
		DialTimeout:        c.Permission.DialTimeout,
		InsecureSkipVerify: c.Permission.InsecureSkipVerify,
	}
}

type Client struct {
	config  Config
	state   *PermissionState
	dialer  protocol.Dialer
	logger  log.Log
	metrics *metrics.Permission
	events  bus.EventBus

	mu     sync.Mutex
	conn   protocol.Conn
	cancel context.CancelFunc
	// gen is bumped by every disconnect; a join from an older gen is void.
	gen uint64

	connected int32
	closed    int32

	workerGroup sync.WaitGroup
}

type Option func(*Client)

func WithLogger(l log.Log) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Permission) Option {
	return func(c *Client) { c.metrics = m }
}

// WithEventBus publishes bus.PermissionChanged whenever the verdict flips.
func WithEventBus(b bus.EventBus) Option {
	return func(c *Client) { c.events = b }
}

// WithDialer overrides the transport chosen from Config.Transport.
func WithDialer(d protocol.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithState(s *PermissionState) Option {
	return func(c *Client) { c.state = s }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultClientConfig().DialTimeout
	}
	c := &Client{config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Provide()
	}
	c.logger = c.logger.With(log.String("component", "permission"))
	if c.state == nil {
		c.state = NewPermissionState()
	}
	if c.dialer == nil {
		switch cfg.Transport {
		case config.TransportWebSocket, "":
			c.dialer = websocket.NewDialer(cfg.Path)
		case config.TransportQUIC:
			c.dialer = quic.NewDialer(quic.ClientTLS(cfg.InsecureSkipVerify))
		default:
			return nil, fmt.Errorf("%w: %w %q", ErrInvalidConfig, protocol.ErrUnknownTransport, cfg.Transport)
		}
	}
	return c, nil
}

func (c *Client) State() *PermissionState {
	return c.state
}

// Allowed is the effective verdict.
func (c *Client) Allowed() bool {
	if !c.config.Required {
		return true
	}
	return c.state.Allowed()
}

func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Join dials the server, asks for permission once and keeps applying every
// verdict the server pushes until Leave. A server that cannot be reached is
// treated as one that refuses.
func (c *Client) Join(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !c.config.Required {
		c.logger.Debug("Permission not required")
		return nil
	}
	c.mu.Lock()
	stale := c.conn != nil && !c.IsConnected()
	c.mu.Unlock()
	if stale {
		c.disconnect()
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dialCtx, c.config.ServerAddr)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		if abortErr := c.aborted(gen); abortErr != nil {
			return abortErr
		}
		c.logger.Debug("Server doesn't support the permission handshake, assuming not allowed",
			log.String("addr", c.config.ServerAddr),
			log.Error(err))
		c.apply(protocol.Permission{Allowed: false, Reason: ReasonUnsupported})
		return nil
	}

	// Leave or Close may have run while dialing; the receiver is only started
	// for the join they did not cancel.
	c.mu.Lock()
	if abortErr := c.abortedLocked(gen); abortErr != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return abortErr
	}
	readCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	c.conn = conn
	c.cancel = stop
	c.workerGroup.Add(1)
	go func() {
		defer c.workerGroup.Done()
		c.messageReceiver(readCtx, conn)
	}()
	c.mu.Unlock()

	if err := conn.Send(dialCtx, protocol.NewPermissionRequest()); err != nil {
		if abortErr := c.aborted(gen); abortErr != nil {
			return abortErr
		}
		c.logger.Warn("Failed to request permission", log.Error(err))
		c.disconnect()
		c.apply(protocol.Permission{Allowed: false, Reason: ReasonUnsupported})
		return nil
	}
	c.metrics.Request()
	c.logger.Debug("Requested server permission", log.String("addr", c.config.ServerAddr))
	return nil
}

// aborted reports why the join started at gen must not continue.
func (c *Client) aborted(gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortedLocked(gen)
}

func (c *Client) abortedLocked(gen uint64) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if c.gen != gen {
		return ErrJoinAborted
	}
	return nil
}

func (c *Client) messageReceiver(ctx context.Context, conn protocol.Conn) {
	c.logger.Debug("Message receiver started")
	defer c.logger.Debug("Message receiver stopped")

	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, protocol.ErrConnectionClosed) {
				c.logger.Warn("Permission connection lost", log.Error(err))
			}
			atomic.StoreInt32(&c.connected, 0)
			return
		}
		if msg.Type != protocol.TypePermission {
			c.logger.Warn("Unexpected message type", log.String("type", string(msg.Type)))
			continue
		}
		p, err := msg.Permission()
		if err != nil {
			c.logger.Warn("Invalid permission message", log.Error(err))
			continue
		}
		c.apply(p)
	}
}

func (c *Client) apply(p protocol.Permission) {
	changed := c.state.Set(p)
	c.metrics.Response(p.Allowed)
	if p.Allowed {
		c.logger.Info("Server allows More Outlines mod usage")
	} else {
		c.logger.Warn("Server blocks More Outlines mod usage", log.String("reason", p.Reason))
	}
	if changed && c.events != nil {
		if err := c.events.Publish(bus.NewEvent(bus.PermissionChanged, "permission", p.Allowed)); err != nil {
			c.logger.Error("PermissionChanged handler failed", log.Error(err))
		}
	}
}

func (c *Client) disconnect() {
	c.mu.Lock()
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	c.gen++
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.workerGroup.Wait()
	atomic.StoreInt32(&c.connected, 0)
}

// Leave drops the connection and forgets the verdict.
func (c *Client) Leave() {
	c.disconnect()
	c.state.Reset()
	c.logger.Debug("Left server")
}

// Close leaves and refuses further joins.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.Leave()
	return nil
}
