// Package server answers permission requests from glowline clients over
// websocket or QUIC.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/glowline/internal/config"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/observability/metrics"
	"github.com/zeusync/glowline/internal/core/protocol"
	"github.com/zeusync/glowline/internal/core/protocol/quic"
	"github.com/zeusync/glowline/internal/core/protocol/websocket"
)

type Config struct {
	ListenAddr string
	Transport  string
	// Path is the websocket upgrade path.
	Path string
	// TLS is used by the QUIC transport. Nil generates a self-signed
	// certificate.
	TLS          *tls.Config
	WriteTimeout time.Duration
}

func DefaultServerConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:25580",
		Transport:    config.TransportWebSocket,
		Path:         "/permission",
		WriteTimeout: 5 * time.Second,
	}
}

// ConfigFrom maps the server section of the settings file.
func ConfigFrom(c *config.Config) Config {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = c.ServerAddr()
	cfg.Transport = c.Server.Transport
	cfg.Path = c.Server.Path
	return cfg
}

// session is one connected client.
type session struct {
	id          uuid.UUID
	conn        protocol.Conn
	connectedAt time.Time
}

type Server struct {
	config  Config
	policy  *Policy
	logger  log.Log
	metrics *metrics.Permission

	sessions     sync.Map // map[uuid.UUID]*session
	sessionCount int64

	running int32
	closed  int32

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	quic       *quic.Listener
	addr       net.Addr

	workerGroup sync.WaitGroup
}

type Option func(*Server)

func WithLogger(l log.Log) Option {
	return func(s *Server) { s.logger = l }
}

func WithMetrics(m *metrics.Permission) Option {
	return func(s *Server) { s.metrics = m }
}

func NewServer(cfg Config, policy *Policy, opts ...Option) (*Server, error) {
	if cfg.Transport == "" {
		cfg.Transport = config.TransportWebSocket
	}
	if cfg.Transport != config.TransportWebSocket && cfg.Transport != config.TransportQUIC {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidConfig, protocol.ErrUnknownTransport, cfg.Transport)
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultServerConfig().WriteTimeout
	}
	if policy == nil {
		policy = NewPolicy("", nil)
	}

	s := &Server{config: cfg, policy: policy}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Provide()
	}
	s.logger = s.logger.With(log.String("component", "permission_server"))
	return s, nil
}

func (s *Server) Policy() *Policy {
	return s.policy
}

// Start binds the listener and serves in the background until Stop.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	var err error
	switch s.config.Transport {
	case config.TransportQUIC:
		err = s.startQUIC()
	default:
		err = s.startWebSocket()
	}
	if err != nil {
		s.cancel()
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to start server", log.Error(err))
		return err
	}

	s.logger.Info("Server listening",
		log.String("transport", s.config.Transport),
		log.String("addr", s.Addr().String()),
		log.Bool("allowed", s.policy.Allowed()))
	return nil
}

func (s *Server) startWebSocket() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, websocket.NewHandler(s.serve, s.logger))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", log.Error(err))
		}
	}()
	return nil
}

func (s *Server) startQUIC() error {
	tlsConfig := s.config.TLS
	if tlsConfig == nil {
		generated, err := quic.GenerateSelfSignedTLS()
		if err != nil {
			return fmt.Errorf("generate TLS: %w", err)
		}
		tlsConfig = generated
	}
	l, err := quic.Listen(s.config.ListenAddr, tlsConfig)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}

	s.mu.Lock()
	s.quic = l
	s.addr = l.Addr()
	s.mu.Unlock()

	s.workerGroup.Add(1)
	go s.acceptConnections(l)
	return nil
}

func (s *Server) acceptConnections(l *quic.Listener) {
	defer s.workerGroup.Done()
	s.logger.Debug("Connection acceptor started")
	defer s.logger.Debug("Connection acceptor stopped")

	for atomic.LoadInt32(&s.running) == 1 {
		conn, err := l.Accept(s.ctx)
		if err != nil {
			if atomic.LoadInt32(&s.running) == 0 || s.ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to accept connection", log.Error(err))
			time.Sleep(100 * time.Millisecond)
			continue
		}
		s.workerGroup.Add(1)
		go func() {
			defer s.workerGroup.Done()
			defer func() { _ = conn.Close() }()
			s.serve(conn)
		}()
	}
}

// serve pushes the verdict on join and answers every request until the
// client leaves or the server stops.
func (s *Server) serve(conn protocol.Conn) {
	sess := &session{id: uuid.New(), conn: conn, connectedAt: time.Now()}
	s.sessions.Store(sess.id, sess)
	atomic.AddInt64(&s.sessionCount, 1)
	s.metrics.SessionOpened()

	clientLogger := s.logger.With(
		log.String("session_id", sess.id.String()),
		log.String("remote_addr", conn.RemoteAddr().String()))
	clientLogger.Info("Client connected", log.Int64("total_clients", atomic.LoadInt64(&s.sessionCount)))

	defer func() {
		s.sessions.Delete(sess.id)
		atomic.AddInt64(&s.sessionCount, -1)
		s.metrics.SessionClosed()
		clientLogger.Info("Client disconnected",
			log.Duration("connected_for", time.Since(sess.connectedAt)),
			log.Int64("total_clients", atomic.LoadInt64(&s.sessionCount)))
	}()

	if err := s.sendPermission(sess); err != nil {
		clientLogger.Warn("Failed to push permission", log.Error(err))
		return
	}

	for {
		msg, err := conn.Receive(s.ctx)
		if err != nil {
			if !errors.Is(err, protocol.ErrConnectionClosed) && s.ctx.Err() == nil {
				clientLogger.Debug("Receive failed", log.Error(err))
			}
			return
		}
		switch msg.Type {
		case protocol.TypePermissionRequest:
			s.metrics.Request()
			if err := s.sendPermission(sess); err != nil {
				clientLogger.Warn("Failed to answer permission request", log.Error(err))
				return
			}
		default:
			clientLogger.Warn("Unexpected message type", log.String("type", string(msg.Type)))
		}
	}
}

func (s *Server) sendPermission(sess *session) error {
	p := s.policy.Permission()
	ctx, cancel := context.WithTimeout(s.ctx, s.config.WriteTimeout)
	defer cancel()
	if err := sess.conn.Send(ctx, protocol.NewPermission(p)); err != nil {
		return err
	}
	s.metrics.Response(p.Allowed)
	return nil
}

// SetAllowed changes and persists the policy, then pushes the new verdict to
// every connected client.
func (s *Server) SetAllowed(allowed bool, reason string) error {
	if err := s.policy.SetAllowed(allowed, reason); err != nil {
		return err
	}
	s.logger.Info("Permission policy changed",
		log.Bool("allowed", allowed),
		log.String("reason", s.policy.Reason()))
	s.Broadcast()
	return nil
}

// Broadcast pushes the current verdict to every session.
func (s *Server) Broadcast() {
	if atomic.LoadInt32(&s.running) == 0 {
		return
	}
	s.sessions.Range(func(_, value any) bool {
		sess := value.(*session)
		if err := s.sendPermission(sess); err != nil {
			s.logger.Debug("Broadcast failed",
				log.String("session_id", sess.id.String()),
				log.Error(err))
		}
		return true
	})
}

// Sessions returns the number of connected clients.
func (s *Server) Sessions() int {
	return int(atomic.LoadInt64(&s.sessionCount))
}

// Addr is the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	s.logger.Info("Stopping server")

	s.cancel()

	s.mu.Lock()
	httpServer, quicListener := s.httpServer, s.quic
	s.mu.Unlock()

	var errs []error
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if quicListener != nil {
		if err := quicListener.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	// Upgraded connections are not tracked by http.Server.
	s.sessions.Range(func(_, value any) bool {
		_ = value.(*session).conn.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.workerGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	s.logger.Info("Server stopped")
	return errors.Join(errs...)
}

// Close stops the server if needed. A closed server cannot be restarted.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&s.running) == 1 {
		return s.Stop(context.Background())
	}
	return nil
}
