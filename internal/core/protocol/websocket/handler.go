package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/protocol"
)

// Handler upgrades HTTP requests and hands each Conn to Serve, which owns it
// until it returns.
type Handler struct {
	Serve    func(protocol.Conn)
	upgrader websocket.Upgrader
	logger   log.Log
}

func NewHandler(serve func(protocol.Conn), logger log.Log) *Handler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Handler{
		Serve: serve,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			log.String("remote_addr", r.RemoteAddr),
			log.Error(err))
		return
	}
	conn := newConn(c)
	defer func() { _ = conn.Close() }()
	h.Serve(conn)
}
