package websocket

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sage-x-project/corehub/hub"
	"github.com/sage-x-project/corehub/internal/logger"
)

// IdentityFunc extracts the connecting principal from the upgrade
// request (authentication itself is out of scope; this only reads
// whatever the outer HTTP layer already attached).
type IdentityFunc func(r *http.Request) any

// ContextKeyFunc extracts the target context key from the upgrade
// request, e.g. from a path segment or query parameter.
type ContextKeyFunc func(r *http.Request) string

const (
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// Server upgrades incoming HTTP requests to WebSocket connections and
// binds each one to a hub.ClientSession for its lifetime.
type Server struct {
	h          *hub.Hub
	upgrader   websocket.Upgrader
	contextKey ContextKeyFunc
	identity   IdentityFunc
	log        logger.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration

	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

// NewServer returns a Server that dispatches attached connections to
// h. A non-positive readTimeout or writeTimeout falls back to this
// package's default.
func NewServer(h *hub.Hub, contextKey ContextKeyFunc, identity IdentityFunc, log logger.Logger, readTimeout, writeTimeout time.Duration) *Server {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Server{
		h:          h,
		contextKey: contextKey,
		identity:   identity,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns an http.Handler that performs the WebSocket upgrade
// and services the connection until it closes.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
			return
		}

		s.track(conn)
		defer s.untrack(conn)

		sender := &connSender{conn: conn, writeTimeout: s.writeTimeout}
		defer func() { _ = sender.Close() }()

		s.serve(r, conn, sender)
	})
}

func (s *Server) serve(r *http.Request, conn *websocket.Conn, sender *connSender) {
	key := s.contextKey(r)
	var identity any
	if s.identity != nil {
		identity = s.identity(r)
	}

	sess := s.h.OnConnect(r.Context(), sender, key, identity)
	defer sess.Disconnect()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				s.log.Warn("websocket read timed out",
					logger.Error(logger.NewCoreError(logger.ErrCodeTimeout, "read deadline exceeded", err)),
				)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read error",
					logger.Error(logger.NewCoreError(logger.ErrCodeNetworkError, "unexpected close", err)),
				)
			}
			return
		}

		if err := s.h.HandleMessage(sess, raw); err != nil {
			s.log.Warn("dropping unreadable message", logger.Error(err))
		}
	}
}

func (s *Server) track(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, conn)
}

// Close sends a normal-closure frame to every tracked connection and
// closes the underlying socket. Intended for graceful shutdown.
func (s *Server) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	for conn := range s.conns {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	return nil
}

// connSender adapts a *websocket.Conn to hub.Sender.
type connSender struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *connSender) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return logger.NewCoreError(logger.ErrCodeNetworkError, "send on closed connection", nil)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.closed = true
		return logger.NewCoreError(logger.ErrCodeNetworkError, "set write deadline", err)
	}
	if err := c.conn.WriteJSON(v); err != nil {
		c.closed = true
		return logger.NewCoreError(logger.ErrCodeNetworkError, "write json frame", err)
	}
	return nil
}

// IsOpen reports whether the connection is still believed writable. It
// sends a zero-length ping control frame under a short deadline: a
// failure here means the peer is gone even though no data frame has
// been written yet.
func (c *connSender) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
		c.closed = true
		return false
	}
	return true
}

// Close marks the sender closed and closes the underlying connection.
// Safe to call once the serve loop exits.
func (c *connSender) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
