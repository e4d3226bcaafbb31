// Package server accepts subscriber WebSocket connections and feeds them to
// the broker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/connection"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
)

// Handler is the broker surface the server drives.
type Handler interface {
	OnConnect() *connection.Connection
	OnMessage(connID string, raw []byte)
	OnClose(connID string)
}

type Server struct {
	handler    Handler
	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu      sync.Mutex
	sockets map[*websocket.Conn]struct{}
	addr    net.Addr
}

func NewServer(port int, handler Handler) *Server {
	s := &Server{
		handler: handler,
		upgrader: websocket.Upgrader{
			// subscribers are local overlays and tools, no origin policy
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sockets: make(map[*websocket.Conn]struct{}),
	}
	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start listens and serves in the background. Only the listen error is
// returned.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("error occured while listening on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	logger.InfoF("WebSocket Server Listen On %s", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorF("WebSocket server stopped, details: %v", err)
		}
	}()
	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Invoke shuts the server down; it is registered with the cleaner.
// Hijacked sockets are not covered by http.Server.Shutdown, so they are
// closed here as well.
func (s *Server) Invoke(ctx context.Context) error {
	logger.InfoF("Closing websocket server")
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	for ws := range s.sockets {
		_ = ws.Close()
	}
	s.mu.Unlock()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logger.WarnF("[%s] Fail to upgrade connection, details: %v", r.RemoteAddr, err)
		return
	}
	logger.DebugF("Accepted new connection from %s", r.RemoteAddr)

	s.track(ws)
	defer s.untrack(ws)

	c := &connectionHandler{
		conn:    ws,
		client:  s.handler.OnConnect(),
		handler: s.handler,
	}
	c.handleConnection()
}

func (s *Server) track(ws *websocket.Conn) {
	s.mu.Lock()
	s.sockets[ws] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(ws *websocket.Conn) {
	s.mu.Lock()
	delete(s.sockets, ws)
	s.mu.Unlock()
}
