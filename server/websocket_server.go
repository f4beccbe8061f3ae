package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/techaid-za/voicedesk/config"
	"github.com/techaid-za/voicedesk/messages"
	"github.com/techaid-za/voicedesk/observability"
	"github.com/techaid-za/voicedesk/session"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
)

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	manager    *session.Manager
	config     *config.Config
}

func New(cfg *config.Config, manager *session.Manager) *Server {
	s := &Server{
		manager: manager,
		config:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    16 * 1024,
			WriteBufferSize:   16 * 1024,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", observability.MetricsHandler())

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for connections
func (s *Server) Start() error {
	log.Printf("🚀 Control-plane server starting on port %d", s.config.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%d/ws", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")
	s.manager.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

// wsConn wraps one UI shell connection. All writes go through a single
// buffered queue so session goroutines never block on the socket.
type wsConn struct {
	conn      *websocket.Conn
	writeChan chan *messages.ServerMessage
	closeChan chan struct{}
	keepAlive time.Duration

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, keepAlive time.Duration) *wsConn {
	return &wsConn{
		conn:      conn,
		writeChan: make(chan *messages.ServerMessage, writeBufferSize),
		closeChan: make(chan struct{}),
		keepAlive: keepAlive,
	}
}

// queue adds a message to the write queue (non-blocking). Visual frames
// arrive at ~60Hz so a full queue drops rather than stalls the session.
func (wc *wsConn) queue(msg *messages.ServerMessage) {
	wc.mu.RLock()
	closed := wc.closed
	wc.mu.RUnlock()
	if closed {
		return
	}
	select {
	case wc.writeChan <- msg:
	default:
	}
}

func (wc *wsConn) writePump() {
	defer func() {
		wc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		wc.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	// Periodic pings keep NATs and proxies from dropping an idle socket.
	var keepAlive <-chan time.Time
	if wc.keepAlive > 0 {
		ticker := time.NewTicker(wc.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-wc.closeChan:
			return
		case <-keepAlive:
			wc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-wc.writeChan:
			if !ok {
				return
			}
			if err := wc.write(msg); err != nil {
				return
			}

			n := len(wc.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg, ok := <-wc.writeChan:
					if !ok {
						return
					}
					if err := wc.write(msg); err != nil {
						return
					}
				default:
				}
			}
		}
	}
}

func (wc *wsConn) write(msg *messages.ServerMessage) error {
	data, err := messages.Encode(msg)
	if err != nil {
		log.Printf("❌ Failed to encode message: %v", err)
		return nil
	}
	wc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return wc.conn.WriteMessage(websocket.TextMessage, data)
}

func (wc *wsConn) close() {
	wc.mu.Lock()
	if wc.closed {
		wc.mu.Unlock()
		return
	}
	wc.closed = true
	wc.mu.Unlock()

	close(wc.closeChan)
	wc.conn.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(64 * 1024)

	wc := newWSConn(conn, s.config.KeepAlivePeriod)
	go wc.writePump()

	var ctrl *session.Controller
	defer func() {
		if ctrl != nil {
			s.manager.RemoveSession(ctrl.ID())
		}
		wc.close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := messages.DecodeClient(data)
		if err != nil {
			wc.queue(messages.NewErrorMessage("", messages.ErrCodeInvalidMessage, err.Error()))
			continue
		}

		switch msg.Type {
		case messages.TypeOpen:
			if ctrl != nil {
				wc.queue(messages.NewErrorMessage(ctrl.ID(), messages.ErrCodeInvalidMessage, "session already open"))
				continue
			}
			payload, err := msg.DecodeOpen()
			if err != nil {
				wc.queue(messages.NewErrorMessage("", messages.ErrCodeInvalidMessage, err.Error()))
				continue
			}

			created, err := s.manager.CreateSession(r.Context(), wc.queue)
			if err != nil {
				wc.queue(messages.NewErrorMessage("", messages.ErrCodeSessionLimit, err.Error()))
				continue
			}
			if err := created.Open(context.Background(), payload.Context); err != nil {
				log.Printf("❌ Failed to open session %s: %v", created.ID(), err)
				s.manager.RemoveSession(created.ID())
				continue
			}
			ctrl = created

		case messages.TypeClose:
			if ctrl == nil {
				continue
			}
			s.manager.RemoveSession(ctrl.ID())
			ctrl = nil

		case messages.TypeSetMuted:
			if ctrl == nil {
				wc.queue(messages.NewErrorMessage("", messages.ErrCodeInvalidMessage, "no open session"))
				continue
			}
			payload, err := msg.DecodeSetMuted()
			if err != nil {
				wc.queue(messages.NewErrorMessage(ctrl.ID(), messages.ErrCodeInvalidMessage, err.Error()))
				continue
			}
			ctrl.SetMuted(payload.Muted)

		case messages.TypeScanResult:
			if ctrl == nil {
				wc.queue(messages.NewErrorMessage("", messages.ErrCodeInvalidMessage, "no open session"))
				continue
			}
			payload, err := msg.DecodeScanResult()
			if err != nil {
				wc.queue(messages.NewErrorMessage(ctrl.ID(), messages.ErrCodeInvalidMessage, err.Error()))
				continue
			}
			if err := ctrl.InjectScanResult(payload); err != nil {
				wc.queue(messages.NewErrorMessage(ctrl.ID(), messages.ErrCodeUpstreamError, err.Error()))
			}

		case messages.TypePing:
			id := ""
			if ctrl != nil {
				id = ctrl.ID()
			}
			wc.queue(messages.NewPongMessage(id))

		default:
			wc.queue(messages.NewErrorMessage("", messages.ErrCodeInvalidMessage, "unknown message type: "+msg.Type))
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.manager.ActiveSessionCount())
}
