package engineio

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrSessionClosed        = errors.New("session closed")
	ErrUnsupportedTransport = errors.New("only websocket transport is supported")
)

// Config holds Engine.IO server configuration
type Config struct {
	PingInterval int // milliseconds
	PingTimeout  int // milliseconds
	MaxPayload   int // bytes

	// CheckOrigin validates the upgrade request origin. Nil accepts all.
	CheckOrigin func(r *http.Request) bool

	Logger *slog.Logger
}

// DefaultConfig returns default Engine.IO configuration
func DefaultConfig() *Config {
	return &Config{
		PingInterval: 25000, // 25 seconds
		PingTimeout:  20000, // 20 seconds
		MaxPayload:   1e6,   // 1MB
	}
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Server represents an Engine.IO server
type Server struct {
	config   *Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	sessions sync.Map
	wg       sync.WaitGroup

	mu              sync.RWMutex
	closed          bool
	onConnection    func(Client)
	onDisconnection func(Client, DisconnectReason)
	onPackets       func(Client, []*Packet)
}

// NewServer creates a new Engine.IO server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Server{
		config: config,
		logger: config.logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP handles HTTP requests and upgrades to WebSocket
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, ErrUnsupportedTransport.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	sid := uuid.NewString()
	session := NewSession(sid, conn, s.config)

	handshake, err := EncodeHandshake(sid, s.config)
	if err != nil {
		conn.Close()
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, handshake); err != nil {
		conn.Close()
		return
	}

	s.mu.RLock()
	onConnection, onDisconnection, onPackets := s.onConnection, s.onDisconnection, s.onPackets
	s.mu.RUnlock()

	session.OnPackets(func(packets []*Packet) {
		if onPackets != nil {
			onPackets(session, packets)
		}
	})
	session.OnClose(func(reason DisconnectReason) {
		s.sessions.Delete(sid)
		if onDisconnection != nil {
			onDisconnection(session, reason)
		}
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.wg.Add(1)
	s.sessions.Store(sid, session)
	s.mu.Unlock()

	if onConnection != nil {
		onConnection(session)
	}

	session.Start()
	go func() {
		defer s.wg.Done()
		<-session.Done()
	}()

	s.logger.Debug("session opened", "sid", sid)
}

// OnConnection sets the connection handler
func (s *Server) OnConnection(fn func(Client)) {
	s.mu.Lock()
	s.onConnection = fn
	s.mu.Unlock()
}

// OnDisconnection sets the handler invoked once per closed session
func (s *Server) OnDisconnection(fn func(Client, DisconnectReason)) {
	s.mu.Lock()
	s.onDisconnection = fn
	s.mu.Unlock()
}

// OnPackets sets the handler receiving inbound message packets
func (s *Server) OnPackets(fn func(Client, []*Packet)) {
	s.mu.Lock()
	s.onPackets = fn
	s.mu.Unlock()
}

// GetSession retrieves a session by ID
func (s *Server) GetSession(sid string) (*Session, bool) {
	val, ok := s.sessions.Load(sid)
	if !ok {
		return nil, false
	}
	return val.(*Session), true
}

// Close closes all sessions and waits for their loops to exit
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.sessions.Range(func(key, value interface{}) bool {
		session := value.(*Session)
		session.Close(ReasonForcefully)
		return true
	})
	s.wg.Wait()
	return nil
}
