package siohub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/ramory-l/siohub/engineio"
)

// Engine is the transport the server runs on. It owns handshakes,
// heartbeats and framing, and reports clients and their frames.
type Engine interface {
	OnConnection(func(engineio.Client))
	OnDisconnection(func(engineio.Client, engineio.DisconnectReason))
	OnPackets(func(engineio.Client, []*engineio.Packet))
	Close() error
}

var _ Engine = (*engineio.Server)(nil)

// Config represents Socket.IO server configuration
type Config struct {
	// Engine replaces the built-in WebSocket transport. The remaining
	// transport fields are ignored when it is set.
	Engine Engine

	PingInterval int // milliseconds
	PingTimeout  int // milliseconds
	MaxPayload   int // bytes
	CheckOrigin  func(r *http.Request) bool

	Logger *slog.Logger
}

// Server represents a Socket.IO server
type Server struct {
	engine Engine
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	namespaces map[string]*Namespace
	nsMu       sync.RWMutex

	conns  map[string]*connection
	connMu sync.Mutex
	wg     sync.WaitGroup
}

// NewServer creates a new Socket.IO server
func NewServer(config *Config) *Server {
	if config == nil {
		config = &Config{}
	}

	logger := config.Logger
	if logger == nil {
		logger = discardLogger()
	}

	engine := config.Engine
	if engine == nil {
		eioConfig := engineio.DefaultConfig()
		if config.PingInterval > 0 {
			eioConfig.PingInterval = config.PingInterval
		}
		if config.PingTimeout > 0 {
			eioConfig.PingTimeout = config.PingTimeout
		}
		if config.MaxPayload > 0 {
			eioConfig.MaxPayload = config.MaxPayload
		}
		eioConfig.CheckOrigin = config.CheckOrigin
		eioConfig.Logger = logger
		engine = engineio.NewServer(eioConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		engine:     engine,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		namespaces: make(map[string]*Namespace),
		conns:      make(map[string]*connection),
	}

	// Create default namespace
	server.Of(DefaultNamespace)

	engine.OnConnection(server.handleConnection)
	engine.OnDisconnection(server.handleDisconnection)
	engine.OnPackets(server.handlePackets)

	return server
}

// Of returns a namespace, creating it if it doesn't exist
func (s *Server) Of(name string) *Namespace {
	if name == "" {
		name = DefaultNamespace
	}
	if !strings.HasPrefix(name, DefaultNamespace) {
		name = DefaultNamespace + name
	}

	s.nsMu.RLock()
	ns, exists := s.namespaces[name]
	s.nsMu.RUnlock()

	if exists {
		return ns
	}

	s.nsMu.Lock()
	defer s.nsMu.Unlock()

	// Double-check after acquiring write lock
	if ns, exists := s.namespaces[name]; exists {
		return ns
	}

	ns = NewNamespace(name, s.logger)
	s.namespaces[name] = ns

	return ns
}

func (s *Server) namespace(name string) *Namespace {
	s.nsMu.RLock()
	defer s.nsMu.RUnlock()

	return s.namespaces[name]
}

// OnConnection sets the connection handler for the default namespace
func (s *Server) OnConnection(handler func(*Socket)) {
	s.Of(DefaultNamespace).OnConnection(handler)
}

// Use appends admission middleware to the default namespace
func (s *Server) Use(middlewares ...Middleware) {
	s.Of(DefaultNamespace).Use(middlewares...)
}

// Emit broadcasts to all clients in the default namespace
func (s *Server) Emit(event string, args ...interface{}) error {
	return s.Of(DefaultNamespace).Emit(event, args...)
}

// To returns a BroadcastOperator for the default namespace
func (s *Server) To(rooms ...string) *BroadcastOperator {
	return s.Of(DefaultNamespace).To(rooms...)
}

// Except returns a BroadcastOperator for the default namespace
func (s *Server) Except(rooms ...string) *BroadcastOperator {
	return s.Of(DefaultNamespace).Except(rooms...)
}

// Sockets returns the sockets of the default namespace
func (s *Server) Sockets() []*Socket {
	return s.Of(DefaultNamespace).Sockets()
}

// DisconnectSockets disconnects every socket of the default namespace
func (s *Server) DisconnectSockets() {
	s.Of(DefaultNamespace).DisconnectSockets()
}

// ServeHTTP implements http.Handler when the engine does
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, ok := s.engine.(http.Handler)
	if !ok || !strings.HasPrefix(r.URL.Path, "/socket.io/") {
		http.NotFound(w, r)
		return
	}

	handler.ServeHTTP(w, r)
}

// Close closes the transport and waits for every connection to wind down
func (s *Server) Close() error {
	err := s.engine.Close()

	s.connMu.Lock()
	for _, conn := range s.conns {
		conn.shutdown(func() { s.closeConnection(conn, ReasonForcefully) })
	}
	s.connMu.Unlock()

	s.wg.Wait()
	s.cancel()

	s.nsMu.RLock()
	defer s.nsMu.RUnlock()

	for _, ns := range s.namespaces {
		err = errors.Join(err, ns.close())
	}

	return err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
