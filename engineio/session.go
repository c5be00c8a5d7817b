package engineio

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const writeWait = 10 * time.Second

// Client is the view of a session the Socket.IO layer works with.
type Client interface {
	// ID returns the stable session id.
	ID() string

	// Send queues packets for delivery. Packets passed in one call are
	// written back to back, and calls are written in submission order.
	Send(packets ...*Packet) error

	// Close ends the session.
	Close(reason DisconnectReason)
}

// Session represents an Engine.IO session
type Session struct {
	id     string
	conn   *websocket.Conn
	config *Config
	logger *slog.Logger

	mu       sync.Mutex
	outgoing *queue.Queue
	wake     chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}

	timerMu     sync.Mutex
	pingTimer   *time.Timer
	pingTimeout *time.Timer

	handlersMu sync.RWMutex
	onPackets  func([]*Packet)
	onClose    func(DisconnectReason)
}

var _ Client = (*Session)(nil)

// NewSession creates a new Engine.IO session
func NewSession(id string, conn *websocket.Conn, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	return &Session{
		id:       id,
		conn:     conn,
		config:   config,
		logger:   config.logger().With("sid", id),
		outgoing: queue.New(),
		wake:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// Start starts the session loops
func (s *Session) Start() {
	if s.config.MaxPayload > 0 {
		s.conn.SetReadLimit(int64(s.config.MaxPayload))
	}

	var grp errgroup.Group
	grp.Go(s.readLoop)
	grp.Go(s.writeLoop)
	go func() {
		if err := grp.Wait(); err != nil {
			s.logger.Debug("session loops stopped", "err", err)
		}
		close(s.done)
	}()

	s.schedulePing()
}

// Done is closed once both session loops have returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send sends packets to the client
func (s *Session) Send(packets ...*Packet) error {
	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	default:
	}
	for _, packet := range packets {
		s.outgoing.Add(packet)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close closes the session. Packets queued before Close are still flushed.
func (s *Session) Close(reason DisconnectReason) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.closed)
		s.mu.Unlock()

		s.timerMu.Lock()
		if s.pingTimer != nil {
			s.pingTimer.Stop()
		}
		if s.pingTimeout != nil {
			s.pingTimeout.Stop()
		}
		s.timerMu.Unlock()

		s.logger.Debug("session closed", "reason", reason.String())

		s.handlersMu.RLock()
		handler := s.onClose
		s.handlersMu.RUnlock()

		if handler != nil {
			handler(reason)
		}
	})
}

// OnPackets sets the inbound message handler
func (s *Session) OnPackets(fn func([]*Packet)) {
	s.handlersMu.Lock()
	s.onPackets = fn
	s.handlersMu.Unlock()
}

// OnClose sets the close handler
func (s *Session) OnClose(fn func(DisconnectReason)) {
	s.handlersMu.Lock()
	s.onClose = fn
	s.handlersMu.Unlock()
}

func (s *Session) readLoop() error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.Close(ReasonTransportClose)
			return err
		}

		if messageType == websocket.BinaryMessage {
			s.deliver(NewBinaryMessage(data))
			continue
		}

		packet, err := DecodePacket(data)
		if err != nil {
			s.Close(ReasonInvalidPacket)
			return err
		}

		s.handlePacket(packet)
	}
}

func (s *Session) writeLoop() error {
	defer s.conn.Close()

	for {
		select {
		case <-s.wake:
			if err := s.flush(); err != nil {
				s.Close(ReasonTransportClose)
				return err
			}
		case <-s.closed:
			err := s.flush()
			if err == nil {
				closePacket := &Packet{Type: PacketTypeClose}
				err = s.write(closePacket)
			}
			if errors.Is(err, websocket.ErrCloseSent) {
				err = nil
			}
			return err
		}
	}
}

func (s *Session) flush() error {
	for {
		s.mu.Lock()
		if s.outgoing.Length() == 0 {
			s.mu.Unlock()
			return nil
		}
		packet := s.outgoing.Remove().(*Packet)
		s.mu.Unlock()

		if err := s.write(packet); err != nil {
			return err
		}
	}
}

func (s *Session) write(packet *Packet) error {
	messageType := websocket.TextMessage
	if packet.Binary {
		messageType = websocket.BinaryMessage
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, packet.Encode())
}

func (s *Session) handlePacket(packet *Packet) {
	switch packet.Type {
	case PacketTypePing:
		s.Send(&Packet{Type: PacketTypePong, Data: packet.Data})
	case PacketTypePong:
		s.handlePong()
	case PacketTypeMessage:
		s.deliver(packet)
	case PacketTypeClose:
		s.Close(ReasonTransportClose)
	}
}

func (s *Session) deliver(packets ...*Packet) {
	s.handlersMu.RLock()
	handler := s.onPackets
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(packets)
	}
}

func (s *Session) handlePong() {
	s.timerMu.Lock()
	if s.pingTimeout != nil {
		s.pingTimeout.Stop()
	}
	s.timerMu.Unlock()
	s.schedulePing()
}

func (s *Session) schedulePing() {
	if s.config.PingInterval <= 0 {
		return
	}

	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	select {
	case <-s.closed:
		return
	default:
	}

	if s.pingTimer != nil {
		s.pingTimer.Stop()
	}
	// a pong may arrive before Send returns; arm the timeout first
	s.pingTimer = time.AfterFunc(time.Duration(s.config.PingInterval)*time.Millisecond, func() {
		s.schedulePingTimeout()
		s.Send(&Packet{Type: PacketTypePing})
	})
}

func (s *Session) schedulePingTimeout() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	select {
	case <-s.closed:
		return
	default:
	}

	if s.pingTimeout != nil {
		s.pingTimeout.Stop()
	}
	s.pingTimeout = time.AfterFunc(time.Duration(s.config.PingTimeout)*time.Millisecond, func() {
		s.Close(ReasonPingTimeout)
	})
}
