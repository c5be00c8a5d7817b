package siohub

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ramory-l/siohub/engineio"
)

// DisconnectReason explains why a socket left its namespace
type DisconnectReason string

const (
	ReasonForcefully     DisconnectReason = "forcefully"
	ReasonPingTimeout    DisconnectReason = "ping timeout"
	ReasonTransportClose DisconnectReason = "transport close"
)

func disconnectReasonFrom(reason engineio.DisconnectReason) DisconnectReason {
	switch reason {
	case engineio.ReasonForcefully:
		return ReasonForcefully
	case engineio.ReasonPingTimeout:
		return ReasonPingTimeout
	default:
		return ReasonTransportClose
	}
}

// EventHandler handles Socket.IO events
type EventHandler func(args ...interface{})

// Socket is one client connection joined to one namespace
type Socket struct {
	id     string
	client engineio.Client
	nsp    string
	server *Server
	logger *slog.Logger

	handlersMu   sync.RWMutex
	handlers     map[string]EventHandler
	onDisconnect func(DisconnectReason)
	onError      func(error)

	data sync.Map

	// owned by the connection goroutine
	pending *pendingPacketState
}

func newSocket(server *Server, client engineio.Client, namespace string) *Socket {
	id := uuid.NewString()
	return &Socket{
		id:       id,
		client:   client,
		nsp:      namespace,
		server:   server,
		logger:   server.logger.With("sid", id, "nsp", namespace, "client", client.ID()),
		handlers: make(map[string]EventHandler),
	}
}

// ID returns the socket ID
func (s *Socket) ID() string {
	return s.id
}

// Namespace returns the name of the socket's namespace
func (s *Socket) Namespace() string {
	return s.nsp
}

// Client returns the underlying transport connection
func (s *Socket) Client() engineio.Client {
	return s.client
}

// Emit sends an event to the client. []byte arguments travel as binary
// attachments. Emit only queues the frames.
func (s *Socket) Emit(event string, args ...interface{}) error {
	frames, err := eventFrames(s.nsp, event, args)
	if err != nil {
		return err
	}
	return s.send(frames...)
}

// On registers the handler for an event, replacing any previous one
func (s *Socket) On(event string, handler EventHandler) {
	s.handlersMu.Lock()
	s.handlers[event] = handler
	s.handlersMu.Unlock()
}

// Off removes the handler for an event
func (s *Socket) Off(event string) {
	s.handlersMu.Lock()
	delete(s.handlers, event)
	s.handlersMu.Unlock()
}

// OnDisconnect sets the disconnect handler
func (s *Socket) OnDisconnect(handler func(DisconnectReason)) {
	s.handlersMu.Lock()
	s.onDisconnect = handler
	s.handlersMu.Unlock()
}

// OnError sets the handler for outbound send failures and handler panics
func (s *Socket) OnError(handler func(error)) {
	s.handlersMu.Lock()
	s.onError = handler
	s.handlersMu.Unlock()
}

// Join adds the socket to a room
func (s *Socket) Join(room string) {
	if ns := s.namespace(); ns != nil {
		ns.addSocketToRoom(s, room)
	}
}

// Leave removes the socket from a room
func (s *Socket) Leave(room string) {
	if ns := s.namespace(); ns != nil {
		ns.removeSocketFromRoom(s, room)
	}
}

// Rooms returns all rooms the socket is in
func (s *Socket) Rooms() []string {
	if ns := s.namespace(); ns != nil {
		return ns.socketRooms(s)
	}
	return nil
}

// Set stores arbitrary data on the socket
func (s *Socket) Set(key string, value interface{}) {
	s.data.Store(key, value)
}

// Get retrieves data from the socket
func (s *Socket) Get(key string) (interface{}, bool) {
	return s.data.Load(key)
}

// Disconnect closes the underlying connection
func (s *Socket) Disconnect() {
	s.client.Close(engineio.ReasonForcefully)
}

// Broadcast targets every other socket in the namespace
func (s *Socket) Broadcast() *BroadcastOperator {
	return s.others()
}

// To targets the other sockets of the namespace that are in the rooms
func (s *Socket) To(rooms ...string) *BroadcastOperator {
	return s.others().To(rooms...)
}

// Except targets the other sockets of the namespace outside the rooms
func (s *Socket) Except(rooms ...string) *BroadcastOperator {
	return s.others().Except(rooms...)
}

// Sockets returns every other socket in the namespace
func (s *Socket) Sockets() []*Socket {
	return s.others().Sockets()
}

func (s *Socket) String() string {
	return s.id
}

// namespace resolves the socket's namespace through the server at call
// time; a socket holds no reference to it.
func (s *Socket) namespace() *Namespace {
	return s.server.namespace(s.nsp)
}

func (s *Socket) others() *BroadcastOperator {
	if ns := s.namespace(); ns != nil {
		return ns.subset(s.id)
	}
	return newBroadcastOperator(s.nsp, nil, nil)
}

func (s *Socket) send(frames ...*engineio.Packet) error {
	if err := s.client.Send(frames...); err != nil {
		s.logger.Warn("send failed", "err", err)
		s.reportError(fmt.Errorf("%w: %v", ErrSocketClosed, err))
		return err
	}
	return nil
}

func (s *Socket) reportError(err error) {
	s.handlersMu.RLock()
	handler := s.onError
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(err)
	}
}

// dispatch runs the handler registered for the packet's event. Unknown
// events are dropped.
func (s *Socket) dispatch(packet *Packet) {
	event, args, ok := packet.Event()
	if !ok {
		return
	}

	s.handlersMu.RLock()
	handler := s.handlers[event]
	s.handlersMu.RUnlock()

	if handler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panicked", "event", event, "panic", r)
			s.reportError(fmt.Errorf("handler for %q panicked: %v", event, r))
		}
	}()
	handler(args...)
}

func (s *Socket) disconnected(reason DisconnectReason) {
	s.pending = nil

	s.handlersMu.RLock()
	handler := s.onDisconnect
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(reason)
	}
}
