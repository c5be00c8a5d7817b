package siohub

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Middleware is an admission check run when a socket connects to a
// namespace. Returning an error rejects the socket; the error text is sent
// to the client.
type Middleware interface {
	Respond(ctx context.Context, socket *Socket) error
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, socket *Socket) error

// Respond calls f(ctx, socket).
func (f MiddlewareFunc) Respond(ctx context.Context, socket *Socket) error {
	return f(ctx, socket)
}

// Namespace represents a Socket.IO namespace
type Namespace struct {
	name   string
	logger *slog.Logger

	mu           sync.RWMutex
	adapter      Adapter
	sockets      map[string]*Socket
	middlewares  []Middleware
	onConnection func(*Socket)
}

// NewNamespace creates a new namespace
func NewNamespace(name string, logger *slog.Logger) *Namespace {
	if logger == nil {
		logger = discardLogger()
	}
	return &Namespace{
		name:    name,
		logger:  logger.With("nsp", name),
		adapter: NewMemoryAdapter(),
		sockets: make(map[string]*Socket),
	}
}

// Name returns the namespace name
func (ns *Namespace) Name() string {
	return ns.name
}

// OnConnection sets the handler invoked once for every admitted socket
func (ns *Namespace) OnConnection(handler func(*Socket)) {
	ns.mu.Lock()
	ns.onConnection = handler
	ns.mu.Unlock()
}

// Use appends admission middleware, run in registration order
func (ns *Namespace) Use(middlewares ...Middleware) {
	ns.mu.Lock()
	ns.middlewares = append(ns.middlewares, middlewares...)
	ns.mu.Unlock()
}

// UseFunc appends function middleware
func (ns *Namespace) UseFunc(fn func(ctx context.Context, socket *Socket) error) {
	ns.Use(MiddlewareFunc(fn))
}

// SetAdapter sets a custom adapter
func (ns *Namespace) SetAdapter(adapter Adapter) {
	ns.mu.Lock()
	ns.adapter = adapter
	ns.mu.Unlock()
}

// Sockets returns all connected sockets ordered by id
func (ns *Namespace) Sockets() []*Socket {
	return ns.subset("").Sockets()
}

// GetSocket retrieves a socket by ID
func (ns *Namespace) GetSocket(id string) (*Socket, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	socket, ok := ns.sockets[id]
	return socket, ok
}

// To returns a BroadcastOperator limited to members of the given rooms
func (ns *Namespace) To(rooms ...string) *BroadcastOperator {
	return ns.subset("").To(rooms...)
}

// Except returns a BroadcastOperator skipping members of the given rooms
func (ns *Namespace) Except(rooms ...string) *BroadcastOperator {
	return ns.subset("").Except(rooms...)
}

// Emit broadcasts an event to all sockets in the namespace
func (ns *Namespace) Emit(event string, args ...interface{}) error {
	return ns.subset("").Emit(event, args...)
}

// DisconnectSockets disconnects every socket in the namespace
func (ns *Namespace) DisconnectSockets() {
	ns.subset("").DisconnectSockets()
}

// subset snapshots the namespace, leaving out the socket with id exclude.
func (ns *Namespace) subset(exclude string) *BroadcastOperator {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	sockets := make([]*Socket, 0, len(ns.sockets))
	for id, socket := range ns.sockets {
		if id != exclude {
			sockets = append(sockets, socket)
		}
	}
	sort.Slice(sockets, func(i, j int) bool { return sockets[i].id < sockets[j].id })

	return newBroadcastOperator(ns.name, sockets, ns.adapter.Rooms())
}

// addSocket runs the middleware chain and admits the socket only if every
// step succeeds. admitted runs after insertion and before the connection
// handler.
func (ns *Namespace) addSocket(ctx context.Context, socket *Socket, admitted func()) error {
	ns.mu.RLock()
	chain := append([]Middleware(nil), ns.middlewares...)
	ns.mu.RUnlock()

	for _, middleware := range chain {
		if err := middleware.Respond(ctx, socket); err != nil {
			return err
		}
	}

	ns.mu.Lock()
	_, seen := ns.sockets[socket.id]
	ns.sockets[socket.id] = socket
	ns.adapter.Add(socket.id, socket.id)
	handler := ns.onConnection
	ns.mu.Unlock()

	ns.logger.Debug("socket admitted", "sid", socket.id)

	if admitted != nil {
		admitted()
	}
	if !seen && handler != nil {
		handler(socket)
	}
	return nil
}

// removeSocket drops the socket and every room membership it held.
func (ns *Namespace) removeSocket(socket *Socket) {
	ns.mu.Lock()
	delete(ns.sockets, socket.id)
	ns.adapter.RemoveAll(socket.id)
	ns.mu.Unlock()
}

func (ns *Namespace) addSocketToRoom(socket *Socket, room string) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	if _, ok := ns.sockets[socket.id]; !ok {
		return
	}
	ns.adapter.Add(socket.id, room)
}

func (ns *Namespace) removeSocketFromRoom(socket *Socket, room string) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	ns.adapter.Remove(socket.id, room)
}

func (ns *Namespace) socketRooms(socket *Socket) []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	return ns.adapter.SocketRooms(socket.id)
}

func (ns *Namespace) close() error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	return ns.adapter.Close()
}
