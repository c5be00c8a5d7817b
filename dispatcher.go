package siohub

import (
	"fmt"

	"github.com/ramory-l/siohub/engineio"
)

func (s *Server) handleConnection(client engineio.Client) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if _, ok := s.conns[client.ID()]; ok {
		return
	}

	conn := newConnection(s.ctx, client)
	s.conns[client.ID()] = conn

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		conn.run()
	}()

	s.logger.Debug("client connected", "client", client.ID())
}

func (s *Server) handleDisconnection(client engineio.Client, reason engineio.DisconnectReason) {
	conn := s.connection(client)
	if conn == nil {
		return
	}
	conn.shutdown(func() { s.closeConnection(conn, disconnectReasonFrom(reason)) })
}

func (s *Server) handlePackets(client engineio.Client, frames []*engineio.Packet) {
	conn := s.connection(client)
	if conn == nil {
		s.logger.Warn("frames for unknown client", "client", client.ID())
		return
	}
	conn.enqueue(func() { s.processFrames(conn, frames) })
}

func (s *Server) connection(client engineio.Client) *connection {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	return s.conns[client.ID()]
}

// closeConnection removes every socket of the connection from its
// namespace and notifies it. Incomplete reassembly state is dropped.
func (s *Server) closeConnection(conn *connection, reason DisconnectReason) {
	for _, socket := range conn.orderedSockets() {
		if ns := s.namespace(socket.nsp); ns != nil {
			ns.removeSocket(socket)
		}
		socket.disconnected(reason)
	}
	conn.sockets = make(map[string]*Socket)

	s.connMu.Lock()
	if s.conns[conn.client.ID()] == conn {
		delete(s.conns, conn.client.ID())
	}
	s.connMu.Unlock()

	s.logger.Debug("client disconnected", "client", conn.client.ID(), "reason", string(reason))
}

// processFrames handles one batch in arrival order. The first failing
// frame ends the connection and the rest of the batch is dropped.
func (s *Server) processFrames(conn *connection, frames []*engineio.Packet) {
	for _, frame := range frames {
		if conn.ctx.Err() != nil {
			return
		}

		var err error
		if frame.Binary {
			err = s.handleBinaryFrame(conn, frame.Data)
		} else {
			err = s.handleTextFrame(conn, frame)
		}

		if err != nil {
			s.logger.Warn("closing connection", "client", conn.client.ID(), "err", err)
			conn.client.Close(engineio.ReasonInvalidPacket)
			return
		}
	}
}

func (s *Server) handleTextFrame(conn *connection, frame *engineio.Packet) error {
	packet, err := PacketFromFrame(frame)
	if err != nil {
		return err
	}

	if packet.Type == PacketTypeConnect {
		s.handleConnect(conn, packet)
		return nil
	}

	socket, ok := conn.sockets[packet.Namespace]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidNamespace, packet.Namespace)
	}

	switch packet.Type {
	case PacketTypeDisconnect:
		s.handleDisconnect(conn, socket)
	case PacketTypeEvent:
		socket.dispatch(packet)
	case PacketTypeBinaryEvent:
		s.handleBinaryEvent(conn, socket, packet)
	default:
		return fmt.Errorf("%w: unexpected %s packet from client", ErrInvalidPacketFormat, packet.Type)
	}
	return nil
}

func (s *Server) handleConnect(conn *connection, packet *Packet) {
	if existing, ok := conn.sockets[packet.Namespace]; ok {
		s.sendHandshake(existing)
		return
	}

	socket := newSocket(s, conn.client, packet.Namespace)
	err := s.connect(conn, socket)
	if err == nil {
		return
	}

	s.logger.Info("connection rejected", "client", conn.client.ID(), "nsp", packet.Namespace, "err", err)

	reply := &Packet{
		Type:      PacketTypeConnectError,
		Namespace: packet.Namespace,
		Data:      map[string]interface{}{"message": err.Error()},
	}
	if frame, err := reply.Frame(); err == nil {
		conn.client.Send(frame)
	}
	conn.client.Close(engineio.ReasonForcefully)
}

func (s *Server) connect(conn *connection, socket *Socket) error {
	ns := s.namespace(socket.nsp)
	if ns == nil {
		return ErrInvalidNamespace
	}

	return ns.addSocket(conn.ctx, socket, func() {
		conn.sockets[socket.nsp] = socket
		s.sendHandshake(socket)
	})
}

func (s *Server) sendHandshake(socket *Socket) {
	handshake := &Packet{
		Type:      PacketTypeConnect,
		Namespace: socket.nsp,
		Data:      map[string]interface{}{"sid": socket.id},
	}
	if frame, err := handshake.Frame(); err == nil {
		socket.send(frame)
	}
}

func (s *Server) handleDisconnect(conn *connection, socket *Socket) {
	delete(conn.sockets, socket.nsp)
	if ns := s.namespace(socket.nsp); ns != nil {
		ns.removeSocket(socket)
	}
	socket.disconnected(ReasonForcefully)
}

func (s *Server) handleBinaryEvent(conn *connection, socket *Socket, packet *Packet) {
	if packet.Attachments == 0 {
		socket.dispatch(packet)
		return
	}

	if socket.pending == nil {
		socket.pending = &pendingPacketState{}
	}
	socket.pending.setEventPacket(packet)
	s.dispatchIfComplete(conn, socket)
}

// handleBinaryFrame feeds a binary frame to every socket of the
// connection, since the frame itself names no namespace.
func (s *Server) handleBinaryFrame(conn *connection, data []byte) error {
	sockets := conn.orderedSockets()
	if len(sockets) == 0 {
		return fmt.Errorf("%w: binary frame before connect", ErrInvalidNamespace)
	}

	for _, socket := range sockets {
		if socket.pending == nil {
			socket.pending = &pendingPacketState{}
		}
		socket.pending.appendBinary(data)
		if s.dispatchIfComplete(conn, socket) {
			break
		}
	}
	return nil
}

// dispatchIfComplete delivers the socket's reassembled event, clearing the
// reassembly state of every socket on the connection first.
func (s *Server) dispatchIfComplete(conn *connection, socket *Socket) bool {
	final, ok := socket.pending.finalPacket()
	if !ok {
		return false
	}

	for _, other := range conn.sockets {
		other.pending = nil
	}
	socket.dispatch(final)
	return true
}
