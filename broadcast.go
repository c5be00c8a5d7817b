package siohub

import (
	"github.com/ramory-l/siohub/engineio"
)

// SocketSubset is a set of sockets that can be narrowed by room and
// addressed as a whole.
type SocketSubset interface {
	Sockets() []*Socket
	To(rooms ...string) *BroadcastOperator
	Except(rooms ...string) *BroadcastOperator
	Emit(event string, args ...interface{}) error
	DisconnectSockets()
}

var (
	_ SocketSubset = (*Namespace)(nil)
	_ SocketSubset = (*BroadcastOperator)(nil)
	_ SocketSubset = (*Server)(nil)
)

// BroadcastOperator is a room-scoped view over a snapshot of a namespace.
// Rooms are resolved lazily when the sockets are needed.
//
// When both included and excluded rooms are set only the included rooms
// apply; the two are never intersected.
type BroadcastOperator struct {
	namespace string
	sockets   []*Socket
	rooms     map[string]map[string]struct{}
	included  map[string]struct{}
	excluded  map[string]struct{}
}

func newBroadcastOperator(namespace string, sockets []*Socket, rooms map[string]map[string]struct{}) *BroadcastOperator {
	return &BroadcastOperator{
		namespace: namespace,
		sockets:   sockets,
		rooms:     rooms,
		included:  make(map[string]struct{}),
		excluded:  make(map[string]struct{}),
	}
}

// To adds rooms to broadcast to
func (b *BroadcastOperator) To(rooms ...string) *BroadcastOperator {
	for _, room := range rooms {
		b.included[room] = struct{}{}
	}
	return b
}

// Except adds rooms whose members are skipped
func (b *BroadcastOperator) Except(rooms ...string) *BroadcastOperator {
	for _, room := range rooms {
		b.excluded[room] = struct{}{}
	}
	return b
}

// Sockets resolves the target sockets
func (b *BroadcastOperator) Sockets() []*Socket {
	return resolveTargets(b.included, b.excluded, b.sockets, b.rooms)
}

// Emit sends an event to every target socket
func (b *BroadcastOperator) Emit(event string, args ...interface{}) error {
	return emitTo(b.Sockets(), b.namespace, event, args)
}

// DisconnectSockets disconnects every target socket
func (b *BroadcastOperator) DisconnectSockets() {
	disconnectAll(b.Sockets())
}

// resolveTargets filters sockets by room membership. Included rooms win
// over excluded rooms.
func resolveTargets(included, excluded map[string]struct{}, sockets []*Socket, rooms map[string]map[string]struct{}) []*Socket {
	var (
		ids  map[string]struct{}
		keep bool
	)
	switch {
	case len(included) > 0:
		ids, keep = roomMembers(included, rooms), true
	case len(excluded) > 0:
		ids, keep = roomMembers(excluded, rooms), false
	default:
		return append([]*Socket(nil), sockets...)
	}

	result := make([]*Socket, 0, len(sockets))
	for _, socket := range sockets {
		if _, ok := ids[socket.id]; ok == keep {
			result = append(result, socket)
		}
	}
	return result
}

func roomMembers(names map[string]struct{}, rooms map[string]map[string]struct{}) map[string]struct{} {
	ids := make(map[string]struct{})
	for name := range names {
		for id := range rooms[name] {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// emitTo encodes the event once and queues it on every socket.
func emitTo(sockets []*Socket, namespace, event string, args []interface{}) error {
	frames, err := eventFrames(namespace, event, args)
	if err != nil {
		return err
	}
	for _, socket := range sockets {
		socket.send(frames...)
	}
	return nil
}

func disconnectAll(sockets []*Socket) {
	for _, socket := range sockets {
		socket.Disconnect()
	}
}

// eventFrames builds the frames for one event. Any []byte argument turns
// the packet into a binary event followed by one binary frame per
// attachment.
func eventFrames(namespace, event string, args []interface{}) ([]*engineio.Packet, error) {
	data := make([]interface{}, 0, len(args)+1)
	data = append(data, event)
	data = append(data, args...)

	payload, binaries := deconstructPayload(data)

	packet := &Packet{
		Type:      PacketTypeEvent,
		Namespace: namespace,
		Data:      payload,
	}
	if len(binaries) > 0 {
		packet.Type = PacketTypeBinaryEvent
		packet.Attachments = len(binaries)
	}

	frame, err := packet.Frame()
	if err != nil {
		return nil, err
	}

	frames := make([]*engineio.Packet, 0, len(binaries)+1)
	frames = append(frames, frame)
	for _, b := range binaries {
		frames = append(frames, engineio.NewBinaryMessage(b))
	}
	return frames, nil
}
