package siohub

// Adapter is the interface for managing room membership within a namespace
type Adapter interface {
	// Add adds a socket to a room, creating the room if needed
	Add(socketID, room string)

	// Remove removes a socket from a room
	Remove(socketID, room string)

	// RemoveAll removes a socket from all rooms
	RemoveAll(socketID string)

	// Sockets returns all socket IDs in a room
	Sockets(room string) []string

	// SocketRooms returns all rooms a socket is in
	SocketRooms(socketID string) []string

	// Rooms returns a copy of the room to socket IDs mapping
	Rooms() map[string]map[string]struct{}

	// Close cleans up the adapter
	Close() error
}
