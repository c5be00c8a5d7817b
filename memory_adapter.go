package siohub

import (
	"sort"
	"sync"
)

// MemoryAdapter is an in-memory implementation of the Adapter interface
type MemoryAdapter struct {
	rooms       map[string]map[string]struct{} // room -> socketIDs
	socketRooms map[string]map[string]struct{} // socketID -> rooms
	mu          sync.RWMutex
}

var _ Adapter = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates a new in-memory adapter
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		rooms:       make(map[string]map[string]struct{}),
		socketRooms: make(map[string]map[string]struct{}),
	}
}

// Add adds a socket to a room
func (a *MemoryAdapter) Add(socketID, room string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rooms[room] == nil {
		a.rooms[room] = make(map[string]struct{})
	}
	a.rooms[room][socketID] = struct{}{}

	if a.socketRooms[socketID] == nil {
		a.socketRooms[socketID] = make(map[string]struct{})
	}
	a.socketRooms[socketID][room] = struct{}{}
}

// Remove removes a socket from a room. An emptied room stays registered.
func (a *MemoryAdapter) Remove(socketID, room string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.remove(socketID, room)
}

// RemoveAll removes a socket from all rooms
func (a *MemoryAdapter) RemoveAll(socketID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for room := range a.socketRooms[socketID] {
		a.remove(socketID, room)
	}
	// the self room is named after the socket and dies with it
	if members, ok := a.rooms[socketID]; ok && len(members) == 0 {
		delete(a.rooms, socketID)
	}
	delete(a.socketRooms, socketID)
}

func (a *MemoryAdapter) remove(socketID, room string) {
	if members := a.rooms[room]; members != nil {
		delete(members, socketID)
	}

	if rooms := a.socketRooms[socketID]; rooms != nil {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(a.socketRooms, socketID)
		}
	}
}

// Sockets returns all socket IDs in a room, sorted
func (a *MemoryAdapter) Sockets(room string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return sortedKeys(a.rooms[room])
}

// SocketRooms returns all rooms a socket is in, sorted
func (a *MemoryAdapter) SocketRooms(socketID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return sortedKeys(a.socketRooms[socketID])
}

// Rooms returns a snapshot of the membership map
func (a *MemoryAdapter) Rooms() map[string]map[string]struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snapshot := make(map[string]map[string]struct{}, len(a.rooms))
	for room, members := range a.rooms {
		ids := make(map[string]struct{}, len(members))
		for id := range members {
			ids[id] = struct{}{}
		}
		snapshot[room] = ids
	}
	return snapshot
}

// Close cleans up the adapter
func (a *MemoryAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rooms = make(map[string]map[string]struct{})
	a.socketRooms = make(map[string]map[string]struct{})

	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	result := make([]string, 0, len(set))
	for key := range set {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}
