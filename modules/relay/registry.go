package relay

import (
	"sort"

	domain "github.com/radsadsoap/EchoWave/domain/chat"
)

// Registry is the in-memory record of known rooms and their temporary message buffers.
// It is not safe for concurrent use; the Relay serializes all access.
type Registry struct {
	rooms   map[string]domain.Room
	buffers map[string][]domain.Message
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]domain.Room),
		buffers: make(map[string][]domain.Message),
	}
}

// Insert adds room unless a room with the same id already exists.
// It reports whether the room was added.
func (g *Registry) Insert(room domain.Room) bool {
	if _, exists := g.rooms[room.ID]; exists {
		return false
	}
	if !room.IsPasswordProtected || room.PasswordHash == "" {
		room.IsPasswordProtected = false
		room.PasswordHash = ""
	}
	g.rooms[room.ID] = room
	return true
}

// Lookup returns the room with the given id.
func (g *Registry) Lookup(id string) (domain.Room, bool) {
	room, ok := g.rooms[id]
	return room, ok
}

// Remove deletes a room together with its message buffer.
func (g *Registry) Remove(id string) bool {
	if _, ok := g.rooms[id]; !ok {
		return false
	}
	delete(g.rooms, id)
	delete(g.buffers, id)
	return true
}

// Append adds msg to the room's buffer, creating the buffer on first use.
func (g *Registry) Append(roomID string, msg domain.Message) {
	g.buffers[roomID] = append(g.buffers[roomID], msg)
}

// Buffer returns a copy of the room's buffered messages in insertion order.
func (g *Registry) Buffer(roomID string) []domain.Message {
	buf := g.buffers[roomID]
	out := make([]domain.Message, len(buf))
	copy(out, buf)
	return out
}

// BufferLen returns the number of buffered messages for a room.
func (g *Registry) BufferLen(roomID string) int {
	return len(g.buffers[roomID])
}

// List returns all rooms ordered by creation time, then id.
func (g *Registry) List() []domain.Room {
	rooms := make([]domain.Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

// Len returns the number of rooms.
func (g *Registry) Len() int {
	return len(g.rooms)
}
