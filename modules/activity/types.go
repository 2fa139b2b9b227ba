package activity

import (
	"sort"
	"sync"
	"time"
)

// ServiceGetStats is the request/reply service that returns a Stats snapshot.
const ServiceGetStats = "get-stats"

// RoomActivity tracks traffic for a single room.
type RoomActivity struct {
	RoomID        string    `json:"room_id"`
	Temporary     bool      `json:"temporary"`
	Members       int       `json:"members"`
	PeakMembers   int       `json:"peak_members"`
	Messages      int64     `json:"messages"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
}

// Stats is a point-in-time snapshot of relay activity.
type Stats struct {
	RoomsCreated      int64          `json:"rooms_created"`
	RoomsReaped       int64          `json:"rooms_reaped"`
	RoomsDeleted      int64          `json:"rooms_deleted"`
	Joins             int64          `json:"joins"`
	Departures        int64          `json:"departures"`
	MessagesSent      int64          `json:"messages_sent"`
	TemporaryMessages int64          `json:"temporary_messages"`
	DiscardedMessages int64          `json:"discarded_messages"`
	Rooms             []RoomActivity `json:"rooms"`
}

// Tracker aggregates relay events. It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	stats Stats
	rooms map[string]*RoomActivity
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{rooms: make(map[string]*RoomActivity)}
}

func (t *Tracker) room(id string) *RoomActivity {
	r, ok := t.rooms[id]
	if !ok {
		r = &RoomActivity{RoomID: id}
		t.rooms[id] = r
	}
	return r
}

// RoomCreated records a new room.
func (t *Tracker) RoomCreated(roomID string, temporary bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.RoomsCreated++
	t.room(roomID).Temporary = temporary
}

// MemberJoined records a join and the room's member count after it.
func (t *Tracker) MemberJoined(roomID string, members int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Joins++
	r := t.room(roomID)
	r.Members = members
	if members > r.PeakMembers {
		r.PeakMembers = members
	}
}

// MemberLeft records a departure and the room's member count after it.
func (t *Tracker) MemberLeft(roomID string, members int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Departures++
	if r, ok := t.rooms[roomID]; ok {
		r.Members = members
	}
}

// MessageSent records a routed message.
func (t *Tracker) MessageSent(roomID string, temporary bool, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.MessagesSent++
	if temporary {
		t.stats.TemporaryMessages++
	}
	r := t.room(roomID)
	r.Messages++
	if at.After(r.LastMessageAt) {
		r.LastMessageAt = at
	}
}

// RoomReaped records a discarded temporary room and drops its entry.
func (t *Tracker) RoomReaped(roomID string, buffered int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.RoomsReaped++
	t.stats.DiscardedMessages += int64(buffered)
	delete(t.rooms, roomID)
}

// RoomDeleted records an external deletion and drops the room's entry.
func (t *Tracker) RoomDeleted(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.RoomsDeleted++
	delete(t.rooms, roomID)
}

// Snapshot returns a copy of the counters with rooms ordered by message count.
func (t *Tracker) Snapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.stats
	out.Rooms = make([]RoomActivity, 0, len(t.rooms))
	for _, r := range t.rooms {
		out.Rooms = append(out.Rooms, *r)
	}
	sort.Slice(out.Rooms, func(i, j int) bool {
		if out.Rooms[i].Messages != out.Rooms[j].Messages {
			return out.Rooms[i].Messages > out.Rooms[j].Messages
		}
		return out.Rooms[i].RoomID < out.Rooms[j].RoomID
	})
	return out
}
