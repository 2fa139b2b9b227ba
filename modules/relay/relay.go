package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"

	domain "github.com/radsadsoap/EchoWave/domain/chat"
	"github.com/radsadsoap/EchoWave/events"
	"github.com/radsadsoap/EchoWave/modules/store"
)

// Deliverer sends an outbound frame to a set of connections.
// Implementations must not block; Deliver is called with the relay lock held.
type Deliverer interface {
	Deliver(connIDs []string, event string, payload any)
}

// maxJoinAttempts bounds re-verification when a room is replaced mid-join.
const maxJoinAttempts = 3

// Relay owns the room registry and the membership table. Every mutation runs
// under mu, and frames for a mutation are handed to the Deliverer before mu is
// released, so each connection sees frames in relay processing order.
// Store calls, password hashing and event publishing happen outside mu.
type Relay struct {
	mu        sync.Mutex
	rooms     *Registry
	members   *MembershipTable
	lastStamp time.Time

	gate   Gate
	store  DocumentStore
	out    Deliverer
	bus    mono.EventBus
	logger types.Logger
	clock  func() time.Time
}

// New creates a relay.
func New(docs DocumentStore, out Deliverer, gate *CredentialGate, logger types.Logger) *Relay {
	if gate == nil {
		gate = NewCredentialGate(DefaultBcryptCost)
	}
	return &Relay{
		rooms:   NewRegistry(),
		members: NewMembershipTable(),
		gate:    gate,
		store:   docs,
		out:     out,
		logger:  logger,
		clock:   time.Now,
	}
}

// stamp returns a strictly increasing millisecond timestamp. Caller holds mu.
func (r *Relay) stamp() time.Time {
	now := r.clock().UTC().Truncate(time.Millisecond)
	if !now.After(r.lastStamp) {
		now = r.lastStamp.Add(time.Millisecond)
	}
	r.lastStamp = now
	return now
}

// CreateRoom registers a room. It reports false when the id is already
// registered, in which case the existing room is left unchanged.
func (r *Relay) CreateRoom(ctx context.Context, spec RoomSpec) (bool, error) {
	if err := ValidateRoomSpec(spec); err != nil {
		return false, err
	}

	r.mu.Lock()
	_, exists := r.rooms.Lookup(spec.ID)
	r.mu.Unlock()
	if exists {
		r.logger.Debug("Room already registered", "roomID", spec.ID)
		return false, nil
	}

	// A permanent room the registry has not loaded yet still owns its id.
	persist := !spec.IsTemporary
	stored, found, err := r.loadRoom(ctx, spec.ID)
	switch {
	case err != nil:
		r.logger.Warn("Could not check store for existing room, not persisting", "roomID", spec.ID, "error", err)
		persist = false
	case found:
		r.mu.Lock()
		r.rooms.Insert(stored)
		r.mu.Unlock()
		r.logger.Debug("Room already stored", "roomID", spec.ID)
		return false, nil
	}

	room := domain.Room{
		ID:          spec.ID,
		Name:        spec.Name,
		CreatedBy:   spec.CreatedBy,
		IsTemporary: spec.IsTemporary,
	}
	if room.Name == "" {
		room.Name = spec.ID
	}
	if spec.IsPasswordProtected && spec.Password != "" {
		hash, err := r.gate.Hash(spec.Password)
		if err != nil {
			return false, fmt.Errorf("failed to hash room password: %w", err)
		}
		room.IsPasswordProtected = true
		room.PasswordHash = hash
	}

	r.mu.Lock()
	room.CreatedAt = r.stamp()
	inserted := r.rooms.Insert(room)
	r.mu.Unlock()
	if !inserted {
		return false, nil
	}

	r.logger.Info("Room created",
		"roomID", room.ID,
		"temporary", room.IsTemporary,
		"protected", room.IsPasswordProtected)

	if persist {
		if _, err := r.store.CreateRecord(ctx, CollectionRooms, roomDocument(room)); err != nil {
			r.logger.Warn("Failed to persist room metadata", "roomID", room.ID, "error", err)
		}
	}

	if r.bus != nil {
		err := events.RoomCreatedV1.Publish(r.bus, events.RoomCreatedEvent{
			RoomID:              room.ID,
			Name:                room.Name,
			CreatedBy:           room.CreatedBy,
			IsTemporary:         room.IsTemporary,
			IsPasswordProtected: room.IsPasswordProtected,
			Timestamp:           room.CreatedAt,
		}, nil)
		r.logPublish("RoomCreated", err)
	}
	return true, nil
}

// Join admits connID into roomID as username. A refused join delivers
// join_room_error to the connection and returns a Rejection.
func (r *Relay) Join(ctx context.Context, connID, username, roomID, password string) error {
	if connID == "" {
		return ErrConnectionIDEmpty
	}
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidateRoomID(roomID); err != nil {
		return err
	}

	room, ok := r.resolveRoom(ctx, roomID)
	for attempt := 1; ; attempt++ {
		if !ok {
			return r.reject(connID, roomID, RejectRoomNotFound)
		}

		verdict := r.gate.Verify(room, password)
		if !verdict.Allowed() {
			return r.reject(connID, roomID, rejectionFor(verdict))
		}

		r.mu.Lock()
		current, still := r.rooms.Lookup(roomID)
		if still && sameRoom(current, room) {
			left, moved := r.joinLocked(connID, username, roomID)
			count := r.members.CountIn(roomID)
			r.mu.Unlock()

			if moved {
				r.afterDeparture(left)
			}
			r.logger.Info("Member joined", "roomID", roomID, "connID", connID, "username", username)
			if r.bus != nil {
				err := events.MemberJoinedV1.Publish(r.bus, events.MemberJoinedEvent{
					RoomID:    roomID,
					ConnID:    connID,
					Username:  username,
					Members:   count,
					Timestamp: time.Now(),
				}, nil)
				r.logPublish("MemberJoined", err)
			}
			return nil
		}
		r.mu.Unlock()

		if attempt >= maxJoinAttempts {
			return r.reject(connID, roomID, RejectRoomNotFound)
		}
		room, ok = current, still
	}
}

func sameRoom(a, b domain.Room) bool {
	return a.ID == b.ID && a.PasswordHash == b.PasswordHash && a.CreatedAt.Equal(b.CreatedAt)
}

// joinLocked upserts the membership and emits presence frames. If the
// connection was in another room it departs that room first. Caller holds mu.
func (r *Relay) joinLocked(connID, username, roomID string) (departure, bool) {
	var left departure
	prev, had := r.members.Get(connID)
	moved := had && prev.RoomID != roomID
	renamed := had && !moved && prev.Username != username
	if moved {
		r.members.Remove(connID)
		left = r.departLocked(prev)
	}

	r.members.Add(connID, username, roomID)

	r.out.Deliver([]string{connID}, EventJoinRoomSuccess, JoinAck{Room: roomID, Username: username})

	conns := r.members.ConnsOf(roomID)
	others := make([]string, 0, len(conns))
	for _, c := range conns {
		if c != connID {
			others = append(others, c)
		}
	}
	if len(others) > 0 {
		if renamed {
			r.out.Deliver(others, EventUserLeft, prev.Username)
		}
		r.out.Deliver(others, EventUserJoined, username)
	}
	r.out.Deliver(conns, EventRoomUsers, r.members.MembersOf(roomID))
	return left, moved
}

func (r *Relay) reject(connID, roomID string, why Rejection) error {
	r.out.Deliver([]string{connID}, EventJoinRoomError, JoinFailure{
		Room:   roomID,
		Code:   string(why),
		Reason: why.Message(),
	})
	r.logger.Info("Join rejected", "roomID", roomID, "connID", connID, "reason", string(why))
	return why
}

// resolveRoom finds a room in the registry, falling back to the durable store
// for permanent rooms the registry has not seen. Rooms found in the store are
// registered.
func (r *Relay) resolveRoom(ctx context.Context, roomID string) (domain.Room, bool) {
	r.mu.Lock()
	room, ok := r.rooms.Lookup(roomID)
	r.mu.Unlock()
	if ok {
		return room, true
	}

	room, ok = r.fetchRoom(ctx, roomID)
	if !ok {
		return domain.Room{}, false
	}

	r.mu.Lock()
	r.rooms.Insert(room)
	room, ok = r.rooms.Lookup(roomID)
	r.mu.Unlock()
	return room, ok
}

func (r *Relay) fetchRoom(ctx context.Context, roomID string) (domain.Room, bool) {
	room, found, err := r.loadRoom(ctx, roomID)
	if err != nil {
		r.logger.Warn("Failed to load room from store", "roomID", roomID, "error", err)
		return domain.Room{}, false
	}
	return room, found
}

// loadRoom reads a permanent room record. Malformed or temporary records
// count as absent.
func (r *Relay) loadRoom(ctx context.Context, roomID string) (domain.Room, bool, error) {
	doc, found, err := r.store.GetRecord(ctx, CollectionRooms, roomID)
	if err != nil {
		return domain.Room{}, false, err
	}
	if !found {
		return domain.Room{}, false, nil
	}

	room, err := decodeRoom(doc)
	if err != nil {
		r.logger.Warn("Ignoring malformed room record", "roomID", roomID, "error", err)
		return domain.Room{}, false, nil
	}
	if room.IsTemporary || room.ID != roomID {
		return domain.Room{}, false, nil
	}
	return room, true, nil
}

// departure is what a membership removal produced, for logging and events
// once the lock is released.
type departure struct {
	member    Membership
	remaining int
	reaped    bool
	buffered  int
}

// departLocked emits user_left and room_users to the remaining members and
// reaps the room if it is temporary and now empty. The membership must
// already be removed. Caller holds mu.
func (r *Relay) departLocked(m Membership) departure {
	conns := r.members.ConnsOf(m.RoomID)
	if len(conns) > 0 {
		r.out.Deliver(conns, EventUserLeft, m.Username)
		r.out.Deliver(conns, EventRoomUsers, r.members.MembersOf(m.RoomID))
	}

	d := departure{member: m, remaining: len(conns)}
	d.reaped, d.buffered = r.reapLocked(m.RoomID)
	return d
}

// reapLocked discards a temporary room and its buffer once nobody is in it.
func (r *Relay) reapLocked(roomID string) (bool, int) {
	room, ok := r.rooms.Lookup(roomID)
	if !ok || !room.IsTemporary || r.members.CountIn(roomID) > 0 {
		return false, 0
	}
	buffered := r.rooms.BufferLen(roomID)
	r.rooms.Remove(roomID)
	return true, buffered
}

func (r *Relay) afterDeparture(d departure) {
	m := d.member
	r.logger.Info("Member left", "roomID", m.RoomID, "connID", m.ConnID, "username", m.Username)
	if d.reaped {
		r.logger.Info("Temporary room reaped", "roomID", m.RoomID, "bufferedMessages", d.buffered)
	}
	if r.bus == nil {
		return
	}

	now := time.Now()
	err := events.MemberLeftV1.Publish(r.bus, events.MemberLeftEvent{
		RoomID:    m.RoomID,
		ConnID:    m.ConnID,
		Username:  m.Username,
		Members:   d.remaining,
		Timestamp: now,
	}, nil)
	r.logPublish("MemberLeft", err)

	if d.reaped {
		err := events.RoomReapedV1.Publish(r.bus, events.RoomReapedEvent{
			RoomID:           m.RoomID,
			BufferedMessages: d.buffered,
			Timestamp:        now,
		}, nil)
		r.logPublish("RoomReaped", err)
	}
}

func (r *Relay) depart(connID string) (Membership, bool) {
	r.mu.Lock()
	m, ok := r.members.Remove(connID)
	if !ok {
		r.mu.Unlock()
		return Membership{}, false
	}
	d := r.departLocked(m)
	r.mu.Unlock()

	r.afterDeparture(d)
	return m, true
}

// Disconnect handles a dropped connection. Unknown connections are ignored.
func (r *Relay) Disconnect(connID string) bool {
	_, ok := r.depart(connID)
	return ok
}

// Leave removes connID from its room on request and returns the room it left.
func (r *Relay) Leave(connID string) (string, bool) {
	m, ok := r.depart(connID)
	return m.RoomID, ok
}

// Send routes a message: buffered in memory for temporary rooms, persisted to
// the durable store otherwise, and delivered to every member of the room.
// Delivery never waits for persistence, and persistence failures are only logged.
func (r *Relay) Send(ctx context.Context, roomID, body, sender string) (domain.Message, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return domain.Message{}, err
	}
	if err := ValidateMessage(body); err != nil {
		return domain.Message{}, err
	}
	if sender == "" {
		return domain.Message{}, ErrSenderEmpty
	}

	r.mu.Lock()
	room, ok := r.rooms.Lookup(roomID)
	temporary := ok && room.IsTemporary
	msg := domain.Message{
		ID:        uuid.NewString(),
		Room:      roomID,
		Body:      body,
		Sender:    sender,
		Timestamp: r.stamp(),
	}
	if temporary {
		r.rooms.Append(roomID, msg)
	}
	if conns := r.members.ConnsOf(roomID); len(conns) > 0 {
		r.out.Deliver(conns, EventReceiveMessage, msg)
	}
	r.mu.Unlock()

	if !temporary {
		if _, err := r.store.CreateRecord(ctx, CollectionMessages, messageDocument(msg)); err != nil {
			r.logger.Warn("Failed to persist message, delivered live only",
				"roomID", roomID,
				"messageID", msg.ID,
				"error", err)
		}
	}

	r.logger.Debug("Message routed", "roomID", roomID, "messageID", msg.ID, "temporary", temporary)
	if r.bus != nil {
		err := events.MessageSentV1.Publish(r.bus, events.MessageSentEvent{
			MessageID: msg.ID,
			RoomID:    roomID,
			Sender:    sender,
			Temporary: temporary,
			Timestamp: msg.Timestamp,
		}, nil)
		r.logPublish("MessageSent", err)
	}
	return msg, nil
}

// History returns a room's messages oldest first. Temporary rooms answer from
// their buffer; everything else is read from the durable store. A store
// failure yields an empty list.
func (r *Relay) History(ctx context.Context, roomID string) []domain.Message {
	r.mu.Lock()
	room, ok := r.rooms.Lookup(roomID)
	if ok && room.IsTemporary {
		buf := r.rooms.Buffer(roomID)
		r.mu.Unlock()
		return buf
	}
	r.mu.Unlock()

	if roomID == "" {
		return []domain.Message{}
	}

	docs, err := r.store.QueryOrdered(ctx, CollectionMessages, store.Filter{"room": roomID}, "timestamp")
	if err != nil {
		r.logger.Warn("Failed to read history, returning empty", "roomID", roomID, "error", err)
		return []domain.Message{}
	}

	msgs := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		msg, err := decodeMessage(doc)
		if err != nil {
			r.logger.Warn("Skipping malformed message record", "roomID", roomID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// Restore registers the permanent rooms held by the durable store.
func (r *Relay) Restore(ctx context.Context) (int, error) {
	docs, err := r.store.QueryOrdered(ctx, CollectionRooms, store.Filter{"isTemporary": false}, "createdAt")
	if err != nil {
		return 0, fmt.Errorf("failed to load rooms: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for _, doc := range docs {
		room, err := decodeRoom(doc)
		if err != nil {
			r.logger.Warn("Skipping malformed room record", "error", err)
			continue
		}
		if room.IsTemporary {
			continue
		}
		if r.rooms.Insert(room) {
			restored++
		}
	}
	return restored, nil
}

// DeleteRoom removes a room on an external request. The durable record is
// deleted best effort. Memberships under the id are left in place.
func (r *Relay) DeleteRoom(ctx context.Context, roomID string) bool {
	r.mu.Lock()
	removed := r.rooms.Remove(roomID)
	r.mu.Unlock()

	deleted, err := r.store.DeleteRecord(ctx, CollectionRooms, roomID)
	if err != nil {
		r.logger.Error("Failed to delete room record", "roomID", roomID, "error", err)
	}

	if !removed && !deleted {
		return false
	}

	r.logger.Info("Room deleted", "roomID", roomID)
	if r.bus != nil {
		err := events.RoomDeletedV1.Publish(r.bus, events.RoomDeletedEvent{
			RoomID:    roomID,
			Timestamp: time.Now(),
		}, nil)
		r.logPublish("RoomDeleted", err)
	}
	return true
}

// Room returns a room with its member count, consulting the store for
// permanent rooms the registry does not hold.
func (r *Relay) Room(ctx context.Context, roomID string) (domain.RoomSummary, bool) {
	r.mu.Lock()
	room, ok := r.rooms.Lookup(roomID)
	count := r.members.CountIn(roomID)
	r.mu.Unlock()
	if ok {
		return domain.RoomSummary{Room: room, Members: count}, true
	}

	room, ok = r.fetchRoom(ctx, roomID)
	if !ok {
		return domain.RoomSummary{}, false
	}
	return domain.RoomSummary{Room: room, Members: count}, true
}

// Rooms lists registered rooms with their member counts.
func (r *Relay) Rooms() []domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := r.rooms.List()
	out := make([]domain.RoomSummary, len(rooms))
	for i, room := range rooms {
		out[i] = domain.RoomSummary{Room: room, Members: r.members.CountIn(room.ID)}
	}
	return out
}

// Members returns the usernames in a room in join order.
func (r *Relay) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.MembersOf(roomID)
}

// Counts returns the number of registered rooms and live memberships.
func (r *Relay) Counts() (rooms, members int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms.Len(), r.members.Len()
}

func (r *Relay) logPublish(event string, err error) {
	if err != nil {
		r.logger.Warn("Failed to publish event", "event", event, "error", err)
	}
}
