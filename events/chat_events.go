package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// ModuleName is the module that emits every event in this package.
const ModuleName = "relay"

// RoomCreatedEvent is emitted when a room is added to the registry.
type RoomCreatedEvent struct {
	RoomID              string    `json:"room_id"`
	Name                string    `json:"name"`
	CreatedBy           string    `json:"created_by"`
	IsTemporary         bool      `json:"is_temporary"`
	IsPasswordProtected bool      `json:"is_password_protected"`
	Timestamp           time.Time `json:"timestamp"`
}

// MemberJoinedEvent is emitted after a connection joins a room.
type MemberJoinedEvent struct {
	RoomID    string    `json:"room_id"`
	ConnID    string    `json:"conn_id"`
	Username  string    `json:"username"`
	Members   int       `json:"members"`
	Timestamp time.Time `json:"timestamp"`
}

// MemberLeftEvent is emitted after a connection leaves a room or disconnects.
type MemberLeftEvent struct {
	RoomID    string    `json:"room_id"`
	ConnID    string    `json:"conn_id"`
	Username  string    `json:"username"`
	Members   int       `json:"members"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageSentEvent is emitted for every routed message.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Temporary bool      `json:"temporary"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomReapedEvent is emitted when an empty temporary room is discarded.
type RoomReapedEvent struct {
	RoomID           string    `json:"room_id"`
	BufferedMessages int       `json:"buffered_messages"`
	Timestamp        time.Time `json:"timestamp"`
}

// RoomDeletedEvent is emitted when a room is removed by an external request.
type RoomDeletedEvent struct {
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the relay domain.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		ModuleName,
		"RoomCreated",
		"v1",
	)

	MemberJoinedV1 = helper.EventDefinition[MemberJoinedEvent](
		ModuleName,
		"MemberJoined",
		"v1",
	)

	MemberLeftV1 = helper.EventDefinition[MemberLeftEvent](
		ModuleName,
		"MemberLeft",
		"v1",
	)

	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		ModuleName,
		"MessageSent",
		"v1",
	)

	RoomReapedV1 = helper.EventDefinition[RoomReapedEvent](
		ModuleName,
		"RoomReaped",
		"v1",
	)

	RoomDeletedV1 = helper.EventDefinition[RoomDeletedEvent](
		ModuleName,
		"RoomDeleted",
		"v1",
	)
)
