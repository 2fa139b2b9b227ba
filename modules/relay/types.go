package relay

import (
	"errors"

	domain "github.com/radsadsoap/EchoWave/domain/chat"
)

// Validation errors
var (
	ErrRoomIDEmpty       = errors.New("room id cannot be empty")
	ErrUsernameEmpty     = errors.New("username cannot be empty")
	ErrSenderEmpty       = errors.New("sender cannot be empty")
	ErrMessageEmpty      = errors.New("message content cannot be empty")
	ErrPasswordTooLong   = errors.New("password exceeds 72 bytes")
	ErrConnectionIDEmpty = errors.New("connection id cannot be empty")
)

// Rejection is a join refused by policy. It is reported to the joining
// connection only and causes no state change.
type Rejection string

const (
	RejectRoomNotFound      Rejection = "room-not-found"
	RejectMissingPassword   Rejection = "missing-password"
	RejectInvalidCredential Rejection = "invalid-credential"
)

func (r Rejection) Error() string {
	return string(r)
}

// Message returns the text shown to the client.
func (r Rejection) Message() string {
	switch r {
	case RejectRoomNotFound:
		return "Room not found"
	case RejectMissingPassword:
		return "Password required"
	case RejectInvalidCredential:
		return "Incorrect password"
	default:
		return string(r)
	}
}

func rejectionFor(v Verdict) Rejection {
	if v == VerdictMissingPassword {
		return RejectMissingPassword
	}
	return RejectInvalidCredential
}

// Outbound frame types delivered to connections.
const (
	EventJoinRoomSuccess = "join_room_success"
	EventJoinRoomError   = "join_room_error"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventRoomUsers       = "room_users"
	EventReceiveMessage  = "receive_message"
)

// Durable collections.
const (
	CollectionRooms    = "rooms"
	CollectionMessages = "messages"
)

// RoomSpec describes a room creation request.
type RoomSpec struct {
	ID                  string `json:"roomId"`
	Name                string `json:"name"`
	CreatedBy           string `json:"createdBy"`
	IsTemporary         bool   `json:"isTemporary"`
	IsPasswordProtected bool   `json:"isPasswordProtected"`
	Password            string `json:"password,omitempty"`
}

// JoinAck is delivered to a connection whose join succeeded.
type JoinAck struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// JoinFailure is delivered with a join_room_error frame.
type JoinFailure struct {
	Room   string `json:"room"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// FrameError returns the text carried in the frame's error field.
func (f JoinFailure) FrameError() string {
	return f.Reason
}

// ValidateRoomSpec checks a creation request. Besides a non-empty id, the
// only bound is bcrypt's 72-byte password input.
func ValidateRoomSpec(spec RoomSpec) error {
	if err := ValidateRoomID(spec.ID); err != nil {
		return err
	}
	if len(spec.Password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateRoomID checks a room id. Length is bounded by the transport frame limit only.
func ValidateRoomID(id string) error {
	if id == "" {
		return ErrRoomIDEmpty
	}
	return nil
}

// ValidateUsername checks a username.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	return nil
}

// ValidateMessage checks message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	return nil
}
