package chat

import "time"

// Room represents a chat room known to the relay.
type Room struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	CreatedBy           string    `json:"createdBy"`
	IsTemporary         bool      `json:"isTemporary"`
	IsPasswordProtected bool      `json:"isPasswordProtected"`
	PasswordHash        string    `json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Message represents a chat message. Messages are immutable once created.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Body      string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomSummary is a room together with its current member count.
type RoomSummary struct {
	Room
	Members int `json:"members"`
}
