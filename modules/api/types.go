package api

import (
	domain "github.com/radsadsoap/EchoWave/domain/chat"
)

// CreateRoomResponse acknowledges POST /api/v1/rooms.
type CreateRoomResponse struct {
	RoomID  string `json:"roomId"`
	Created bool   `json:"created"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
	Count int                  `json:"count"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []domain.Message `json:"messages"`
}

// MembersResponse lists the usernames currently in a room.
type MembersResponse struct {
	RoomID  string   `json:"room_id"`
	Members []string `json:"members"`
}

// DeleteRoomResponse acknowledges DELETE /api/v1/rooms/:id.
type DeleteRoomResponse struct {
	RoomID  string `json:"room_id"`
	Deleted bool   `json:"deleted"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
