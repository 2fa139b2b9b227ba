package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/radsadsoap/EchoWave/domain/chat"
)

// Port defines the relay operations used by transports.
// A rejected join is returned as a Rejection error.
type Port interface {
	CreateRoom(ctx context.Context, spec RoomSpec) (bool, error)
	Join(ctx context.Context, connID, username, roomID, password string) error
	Send(ctx context.Context, roomID, body, sender string) (domain.Message, error)
	History(ctx context.Context, roomID string) ([]domain.Message, error)
	Leave(ctx context.Context, connID string) (string, bool, error)
	Disconnect(ctx context.Context, connID string) error
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
	GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, bool, error)
	DeleteRoom(ctx context.Context, roomID string) (bool, error)
	Members(ctx context.Context, roomID string) ([]string, error)
}

// Port returns a Port that calls r directly.
func (r *Relay) Port() Port {
	return localPort{r: r}
}

type localPort struct {
	r *Relay
}

func (p localPort) CreateRoom(ctx context.Context, spec RoomSpec) (bool, error) {
	return p.r.CreateRoom(ctx, spec)
}

func (p localPort) Join(ctx context.Context, connID, username, roomID, password string) error {
	return p.r.Join(ctx, connID, username, roomID, password)
}

func (p localPort) Send(ctx context.Context, roomID, body, sender string) (domain.Message, error) {
	return p.r.Send(ctx, roomID, body, sender)
}

func (p localPort) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	return p.r.History(ctx, roomID), nil
}

func (p localPort) Leave(_ context.Context, connID string) (string, bool, error) {
	roomID, left := p.r.Leave(connID)
	return roomID, left, nil
}

func (p localPort) Disconnect(_ context.Context, connID string) error {
	p.r.Disconnect(connID)
	return nil
}

func (p localPort) ListRooms(_ context.Context) ([]domain.RoomSummary, error) {
	return p.r.Rooms(), nil
}

func (p localPort) GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, bool, error) {
	room, found := p.r.Room(ctx, roomID)
	return room, found, nil
}

func (p localPort) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	return p.r.DeleteRoom(ctx, roomID), nil
}

func (p localPort) Members(_ context.Context, roomID string) ([]string, error) {
	return p.r.Members(roomID), nil
}

// Adapter implements Port using the relay module's service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer) Port {
	if container == nil {
		panic("relay: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// CreateRoom registers a room.
func (a *Adapter) CreateRoom(ctx context.Context, spec RoomSpec) (bool, error) {
	req := CreateRoomRequest{Spec: spec}
	var resp CreateRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to create room: %w", err)
	}
	return resp.Created, nil
}

// Join admits a connection into a room.
func (a *Adapter) Join(ctx context.Context, connID, username, roomID, password string) error {
	req := JoinRoomRequest{ConnID: connID, Username: username, RoomID: roomID, Password: password}
	var resp JoinRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceJoinRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	if resp.Rejection != "" {
		return resp.Rejection
	}
	return nil
}

// Send routes a message to a room.
func (a *Adapter) Send(ctx context.Context, roomID, body, sender string) (domain.Message, error) {
	req := SendMessageRequest{RoomID: roomID, Body: body, Sender: sender}
	var resp SendMessageResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSend,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.Message{}, fmt.Errorf("failed to send message: %w", err)
	}
	return resp.Message, nil
}

// History returns a room's messages oldest first.
func (a *Adapter) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	req := RoomRequest{RoomID: roomID}
	var resp HistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if resp.Messages == nil {
		resp.Messages = []domain.Message{}
	}
	return resp.Messages, nil
}

// Leave removes a connection from its room.
func (a *Adapter) Leave(ctx context.Context, connID string) (string, bool, error) {
	req := ConnRequest{ConnID: connID}
	var resp LeaveResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceLeave,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return "", false, fmt.Errorf("failed to leave room: %w", err)
	}
	return resp.RoomID, resp.Left, nil
}

// Disconnect reports a dropped connection.
func (a *Adapter) Disconnect(ctx context.Context, connID string) error {
	req := ConnRequest{ConnID: connID}
	var resp LeaveResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDisconnect,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

// ListRooms returns the registered rooms.
func (a *Adapter) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	req := struct{}{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// GetRoom retrieves a room by id.
func (a *Adapter) GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, bool, error) {
	req := RoomRequest{RoomID: roomID}
	var resp GetRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.RoomSummary{}, false, fmt.Errorf("failed to get room: %w", err)
	}
	return resp.Room, resp.Found, nil
}

// DeleteRoom removes a room.
func (a *Adapter) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	req := RoomRequest{RoomID: roomID}
	var resp DeleteRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDeleteRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to delete room: %w", err)
	}
	return resp.Deleted, nil
}

// Members returns the usernames in a room.
func (a *Adapter) Members(ctx context.Context, roomID string) ([]string, error) {
	req := RoomRequest{RoomID: roomID}
	var resp MembersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMembers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return resp.Members, nil
}
