package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/radsadsoap/EchoWave/events"
	"github.com/radsadsoap/EchoWave/modules/store"
)

// Module hosts the relay: room registry, membership, credential checks,
// message routing, presence and temporary room reaping.
type Module struct {
	relay    *Relay
	gate     *CredentialGate
	out      Deliverer
	docs     DocumentStore
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a relay module hashing room passwords at bcryptCost.
func NewModule(bcryptCost int, logger types.Logger) *Module {
	return &Module{
		gate:   NewCredentialGate(bcryptCost),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"store"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "store":
		m.docs = store.NewAdapter(container)
	}
}

// SetDeliverer sets the outbound frame sink (called from main.go).
func (m *Module) SetDeliverer(out Deliverer) {
	m.out = out
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
	if m.relay != nil {
		m.relay.bus = bus
	}
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.MemberJoinedV1.ToBase(),
		events.MemberLeftV1.ToBase(),
		events.MessageSentV1.ToBase(),
		events.RoomReapedV1.ToBase(),
		events.RoomDeletedV1.ToBase(),
	}
}

// RegisterServices registers the relay operations as request-reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.handleCreateRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceJoinRoom, json.Unmarshal, json.Marshal, m.handleJoinRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceJoinRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSend, json.Unmarshal, json.Marshal, m.handleSend,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSend, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceHistory, json.Unmarshal, json.Marshal, m.handleHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceHistory, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLeave, json.Unmarshal, json.Marshal, m.handleLeave,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLeave, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDisconnect, json.Unmarshal, json.Marshal, m.handleDisconnect,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDisconnect, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.handleListRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.handleGetRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDeleteRoom, json.Unmarshal, json.Marshal, m.handleDeleteRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDeleteRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMembers, json.Unmarshal, json.Marshal, m.handleMembers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceMembers, err)
	}

	m.logger.Info("Registered relay services")
	return nil
}

func (m *Module) handleCreateRoom(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	created, err := m.relay.CreateRoom(ctx, req.Spec)
	if err != nil {
		return CreateRoomResponse{}, err
	}
	return CreateRoomResponse{Created: created}, nil
}

func (m *Module) handleJoinRoom(ctx context.Context, req JoinRoomRequest, _ *mono.Msg) (JoinRoomResponse, error) {
	err := m.relay.Join(ctx, req.ConnID, req.Username, req.RoomID, req.Password)
	var rejection Rejection
	if errors.As(err, &rejection) {
		return JoinRoomResponse{Rejection: rejection}, nil
	}
	if err != nil {
		return JoinRoomResponse{}, err
	}
	return JoinRoomResponse{}, nil
}

func (m *Module) handleSend(ctx context.Context, req SendMessageRequest, _ *mono.Msg) (SendMessageResponse, error) {
	msg, err := m.relay.Send(ctx, req.RoomID, req.Body, req.Sender)
	if err != nil {
		return SendMessageResponse{}, err
	}
	return SendMessageResponse{Message: msg}, nil
}

func (m *Module) handleHistory(ctx context.Context, req RoomRequest, _ *mono.Msg) (HistoryResponse, error) {
	return HistoryResponse{Messages: m.relay.History(ctx, req.RoomID)}, nil
}

func (m *Module) handleLeave(_ context.Context, req ConnRequest, _ *mono.Msg) (LeaveResponse, error) {
	roomID, left := m.relay.Leave(req.ConnID)
	return LeaveResponse{Left: left, RoomID: roomID}, nil
}

func (m *Module) handleDisconnect(_ context.Context, req ConnRequest, _ *mono.Msg) (LeaveResponse, error) {
	return LeaveResponse{Left: m.relay.Disconnect(req.ConnID)}, nil
}

func (m *Module) handleListRooms(_ context.Context, _ struct{}, _ *mono.Msg) (ListRoomsResponse, error) {
	return ListRoomsResponse{Rooms: m.relay.Rooms()}, nil
}

func (m *Module) handleGetRoom(ctx context.Context, req RoomRequest, _ *mono.Msg) (GetRoomResponse, error) {
	room, found := m.relay.Room(ctx, req.RoomID)
	return GetRoomResponse{Found: found, Room: room}, nil
}

func (m *Module) handleDeleteRoom(ctx context.Context, req RoomRequest, _ *mono.Msg) (DeleteRoomResponse, error) {
	return DeleteRoomResponse{Deleted: m.relay.DeleteRoom(ctx, req.RoomID)}, nil
}

func (m *Module) handleMembers(_ context.Context, req RoomRequest, _ *mono.Msg) (MembersResponse, error) {
	return MembersResponse{Members: m.relay.Members(req.RoomID)}, nil
}

// Start builds the relay and restores permanent rooms from the store.
func (m *Module) Start(ctx context.Context) error {
	if m.docs == nil {
		return fmt.Errorf("store dependency not set")
	}
	if m.out == nil {
		return fmt.Errorf("deliverer not set")
	}

	m.relay = New(m.docs, m.out, m.gate, m.logger)
	m.relay.bus = m.eventBus

	restored, err := m.relay.Restore(ctx)
	if err != nil {
		m.logger.Warn("Starting without persisted rooms", "error", err)
	}
	m.logger.Info("Relay module started", "restoredRooms", restored)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	if m.relay != nil {
		rooms, members := m.relay.Counts()
		m.logger.Info("Relay module stopped", "rooms", rooms, "members", members)
	}
	return nil
}

// Health reports registry and membership sizes.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.relay == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "relay not started",
		}
	}

	rooms, members := m.relay.Counts()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":   rooms,
			"members": members,
		},
	}
}

// Relay returns the running relay, or nil before Start.
func (m *Module) Relay() *Relay {
	return m.relay
}
