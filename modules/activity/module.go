// Package activity keeps running counters of relay activity by consuming relay events.
package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/radsadsoap/EchoWave/events"
)

// Module consumes relay events into a Tracker and serves snapshots.
type Module struct {
	tracker *Tracker
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		tracker: NewTracker(),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// RegisterEventConsumers subscribes to every relay event.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomCreatedV1, m.handleRoomCreated, m); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MemberJoinedV1, m.handleMemberJoined, m); err != nil {
		return fmt.Errorf("failed to register MemberJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MemberLeftV1, m.handleMemberLeft, m); err != nil {
		return fmt.Errorf("failed to register MemberLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageSentV1, m.handleMessageSent, m); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomReapedV1, m.handleRoomReaped, m); err != nil {
		return fmt.Errorf("failed to register RoomReaped consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomDeletedV1, m.handleRoomDeleted, m); err != nil {
		return fmt.Errorf("failed to register RoomDeleted consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"RoomCreated.v1", "MemberJoined.v1", "MemberLeft.v1", "MessageSent.v1", "RoomReaped.v1", "RoomDeleted.v1"})
	return nil
}

func (m *Module) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.tracker.RoomCreated(event.RoomID, event.IsTemporary)
	return nil
}

func (m *Module) handleMemberJoined(_ context.Context, event events.MemberJoinedEvent, _ *mono.Msg) error {
	m.tracker.MemberJoined(event.RoomID, event.Members)
	return nil
}

func (m *Module) handleMemberLeft(_ context.Context, event events.MemberLeftEvent, _ *mono.Msg) error {
	m.tracker.MemberLeft(event.RoomID, event.Members)
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.tracker.MessageSent(event.RoomID, event.Temporary, event.Timestamp)
	return nil
}

func (m *Module) handleRoomReaped(_ context.Context, event events.RoomReapedEvent, _ *mono.Msg) error {
	m.tracker.RoomReaped(event.RoomID, event.BufferedMessages)
	m.logger.Debug("Recorded room reap", "roomID", event.RoomID, "discarded", event.BufferedMessages)
	return nil
}

func (m *Module) handleRoomDeleted(_ context.Context, event events.RoomDeletedEvent, _ *mono.Msg) error {
	m.tracker.RoomDeleted(event.RoomID)
	return nil
}

// RegisterServices registers the get-stats service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := container.RegisterRequestReplyService(ServiceGetStats, m.handleGetStats); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetStats, err)
	}
	m.logger.Info("Registered activity services", "services", []string{ServiceGetStats})
	return nil
}

func (m *Module) handleGetStats(_ context.Context, _ *mono.Msg) ([]byte, error) {
	return json.Marshal(m.tracker.Snapshot())
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started")
	return nil
}

// Stop logs the final counters.
func (m *Module) Stop(_ context.Context) error {
	s := m.tracker.Snapshot()
	m.logger.Info("Activity module stopped", "messages", s.MessagesSent, "joins", s.Joins)
	return nil
}

// Tracker returns the underlying tracker.
func (m *Module) Tracker() *Tracker {
	return m.tracker
}
