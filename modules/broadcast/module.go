package broadcast

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// BroadcastModule owns the WebSocket hub that delivers relay frames to clients.
type BroadcastModule struct {
	hub    *Hub
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(sendBuffer int, logger types.Logger) *BroadcastModule {
	return &BroadcastModule{
		hub:    NewHub(sendBuffer, logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start initializes the module.
func (m *BroadcastModule) Start(_ context.Context) error {
	m.logger.Info("Broadcast module started", "sendBuffer", m.hub.bufferSize)
	return nil
}

// Stop closes every client connection.
func (m *BroadcastModule) Stop(_ context.Context) error {
	closed := m.hub.CloseAll()
	m.logger.Info("Broadcast module stopped", "closedClients", closed)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"dropped_frames":    m.hub.Dropped(),
		},
	}
}

// GetHub returns the WebSocket hub for the relay and API modules to use.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
