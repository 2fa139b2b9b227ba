package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Port reads activity counters. Consumers should use it instead of the Module.
type Port interface {
	GetStats(ctx context.Context) (Stats, error)
}

type adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a Port that calls the get-stats service.
func NewAdapter(container mono.ServiceContainer) Port {
	return &adapter{container: container}
}

// GetStats retrieves the current snapshot.
func (a *adapter) GetStats(ctx context.Context) (Stats, error) {
	req := struct{}{}
	var resp Stats
	err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetStats,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("%s service call failed: %w", ServiceGetStats, err)
	}
	return resp, nil
}

// TrackerPort serves snapshots straight from a Tracker.
type TrackerPort struct {
	Tracker *Tracker
}

// GetStats returns the tracker's snapshot.
func (p TrackerPort) GetStats(_ context.Context) (Stats, error) {
	return p.Tracker.Snapshot(), nil
}
