package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/radsadsoap/EchoWave/config"
	"github.com/radsadsoap/EchoWave/modules/cache"
)

// Module exposes the durable document store as request-reply services.
type Module struct {
	cfg     config.Config
	backend Backend
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a store module that opens its backend from cfg on Start.
func NewModule(cfg config.Config, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger,
	}
}

// NewModuleWithBackend creates a store module around an already open backend.
func NewModuleWithBackend(backend Backend, logger types.Logger) *Module {
	return &Module{
		backend: backend,
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// RegisterServices registers the record services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRecord, json.Unmarshal, json.Marshal, m.createRecord,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRecord, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRecord, json.Unmarshal, json.Marshal, m.getRecord,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRecord, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDeleteRecord, json.Unmarshal, json.Marshal, m.deleteRecord,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDeleteRecord, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceQueryRecords, json.Unmarshal, json.Marshal, m.queryRecords,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceQueryRecords, err)
	}

	m.logger.Info("Registered store services",
		"services", []string{ServiceCreateRecord, ServiceGetRecord, ServiceDeleteRecord, ServiceQueryRecords})
	return nil
}

func (m *Module) createRecord(ctx context.Context, req CreateRecordRequest, _ *mono.Msg) (CreateRecordResponse, error) {
	id, err := m.backend.Create(ctx, req.Collection, req.Data)
	if err != nil {
		return CreateRecordResponse{}, err
	}
	return CreateRecordResponse{ID: id}, nil
}

func (m *Module) getRecord(ctx context.Context, req GetRecordRequest, _ *mono.Msg) (GetRecordResponse, error) {
	doc, found, err := m.backend.Get(ctx, req.Collection, req.ID)
	if err != nil {
		return GetRecordResponse{}, err
	}
	return GetRecordResponse{Found: found, Data: doc}, nil
}

func (m *Module) deleteRecord(ctx context.Context, req DeleteRecordRequest, _ *mono.Msg) (DeleteRecordResponse, error) {
	deleted, err := m.backend.Delete(ctx, req.Collection, req.ID)
	if err != nil {
		return DeleteRecordResponse{}, err
	}
	return DeleteRecordResponse{Deleted: deleted}, nil
}

func (m *Module) queryRecords(ctx context.Context, req QueryRecordsRequest, _ *mono.Msg) (QueryRecordsResponse, error) {
	docs, err := m.backend.Query(ctx, req.Collection, req.Filter, req.SortKey)
	if err != nil {
		return QueryRecordsResponse{}, err
	}
	return QueryRecordsResponse{Records: docs}, nil
}

// Start opens the configured backend unless one was supplied.
func (m *Module) Start(ctx context.Context) error {
	if m.backend != nil {
		m.logger.Info("Store module started", "driver", m.backend.Driver())
		return nil
	}

	backend, err := m.open(ctx)
	if err != nil {
		return err
	}

	if m.cfg.RedisAddr != "" {
		c, err := cache.Connect(ctx, cache.Config{
			Addr:     m.cfg.RedisAddr,
			Password: m.cfg.RedisPassword,
			Prefix:   "echowave:",
			TTL:      m.cfg.CacheTTL,
		})
		if err != nil {
			_ = backend.Close()
			return err
		}
		backend = NewCachedBackend(backend, c, m.logger)
		m.logger.Info("Store read cache enabled", "redis", m.cfg.RedisAddr, "ttl", m.cfg.CacheTTL)
	}

	m.backend = backend
	m.logger.Info("Store module started", "driver", backend.Driver())
	return nil
}

func (m *Module) open(ctx context.Context) (Backend, error) {
	switch m.cfg.StoreDriver {
	case config.DriverMongo:
		if m.cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is required for the mongo store driver")
		}
		m.logger.Info("Connecting to MongoDB", "database", m.cfg.MongoDatabase)
		return ConnectMongo(ctx, m.cfg.MongoURI, m.cfg.MongoDatabase)
	case config.DriverSQLite, "":
		m.logger.Info("Opening SQLite database", "path", m.cfg.SQLitePath)
		return OpenSQLite(m.cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", m.cfg.StoreDriver)
	}
}

// Stop closes the backend.
func (m *Module) Stop(_ context.Context) error {
	if m.backend == nil {
		return nil
	}
	if err := m.backend.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	m.logger.Info("Store module stopped")
	return nil
}

// Health pings the backend.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.backend == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}

	if err := m.backend.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("store ping failed: %v", err),
		}
	}

	details := map[string]any{"driver": m.backend.Driver()}
	if cb, ok := m.backend.(*CachedBackend); ok {
		details["cache"] = cb.Stats()
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
