package store

import (
	"context"
	"testing"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/radsadsoap/EchoWave/config"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

func TestModule_Name(t *testing.T) {
	m := NewModule(config.Config{}, &mockLogger{})
	if name := m.Name(); name != "store" {
		t.Errorf("Name() = %q, want 'store'", name)
	}
}

func TestModule_HealthBeforeStart(t *testing.T) {
	m := NewModule(config.Config{}, &mockLogger{})
	if h := m.Health(context.Background()); h.Healthy {
		t.Error("expected unhealthy before Start()")
	}
}

func TestModule_StartUnknownDriver(t *testing.T) {
	m := NewModule(config.Config{StoreDriver: "cassandra"}, &mockLogger{})
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestModule_StartMongoWithoutURI(t *testing.T) {
	m := NewModule(config.Config{StoreDriver: config.DriverMongo}, &mockLogger{})
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error when MONGODB_URI is missing")
	}
}

func TestModule_StartSQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/chat.db"

	m := NewModule(config.Config{StoreDriver: config.DriverSQLite, SQLitePath: path}, &mockLogger{})
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = m.Stop(ctx) }()

	h := m.Health(ctx)
	if !h.Healthy {
		t.Fatalf("Health() = %+v, want healthy", h)
	}
	if h.Details["driver"] != "sqlite" {
		t.Errorf("driver = %v, want sqlite", h.Details["driver"])
	}
}

func TestModule_ServiceHandlers(t *testing.T) {
	ctx := context.Background()
	m := NewModuleWithBackend(setupTestBackend(t), &mockLogger{})

	created, err := m.createRecord(ctx, CreateRecordRequest{
		Collection: "messages",
		Data:       Document{"room": "r1", "message": "hello", "timestamp": 5},
	}, nil)
	if err != nil {
		t.Fatalf("createRecord() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("createRecord() returned empty id")
	}

	got, err := m.getRecord(ctx, GetRecordRequest{Collection: "messages", ID: created.ID}, nil)
	if err != nil {
		t.Fatalf("getRecord() error = %v", err)
	}
	if !got.Found || got.Data["message"] != "hello" {
		t.Errorf("getRecord() = %+v", got)
	}

	queried, err := m.queryRecords(ctx, QueryRecordsRequest{
		Collection: "messages",
		Filter:     Filter{"room": "r1"},
		SortKey:    "timestamp",
	}, nil)
	if err != nil {
		t.Fatalf("queryRecords() error = %v", err)
	}
	if len(queried.Records) != 1 {
		t.Errorf("queryRecords() returned %d records, want 1", len(queried.Records))
	}

	deleted, err := m.deleteRecord(ctx, DeleteRecordRequest{Collection: "messages", ID: created.ID}, nil)
	if err != nil {
		t.Fatalf("deleteRecord() error = %v", err)
	}
	if !deleted.Deleted {
		t.Error("deleteRecord() reported nothing deleted")
	}

	if _, err := m.getRecord(ctx, GetRecordRequest{Collection: "messages"}, nil); err == nil {
		t.Error("getRecord() with empty id should fail")
	}
}
