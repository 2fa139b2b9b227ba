package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Adapter calls the store module's services through a service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates an Adapter for the store module's container.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("store: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// CreateRecord stores data in collection and returns its id.
func (a *Adapter) CreateRecord(ctx context.Context, collection string, data Document) (string, error) {
	req := CreateRecordRequest{Collection: collection, Data: data}
	var resp CreateRecordResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateRecord,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	return resp.ID, nil
}

// GetRecord fetches a record by id.
func (a *Adapter) GetRecord(ctx context.Context, collection, id string) (Document, bool, error) {
	req := GetRecordRequest{Collection: collection, ID: id}
	var resp GetRecordResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRecord,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, false, fmt.Errorf("failed to get record: %w", err)
	}
	return resp.Data, resp.Found, nil
}

// DeleteRecord removes a record by id.
func (a *Adapter) DeleteRecord(ctx context.Context, collection, id string) (bool, error) {
	req := DeleteRecordRequest{Collection: collection, ID: id}
	var resp DeleteRecordResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDeleteRecord,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return resp.Deleted, nil
}

// QueryOrdered returns the records of collection matching filter, ascending by sortKey.
func (a *Adapter) QueryOrdered(ctx context.Context, collection string, filter Filter, sortKey string) ([]Document, error) {
	req := QueryRecordsRequest{Collection: collection, Filter: filter, SortKey: sortKey}
	var resp QueryRecordsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceQueryRecords,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return resp.Records, nil
}

// LocalAdapter exposes a Backend with the same methods as Adapter, without
// going through the service container.
type LocalAdapter struct {
	backend Backend
}

// NewLocalAdapter wraps backend.
func NewLocalAdapter(backend Backend) *LocalAdapter {
	return &LocalAdapter{backend: backend}
}

// CreateRecord stores data in collection and returns its id.
func (a *LocalAdapter) CreateRecord(ctx context.Context, collection string, data Document) (string, error) {
	return a.backend.Create(ctx, collection, data)
}

// GetRecord fetches a record by id.
func (a *LocalAdapter) GetRecord(ctx context.Context, collection, id string) (Document, bool, error) {
	return a.backend.Get(ctx, collection, id)
}

// DeleteRecord removes a record by id.
func (a *LocalAdapter) DeleteRecord(ctx context.Context, collection, id string) (bool, error) {
	return a.backend.Delete(ctx, collection, id)
}

// QueryOrdered returns the records of collection matching filter, ascending by sortKey.
func (a *LocalAdapter) QueryOrdered(ctx context.Context, collection string, filter Filter, sortKey string) ([]Document, error) {
	return a.backend.Query(ctx, collection, filter, sortKey)
}
