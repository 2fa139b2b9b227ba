package store

import (
	"errors"
	"regexp"
)

// Service names registered by the store module.
const (
	ServiceCreateRecord = "create-record"
	ServiceGetRecord    = "get-record"
	ServiceDeleteRecord = "delete-record"
	ServiceQueryRecords = "query-records"
)

// Document is a schemaless record as exchanged with the durable store.
type Document map[string]any

// Filter selects documents whose top-level fields equal the given values.
type Filter map[string]any

var (
	// ErrInvalidCollection is returned for empty or malformed collection names.
	ErrInvalidCollection = errors.New("invalid collection name")
	// ErrInvalidField is returned for filter or sort keys that are not plain field names.
	ErrInvalidField = errors.New("invalid field name")
	// ErrInvalidID is returned when a record id is empty.
	ErrInvalidID = errors.New("record id is required")
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

func validateCollection(collection string) error {
	if !fieldName.MatchString(collection) {
		return ErrInvalidCollection
	}
	return nil
}

func validateField(field string) error {
	if !fieldName.MatchString(field) {
		return ErrInvalidField
	}
	return nil
}

// CreateRecordRequest is the request for the create-record service.
type CreateRecordRequest struct {
	Collection string   `json:"collection"`
	Data       Document `json:"data"`
}

// CreateRecordResponse is the response for the create-record service.
type CreateRecordResponse struct {
	ID string `json:"id"`
}

// GetRecordRequest is the request for the get-record service.
type GetRecordRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// GetRecordResponse is the response for the get-record service.
type GetRecordResponse struct {
	Found bool     `json:"found"`
	Data  Document `json:"data,omitempty"`
}

// DeleteRecordRequest is the request for the delete-record service.
type DeleteRecordRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// DeleteRecordResponse is the response for the delete-record service.
type DeleteRecordResponse struct {
	Deleted bool `json:"deleted"`
}

// QueryRecordsRequest is the request for the query-records service.
type QueryRecordsRequest struct {
	Collection string `json:"collection"`
	Filter     Filter `json:"filter,omitempty"`
	SortKey    string `json:"sort_key"`
}

// QueryRecordsResponse is the response for the query-records service.
type QueryRecordsResponse struct {
	Records []Document `json:"records"`
}
