package store

import (
	"context"
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

// Backend is a document database holding named collections.
type Backend interface {
	// Create inserts data and returns its id. A non-empty string "id" field is used
	// as the record id; otherwise one is generated.
	Create(ctx context.Context, collection string, data Document) (string, error)
	// Get returns the record with the given id, or false if there is none.
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	// Delete removes a record and reports whether it existed.
	Delete(ctx context.Context, collection, id string) (bool, error)
	// Query returns the records matching filter in ascending sortKey order.
	// Records with equal keys keep insertion order.
	Query(ctx context.Context, collection string, filter Filter, sortKey string) ([]Document, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
	// Driver names the backend.
	Driver() string
}

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// IDGenerator returns new random record ids.
type IDGenerator func() string

// NewIDGenerator returns a 20 character alphanumeric nanoid generator.
func NewIDGenerator() (IDGenerator, error) {
	gen, err := nanoid.CustomASCII(idAlphabet, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return gen, nil
}

// recordID picks the id for a new record and returns a copy of data carrying it.
func recordID(data Document, gen IDGenerator) (string, Document) {
	out := make(Document, len(data)+1)
	for k, v := range data {
		out[k] = v
	}

	id, _ := data["id"].(string)
	if id == "" {
		id = gen()
	}
	out["id"] = id
	return id, out
}
