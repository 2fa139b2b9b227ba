package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/radsadsoap/EchoWave/domain/chat"
	"github.com/radsadsoap/EchoWave/modules/store"
)

// DocumentStore is the durable store holding permanent rooms and their messages.
type DocumentStore interface {
	CreateRecord(ctx context.Context, collection string, data store.Document) (string, error)
	GetRecord(ctx context.Context, collection, id string) (store.Document, bool, error)
	DeleteRecord(ctx context.Context, collection, id string) (bool, error)
	QueryOrdered(ctx context.Context, collection string, filter store.Filter, sortKey string) ([]store.Document, error)
}

// Timestamps are stored as unix milliseconds so both backends sort them numerically.
type roomRecord struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	CreatedBy           string `json:"createdBy"`
	IsTemporary         bool   `json:"isTemporary"`
	IsPasswordProtected bool   `json:"isPasswordProtected"`
	PasswordHash        string `json:"passwordHash,omitempty"`
	CreatedAt           int64  `json:"createdAt"`
}

type messageRecord struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

func roomDocument(room domain.Room) store.Document {
	return store.Document{
		"id":                  room.ID,
		"name":                room.Name,
		"createdBy":           room.CreatedBy,
		"isTemporary":         room.IsTemporary,
		"isPasswordProtected": room.IsPasswordProtected,
		"passwordHash":        room.PasswordHash,
		"createdAt":           room.CreatedAt.UnixMilli(),
	}
}

func messageDocument(msg domain.Message) store.Document {
	return store.Document{
		"id":        msg.ID,
		"room":      msg.Room,
		"message":   msg.Body,
		"sender":    msg.Sender,
		"timestamp": msg.Timestamp.UnixMilli(),
	}
}

func decodeRoom(doc store.Document) (domain.Room, error) {
	var rec roomRecord
	if err := decodeDocument(doc, &rec); err != nil {
		return domain.Room{}, err
	}
	if rec.ID == "" {
		return domain.Room{}, fmt.Errorf("room record has no id")
	}
	return domain.Room{
		ID:                  rec.ID,
		Name:                rec.Name,
		CreatedBy:           rec.CreatedBy,
		IsTemporary:         rec.IsTemporary,
		IsPasswordProtected: rec.IsPasswordProtected,
		PasswordHash:        rec.PasswordHash,
		CreatedAt:           time.UnixMilli(rec.CreatedAt).UTC(),
	}, nil
}

func decodeMessage(doc store.Document) (domain.Message, error) {
	var rec messageRecord
	if err := decodeDocument(doc, &rec); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        rec.ID,
		Room:      rec.Room,
		Body:      rec.Message,
		Sender:    rec.Sender,
		Timestamp: time.UnixMilli(rec.Timestamp).UTC(),
	}, nil
}

func decodeDocument(doc store.Document, dest any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}
