package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// insertionField orders records with equal sort keys by insertion.
const insertionField = "_inserted"

// MongoBackend stores each collection as a MongoDB collection keyed by _id.
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
	newID  IDGenerator
}

// ConnectMongo connects to MongoDB and verifies the connection.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoBackend, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	gen, err := NewIDGenerator()
	if err != nil {
		return nil, err
	}

	return &MongoBackend{
		client: client,
		db:     client.Database(database),
		newID:  gen,
	}, nil
}

// Driver returns "mongo".
func (b *MongoBackend) Driver() string {
	return "mongo"
}

// Create inserts or replaces a document.
func (b *MongoBackend) Create(ctx context.Context, collection string, data Document) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}

	id, doc := recordID(data, b.newID)
	body := bson.M{}
	for k, v := range doc {
		body[k] = v
	}
	body["_id"] = id
	body[insertionField] = primitive.NewObjectID()

	_, err := b.db.Collection(collection).ReplaceOne(
		ctx,
		bson.M{"_id": id},
		body,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	return id, nil
}

// Get retrieves a document by id.
func (b *MongoBackend) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	if err := validateCollection(collection); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, ErrInvalidID
	}

	var raw bson.M
	err := b.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to find record: %w", err)
	}
	return fromBSON(raw), true, nil
}

// Delete removes a document by id.
func (b *MongoBackend) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := validateCollection(collection); err != nil {
		return false, err
	}
	if id == "" {
		return false, ErrInvalidID
	}

	res, err := b.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// Query returns matching documents ordered by sortKey, then by insertion.
func (b *MongoBackend) Query(ctx context.Context, collection string, filter Filter, sortKey string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	match := bson.M{}
	for k, v := range filter {
		if err := validateField(k); err != nil {
			return nil, err
		}
		match[k] = v
	}

	order := bson.D{}
	if sortKey != "" {
		if err := validateField(sortKey); err != nil {
			return nil, err
		}
		order = append(order, bson.E{Key: sortKey, Value: 1})
	}
	order = append(order, bson.E{Key: insertionField, Value: 1})

	cur, err := b.db.Collection(collection).Find(ctx, match, options.Find().SetSort(order))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("failed to read query results: %w", err)
	}

	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

// Ping checks the MongoDB connection.
func (b *MongoBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (b *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}

func fromBSON(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" || k == insertionField {
			continue
		}
		doc[k] = plainValue(v)
	}
	return doc
}

// plainValue converts driver container types to plain Go maps and slices.
func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = plainValue(inner)
		}
		return m
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plainValue(e.Value)
		}
		return m
	case primitive.A:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = plainValue(inner)
		}
		return s
	case primitive.DateTime:
		return t.Time().UnixMilli()
	default:
		return v
	}
}
