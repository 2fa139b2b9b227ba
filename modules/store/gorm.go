package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// record is the single table backing every collection in SQLite.
type record struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	Collection string    `gorm:"size:64;not null;uniqueIndex:idx_records_collection_id,priority:1"`
	RecordID   string    `gorm:"column:record_id;size:128;not null;uniqueIndex:idx_records_collection_id,priority:2"`
	Data       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (record) TableName() string {
	return "records"
}

// GormBackend stores documents as JSON rows in SQLite and filters with json_extract.
type GormBackend struct {
	db    *gorm.DB
	newID IDGenerator
}

// OpenSQLite opens (or creates) the SQLite database at path and migrates it.
func OpenSQLite(path string) (*GormBackend, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	gen, err := NewIDGenerator()
	if err != nil {
		return nil, err
	}

	return NewGormBackend(db, gen)
}

// NewGormBackend wraps an open GORM connection and runs migrations.
func NewGormBackend(db *gorm.DB, gen IDGenerator) (*GormBackend, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &GormBackend{db: db, newID: gen}, nil
}

// Driver returns "sqlite".
func (b *GormBackend) Driver() string {
	return "sqlite"
}

// Create inserts or replaces a record.
func (b *GormBackend) Create(ctx context.Context, collection string, data Document) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}

	id, doc := recordID(data, b.newID)
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	rec := record{
		Collection: collection,
		RecordID:   id,
		Data:       string(raw),
		CreatedAt:  time.Now(),
	}
	err = b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "record_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(&rec).Error
	if err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	return id, nil
}

// Get retrieves a record by id.
func (b *GormBackend) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	if err := validateCollection(collection); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, ErrInvalidID
	}

	var rec record
	err := b.db.WithContext(ctx).
		First(&rec, "collection = ? AND record_id = ?", collection, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to find record: %w", err)
	}

	doc, err := decodeRow(rec)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Delete removes a record by id.
func (b *GormBackend) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := validateCollection(collection); err != nil {
		return false, err
	}
	if id == "" {
		return false, ErrInvalidID
	}

	result := b.db.WithContext(ctx).
		Delete(&record{}, "collection = ? AND record_id = ?", collection, id)
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return result.RowsAffected > 0, nil
}

// Query returns matching records ordered by sortKey, then by insertion.
func (b *GormBackend) Query(ctx context.Context, collection string, filter Filter, sortKey string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	q := b.db.WithContext(ctx).Where("collection = ?", collection)

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := validateField(k); err != nil {
			return nil, err
		}
		q = q.Where("json_extract(data, ?) = ?", "$."+k, filter[k])
	}

	if sortKey != "" {
		if err := validateField(sortKey); err != nil {
			return nil, err
		}
		// sortKey is validated above, so it is safe to inline.
		q = q.Order(fmt.Sprintf("json_extract(data, '$.%s') ASC", sortKey))
	}
	q = q.Order("seq ASC")

	var rows []record
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Ping checks the database connection.
func (b *GormBackend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (b *GormBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func decodeRow(rec record) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(rec.Data), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record %s/%s: %w", rec.Collection, rec.RecordID, err)
	}
	return doc, nil
}
