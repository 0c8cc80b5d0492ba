package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is the GORM model behind GormStore.
type Entry struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName keeps the same table name as the SQLite backend.
func (Entry) TableName() string { return "kv_entries" }

// GormStore persists values through GORM, normally against PostgreSQL.
type GormStore struct {
	broadcaster

	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore migrates the kv_entries table and returns the store.
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return &GormStore{db: db, logger: logger}, nil
}

// Get reads the value stored under key, or ErrNotFound.
func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry Entry
	result := s.db.WithContext(ctx).First(&entry, "key = ?", key)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("get %q: %w", key, result.Error)
	}
	return entry.Value, nil
}

// Set upserts value under key and notifies subscribers.
func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	entry := Entry{Key: key, Value: value}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("set %q: %w", key, result.Error)
	}
	s.logger.Debug("stored value", zap.String("key", key), zap.Int("bytes", len(value)))
	s.publish(key, value)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *GormStore) Delete(ctx context.Context, key string) error {
	if result := s.db.WithContext(ctx).Delete(&Entry{}, "key = ?", key); result.Error != nil {
		return fmt.Errorf("delete %q: %w", key, result.Error)
	}
	s.publish(key, nil)
	return nil
}

// Close releases subscribers. The connection pool is owned by database.Service.
func (s *GormStore) Close() error {
	s.closeAll()
	return nil
}
