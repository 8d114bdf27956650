package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrPathRequired is returned when the backing store path is missing.
	ErrPathRequired = errors.New("basketd storage path must be configured")
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("basketd storage: not found")
)

// Receipt records a completed deposit or redemption.
type Receipt struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Kind      string    `gorm:"size:16;index"`
	Basket    string    `gorm:"size:64;index"`
	Caller    string    `gorm:"size:64;index"`
	Units     string    `gorm:"size:20"`
	Amounts   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// IdempotencyKey stores the response of a request submitted with an
// Idempotency-Key header.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey;size:128"`
	Caller    string `gorm:"primaryKey;size:64"`
	RequestID string `gorm:"size:36"`
	Method    string `gorm:"size:8"`
	Path      string `gorm:"size:256"`
	Status    int
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

// ReceiptFilter narrows ListReceipts.
type ReceiptFilter struct {
	Caller string
	Basket string
	Limit  int
}

// Storage wraps the basketd persistence layer.
type Storage struct {
	db *gorm.DB
}

// Open connects to dsn, selecting PostgreSQL for postgres URLs and SQLite
// otherwise, and migrates the schema.
func Open(dsn string) (*Storage, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	dialector := sqlite.Open(trimmed)
	if IsPostgres(trimmed) {
		dialector = postgres.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Receipt{}, &IdempotencyKey{}); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordReceipt persists r, assigning an ID and timestamp when unset.
func (s *Storage) RecordReceipt(ctx context.Context, r *Receipt) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage not configured")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// ListReceipts returns receipts newest first.
func (s *Storage) ListReceipts(ctx context.Context, filter ReceiptFilter) ([]Receipt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Model(&Receipt{})
	if filter.Caller != "" {
		q = q.Where("caller = ?", filter.Caller)
	}
	if filter.Basket != "" {
		q = q.Where("basket = ?", filter.Basket)
	}
	var out []Receipt
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return out, nil
}

// LookupIdempotency returns the stored response for (key, caller).
func (s *Storage) LookupIdempotency(ctx context.Context, key, caller string) (*IdempotencyKey, error) {
	var record IdempotencyKey
	err := s.db.WithContext(ctx).First(&record, "key = ? AND caller = ?", key, caller).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ReserveIdempotency inserts a pending row (Status zero) for a keyed request.
// It reports false when the key is already held by another request.
func (s *Storage) ReserveIdempotency(ctx context.Context, record *IdempotencyKey) (bool, error) {
	if record.RequestID == "" {
		record.RequestID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Status = 0
	record.Response = ""
	err := s.db.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CompleteIdempotency stores the final response of a reserved key.
func (s *Storage) CompleteIdempotency(ctx context.Context, key, caller string, status int, response string) error {
	return s.db.WithContext(ctx).Model(&IdempotencyKey{}).
		Where("key = ? AND caller = ?", key, caller).
		Updates(map[string]any{"status": status, "response": response}).Error
}

// ReleaseIdempotency drops a reserved key so the request may be retried.
func (s *Storage) ReleaseIdempotency(ctx context.Context, key, caller string) error {
	return s.db.WithContext(ctx).
		Where("key = ? AND caller = ?", key, caller).
		Delete(&IdempotencyKey{}).Error
}

// Pending reports whether the keyed request is still executing.
func (k *IdempotencyKey) Pending() bool {
	return k.Status == 0
}
