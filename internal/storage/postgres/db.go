// Package postgres provides the gorm-backed ledger and catalog tables.
package postgres

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ProcessedEvent is one claimed dedup key.
type ProcessedEvent struct {
	DedupKey    string    `gorm:"primaryKey;size:512"`
	ProcessedAt time.Time `gorm:"not null"`
}

// StockLineModel is the quantity of one SKU at one store.
type StockLineModel struct {
	StoreCode string `gorm:"primaryKey;size:128"`
	SKU       string `gorm:"primaryKey;size:128"`
	Quantity  int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (StockLineModel) TableName() string { return "stock_lines" }

// StockAdjustment is one manual-adjustment audit entry.
type StockAdjustment struct {
	ID         string `gorm:"primaryKey;size:36"`
	EventID    string `gorm:"size:256"`
	StoreCode  string `gorm:"size:128;not null;index:idx_adjustment_line,priority:1"`
	SKU        string `gorm:"size:128;not null;index:idx_adjustment_line,priority:2"`
	Delta      int64  `gorm:"not null"`
	Reason     string
	Applied    bool
	OccurredAt *time.Time
	AppliedAt  time.Time `gorm:"not null;index:idx_adjustment_line,priority:3"`
}

// CatalogStore is a replicated store row.
type CatalogStore struct {
	Code string `gorm:"primaryKey;size:128"`
	Name string
}

// CatalogProduct is a replicated product row. A NULL Active means the
// replica does not know the flag.
type CatalogProduct struct {
	SKU    string `gorm:"primaryKey;size:128"`
	Name   string
	Active *bool
}

// Open connects to PostgreSQL. Slow queries and errors go to logger.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table owned or read by the service.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&ProcessedEvent{},
		&StockLineModel{},
		&StockAdjustment{},
		&CatalogStore{},
		&CatalogProduct{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
