package db

import (
	"fmt"

	"github.com/mainstreethq/inboxd/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a GORM connection to a Postgres store and applies pool
// limits. The primary store and the remote Woodstock store use independent
// pools so a remote outage cannot starve primary connections.
func Connect(sc config.StoreConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(sc.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: pool handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(sc.MaxOpenConns)
	sqlDB.SetMaxIdleConns(sc.MaxIdleConns)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: pool handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return nil
}
