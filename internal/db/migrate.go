package db

import (
	"fmt"

	"github.com/mainstreethq/inboxd/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of GORM models owned by the primary store.
// The remote Woodstock store is read-only and never migrated by inboxd.
func AllModels() []interface{} {
	return []interface{}{
		&models.Conversation{},
		&models.Message{},
		&models.Call{},
		&models.SyncRun{},
	}
}

// AutoMigrate creates or updates all primary-store tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
