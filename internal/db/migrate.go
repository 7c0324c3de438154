package db

import (
	"fmt"

	"github.com/quorumhq/quorum/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Discussion{},
		&models.TaskSlot{},
		&models.Annotation{},
		&models.Consensus{},
		&models.Flag{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
