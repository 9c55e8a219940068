package repository

import (
	"fmt"

	"realtime-chat/backend/internal/models"

	"gorm.io/gorm"
)

// Migrate creates or updates the users and messages tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Message{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
