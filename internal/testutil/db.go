// Package testutil provides an isolated SQLite database for tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/pkg/config"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a migrated SQLite database in a temp dir, configured the way
// config.NewDB configures the sqlite driver.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := gorm.Open(sqlite.Open(config.SQLiteDSN(path)), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Message{}))
	return db
}

// CreateUser inserts a user with password "secret123"
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()

	user := &models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "secret123",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
