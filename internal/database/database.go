package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/filelinkpro/filelink/internal/models"
)

// DB is the shared database handle, set by Initialize.
var DB *gorm.DB

// Initialize opens (or creates) the SQLite database at path and runs migrations.
func Initialize(path string) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.File{},
		&models.UserFile{},
		&models.Link{},
		&models.AccessLog{},
		&models.Website{},
		&models.WebsiteFile{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	DB = db
	return nil
}

// Close closes the underlying database connection.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
