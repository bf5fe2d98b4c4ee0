package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library-backend/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate all entities
	err = db.AutoMigrate(
		&entities.Batch{},
		&entities.Department{},
		&entities.Category{},
		&entities.User{},
		&entities.Book{},
		&entities.Borrow{},
		&entities.LibraryCard{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// A book can have at most one open loan. The engine enforces this through
	// conditional status updates; the index backstops it at the store level.
	err = db.Exec(`
	  CREATE UNIQUE INDEX IF NOT EXISTS borrows_one_open_per_book
	  ON borrows (book_id)
	  WHERE status = 'Borrowed'
	`).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create open-loan index: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
