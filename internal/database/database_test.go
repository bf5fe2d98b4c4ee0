package database

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/entities"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()
	dbPath := "./test_" + t.Name() + ".db"
	db, err := NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return db, cleanup
}

func TestNewDatabase_Migrates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for _, table := range []string{"users", "books", "borrows", "library_cards", "batches", "departments", "categories"} {
		assert.True(t, db.DB.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestNewDatabase_OneOpenLoanPerBook(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := &entities.User{Name: "Borrower", Email: "borrower@example.com"}
	require.NoError(t, db.DB.Create(user).Error)
	book := &entities.Book{Title: "Book", Author: "Author", ISBN: "978-0000000001"}
	require.NoError(t, db.DB.Create(book).Error)

	first := &entities.Borrow{
		UserID:     user.ID,
		BookID:     book.ID,
		BorrowDate: time.Now(),
		DueDate:    time.Now().AddDate(0, 0, 10),
		Status:     entities.BorrowStatusBorrowed,
	}
	require.NoError(t, db.DB.Create(first).Error)

	// The partial unique index backstops the conditional update: even a
	// direct write cannot open a second loan on the same book.
	second := &entities.Borrow{
		UserID:     user.ID,
		BookID:     book.ID,
		BorrowDate: time.Now(),
		DueDate:    time.Now().AddDate(0, 0, 10),
		Status:     entities.BorrowStatusBorrowed,
	}
	assert.Error(t, db.DB.Create(second).Error)

	// Once the first is Returned the book can be loaned again
	require.NoError(t, db.DB.Model(first).Updates(map[string]any{
		"status":        entities.BorrowStatusReturned,
		"returned_date": time.Now(),
	}).Error)
	assert.NoError(t, db.DB.Create(second).Error)
}

func TestDatabase_Close(t *testing.T) {
	dbPath := "./test_close.db"
	defer os.Remove(dbPath)

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
