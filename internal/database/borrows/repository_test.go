package borrows

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library-backend/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB, func()) {
	dbPath := "./test_borrows_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.User{}, &entities.Book{}, &entities.Borrow{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, db, cleanup
}

func seedUser(t *testing.T, db *gorm.DB, email string) *entities.User {
	t.Helper()
	user := &entities.User{Name: "Test User", Email: email, Role: entities.RoleStudent}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedBook(t *testing.T, db *gorm.DB, isbn string, status entities.BookStatus) *entities.Book {
	t.Helper()
	book := &entities.Book{Title: "Book " + isbn, Author: "Author", ISBN: isbn, Status: status}
	require.NoError(t, db.Create(book).Error)
	return book
}

func openLoan(t *testing.T, repo *Repository, user *entities.User, book *entities.Book, due time.Time) *entities.Borrow {
	t.Helper()
	borrow := &entities.Borrow{
		UserID:     user.ID,
		BookID:     book.ID,
		ISBN:       book.ISBN,
		UserEmail:  user.Email,
		BorrowDate: time.Now(),
		DueDate:    due,
		Status:     entities.BorrowStatusBorrowed,
		FineStatus: entities.FineStatusUnpaid,
	}
	require.NoError(t, repo.Create(context.Background(), borrow))
	return borrow
}

func TestRepository_Create_IssuesBook(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)

	borrow := openLoan(t, repo, user, book, time.Now().AddDate(0, 0, 10))
	assert.NotZero(t, borrow.ID)

	var updated entities.Book
	require.NoError(t, db.First(&updated, book.ID).Error)
	assert.Equal(t, entities.BookStatusIssued, updated.Status)
}

func TestRepository_Create_BookNotAvailable(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusIssued)

	borrow := &entities.Borrow{
		UserID:     user.ID,
		BookID:     book.ID,
		BorrowDate: time.Now(),
		DueDate:    time.Now().AddDate(0, 0, 10),
		Status:     entities.BorrowStatusBorrowed,
	}
	err := repo.Create(context.Background(), borrow)
	assert.ErrorIs(t, err, ErrBookUnavailable)

	// The losing transaction must not leave a borrow row behind
	var count int64
	db.Model(&entities.Borrow{}).Count(&count)
	assert.Zero(t, count)
}

func TestRepository_Create_SecondBorrowLosesRace(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	first := seedUser(t, db, "first@example.com")
	second := seedUser(t, db, "second@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)

	openLoan(t, repo, first, book, time.Now().AddDate(0, 0, 10))

	borrow := &entities.Borrow{
		UserID:     second.ID,
		BookID:     book.ID,
		BorrowDate: time.Now(),
		DueDate:    time.Now().AddDate(0, 0, 10),
		Status:     entities.BorrowStatusBorrowed,
	}
	err := repo.Create(context.Background(), borrow)
	assert.ErrorIs(t, err, ErrBookUnavailable)
}

func TestRepository_Finalize(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)
	borrow := openLoan(t, repo, user, book, time.Now().AddDate(0, 0, -3))

	returnedAt := time.Now()
	closed, err := repo.Finalize(context.Background(), borrow.ID, returnedAt, 30)
	require.NoError(t, err)

	assert.Equal(t, entities.BorrowStatusReturned, closed.Status)
	assert.Equal(t, 30, closed.Fine)
	require.NotNil(t, closed.ReturnedDate)

	var updated entities.Book
	require.NoError(t, db.First(&updated, book.ID).Error)
	assert.Equal(t, entities.BookStatusAvailable, updated.Status)
}

func TestRepository_Finalize_AlreadyReturned(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)
	borrow := openLoan(t, repo, user, book, time.Now().AddDate(0, 0, 10))

	_, err := repo.Finalize(context.Background(), borrow.ID, time.Now(), 0)
	require.NoError(t, err)

	_, err = repo.Finalize(context.Background(), borrow.ID, time.Now(), 0)
	assert.ErrorIs(t, err, ErrNotBorrowed)
}

func TestRepository_Finalize_NotFound(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Finalize(context.Background(), 9999, time.Now(), 0)
	assert.ErrorIs(t, err, ErrNotBorrowed)
}

func TestRepository_SettleFine(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)
	borrow := openLoan(t, repo, user, book, time.Now().AddDate(0, 0, -3))

	require.NoError(t, db.Model(&entities.Borrow{}).Where("id = ?", borrow.ID).Update("fine", 30).Error)

	paid, err := repo.SettleFine(context.Background(), borrow.ID)
	require.NoError(t, err)
	assert.Zero(t, paid.Fine)
	assert.Equal(t, entities.FineStatusPaid, paid.FineStatus)
	assert.True(t, paid.IsPaid)

	// Second payment finds no outstanding fine
	_, err = repo.SettleFine(context.Background(), borrow.ID)
	assert.ErrorIs(t, err, ErrNoFine)
}

func TestRepository_SettleFine_NoFine(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)
	borrow := openLoan(t, repo, user, book, time.Now().AddDate(0, 0, 10))

	_, err := repo.SettleFine(context.Background(), borrow.ID)
	assert.ErrorIs(t, err, ErrNoFine)
}

func TestRepository_RaiseFine_Monotonic(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)
	borrow := openLoan(t, repo, user, book, time.Now().AddDate(0, 0, -2))

	raised, err := repo.RaiseFine(context.Background(), borrow.ID, 20)
	require.NoError(t, err)
	assert.True(t, raised)

	// A smaller or equal value never overwrites
	raised, err = repo.RaiseFine(context.Background(), borrow.ID, 10)
	require.NoError(t, err)
	assert.False(t, raised)

	raised, err = repo.RaiseFine(context.Background(), borrow.ID, 20)
	require.NoError(t, err)
	assert.False(t, raised)

	raised, err = repo.RaiseFine(context.Background(), borrow.ID, 30)
	require.NoError(t, err)
	assert.True(t, raised)

	current, err := repo.Get(context.Background(), borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, current.Fine)
}

func TestRepository_RaiseFine_ClosedLoan(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	book := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)
	borrow := openLoan(t, repo, user, book, time.Now().AddDate(0, 0, -2))

	_, err := repo.Finalize(context.Background(), borrow.ID, time.Now(), 20)
	require.NoError(t, err)

	raised, err := repo.RaiseFine(context.Background(), borrow.ID, 100)
	require.NoError(t, err)
	assert.False(t, raised)
}

func TestRepository_Counts(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	for i := 0; i < 3; i++ {
		book := seedBook(t, db, fmt.Sprintf("978-000000000%d", i), entities.BookStatusAvailable)
		openLoan(t, repo, alice, book, time.Now().AddDate(0, 0, 10))
	}
	book := seedBook(t, db, "978-0000000009", entities.BookStatusAvailable)
	bobLoan := openLoan(t, repo, bob, book, time.Now().AddDate(0, 0, 10))

	count, err := repo.CountBorrowedByUser(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	total, err := repo.CountBorrowed(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)

	// Returned loans fall out of both counts
	_, err = repo.Finalize(context.Background(), bobLoan.ID, time.Now(), 0)
	require.NoError(t, err)

	total, err = repo.CountBorrowed(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestRepository_ListBorrowed_Filters(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	book1 := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)
	book2 := seedBook(t, db, "978-0000000002", entities.BookStatusAvailable)

	openLoan(t, repo, alice, book1, time.Now().AddDate(0, 0, 10))
	openLoan(t, repo, bob, book2, time.Now().AddDate(0, 0, 10))

	all, err := repo.ListBorrowed(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	require.NotNil(t, all[0].User)
	require.NotNil(t, all[0].Book)

	byUser, err := repo.ListBorrowed(context.Background(), Filter{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, alice.ID, byUser[0].UserID)

	byISBN, err := repo.ListBorrowed(context.Background(), Filter{ISBN: book2.ISBN})
	require.NoError(t, err)
	require.Len(t, byISBN, 1)
	assert.Equal(t, bob.ID, byISBN[0].UserID)

	byBooks, err := repo.ListBorrowed(context.Background(), Filter{BookIDs: []uint{book1.ID}})
	require.NoError(t, err)
	require.Len(t, byBooks, 1)
	assert.Equal(t, book1.ID, byBooks[0].BookID)

	// A non-nil empty id set means the upstream lookup matched nobody
	none, err := repo.ListBorrowed(context.Background(), Filter{UserIDs: []uint{}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_ListReturned_NewestFirst(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")

	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 5; i++ {
		book := seedBook(t, db, fmt.Sprintf("978-000000000%d", i), entities.BookStatusAvailable)
		borrow := openLoan(t, repo, user, book, base)
		_, err := repo.Finalize(context.Background(), borrow.ID, base.Add(time.Duration(i)*time.Hour), 0)
		require.NoError(t, err)
	}

	returned, err := repo.ListReturned(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, returned, 3)
	for i := 1; i < len(returned); i++ {
		assert.False(t, returned[i].ReturnedDate.After(*returned[i-1].ReturnedDate))
	}

	// Reading must not delete anything
	var count int64
	db.Model(&entities.Borrow{}).Where("status = ?", entities.BorrowStatusReturned).Count(&count)
	assert.EqualValues(t, 5, count)
}

func TestRepository_PruneReturned(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")

	base := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 12; i++ {
		book := seedBook(t, db, fmt.Sprintf("978-00000000%02d", i), entities.BookStatusAvailable)
		borrow := openLoan(t, repo, user, book, base)
		_, err := repo.Finalize(context.Background(), borrow.ID, base.Add(time.Duration(i)*time.Hour), 0)
		require.NoError(t, err)
	}
	// One open loan that pruning must never touch
	openBook := seedBook(t, db, "978-0000000099", entities.BookStatusAvailable)
	openLoan(t, repo, user, openBook, time.Now().AddDate(0, 0, 10))

	removed, err := repo.PruneReturned(context.Background(), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	var returnedCount, borrowedCount int64
	db.Model(&entities.Borrow{}).Where("status = ?", entities.BorrowStatusReturned).Count(&returnedCount)
	db.Model(&entities.Borrow{}).Where("status = ?", entities.BorrowStatusBorrowed).Count(&borrowedCount)
	assert.EqualValues(t, 10, returnedCount)
	assert.EqualValues(t, 1, borrowedCount)

	// The survivors are the newest ten; the two oldest are gone
	var oldest int64
	db.Model(&entities.Borrow{}).
		Where("status = ? AND returned_date < ?", entities.BorrowStatusReturned, base.Add(90*time.Minute)).
		Count(&oldest)
	assert.Zero(t, oldest)

	// Pruning again removes nothing
	removed, err = repo.PruneReturned(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRepository_DueSoonAndMarkNotified(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "borrower@example.com")
	now := time.Now()

	soonBook := seedBook(t, db, "978-0000000001", entities.BookStatusAvailable)
	soon := openLoan(t, repo, user, soonBook, now.Add(12*time.Hour))

	farBook := seedBook(t, db, "978-0000000002", entities.BookStatusAvailable)
	openLoan(t, repo, user, farBook, now.Add(72*time.Hour))

	due, err := repo.DueSoon(context.Background(), now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)
	require.NotNil(t, due[0].User)
	require.NotNil(t, due[0].Book)

	require.NoError(t, repo.MarkNotified(context.Background(), []uint{soon.ID}))

	// The flag is sticky: a second sweep sees nothing
	due, err = repo.DueSoon(context.Background(), now, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRepository_MarkNotified_EmptyIDs(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, repo.MarkNotified(context.Background(), nil))
}
