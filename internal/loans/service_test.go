package loans

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

	"library-backend/internal/database/books"
	"library-backend/internal/database/borrows"
	"library-backend/internal/database/users"
	"library-backend/internal/entities"
)

type fakeScheduler struct {
	borrowIDs []uint
	times     []time.Time
	err       error
}

func (f *fakeScheduler) ScheduleFineCheck(_ context.Context, borrowID uint, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.borrowIDs = append(f.borrowIDs, borrowID)
	f.times = append(f.times, at)
	return nil
}

type fixture struct {
	service   *Service
	scheduler *fakeScheduler
	db        *gorm.DB
}

func setupService(t *testing.T) (*fixture, func()) {
	dbPath := "./test_loans_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.User{}, &entities.Book{}, &entities.Borrow{})
	require.NoError(t, err)

	scheduler := &fakeScheduler{}
	service := NewService(
		borrows.NewRepository(db),
		users.NewRepository(db),
		books.NewRepository(db),
		scheduler,
		Policy{MaxPerUser: 3, PeriodDays: 10, FinePerDay: 10, EscalationDelay: 24 * time.Hour},
	)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return &fixture{service: service, scheduler: scheduler, db: db}, cleanup
}

func (f *fixture) seedUser(t *testing.T, email string) *entities.User {
	t.Helper()
	user := &entities.User{Name: "Test User", Email: email, Role: entities.RoleStudent}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) seedBook(t *testing.T, isbn string) *entities.Book {
	t.Helper()
	book := &entities.Book{Title: "Book " + isbn, Author: "Author", ISBN: isbn, Status: entities.BookStatusAvailable}
	require.NoError(t, f.db.Create(book).Error)
	return book
}

func TestService_Borrow(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	borrowedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.service.SetClock(func() time.Time { return borrowedAt })

	borrow, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, user.ID, borrow.UserID)
	assert.Equal(t, book.ID, borrow.BookID)
	assert.Equal(t, book.ISBN, borrow.ISBN)
	assert.Equal(t, user.Email, borrow.UserEmail)
	assert.Equal(t, entities.BorrowStatusBorrowed, borrow.Status)
	assert.Equal(t, borrowedAt.AddDate(0, 0, 10), borrow.DueDate)

	var updated entities.Book
	require.NoError(t, f.db.First(&updated, book.ID).Error)
	assert.Equal(t, entities.BookStatusIssued, updated.Status)

	// First fine check lands a day after the due date
	require.Len(t, f.scheduler.borrowIDs, 1)
	assert.Equal(t, borrow.ID, f.scheduler.borrowIDs[0])
	assert.Equal(t, borrow.DueDate.Add(24*time.Hour), f.scheduler.times[0])
}

func TestService_Borrow_ExplicitDueDate(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	borrow, err := f.service.Borrow(context.Background(), user.ID, book.ID, &due)
	require.NoError(t, err)
	assert.Equal(t, due, borrow.DueDate)
}

func TestService_Borrow_InvalidDueDate(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	var zero time.Time
	_, err := f.service.Borrow(context.Background(), user.ID, book.ID, &zero)
	requireKind(t, err, KindInvalidInput)
	assert.EqualError(t, err, "Invalid due date format.")
}

func TestService_Borrow_InvalidBookID(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")

	_, err := f.service.Borrow(context.Background(), user.ID, 0, nil)
	requireKind(t, err, KindInvalidInput)
}

func TestService_Borrow_UserNotFound(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	book := f.seedBook(t, "978-0000000001")

	_, err := f.service.Borrow(context.Background(), 9999, book.ID, nil)
	requireKind(t, err, KindNotFound)
	assert.EqualError(t, err, "User not found.")
}

func TestService_Borrow_BookNotFound(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")

	_, err := f.service.Borrow(context.Background(), user.ID, 9999, nil)
	requireKind(t, err, KindNotFound)
	assert.EqualError(t, err, "Book not found.")
}

func TestService_Borrow_CapExceeded(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	for i := 0; i < 3; i++ {
		book := f.seedBook(t, fmt.Sprintf("978-000000000%d", i))
		_, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
		require.NoError(t, err)
	}

	fourth := f.seedBook(t, "978-0000000009")
	_, err := f.service.Borrow(context.Background(), user.ID, fourth.ID, nil)
	requireKind(t, err, KindConflict)
	assert.EqualError(t, err, "You have already borrowed the maximum number of books (3).")

	// Returning one frees a slot
	var open entities.Borrow
	require.NoError(t, f.db.Where("user_id = ? AND status = ?", user.ID, entities.BorrowStatusBorrowed).First(&open).Error)
	_, err = f.service.Return(context.Background(), open.ID)
	require.NoError(t, err)

	_, err = f.service.Borrow(context.Background(), user.ID, fourth.ID, nil)
	assert.NoError(t, err)
}

func TestService_Borrow_BookNotAvailable(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	alice := f.seedUser(t, "alice@example.com")
	bob := f.seedUser(t, "bob@example.com")
	book := f.seedBook(t, "978-0000000001")

	_, err := f.service.Borrow(context.Background(), alice.ID, book.ID, nil)
	require.NoError(t, err)

	_, err = f.service.Borrow(context.Background(), bob.ID, book.ID, nil)
	requireKind(t, err, KindConflict)
	assert.EqualError(t, err, "Book is not available for borrowing.")
}

func TestService_Borrow_SchedulerFailureDoesNotAbort(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	f.scheduler.err = fmt.Errorf("queue down")

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	borrow, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
	require.NoError(t, err)
	assert.NotZero(t, borrow.ID)
}

func TestService_Return_OnTimeNoFine(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	borrow, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
	require.NoError(t, err)

	returned, err := f.service.Return(context.Background(), borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BorrowStatusReturned, returned.Status)
	assert.Zero(t, returned.Fine)

	var updated entities.Book
	require.NoError(t, f.db.First(&updated, book.ID).Error)
	assert.Equal(t, entities.BookStatusAvailable, updated.Status)
}

func TestService_Return_ThreeDaysLate(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	borrowedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.service.SetClock(func() time.Time { return borrowedAt })

	borrow, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
	require.NoError(t, err)

	// Due after 10 days, returned 3 days past that at 10 per day
	f.service.SetClock(func() time.Time { return borrowedAt.AddDate(0, 0, 13) })

	returned, err := f.service.Return(context.Background(), borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, returned.Fine)
	assert.Equal(t, entities.FineStatusUnpaid, returned.FineStatus)
}

func TestService_Return_Twice(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	borrow, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
	require.NoError(t, err)

	_, err = f.service.Return(context.Background(), borrow.ID)
	require.NoError(t, err)

	_, err = f.service.Return(context.Background(), borrow.ID)
	requireKind(t, err, KindConflict)
	assert.EqualError(t, err, "Borrow record not found or already returned.")
}

func TestService_Return_NotFound(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	_, err := f.service.Return(context.Background(), 9999)
	requireKind(t, err, KindConflict)
}

func TestService_PayFine(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	borrowedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.service.SetClock(func() time.Time { return borrowedAt })
	borrow, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
	require.NoError(t, err)

	f.service.SetClock(func() time.Time { return borrowedAt.AddDate(0, 0, 13) })
	_, err = f.service.Return(context.Background(), borrow.ID)
	require.NoError(t, err)

	// The fine survives the return and is payable afterwards
	paid, err := f.service.PayFine(context.Background(), borrow.ID)
	require.NoError(t, err)
	assert.Zero(t, paid.Fine)
	assert.Equal(t, entities.FineStatusPaid, paid.FineStatus)
	assert.True(t, paid.IsPaid)

	// Paying twice is rejected, not silently accepted
	_, err = f.service.PayFine(context.Background(), borrow.ID)
	requireKind(t, err, KindConflict)
	assert.EqualError(t, err, "No fine to pay for this record.")
}

func TestService_PayFine_NoFine(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")

	borrow, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
	require.NoError(t, err)

	_, err = f.service.PayFine(context.Background(), borrow.ID)
	requireKind(t, err, KindConflict)
}

func TestService_PayFine_NotFound(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	_, err := f.service.PayFine(context.Background(), 9999)
	requireKind(t, err, KindNotFound)
	assert.EqualError(t, err, "Borrow record not found.")
}

func TestService_ListBorrowed_NonAdminSeesOwnOnly(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	alice := f.seedUser(t, "alice@example.com")
	bob := f.seedUser(t, "bob@example.com")

	book1 := f.seedBook(t, "978-0000000001")
	book2 := f.seedBook(t, "978-0000000002")
	_, err := f.service.Borrow(context.Background(), alice.ID, book1.ID, nil)
	require.NoError(t, err)
	_, err = f.service.Borrow(context.Background(), bob.ID, book2.ID, nil)
	require.NoError(t, err)

	// Bob asks for Alice's loans; the filter is overridden
	caller := Caller{UserID: bob.ID, Role: entities.RoleStudent}
	list, err := f.service.ListBorrowed(context.Background(), caller, BorrowFilter{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bob.ID, list[0].UserID)

	admin := Caller{UserID: 0, Role: entities.RoleAdmin}
	list, err = f.service.ListBorrowed(context.Background(), admin, BorrowFilter{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, alice.ID, list[0].UserID)
}

func TestService_ListBorrowed_AdminFilters(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	alice := f.seedUser(t, "alice@example.com")
	bob := f.seedUser(t, "bob@example.com")

	book1 := &entities.Book{Title: "Structure and Interpretation", Author: "Abelson", ISBN: "978-0000000001", Status: entities.BookStatusAvailable}
	require.NoError(t, f.db.Create(book1).Error)
	book2 := &entities.Book{Title: "The Go Programming Language", Author: "Donovan", ISBN: "978-0000000002", Status: entities.BookStatusAvailable}
	require.NoError(t, f.db.Create(book2).Error)

	_, err := f.service.Borrow(context.Background(), alice.ID, book1.ID, nil)
	require.NoError(t, err)
	_, err = f.service.Borrow(context.Background(), bob.ID, book2.ID, nil)
	require.NoError(t, err)

	admin := Caller{Role: entities.RoleAdmin}

	byTitle, err := f.service.ListBorrowed(context.Background(), admin, BorrowFilter{Title: "go programming"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, book2.ID, byTitle[0].BookID)

	byAuthor, err := f.service.ListBorrowed(context.Background(), admin, BorrowFilter{Author: "abelson"})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, book1.ID, byAuthor[0].BookID)

	// A name matching nobody yields an empty result, not everything
	none, err := f.service.ListBorrowed(context.Background(), admin, BorrowFilter{Name: "zzz-no-such-user"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_SearchBorrowed(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	alice := f.seedUser(t, "alice@example.com")
	bob := f.seedUser(t, "bob@example.com")

	book1 := f.seedBook(t, "978-0000000001")
	book2 := f.seedBook(t, "978-0000000002")
	_, err := f.service.Borrow(context.Background(), alice.ID, book1.ID, nil)
	require.NoError(t, err)
	_, err = f.service.Borrow(context.Background(), bob.ID, book2.ID, nil)
	require.NoError(t, err)

	byISBN, err := f.service.SearchBorrowed(context.Background(), book1.ISBN, "", "")
	require.NoError(t, err)
	require.Len(t, byISBN, 1)
	assert.Equal(t, alice.ID, byISBN[0].UserID)

	byEmail, err := f.service.SearchBorrowed(context.Background(), "", "", "bob@")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, bob.ID, byEmail[0].UserID)

	// Name and email resolving to the same user do not duplicate results
	both, err := f.service.SearchBorrowed(context.Background(), "", "Test User", "alice@")
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestService_CountBorrowed(t *testing.T) {
	f, cleanup := setupService(t)
	defer cleanup()

	user := f.seedUser(t, "borrower@example.com")
	book := f.seedBook(t, "978-0000000001")
	_, err := f.service.Borrow(context.Background(), user.ID, book.ID, nil)
	require.NoError(t, err)

	byUser, err := f.service.CountBorrowedByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, byUser)

	total, err := f.service.CountAllBorrowed(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestOverdueFine(t *testing.T) {
	due := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before due", due.Add(-time.Hour), 0},
		{"exactly due", due, 0},
		{"one minute late rounds up to a day", due.Add(time.Minute), 10},
		{"exactly one day", due.Add(24 * time.Hour), 10},
		{"one day and a minute", due.Add(24*time.Hour + time.Minute), 20},
		{"three days", due.Add(72 * time.Hour), 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverdueFine(due, tt.now, 10))
		})
	}
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var loanErr *Error
	require.ErrorAs(t, err, &loanErr)
	assert.Equal(t, kind, loanErr.Kind)
}
