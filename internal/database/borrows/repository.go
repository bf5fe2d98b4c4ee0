// Package borrows provides database operations for the borrow ledger.
//
// Every state transition is written as a conditional update so that two
// concurrent requests racing on the same record cannot both succeed: the
// losing side sees zero affected rows and gets a sentinel error back.
package borrows

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"library-backend/internal/entities"
)

var (
	// ErrBookUnavailable is returned when the book's Available -> Issued flip
	// affects no rows, i.e. someone else borrowed it first.
	ErrBookUnavailable = errors.New("book is not available for borrowing")

	// ErrNotBorrowed covers both a missing record and one already returned.
	ErrNotBorrowed = errors.New("borrow record not found or already returned")

	// ErrNoFine is returned when a payment targets a record with no outstanding fine.
	ErrNoFine = errors.New("no fine to pay for this record")
)

// Repository handles all borrow ledger database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new borrow ledger repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create writes a new loan and flips the book Issued inside one transaction.
// The book update is conditional on the book still being Available; if another
// borrow won the race the transaction rolls back with ErrBookUnavailable.
func (r *Repository) Create(ctx context.Context, borrow *entities.Borrow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.Book{}).
			Where("id = ? AND status = ?", borrow.BookID, entities.BookStatusAvailable).
			Update("status", entities.BookStatusIssued)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBookUnavailable
		}
		return tx.Create(borrow).Error
	})
}

// Get retrieves a borrow record with its user and book loaded.
func (r *Repository) Get(ctx context.Context, id uint) (*entities.Borrow, error) {
	var borrow entities.Borrow
	err := r.db.WithContext(ctx).Preload("User").Preload("Book").First(&borrow, id).Error
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

// Finalize closes a loan: sets it Returned with the computed fine and releases
// the book, both in one transaction. The borrow update is conditional on
// status still being Borrowed, so a concurrent return (or one that slipped in
// between the caller's read and this call) fails with ErrNotBorrowed.
func (r *Repository) Finalize(ctx context.Context, id uint, returnedAt time.Time, fine int) (*entities.Borrow, error) {
	var borrow entities.Borrow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&borrow, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotBorrowed
			}
			return err
		}
		res := tx.Model(&entities.Borrow{}).
			Where("id = ? AND status = ?", id, entities.BorrowStatusBorrowed).
			Updates(map[string]any{
				"status":        entities.BorrowStatusReturned,
				"returned_date": returnedAt,
				"fine":          fine,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotBorrowed
		}
		if err := tx.Model(&entities.Book{}).
			Where("id = ?", borrow.BookID).
			Update("status", entities.BookStatusAvailable).Error; err != nil {
			return err
		}
		return tx.First(&borrow, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

// SettleFine marks the fine paid and resets it to zero. Conditional on an
// outstanding fine, so a repeated payment fails with ErrNoFine instead of
// silently succeeding.
func (r *Repository) SettleFine(ctx context.Context, id uint) (*entities.Borrow, error) {
	res := r.db.WithContext(ctx).Model(&entities.Borrow{}).
		Where("id = ? AND fine > 0", id).
		Updates(map[string]any{
			"fine":        0,
			"fine_status": entities.FineStatusPaid,
			"is_paid":     true,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoFine
	}
	return r.Get(ctx, id)
}

// RaiseFine lifts the stored fine to the given value if the loan is still open
// and the new value is strictly larger. Fines only ever grow through this
// path; the authoritative value is finalized at return time.
func (r *Repository) RaiseFine(ctx context.Context, id uint, fine int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entities.Borrow{}).
		Where("id = ? AND status = ? AND fine < ?", id, entities.BorrowStatusBorrowed, fine).
		Update("fine", fine)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountBorrowedByUser returns the number of open loans held by a user.
func (r *Repository) CountBorrowedByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Borrow{}).
		Where("user_id = ? AND status = ?", userID, entities.BorrowStatusBorrowed).
		Count(&count).Error
	return count, err
}

// CountBorrowed returns the total number of open loans.
func (r *Repository) CountBorrowed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Borrow{}).
		Where("status = ?", entities.BorrowStatusBorrowed).
		Count(&count).Error
	return count, err
}

// Filter narrows ListBorrowed. Zero values are ignored. UserIDs and BookIDs
// hold pre-resolved id sets from name/title/author lookups; a non-nil empty
// slice means the lookup matched nobody and the result must be empty.
type Filter struct {
	UserID  uint
	UserIDs []uint
	BookIDs []uint
	ISBN    string
}

// ListBorrowed returns open loans matching the filter, newest first.
func (r *Repository) ListBorrowed(ctx context.Context, filter Filter) ([]entities.Borrow, error) {
	query := r.db.WithContext(ctx).Preload("User").Preload("Book").
		Where("status = ?", entities.BorrowStatusBorrowed).
		Order("borrow_date DESC")

	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.UserIDs != nil {
		query = query.Where("user_id IN ?", filter.UserIDs)
	}
	if filter.BookIDs != nil {
		query = query.Where("book_id IN ?", filter.BookIDs)
	}
	if filter.ISBN != "" {
		query = query.Where("isbn = ?", filter.ISBN)
	}

	var borrows []entities.Borrow
	err := query.Find(&borrows).Error
	return borrows, err
}

// ListReturned returns the most recently returned loans, newest first.
// This is a pure read; retention pruning lives in PruneReturned.
func (r *Repository) ListReturned(ctx context.Context, limit int) ([]entities.Borrow, error) {
	var borrows []entities.Borrow
	err := r.db.WithContext(ctx).Preload("User").Preload("Book").
		Where("status = ?", entities.BorrowStatusReturned).
		Order("returned_date DESC").
		Limit(limit).
		Find(&borrows).Error
	return borrows, err
}

// PruneReturned deletes Returned records outside the newest keep, reporting
// how many were removed. Open loans are never touched.
func (r *Repository) PruneReturned(ctx context.Context, keep int) (int64, error) {
	var keepIDs []uint
	err := r.db.WithContext(ctx).Model(&entities.Borrow{}).
		Where("status = ?", entities.BorrowStatusReturned).
		Order("returned_date DESC").
		Limit(keep).
		Pluck("id", &keepIDs).Error
	if err != nil {
		return 0, err
	}

	query := r.db.WithContext(ctx).Where("status = ?", entities.BorrowStatusReturned)
	if len(keepIDs) > 0 {
		query = query.Where("id NOT IN ?", keepIDs)
	}
	res := query.Delete(&entities.Borrow{})
	return res.RowsAffected, res.Error
}

// DueSoon returns open loans due within the window that have not been
// notified yet, with user and book loaded for the reminder message.
func (r *Repository) DueSoon(ctx context.Context, now time.Time, window time.Duration) ([]entities.Borrow, error) {
	var borrows []entities.Borrow
	err := r.db.WithContext(ctx).Preload("User").Preload("Book").
		Where("status = ? AND notification_sent = ? AND due_date <= ?",
			entities.BorrowStatusBorrowed, false, now.Add(window)).
		Order("due_date ASC").
		Find(&borrows).Error
	return borrows, err
}

// MarkNotified sets the sticky notification flag on the given records.
func (r *Repository) MarkNotified(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entities.Borrow{}).
		Where("id IN ?", ids).
		Update("notification_sent", true).Error
}
