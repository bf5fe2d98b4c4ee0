// Package loans implements the borrow/return/fine lifecycle.
//
// The service validates each transition against current store state and
// leaves the race-sensitive writes to conditional updates in the borrows
// repository, so concurrent requests on the same book or record serialize
// at the database rather than in process memory.
package loans

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"library-backend/internal/database/books"
	"library-backend/internal/database/borrows"
	"library-backend/internal/database/users"
	"library-backend/internal/entities"
)

// Policy is the configured lending policy.
type Policy struct {
	MaxPerUser      int
	PeriodDays      int
	FinePerDay      int
	EscalationDelay time.Duration
}

// EscalationScheduler enqueues a deferred fine check for a loan. Implemented
// by the task queue; nil disables escalation (tests, tasks turned off).
type EscalationScheduler interface {
	ScheduleFineCheck(ctx context.Context, borrowID uint, at time.Time) error
}

// Caller identifies the authenticated principal on behalf of whom an
// operation runs.
type Caller struct {
	UserID uint
	Role   entities.Role
}

func (c Caller) isAdmin() bool {
	return c.Role == entities.RoleAdmin
}

// Service executes loan lifecycle transitions.
type Service struct {
	borrows   *borrows.Repository
	users     *users.Repository
	books     *books.Repository
	scheduler EscalationScheduler
	policy    Policy

	now func() time.Time
}

// NewService creates a loan service. scheduler may be nil.
func NewService(borrowRepo *borrows.Repository, userRepo *users.Repository, bookRepo *books.Repository, scheduler EscalationScheduler, policy Policy) *Service {
	return &Service{
		borrows:   borrowRepo,
		users:     userRepo,
		books:     bookRepo,
		scheduler: scheduler,
		policy:    policy,
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Borrow checks out a book for a user. dueDate may be nil, in which case the
// configured loan period applies. Preconditions run in a fixed order and the
// first failure wins; the final availability check is a conditional update,
// so two concurrent borrows of one book cannot both succeed.
func (s *Service) Borrow(ctx context.Context, userID, bookID uint, dueDate *time.Time) (*entities.Borrow, error) {
	if bookID == 0 {
		return nil, invalidInput("Invalid bookId format.")
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User not found.")
		}
		return nil, internal(err, "looking up user")
	}

	count, err := s.borrows.CountBorrowedByUser(ctx, userID)
	if err != nil {
		return nil, internal(err, "counting open loans")
	}
	if count >= int64(s.policy.MaxPerUser) {
		return nil, conflict("You have already borrowed the maximum number of books (%d).", s.policy.MaxPerUser)
	}

	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Book not found.")
		}
		return nil, internal(err, "looking up book")
	}
	if book.Status != entities.BookStatusAvailable {
		return nil, conflict("Book is not available for borrowing.")
	}

	borrowDate := s.now()
	due := borrowDate.AddDate(0, 0, s.policy.PeriodDays)
	if dueDate != nil {
		if dueDate.IsZero() {
			return nil, invalidInput("Invalid due date format.")
		}
		due = *dueDate
	}

	borrow := &entities.Borrow{
		UserID:     user.ID,
		BookID:     book.ID,
		ISBN:       book.ISBN,
		UserEmail:  user.Email,
		BorrowDate: borrowDate,
		DueDate:    due,
		Status:     entities.BorrowStatusBorrowed,
		FineStatus: entities.FineStatusUnpaid,
	}
	if err := s.borrows.Create(ctx, borrow); err != nil {
		if errors.Is(err, borrows.ErrBookUnavailable) {
			return nil, conflict("Book is not available for borrowing.")
		}
		return nil, internal(err, "creating borrow record")
	}

	if s.scheduler != nil {
		checkAt := due.Add(s.policy.EscalationDelay)
		if err := s.scheduler.ScheduleFineCheck(ctx, borrow.ID, checkAt); err != nil {
			// The loan itself succeeded; the daily sweep and return path
			// still compute fines if the chain never starts.
			log.Printf("Failed to schedule fine check for borrow %d: %v", borrow.ID, err)
		}
	}

	return borrow, nil
}

// Return closes a loan, computing the overdue fine and releasing the book.
func (s *Service) Return(ctx context.Context, borrowID uint) (*entities.Borrow, error) {
	if borrowID == 0 {
		return nil, invalidInput("Invalid borrowId format.")
	}

	borrow, err := s.borrows.Get(ctx, borrowID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, conflict("Borrow record not found or already returned.")
		}
		return nil, internal(err, "looking up borrow record")
	}
	if borrow.Status != entities.BorrowStatusBorrowed {
		return nil, conflict("Borrow record not found or already returned.")
	}

	now := s.now()
	fine := OverdueFine(borrow.DueDate, now, s.policy.FinePerDay)

	returned, err := s.borrows.Finalize(ctx, borrowID, now, fine)
	if err != nil {
		if errors.Is(err, borrows.ErrNotBorrowed) {
			return nil, conflict("Borrow record not found or already returned.")
		}
		return nil, internal(err, "finalizing return")
	}
	return returned, nil
}

// PayFine settles the outstanding fine on a loan. Paying twice fails: once
// the fine is reset to zero a further payment is a rejected no-op, never a
// silent success.
func (s *Service) PayFine(ctx context.Context, borrowID uint) (*entities.Borrow, error) {
	if borrowID == 0 {
		return nil, invalidInput("Invalid borrowId format.")
	}

	if _, err := s.borrows.Get(ctx, borrowID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Borrow record not found.")
		}
		return nil, internal(err, "looking up borrow record")
	}

	paid, err := s.borrows.SettleFine(ctx, borrowID)
	if err != nil {
		if errors.Is(err, borrows.ErrNoFine) {
			return nil, conflict("No fine to pay for this record.")
		}
		return nil, internal(err, "settling fine")
	}
	return paid, nil
}

// CountBorrowedByUser returns the number of open loans held by a user.
func (s *Service) CountBorrowedByUser(ctx context.Context, userID uint) (int64, error) {
	count, err := s.borrows.CountBorrowedByUser(ctx, userID)
	if err != nil {
		return 0, internal(err, "counting open loans")
	}
	return count, nil
}

// CountAllBorrowed returns the total number of open loans.
func (s *Service) CountAllBorrowed(ctx context.Context) (int64, error) {
	count, err := s.borrows.CountBorrowed(ctx)
	if err != nil {
		return 0, internal(err, "counting open loans")
	}
	return count, nil
}

// BorrowFilter narrows ListBorrowed. Name resolves against user names,
// Title and Author against the catalog, ISBN matches exactly.
type BorrowFilter struct {
	UserID uint
	Name   string
	Title  string
	Author string
	ISBN   string
}

// ListBorrowed returns open loans matching the filter. Non-admin callers are
// restricted to their own records regardless of the supplied filter.
func (s *Service) ListBorrowed(ctx context.Context, caller Caller, filter BorrowFilter) ([]entities.Borrow, error) {
	repoFilter := borrows.Filter{UserID: filter.UserID, ISBN: filter.ISBN}

	if !caller.isAdmin() {
		repoFilter.UserID = caller.UserID
	} else if filter.Name != "" {
		ids, err := s.users.SearchIDsByName(ctx, filter.Name)
		if err != nil {
			return nil, internal(err, "resolving user name filter")
		}
		repoFilter.UserIDs = ids
	}

	if filter.Title != "" || filter.Author != "" {
		ids, err := s.books.SearchIDs(ctx, filter.Title, filter.Author)
		if err != nil {
			return nil, internal(err, "resolving book filter")
		}
		repoFilter.BookIDs = ids
	}

	list, err := s.borrows.ListBorrowed(ctx, repoFilter)
	if err != nil {
		return nil, internal(err, "listing open loans")
	}
	return list, nil
}

// ListReturned returns the most recently returned loans. Pure read; the
// retention job prunes older records on its own schedule.
func (s *Service) ListReturned(ctx context.Context, limit int) ([]entities.Borrow, error) {
	list, err := s.borrows.ListReturned(ctx, limit)
	if err != nil {
		return nil, internal(err, "listing returned loans")
	}
	return list, nil
}

// SearchBorrowed finds open loans by ISBN, user name or user email. Name and
// email resolve to user id sets first, then filter the ledger.
func (s *Service) SearchBorrowed(ctx context.Context, isbn, name, email string) ([]entities.Borrow, error) {
	filter := borrows.Filter{ISBN: isbn}

	if name != "" || email != "" {
		ids := make([]uint, 0)
		if name != "" {
			byName, err := s.users.SearchIDsByName(ctx, name)
			if err != nil {
				return nil, internal(err, "resolving user name")
			}
			ids = append(ids, byName...)
		}
		if email != "" {
			byEmail, err := s.users.SearchIDsByEmail(ctx, email)
			if err != nil {
				return nil, internal(err, "resolving user email")
			}
			ids = append(ids, byEmail...)
		}
		filter.UserIDs = dedupe(ids)
	}

	list, err := s.borrows.ListBorrowed(ctx, filter)
	if err != nil {
		return nil, internal(err, "searching open loans")
	}
	return list, nil
}

// OverdueFine computes the fine for a loan returned or checked at now:
// overdue days rounded up, times the per-day rate. Zero when not overdue.
func OverdueFine(due, now time.Time, perDay int) int {
	if !now.After(due) {
		return 0
	}
	overdue := now.Sub(due)
	days := int(overdue / (24 * time.Hour))
	if overdue%(24*time.Hour) != 0 {
		days++
	}
	return days * perDay
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
