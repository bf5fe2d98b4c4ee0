package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
	"gorm.io/gorm"

	"library-backend/internal/database/borrows"
	"library-backend/internal/entities"
	"library-backend/internal/loans"
)

// FineCheckTask recomputes the overdue fine for one loan. The first check is
// enqueued at borrow time, deferred until past the due date; each run
// re-enqueues itself until the loan is returned. Because the chain is one
// task per loan, a failing loan never blocks the others.
type FineCheckTask struct {
	BorrowID uint `json:"borrow_id"`
}

// Config returns the queue configuration for fine check tasks.
func (t FineCheckTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "fine_check",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// FineCheckScheduler re-enqueues the next check in a loan's chain.
type FineCheckScheduler interface {
	ScheduleFineCheck(ctx context.Context, borrowID uint, at time.Time) error
}

// FineCheckPolicy carries the loan policy values the processor needs.
type FineCheckPolicy struct {
	FinePerDay int
	Interval   time.Duration
}

// FineCheckProcessor creates a processor function for FineCheckTask.
// The fine only moves up, via a conditional update; the value finalized by
// the return path is never touched because the record is no longer Borrowed
// by then, which also terminates the chain.
func FineCheckProcessor(repo *borrows.Repository, scheduler FineCheckScheduler, policy FineCheckPolicy) backlite.QueueProcessor[FineCheckTask] {
	return func(ctx context.Context, task FineCheckTask) error {
		borrow, err := repo.Get(ctx, task.BorrowID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("[TASK] Fine check: borrow %d no longer exists, ending chain", task.BorrowID)
				return nil
			}
			return fmt.Errorf("fine check borrow %d: %w", task.BorrowID, err)
		}

		if borrow.Status != entities.BorrowStatusBorrowed {
			log.Printf("[TASK] Fine check: borrow %d is %s, ending chain", borrow.ID, borrow.Status)
			return nil
		}

		now := time.Now()
		fine := loans.OverdueFine(borrow.DueDate, now, policy.FinePerDay)
		if fine > borrow.Fine {
			raised, err := repo.RaiseFine(ctx, borrow.ID, fine)
			if err != nil {
				return fmt.Errorf("raising fine for borrow %d: %w", borrow.ID, err)
			}
			if raised {
				log.Printf("[TASK] Fine check: borrow %d fine raised to %d", borrow.ID, fine)
			}
		}

		if scheduler != nil {
			if err := scheduler.ScheduleFineCheck(ctx, borrow.ID, now.Add(policy.Interval)); err != nil {
				return fmt.Errorf("rescheduling fine check for borrow %d: %w", borrow.ID, err)
			}
		}
		return nil
	}
}

// NewFineCheckQueue creates a backlite queue for fine check tasks.
func NewFineCheckQueue(repo *borrows.Repository, scheduler FineCheckScheduler, policy FineCheckPolicy) backlite.Queue {
	return backlite.NewQueue(FineCheckProcessor(repo, scheduler, policy))
}
