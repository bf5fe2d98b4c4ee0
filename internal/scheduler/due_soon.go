// Package scheduler runs the daily due-soon sweep over the borrow ledger.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"library-backend/internal/database/borrows"
	"library-backend/internal/entities"
	"library-backend/internal/notifier"
)

// Pruner enqueues a retention pruning run. Implemented by the task client;
// nil skips pruning.
type Pruner interface {
	SchedulePrune(ctx context.Context, keep int) error
}

// Config controls the sweep cadence and scope.
type Config struct {
	Schedule     string        // cron expression, e.g. "0 9 * * *"
	Window       time.Duration // due-soon horizon
	ReturnedKeep int           // passed through to the pruning task
}

// DueSoonScheduler periodically scans for loans approaching their due date
// and sends each affected user one consolidated reminder.
type DueSoonScheduler struct {
	repo     *borrows.Repository
	notifier notifier.Notifier
	pruner   Pruner
	config   Config

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSweeping bool
	cancelFunc context.CancelFunc

	now func() time.Time
}

// NewDueSoonScheduler creates a new scheduler instance.
func NewDueSoonScheduler(repo *borrows.Repository, n notifier.Notifier, pruner Pruner, cfg Config) *DueSoonScheduler {
	return &DueSoonScheduler{
		repo:     repo,
		notifier: n,
		pruner:   pruner,
		config:   cfg,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
		now:      time.Now,
	}
}

// SetClock overrides the scheduler clock. Test hook.
func (s *DueSoonScheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start begins the scheduler.
func (s *DueSoonScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule due-date sweep: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Due-date sweep scheduler: started with schedule '%s'", s.config.Schedule)

	// Monitor for context cancellation
	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep to finish.
func (s *DueSoonScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Due-date sweep scheduler: stopped")
}

// RunNow triggers an immediate sweep.
func (s *DueSoonScheduler) RunNow() {
	go s.runSweep()
}

// IsRunning returns whether the scheduler is active.
func (s *DueSoonScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next sweep will occur.
func (s *DueSoonScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSweep performs one pass: notify users with loans due inside the window,
// then hand retention pruning to the task queue.
func (s *DueSoonScheduler) runSweep() {
	s.mu.Lock()
	if s.isSweeping {
		s.mu.Unlock()
		log.Printf("Due-date sweep: skipped (already running)")
		return
	}
	s.isSweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSweeping = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	startTime := s.now()
	if err := s.Sweep(ctx); err != nil {
		log.Printf("Due-date sweep: %v", err)
		return
	}

	if s.pruner != nil {
		if err := s.pruner.SchedulePrune(ctx, s.config.ReturnedKeep); err != nil {
			log.Printf("Due-date sweep: failed to enqueue pruning: %v", err)
		}
	}

	log.Printf("Due-date sweep: finished in %v", s.now().Sub(startTime).Round(time.Millisecond))
}

// Sweep finds un-notified loans due inside the window, groups them by user,
// sends one consolidated reminder per user and marks the covered records'
// sticky flags. A send failure for one user is logged and the rest of the
// sweep continues.
func (s *DueSoonScheduler) Sweep(ctx context.Context) error {
	due, err := s.repo.DueSoon(ctx, s.now(), s.config.Window)
	if err != nil {
		return fmt.Errorf("scanning for due loans: %w", err)
	}
	if len(due) == 0 {
		log.Printf("Due-date sweep: nothing due within %v", s.config.Window)
		return nil
	}

	byUser := make(map[uint][]int)
	for i, b := range due {
		byUser[b.UserID] = append(byUser[b.UserID], i)
	}

	// Stable iteration keeps the log readable across runs
	userIDs := make([]uint, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	var notified, failed int
	for _, userID := range userIDs {
		indexes := byUser[userID]
		first := due[indexes[0]]

		to := first.UserEmail
		if to == "" && first.User != nil {
			to = first.User.Email
		}
		if to == "" {
			log.Printf("Due-date sweep: no email for user %d, skipping %d loans", userID, len(indexes))
			continue
		}

		name := ""
		if first.User != nil {
			name = first.User.Name
		}

		body := reminderBody(name, due, indexes)
		if err := s.notifier.Send(ctx, to, "Library Book Due Soon", body); err != nil {
			log.Printf("Due-date sweep: failed to notify %s: %v", to, err)
			failed++
			continue
		}

		ids := make([]uint, 0, len(indexes))
		for _, i := range indexes {
			ids = append(ids, due[i].ID)
		}
		if err := s.repo.MarkNotified(ctx, ids); err != nil {
			log.Printf("Due-date sweep: failed to mark loans notified for %s: %v", to, err)
			failed++
			continue
		}
		notified++
	}

	log.Printf("Due-date sweep: notified %d users, %d failures, %d loans due", notified, failed, len(due))
	return nil
}

// reminderBody builds one consolidated message listing every due title.
func reminderBody(name string, due []entities.Borrow, indexes []int) string {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "Dear %s,\n\n", name)
	} else {
		b.WriteString("Dear reader,\n\n")
	}
	if len(indexes) == 1 {
		b.WriteString("This is a reminder that the following book you borrowed from the library is due for return soon:\n\n")
	} else {
		b.WriteString("This is a reminder that the following books you borrowed from the library are due for return soon:\n\n")
	}
	for _, i := range indexes {
		borrow := due[i]
		title := borrow.ISBN
		if borrow.Book != nil && borrow.Book.Title != "" {
			title = borrow.Book.Title
		}
		fmt.Fprintf(&b, "  - %q, due %s\n", title, borrow.DueDate.Format("02 Jan 2006"))
	}
	b.WriteString("\nPlease return the books on time to avoid any fines.\n\nBest regards,\nYour Library\n")
	return b.String()
}
