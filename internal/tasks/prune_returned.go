package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"library-backend/internal/database/borrows"
)

// PruneReturnedTask removes Returned loan records beyond the newest Keep.
// Runs on its own schedule, decoupled from the listing read path.
type PruneReturnedTask struct {
	Keep int `json:"keep"`
}

// Config returns the queue configuration for pruning tasks.
func (t PruneReturnedTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "prune_returned",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PruneReturnedProcessor creates a processor function for PruneReturnedTask.
func PruneReturnedProcessor(repo *borrows.Repository) backlite.QueueProcessor[PruneReturnedTask] {
	return func(ctx context.Context, task PruneReturnedTask) error {
		keep := task.Keep
		if keep <= 0 {
			keep = 10
		}

		deleted, err := repo.PruneReturned(ctx, keep)
		if err != nil {
			return fmt.Errorf("prune returned records: %w", err)
		}

		log.Printf("[TASK] Pruned %d returned records, kept newest %d", deleted, keep)
		return nil
	}
}

// NewPruneReturnedQueue creates a backlite queue for pruning tasks.
func NewPruneReturnedQueue(repo *borrows.Repository) backlite.Queue {
	return backlite.NewQueue(PruneReturnedProcessor(repo))
}
