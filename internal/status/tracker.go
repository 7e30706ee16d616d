package status

import (
	"context"
	"fmt"
	"sync"
	"time"
)

//go:generate mockgen -destination=mocks/mock_tracker.go -package=mocks github.com/stacklok/content-replicator/internal/status Tracker

// Tracker folds replication attempts into the persisted status of each target
type Tracker interface {
	// RecordAttempt updates the status of target with the outcome of attempt
	RecordAttempt(ctx context.Context, target string, attempt Attempt) error

	// Status returns the current status of all targets
	Status(ctx context.Context) (map[string]*TargetStatus, error)
}

type persistentTracker struct {
	mu          sync.Mutex
	persistence Persistence
	now         func() time.Time
}

// NewTracker creates a Tracker that keeps status in persistence
func NewTracker(persistence Persistence) Tracker {
	return &persistentTracker{
		persistence: persistence,
		now:         time.Now,
	}
}

// RecordAttempt implements Tracker
func (t *persistentTracker) RecordAttempt(ctx context.Context, target string, attempt Attempt) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if locker, ok := t.persistence.(Locker); ok {
		unlock, err := locker.LockTarget(ctx, target)
		if err != nil {
			return err
		}
		defer unlock()
	}

	current, err := t.persistence.LoadStatus(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to load status of target %s: %w", target, err)
	}

	at := attempt.At
	if at.IsZero() {
		at = t.now()
	}
	at = at.UTC()

	current.LastAttempt = &at
	current.Attempts++
	current.LastNode = attempt.Node
	current.LastWorkspace = attempt.Workspace
	current.LastConfiguration = attempt.Configuration

	if attempt.Succeeded {
		current.Phase = PhaseComplete
		current.Message = ""
		current.FailedPhase = ""
		current.FailureCount = 0
		current.LastSuccess = &at
	} else {
		current.Phase = PhaseFailed
		current.Message = attempt.Message
		current.FailedPhase = attempt.Phase
		current.FailureCount++
	}

	if err := t.persistence.SaveStatus(ctx, target, current); err != nil {
		return fmt.Errorf("failed to save status of target %s: %w", target, err)
	}
	return nil
}

// Status implements Tracker
func (t *persistentTracker) Status(ctx context.Context) (map[string]*TargetStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persistence.LoadAllStatus(ctx)
}
