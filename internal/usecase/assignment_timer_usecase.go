package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"arbitex/internal/domain/entity"
	"arbitex/internal/domain/repository"
)

// AssignmentTimerManager enforces the mediator-decision window without
// requiring the mediator's client to be connected. Timers live in memory
// only; Reconcile rebuilds them from mediatorAssignedAt after a restart.
type AssignmentTimerManager struct {
	mediationRepo repository.MediationRepository
	mediationUC   *MediationUseCase
	window        time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewAssignmentTimerManager(
	mediationRepo repository.MediationRepository,
	mediationUC *MediationUseCase,
	window time.Duration,
) *AssignmentTimerManager {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &AssignmentTimerManager{
		mediationRepo: mediationRepo,
		mediationUC:   mediationUC,
		window:        window,
		timers:        make(map[string]*time.Timer),
	}
}

// Schedule arms the deferred check for a fresh assignment, replacing any
// timer still armed for a previous assignment of the same request.
func (tm *AssignmentTimerManager) Schedule(mediationID string, assignedAt time.Time) {
	deadline := assignedAt.Add(tm.window)
	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if existing, ok := tm.timers[mediationID]; ok {
		existing.Stop()
	}

	tm.timers[mediationID] = time.AfterFunc(delay, func() {
		tm.fire(mediationID, assignedAt)
	})
}

// Cancel stops the pending check. Called synchronously whenever the
// aggregate leaves the assigned state.
func (tm *AssignmentTimerManager) Cancel(mediationID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if timer, ok := tm.timers[mediationID]; ok {
		timer.Stop()
		delete(tm.timers, mediationID)
	}
}

func (tm *AssignmentTimerManager) fire(mediationID string, assignedAt time.Time) {
	tm.mu.Lock()
	delete(tm.timers, mediationID)
	tm.mu.Unlock()

	// ExpireAssignment re-reads the aggregate and compares assignedAt, so a
	// stale or duplicate firing is harmless.
	if err := tm.mediationUC.ExpireAssignment(context.Background(), mediationID, assignedAt); err != nil {
		log.Printf("Assignment timeout for mediation %s failed: %v", mediationID, err)
	}
}

// Reconcile scans every request still awaiting a mediator decision: overdue
// ones time out immediately, the rest get their timer re-armed for the
// remaining window. Run once on startup.
func (tm *AssignmentTimerManager) Reconcile(ctx context.Context) error {
	const batchSize = 100

	offset := 0
	for {
		mediations, _, err := tm.mediationRepo.ListByStatus(ctx, entity.StatusMediatorAssigned, batchSize, offset)
		if err != nil {
			return err
		}
		if len(mediations) == 0 {
			return nil
		}

		for _, m := range mediations {
			if m.MediatorAssignedAt == nil {
				log.Printf("Mediation %s is awaiting a decision without an assignment time, skipping", m.ID)
				continue
			}
			tm.Schedule(m.ID, *m.MediatorAssignedAt)
		}

		if len(mediations) < batchSize {
			return nil
		}
		offset += batchSize
	}
}
