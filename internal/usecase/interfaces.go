package usecase

import (
	"context"
	"time"
)

// Broadcaster pushes events to every session subscribed to a room. Delivery
// is best-effort and never blocks a transition.
type Broadcaster interface {
	BroadcastToRoom(room, event string, payload interface{})
}

// Notifier fans a user-facing alert out to the given recipients.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, mediationID, kind, title, body string)
}

// AssignmentScheduler is the deferred-check side of the timer manager. The
// state machine schedules on assignment and cancels on any transition away
// from the assigned state.
type AssignmentScheduler interface {
	Schedule(mediationID string, assignedAt time.Time)
	Cancel(mediationID string)
}
