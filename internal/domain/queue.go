package domain

import (
	"fmt"
	"time"
)

// QueueEntry is the scheduling record of one order.
type QueueEntry struct {
	ID                  int64
	OrderID             int64
	Position            int
	Status              QueueStatus
	CoffeeCount         int
	PreparationMinutes  int
	EstimatedStart      *time.Time
	EstimatedCompletion *time.Time
	ActualStart         *time.Time
	ActualCompletion    *time.Time
	AssignedPreparer    *string
	CancelReason        *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewQueueEntry creates a waiting entry. Position is assigned by the scheduler.
func NewQueueEntry(orderID int64, coffeeCount int, policy PreparationPolicy, now time.Time) (*QueueEntry, error) {
	if coffeeCount <= 0 {
		return nil, fmt.Errorf("order %d has no coffee lines: %w", orderID, ErrNotEligible)
	}

	return &QueueEntry{
		OrderID:            orderID,
		Status:             QueueWaiting,
		CoffeeCount:        coffeeCount,
		PreparationMinutes: policy.Minutes(coffeeCount),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

var validTransitions = map[QueueStatus][]QueueStatus{
	QueueWaiting:   {QueuePreparing, QueueReady, QueueCancelled},
	QueuePreparing: {QueueReady, QueueCancelled},
	QueueReady:     {QueueCompleted},
	QueueCompleted: {},
	QueueCancelled: {},
}

// CanTransitionTo checks if the entry can move to the new status
func (e *QueueEntry) CanTransitionTo(newStatus QueueStatus) bool {
	for _, s := range validTransitions[e.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo moves the entry to newStatus and drops its position once it leaves the waiting set.
func (e *QueueEntry) TransitionTo(newStatus QueueStatus, now time.Time) error {
	if !e.CanTransitionTo(newStatus) {
		return fmt.Errorf("%s -> %s: %w", e.Status, newStatus, ErrInvalidTransition)
	}

	e.Status = newStatus
	e.UpdatedAt = now
	if !newStatus.Positioned() {
		e.Position = 0
		e.EstimatedStart = nil
		e.EstimatedCompletion = nil
	}

	switch newStatus {
	case QueuePreparing:
		e.ActualStart = timePtr(now)
	case QueueReady:
		e.ActualCompletion = timePtr(now)
		if e.ActualStart == nil {
			start := now.Add(-time.Duration(e.PreparationMinutes) * time.Minute)
			e.ActualStart = &start
		}
	}

	return nil
}

// RemainingAt is how much preparation time is left for a preparing entry.
func (e *QueueEntry) RemainingAt(now time.Time) time.Duration {
	if e.Status != QueuePreparing || e.ActualStart == nil {
		return 0
	}
	remaining := e.ActualStart.Add(time.Duration(e.PreparationMinutes) * time.Minute).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clone returns a deep copy.
func (e *QueueEntry) Clone() *QueueEntry {
	c := *e
	c.EstimatedStart = copyTime(e.EstimatedStart)
	c.EstimatedCompletion = copyTime(e.EstimatedCompletion)
	c.ActualStart = copyTime(e.ActualStart)
	c.ActualCompletion = copyTime(e.ActualCompletion)
	c.AssignedPreparer = copyString(e.AssignedPreparer)
	c.CancelReason = copyString(e.CancelReason)
	return &c
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
