package queue

import (
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

// ScheduleTimes chains estimates over waiting entries given in position order, starting at now.
func ScheduleTimes(waiting []*domain.QueueEntry, now time.Time) {
	offset := time.Duration(0)
	for _, e := range waiting {
		start := now.Add(offset)
		prep := time.Duration(e.PreparationMinutes) * time.Minute
		completion := start.Add(prep)

		e.EstimatedStart = &start
		e.EstimatedCompletion = &completion
		offset += prep
	}
}

// WaitMinutes estimates how long the entry waits before preparation starts.
// entries is the full queue snapshot the entry belongs to.
func WaitMinutes(entry *domain.QueueEntry, entries []*domain.QueueEntry, now time.Time) int {
	if entry.Status != domain.QueueWaiting {
		return 0
	}

	if entry.EstimatedStart != nil {
		return wholeMinutes(entry.EstimatedStart.Sub(now))
	}

	var total time.Duration
	var current *domain.QueueEntry
	for _, e := range entries {
		if e.Status != domain.QueuePreparing || e.ActualStart == nil {
			continue
		}
		if current == nil || e.ActualStart.Before(*current.ActualStart) {
			current = e
		}
	}
	if current != nil {
		total += current.RemainingAt(now)
	}

	for _, e := range entries {
		if e.Status == domain.QueueWaiting && e.Position > 0 && e.Position < entry.Position {
			total += time.Duration(e.PreparationMinutes) * time.Minute
		}
	}

	return wholeMinutes(total)
}

func wholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
