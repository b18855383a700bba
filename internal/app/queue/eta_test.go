package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

func TestPreparationMinutes(t *testing.T) {
	policies := []domain.PreparationPolicy{
		{BaseMinutes: 5, PerAdditionalMinutes: 3},
		{BaseMinutes: 3, PerAdditionalMinutes: 2},
	}

	for _, p := range policies {
		assert.Equal(t, 0, p.Minutes(0))
		assert.Equal(t, p.BaseMinutes, p.Minutes(1))
		assert.Equal(t, p.BaseMinutes+3*p.PerAdditionalMinutes, p.Minutes(4))
	}
	assert.Equal(t, 14, policies[0].Minutes(4))
	assert.Equal(t, 9, policies[1].Minutes(4))
}

func waitingEntries(minutes ...int) []*domain.QueueEntry {
	out := make([]*domain.QueueEntry, len(minutes))
	for i, m := range minutes {
		out[i] = &domain.QueueEntry{ID: int64(i + 1), OrderID: int64(i + 1), Position: i + 1, Status: domain.QueueWaiting, PreparationMinutes: m}
	}
	return out
}

func TestScheduleTimesChainsEstimates(t *testing.T) {
	entries := waitingEntries(5, 8, 3)

	ScheduleTimes(entries, t0)

	require.NotNil(t, entries[0].EstimatedStart)
	assert.Equal(t, t0, *entries[0].EstimatedStart)
	assert.Equal(t, t0.Add(5*time.Minute), *entries[0].EstimatedCompletion)
	assert.Equal(t, t0.Add(5*time.Minute), *entries[1].EstimatedStart)
	assert.Equal(t, t0.Add(13*time.Minute), *entries[2].EstimatedStart)
	assert.Equal(t, t0.Add(16*time.Minute), *entries[2].EstimatedCompletion)

	for i := 0; i+1 < len(entries); i++ {
		assert.False(t, entries[i].EstimatedCompletion.After(*entries[i+1].EstimatedStart))
	}
}

func TestWaitMinutesUsesEstimate(t *testing.T) {
	entries := waitingEntries(5, 5)
	ScheduleTimes(entries, t0)

	assert.Equal(t, 0, WaitMinutes(entries[0], entries, t0))
	assert.Equal(t, 5, WaitMinutes(entries[1], entries, t0))
	assert.Equal(t, 2, WaitMinutes(entries[1], entries, t0.Add(150*time.Second)))
	assert.Equal(t, 0, WaitMinutes(entries[1], entries, t0.Add(time.Hour)))
}

func TestWaitMinutesFallback(t *testing.T) {
	started := t0.Add(-2 * time.Minute)
	preparing := &domain.QueueEntry{ID: 10, OrderID: 10, Status: domain.QueuePreparing, PreparationMinutes: 5, ActualStart: &started}
	entries := append(waitingEntries(5, 8, 3), preparing)

	// 3 minutes left on the preparing order plus 5 and 8 of the two entries ahead
	assert.Equal(t, 16, WaitMinutes(entries[2], entries, t0))
	assert.Equal(t, 3, WaitMinutes(entries[0], entries, t0))
	assert.Equal(t, 0, WaitMinutes(preparing, entries, t0))
}

func TestWaitMinutesTerminalIsZero(t *testing.T) {
	ready := &domain.QueueEntry{OrderID: 1, Status: domain.QueueReady}
	assert.Equal(t, 0, WaitMinutes(ready, []*domain.QueueEntry{ready}, t0))
}
