package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/adapter/memory"
	"github.com/YelzhanWeb/coffeequeue/internal/app/queue"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

var t0 = time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type mapCache struct {
	summary    *domain.Summary
	generation int64
	gets       int
	sets       int
	getErr     error
}

func (c *mapCache) Get(ctx context.Context) (*domain.Summary, int64, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, 0, false, c.getErr
	}
	if c.summary == nil {
		return nil, c.generation, false, nil
	}
	s := *c.summary
	return &s, c.generation, true, nil
}

func (c *mapCache) Set(ctx context.Context, generation int64, summary *domain.Summary) error {
	c.sets++
	if generation != c.generation {
		return nil
	}
	s := *summary
	c.summary = &s
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context) error {
	c.generation++
	c.summary = nil
	return nil
}

type fixture struct {
	ctx       context.Context
	clock     *clock
	store     *memory.Store
	preparers *memory.PreparerRepository
	cache     *mapCache
	queue     *queue.Service
	tracking  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:       context.Background(),
		clock:     &clock{now: t0},
		store:     memory.NewStore(),
		preparers: memory.NewPreparerRepository(),
		cache:     &mapCache{},
	}

	svc, err := queue.NewService(f.store, f.preparers, nil, f.cache, logger.Nop(), queue.Options{
		Policy:      domain.PreparationPolicy{BaseMinutes: 5, PerAdditionalMinutes: 3},
		MaxAttempts: 2,
		Now:         f.clock.Now,
	})
	require.NoError(t, err)
	f.queue = svc

	f.tracking = NewService(svc, f.store, f.preparers, f.cache, logger.Nop(), Options{
		ReadyWindow:     15 * time.Minute,
		PreparerTimeout: 10 * time.Minute,
		Now:             f.clock.Now,
	})

	for id := int64(1); id <= 3; id++ {
		f.store.PutOrder(domain.OrderMeta{
			OrderID:       id,
			PriorityClass: domain.PriorityNormal,
			ArrivalAt:     t0.Add(time.Duration(id) * time.Second),
			PaymentStatus: domain.PaymentPaid,
			Status:        domain.OrderPending,
		}, []domain.LineItem{{Kind: domain.ItemCoffee, Quantity: 1}})
		_, err := svc.Enqueue(f.ctx, id)
		require.NoError(t, err)
	}
	return f
}

func TestBoard(t *testing.T) {
	f := newFixture(t)

	_, err := f.queue.StartPreparation(f.ctx, 1, "alice")
	require.NoError(t, err)
	_, err = f.queue.MarkReady(f.ctx, 2, "bob")
	require.NoError(t, err)

	f.clock.now = t0.Add(2 * time.Minute)
	board, err := f.tracking.Board(f.ctx)
	require.NoError(t, err)

	require.Len(t, board.Waiting, 1)
	assert.Equal(t, int64(3), board.Waiting[0].OrderID)
	assert.Equal(t, 1, board.Waiting[0].Position)

	require.Len(t, board.Preparing, 1)
	p := board.Preparing[0]
	assert.Equal(t, 120, p.ElapsedSeconds)
	assert.Equal(t, 180, p.RemainingSeconds)
	assert.False(t, p.IsTimeUp)
	require.NotNil(t, p.AssignedPreparer)
	assert.Equal(t, "alice", *p.AssignedPreparer)

	require.Len(t, board.Ready, 1)
	assert.Equal(t, int64(2), board.Ready[0].OrderID)
	assert.Equal(t, 2, board.Ready[0].MinutesWaiting)

	f.clock.now = t0.Add(16 * time.Minute)
	board, err = f.tracking.Board(f.ctx)
	require.NoError(t, err)

	assert.True(t, board.Preparing[0].IsTimeUp)
	assert.Zero(t, board.Preparing[0].RemainingSeconds)
	assert.Empty(t, board.Ready, "ready entries age out of the board")
}

func TestEntryStatus(t *testing.T) {
	f := newFixture(t)

	resp, err := f.tracking.EntryStatus(f.ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueWaiting, resp.Status)
	assert.Equal(t, 3, resp.Position)
	assert.Equal(t, 10, resp.WaitMinutes)

	_, err = f.queue.StartPreparation(f.ctx, 1, "alice")
	require.NoError(t, err)
	f.clock.now = t0.Add(2 * time.Minute)

	resp, err = f.tracking.EntryStatus(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.QueuePreparing, resp.Status)
	assert.Equal(t, 3, resp.RemainingMinutes)
	assert.Zero(t, resp.WaitMinutes)
	require.NotNil(t, resp.EstimatedCompletion)
	assert.Equal(t, t0.Add(5*time.Minute), *resp.EstimatedCompletion)

	_, err = f.tracking.EntryStatus(f.ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSummaryUsesCache(t *testing.T) {
	f := newFixture(t)

	first, err := f.tracking.Summary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.Summary{Waiting: 3, Total: 3}, first)
	assert.Equal(t, 1, f.cache.sets)

	_, err = f.tracking.Summary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.sets, "second read is served from the cache")

	_, err = f.queue.Cancel(f.ctx, 2, "changed mind")
	require.NoError(t, err)

	after, err := f.tracking.Summary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Waiting)
	assert.Equal(t, 2, f.cache.sets)
}

func TestSummarySurvivesCacheFailure(t *testing.T) {
	f := newFixture(t)
	f.cache.getErr = errors.New("redis down")

	summary, err := f.tracking.Summary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	_, err := f.queue.MarkReady(f.ctx, 1, "bob")
	require.NoError(t, err)

	history, err := f.tracking.History(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.QueueWaiting, history[0].ToStatus)
	assert.Equal(t, domain.QueueReady, history[1].ToStatus)
	assert.Equal(t, "bob", history[1].ChangedBy)
}

func TestPreparersStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.queue.StartPreparation(f.ctx, 1, "alice")
	require.NoError(t, err)
	_, err = f.queue.MarkReady(f.ctx, 1, "alice")
	require.NoError(t, err)

	resp, err := f.tracking.PreparersStatus(f.ctx)
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, "alice", resp[0].Name)
	assert.Equal(t, domain.PreparerOnline, resp[0].Status)
	assert.Equal(t, 1, resp[0].OrdersPrepared)

	f.clock.now = t0.Add(11 * time.Minute)
	resp, err = f.tracking.PreparersStatus(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PreparerOffline, resp[0].Status)
}
