package tracking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/app/queue"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

type Options struct {
	// ReadyWindow limits the board to entries that became ready this recently.
	ReadyWindow     time.Duration
	PreparerTimeout time.Duration
	Now             func() time.Time
}

// Service answers read-only questions about the queue.
type Service struct {
	queue     interfaces.QueueService
	store     interfaces.QueueStore
	preparers interfaces.PreparerRepository
	cache     interfaces.SummaryCache
	logger    logger.Logger

	readyWindow     time.Duration
	preparerTimeout time.Duration
	now             func() time.Time
}

var _ interfaces.TrackingService = (*Service)(nil)

func NewService(
	queueService interfaces.QueueService,
	store interfaces.QueueStore,
	preparers interfaces.PreparerRepository,
	cache interfaces.SummaryCache,
	logger logger.Logger,
	opts Options,
) *Service {
	if opts.ReadyWindow <= 0 {
		opts.ReadyWindow = 15 * time.Minute
	}
	if opts.PreparerTimeout <= 0 {
		opts.PreparerTimeout = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		queue:           queueService,
		store:           store,
		preparers:       preparers,
		cache:           cache,
		logger:          logger,
		readyWindow:     opts.ReadyWindow,
		preparerTimeout: opts.PreparerTimeout,
		now:             opts.Now,
	}
}

// Summary serves from the cache when it can and refills it on a miss.
func (s *Service) Summary(ctx context.Context) (*domain.Summary, error) {
	var (
		generation int64
		refill     bool
	)
	if s.cache != nil {
		cached, gen, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.Warn("summary_cache_read_failed", "Falling back to the store", "", map[string]interface{}{"error": err.Error()})
		case ok:
			return cached, nil
		default:
			generation, refill = gen, true
		}
	}

	summary, err := s.queue.GetSummary(ctx)
	if err != nil {
		return nil, err
	}

	if refill {
		if err := s.cache.Set(ctx, generation, summary); err != nil {
			s.logger.Warn("summary_cache_write_failed", "Failed to cache queue summary", "", map[string]interface{}{"error": err.Error()})
		}
	}
	return summary, nil
}

func (s *Service) EntryStatus(ctx context.Context, orderID int64) (*interfaces.TrackingEntryResponse, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	now := s.now()
	for _, e := range entries {
		if e.OrderID != orderID {
			continue
		}

		resp := &interfaces.TrackingEntryResponse{
			OrderID:             e.OrderID,
			Status:              e.Status,
			Position:            e.Position,
			WaitMinutes:         queue.WaitMinutes(e, entries, now),
			EstimatedStart:      e.EstimatedStart,
			EstimatedCompletion: e.EstimatedCompletion,
			AssignedPreparer:    e.AssignedPreparer,
			UpdatedAt:           e.UpdatedAt,
		}
		if e.Status == domain.QueuePreparing {
			resp.RemainingMinutes = int(e.RemainingAt(now) / time.Minute)
			if e.ActualStart != nil {
				eta := e.ActualStart.Add(time.Duration(e.PreparationMinutes) * time.Minute)
				resp.EstimatedCompletion = &eta
			}
		}
		return resp, nil
	}

	return nil, fmt.Errorf("queue entry for order %d: %w", orderID, domain.ErrNotFound)
}

func (s *Service) Board(ctx context.Context) (*interfaces.QueueBoard, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	now := s.now()
	board := &interfaces.QueueBoard{
		Waiting:     []interfaces.BoardWaiting{},
		Preparing:   []interfaces.BoardPreparing{},
		Ready:       []interfaces.BoardReady{},
		GeneratedAt: now,
	}
	readySince := now.Add(-s.readyWindow)

	for _, e := range entries {
		switch e.Status {
		case domain.QueueWaiting:
			board.Waiting = append(board.Waiting, interfaces.BoardWaiting{
				OrderID:             e.OrderID,
				Position:            e.Position,
				CoffeeCount:         e.CoffeeCount,
				WaitMinutes:         queue.WaitMinutes(e, entries, now),
				EstimatedStart:      e.EstimatedStart,
				EstimatedCompletion: e.EstimatedCompletion,
			})

		case domain.QueuePreparing:
			var elapsed time.Duration
			if e.ActualStart != nil && now.After(*e.ActualStart) {
				elapsed = now.Sub(*e.ActualStart)
			}
			remaining := e.RemainingAt(now)
			board.Preparing = append(board.Preparing, interfaces.BoardPreparing{
				OrderID:          e.OrderID,
				CoffeeCount:      e.CoffeeCount,
				AssignedPreparer: e.AssignedPreparer,
				ElapsedSeconds:   int(elapsed / time.Second),
				RemainingSeconds: int(remaining / time.Second),
				IsTimeUp:         remaining == 0,
			})

		case domain.QueueReady:
			if e.ActualCompletion == nil || e.ActualCompletion.Before(readySince) {
				continue
			}
			board.Ready = append(board.Ready, interfaces.BoardReady{
				OrderID:        e.OrderID,
				CoffeeCount:    e.CoffeeCount,
				ReadyAt:        *e.ActualCompletion,
				MinutesWaiting: int(now.Sub(*e.ActualCompletion) / time.Minute),
			})
		}
	}

	sort.SliceStable(board.Waiting, func(i, j int) bool { return board.Waiting[i].Position < board.Waiting[j].Position })
	sort.SliceStable(board.Preparing, func(i, j int) bool {
		return board.Preparing[i].RemainingSeconds < board.Preparing[j].RemainingSeconds
	})
	sort.SliceStable(board.Ready, func(i, j int) bool { return board.Ready[i].ReadyAt.Before(board.Ready[j].ReadyAt) })

	return board, nil
}

func (s *Service) History(ctx context.Context, orderID int64) ([]*domain.StatusLog, error) {
	return s.store.StatusHistory(ctx, orderID)
}

func (s *Service) PreparersStatus(ctx context.Context) ([]*interfaces.TrackingPreparerResponse, error) {
	if s.preparers == nil {
		return []*interfaces.TrackingPreparerResponse{}, nil
	}

	preparers, err := s.preparers.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	resp := make([]*interfaces.TrackingPreparerResponse, 0, len(preparers))
	for _, p := range preparers {
		status := domain.PreparerOffline
		if p.IsOnline(now, s.preparerTimeout) {
			status = domain.PreparerOnline
		}

		resp = append(resp, &interfaces.TrackingPreparerResponse{
			Name:           p.Name,
			Status:         status,
			OrdersPrepared: p.OrdersPrepared,
			LastSeen:       p.LastSeen,
		})
	}
	return resp, nil
}
