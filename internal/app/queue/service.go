package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
	"github.com/google/uuid"
)

const systemActor = "scheduler"

type Options struct {
	Policy             domain.PreparationPolicy
	MaxAttempts        int
	RetryBackoff       time.Duration
	ReorderAfterRepair bool
	Now                func() time.Time
}

// Service is the single entry point for every queue mutation.
type Service struct {
	store     interfaces.QueueStore
	preparers interfaces.PreparerRepository
	publisher interfaces.MessagePublisher
	cache     interfaces.SummaryCache
	logger    logger.Logger

	policy             domain.PreparationPolicy
	maxAttempts        int
	retryBackoff       time.Duration
	reorderAfterRepair bool
	now                func() time.Time
}

// NewService wires the scheduler. preparers, publisher and cache may be nil.
func NewService(
	store interfaces.QueueStore,
	preparers interfaces.PreparerRepository,
	publisher interfaces.MessagePublisher,
	cache interfaces.SummaryCache,
	logger logger.Logger,
	opts Options,
) (*Service, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:              store,
		preparers:          preparers,
		publisher:          publisher,
		cache:              cache,
		logger:             logger,
		policy:             opts.Policy,
		maxAttempts:        opts.MaxAttempts,
		retryBackoff:       opts.RetryBackoff,
		reorderAfterRepair: opts.ReorderAfterRepair,
		now:                opts.Now,
	}, nil
}

func (s *Service) Policy() domain.PreparationPolicy {
	return s.policy
}

// change is a committed transition waiting to be announced.
type change struct {
	entry *domain.QueueEntry
	from  domain.QueueStatus
	by    string
}

// run executes fn in a store transaction, retrying transient conflicts, and never lets a panic escape.
func (s *Service) run(ctx context.Context, action string, fn func(ctx context.Context, tx interfaces.QueueTx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: unexpected failure: %v", action, r)
			s.logger.Error("queue_panic_recovered", "Recovered from panic in queue operation", "", map[string]interface{}{
				"action": action,
			}, err)
		}
	}()

	for attempt := 1; ; attempt++ {
		err = s.store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrTransientStore) || attempt >= s.maxAttempts {
			return err
		}

		s.logger.Debug("db_transaction_retry", fmt.Sprintf("Retrying %s after conflict", action), "", map[string]interface{}{
			"attempt": attempt,
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryBackoff * time.Duration(attempt)):
		}
	}
}

func (s *Service) Enqueue(ctx context.Context, orderID int64) (*domain.QueueEntry, error) {
	entry, _, err := s.EnqueueOrder(ctx, orderID)
	return entry, err
}

// EnqueueOrder is Enqueue that also reports whether the entry was created by this call.
func (s *Service) EnqueueOrder(ctx context.Context, orderID int64) (*domain.QueueEntry, bool, error) {
	var (
		result  *domain.QueueEntry
		created bool
	)

	err := s.run(ctx, "enqueue", func(ctx context.Context, tx interfaces.QueueTx) error {
		created = false
		existing, err := tx.FindEntry(ctx, orderID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		entry, err := s.enqueueTx(ctx, tx, orderID, systemActor)
		if err != nil {
			return err
		}
		result, created = entry, true
		return nil
	})
	if err != nil {
		s.logFailure("queue_enqueue_failed", "Failed to enqueue order", orderID, err)
		return nil, false, err
	}

	if !created {
		s.logger.Debug("queue_enqueue_duplicate", fmt.Sprintf("Order %d is already queued", orderID), "", map[string]interface{}{
			"order_id": orderID,
			"status":   result.Status,
		})
		return result, false, nil
	}

	s.logger.Info("queue_enqueued", fmt.Sprintf("Order %d queued at position %d", orderID, result.Position), "", map[string]interface{}{
		"order_id":            orderID,
		"position":            result.Position,
		"coffee_count":        result.CoffeeCount,
		"preparation_minutes": result.PreparationMinutes,
	})
	s.afterCommit(ctx, change{entry: result, by: systemActor})
	return result, true, nil
}

// enqueueTx creates the entry for a paid order with coffee and settles the waiting set.
func (s *Service) enqueueTx(ctx context.Context, tx interfaces.QueueTx, orderID int64, actor string) (*domain.QueueEntry, error) {
	orders := tx.Orders()
	meta, err := orders.GetOrderMeta(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	if !meta.Paid() {
		return nil, fmt.Errorf("order %d payment is %s: %w", orderID, meta.PaymentStatus, domain.ErrNotEligible)
	}

	items, err := orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items of order %d: %w", orderID, err)
	}

	now := s.now()
	entry, err := domain.NewQueueEntry(orderID, domain.CoffeeCount(items), s.policy, now)
	if err != nil {
		return nil, err
	}

	waiting, err := tx.ListEntries(ctx, domain.QueueWaiting)
	if err != nil {
		return nil, err
	}
	position := InsertionPosition(waiting, s.loadMetas(ctx, orders, waiting), meta)

	if err := tx.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.settle(ctx, tx, insertAt(waiting, entry, position), now); err != nil {
		return nil, err
	}

	if meta.Status != domain.OrderWaiting {
		if err := s.syncOrder(ctx, orders, orderID, domain.OrderWaiting); err != nil {
			return nil, err
		}
	}

	if err := tx.LogTransition(ctx, &domain.StatusLog{
		OrderID:   orderID,
		ToStatus:  domain.QueueWaiting,
		ChangedBy: actor,
		ChangedAt: now,
	}); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *Service) StartPreparation(ctx context.Context, orderID int64, preparer string) (*domain.QueueEntry, error) {
	if preparer == "" {
		preparer = systemActor
	}

	var result *domain.QueueEntry
	err := s.run(ctx, "start_preparation", func(ctx context.Context, tx interfaces.QueueTx) error {
		entry, err := tx.FindEntry(ctx, orderID)
		if err != nil {
			return err
		}
		if entry.Status != domain.QueueWaiting {
			return fmt.Errorf("order %d is %s, only waiting entries can start: %w", orderID, entry.Status, domain.ErrInvalidTransition)
		}

		entry.AssignedPreparer = &preparer
		result, err = s.transition(ctx, tx, entry, domain.QueuePreparing, preparer, nil)
		return err
	})
	if err != nil {
		s.logFailure("queue_start_failed", "Failed to start preparation", orderID, err)
		return nil, err
	}

	if s.preparers != nil && preparer != systemActor {
		if err := s.preparers.Touch(ctx, preparer, s.now()); err != nil {
			s.logger.Error("preparer_touch_failed", "Failed to update preparer", "", map[string]interface{}{"preparer": preparer}, err)
		}
	}

	s.logger.Info("queue_preparing", fmt.Sprintf("Order %d is being prepared by %s", orderID, preparer), "", map[string]interface{}{
		"order_id": orderID,
		"preparer": preparer,
	})
	s.afterCommit(ctx, change{entry: result, from: domain.QueueWaiting, by: preparer})
	return result, nil
}

// MarkReady finishes preparation. The queue row and the order status commit together or not at all.
func (s *Service) MarkReady(ctx context.Context, orderID int64, staff string) (*domain.QueueEntry, error) {
	if staff == "" {
		staff = systemActor
	}

	var (
		result *domain.QueueEntry
		from   domain.QueueStatus
		noop   bool
	)
	err := s.run(ctx, "mark_ready", func(ctx context.Context, tx interfaces.QueueTx) error {
		noop = false
		entry, err := tx.FindEntry(ctx, orderID)
		if err != nil {
			return err
		}
		meta, err := tx.Orders().GetOrderMeta(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to load order %d: %w", orderID, err)
		}
		if entry.Status == domain.QueueReady || meta.Status == domain.OrderReady {
			result, noop = entry, true
			return nil
		}

		from = entry.Status
		result, err = s.transition(ctx, tx, entry, domain.QueueReady, staff, nil)
		return err
	})
	if err != nil {
		s.logFailure("queue_ready_failed", "Failed to mark order ready", orderID, err)
		return nil, err
	}
	if noop {
		s.logger.Debug("queue_ready_noop", fmt.Sprintf("Order %d is already ready", orderID), "", nil)
		return result, nil
	}

	if s.preparers != nil && result.AssignedPreparer != nil {
		if err := s.preparers.IncrementOrdersPrepared(ctx, *result.AssignedPreparer); err != nil {
			s.logger.Error("preparer_stats_failed", "Failed to increment preparer stats", "", map[string]interface{}{
				"preparer": *result.AssignedPreparer,
			}, err)
		}
	}

	s.logger.Info("queue_ready", fmt.Sprintf("Order %d is ready", orderID), "", map[string]interface{}{
		"order_id": orderID,
		"staff":    staff,
	})
	s.afterCommit(ctx, change{entry: result, from: from, by: staff})
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, orderID int64, reason string) (*domain.QueueEntry, error) {
	var (
		result *domain.QueueEntry
		from   domain.QueueStatus
	)
	err := s.run(ctx, "cancel", func(ctx context.Context, tx interfaces.QueueTx) error {
		entry, err := tx.FindEntry(ctx, orderID)
		if err != nil {
			return err
		}
		if entry.Status != domain.QueueWaiting && entry.Status != domain.QueuePreparing {
			return fmt.Errorf("order %d is %s and can no longer be cancelled: %w", orderID, entry.Status, domain.ErrInvalidTransition)
		}

		from = entry.Status
		var note *string
		if reason != "" {
			note = &reason
		}
		entry.CancelReason = note
		result, err = s.transition(ctx, tx, entry, domain.QueueCancelled, systemActor, note)
		return err
	})
	if err != nil {
		s.logFailure("queue_cancel_failed", "Failed to cancel order", orderID, err)
		return nil, err
	}

	s.logger.Info("queue_cancelled", fmt.Sprintf("Order %d cancelled", orderID), "", map[string]interface{}{
		"order_id": orderID,
		"reason":   reason,
	})
	s.afterCommit(ctx, change{entry: result, from: from, by: systemActor})
	return result, nil
}

func (s *Service) Complete(ctx context.Context, orderID int64, staff string) (*domain.QueueEntry, error) {
	if staff == "" {
		staff = systemActor
	}

	var result *domain.QueueEntry
	err := s.run(ctx, "complete", func(ctx context.Context, tx interfaces.QueueTx) error {
		entry, err := tx.FindEntry(ctx, orderID)
		if err != nil {
			return err
		}
		if entry.Status != domain.QueueReady {
			return fmt.Errorf("order %d is %s, only ready entries can be completed: %w", orderID, entry.Status, domain.ErrInvalidTransition)
		}

		result, err = s.transition(ctx, tx, entry, domain.QueueCompleted, staff, nil)
		return err
	})
	if err != nil {
		s.logFailure("queue_complete_failed", "Failed to complete order", orderID, err)
		return nil, err
	}

	s.logger.Info("queue_completed", fmt.Sprintf("Order %d picked up", orderID), "", map[string]interface{}{
		"order_id": orderID,
	})
	s.afterCommit(ctx, change{entry: result, from: domain.QueueReady, by: staff})
	return result, nil
}

// transition writes the entry, the order status and the log row, then resettles the waiting set.
func (s *Service) transition(ctx context.Context, tx interfaces.QueueTx, entry *domain.QueueEntry, to domain.QueueStatus, actor string, note *string) (*domain.QueueEntry, error) {
	now := s.now()
	from := entry.Status
	if err := entry.TransitionTo(to, now); err != nil {
		return nil, fmt.Errorf("order %d: %w", entry.OrderID, err)
	}
	if err := tx.SaveEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.syncOrder(ctx, tx.Orders(), entry.OrderID, domain.OrderStatusFor(to)); err != nil {
		return nil, err
	}

	if err := tx.LogTransition(ctx, &domain.StatusLog{
		OrderID:    entry.OrderID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  actor,
		Note:       note,
		ChangedAt:  now,
	}); err != nil {
		return nil, err
	}

	waiting, err := tx.ListEntries(ctx, domain.QueueWaiting)
	if err != nil {
		return nil, err
	}
	if err := s.settle(ctx, tx, waiting, now); err != nil {
		return nil, err
	}

	return entry, nil
}

// syncOrder sets the order status and treats a refusal as a failed transition.
func (s *Service) syncOrder(ctx context.Context, orders interfaces.OrderGateway, orderID int64, status domain.OrderStatus) error {
	ok, err := orders.SetOrderStatus(ctx, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to set order %d status to %s: %w", orderID, status, err)
	}
	if !ok {
		return fmt.Errorf("order %d refused status %s: %w", orderID, status, domain.ErrInvalidTransition)
	}
	return nil
}

// settle numbers the waiting entries 1..N in the given order and chains their estimates.
func (s *Service) settle(ctx context.Context, tx interfaces.QueueTx, ordered []*domain.QueueEntry, now time.Time) error {
	if needsRenumber(ordered) {
		ids := make([]int64, len(ordered))
		for i, e := range ordered {
			ids[i] = e.ID
			e.Position = i + 1
		}
		if err := tx.AssignPositions(ctx, ids); err != nil {
			return fmt.Errorf("failed to assign positions: %w", err)
		}
	}

	ScheduleTimes(ordered, now)
	for _, e := range ordered {
		if err := tx.SaveEntry(ctx, e); err != nil {
			return fmt.Errorf("failed to save estimates of order %d: %w", e.OrderID, err)
		}
	}
	return nil
}

func (s *Service) loadMetas(ctx context.Context, orders interfaces.OrderGateway, entries []*domain.QueueEntry) map[int64]*domain.OrderMeta {
	metas := make(map[int64]*domain.OrderMeta, len(entries))
	for _, e := range entries {
		meta, err := orders.GetOrderMeta(ctx, e.OrderID)
		if err != nil {
			s.logger.Debug("order_meta_missing", fmt.Sprintf("No metadata for order %d", e.OrderID), "", nil)
			continue
		}
		metas[e.OrderID] = meta
	}
	return metas
}

// Reorder sorts the waiting set by (priority class, arrival) and reports whether anything moved.
func (s *Service) Reorder(ctx context.Context) (bool, error) {
	var changed bool
	err := s.run(ctx, "reorder", func(ctx context.Context, tx interfaces.QueueTx) error {
		var err error
		changed, _, err = s.reorderTx(ctx, tx, s.now())
		return err
	})
	if err != nil {
		s.logger.Error("queue_reorder_failed", "Failed to reorder queue", "", nil, err)
		return false, err
	}

	if changed {
		s.logger.Info("queue_reordered", "Waiting entries reordered by priority", "", nil)
		s.invalidate(ctx)
	}
	return changed, nil
}

func (s *Service) reorderTx(ctx context.Context, tx interfaces.QueueTx, now time.Time) (bool, int, error) {
	waiting, err := tx.ListEntries(ctx, domain.QueueWaiting)
	if err != nil {
		return false, 0, err
	}

	target := PriorityOrder(waiting, s.loadMetas(ctx, tx.Orders(), waiting))
	changed := needsRenumber(target)
	if err := s.settle(ctx, tx, target, now); err != nil {
		return false, 0, err
	}
	return changed, len(target), nil
}

// RecomputeAllTimes reorders by priority, refreshes every estimate and verifies the result.
func (s *Service) RecomputeAllTimes(ctx context.Context) (*domain.RecomputeReport, error) {
	now := s.now()
	report := &domain.RecomputeReport{Timestamp: now}

	err := s.run(ctx, "recompute_times", func(ctx context.Context, tx interfaces.QueueTx) error {
		var err error
		report.Reordered, report.WaitingUpdated, err = s.reorderTx(ctx, tx, now)
		return err
	})
	if err != nil {
		s.logger.Error("queue_recompute_failed", "Failed to recompute queue times", "", nil, err)
		return nil, err
	}
	s.invalidate(ctx)

	integrity, err := s.VerifyIntegrity(ctx)
	if err != nil {
		return nil, err
	}
	report.HasIssues = integrity.HasIssues
	report.IntegrityIssues = integrity.Issues

	s.logger.Info("queue_times_recomputed", fmt.Sprintf("Recomputed estimates for %d waiting orders", report.WaitingUpdated), "", map[string]interface{}{
		"reordered":  report.Reordered,
		"has_issues": report.HasIssues,
	})
	return report, nil
}

func (s *Service) GetSummary(ctx context.Context) (*domain.Summary, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	summary := &domain.Summary{}
	for _, e := range entries {
		switch e.Status {
		case domain.QueueWaiting:
			summary.Waiting++
		case domain.QueuePreparing:
			summary.Preparing++
		case domain.QueueReady:
			summary.Ready++
		}
	}
	summary.Total = summary.Waiting + summary.Preparing + summary.Ready
	return summary, nil
}

func (s *Service) GetWaitTime(ctx context.Context, orderID int64) (int, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load queue: %w", err)
	}

	for _, e := range entries {
		if e.OrderID == orderID {
			return WaitMinutes(e, entries, s.now()), nil
		}
	}
	return 0, fmt.Errorf("queue entry for order %d: %w", orderID, domain.ErrNotFound)
}

// PurgeTerminal deletes completed and cancelled entries last touched before now minus retention.
func (s *Service) PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	deleted, err := s.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("queue_purge_failed", "Failed to purge finished entries", "", nil, err)
		return 0, err
	}

	s.logger.Info("queue_purged", fmt.Sprintf("Purged %d finished entries", deleted), "", map[string]interface{}{
		"cutoff": cutoff,
	})
	return deleted, nil
}

func (s *Service) afterCommit(ctx context.Context, c change) {
	s.invalidate(ctx)

	if s.publisher == nil {
		return
	}

	msg := interfaces.StatusUpdateMessage{
		MessageID:           uuid.NewString(),
		OrderID:             c.entry.OrderID,
		OldStatus:           c.from,
		NewStatus:           c.entry.Status,
		ChangedBy:           c.by,
		Timestamp:           s.now(),
		EstimatedCompletion: c.entry.EstimatedCompletion,
	}
	if c.entry.Status == domain.QueuePreparing && c.entry.ActualStart != nil {
		eta := c.entry.ActualStart.Add(time.Duration(c.entry.PreparationMinutes) * time.Minute)
		msg.EstimatedCompletion = &eta
	}

	// a failed notification never rolls back a committed transition
	if err := s.publisher.PublishStatusUpdate(ctx, msg); err != nil {
		s.logger.Error("status_publish_failed", "Failed to publish status update", "", map[string]interface{}{
			"order_id": c.entry.OrderID,
		}, err)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Error("summary_cache_invalidate_failed", "Failed to invalidate queue summary", "", nil, err)
	}
}

func (s *Service) logFailure(action, message string, orderID int64, err error) {
	details := map[string]interface{}{
		"order_id": orderID,
		"failure":  domain.Describe(err, nil).Kind,
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotEligible) {
		s.logger.Warn(action, message, "", details)
		return
	}
	s.logger.Error(action, message, "", details, err)
}
