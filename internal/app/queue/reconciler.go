package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

const reconcilerActor = "reconciler"

// Reconcile repairs drift between order statuses and queue entries, then verifies the queue.
func (s *Service) Reconcile(ctx context.Context) (*domain.ReconcileReport, error) {
	var report *domain.ReconcileReport

	err := s.run(ctx, "reconcile", func(ctx context.Context, tx interfaces.QueueTx) error {
		report = &domain.ReconcileReport{Timestamp: s.now()}
		return s.reconcileTx(ctx, tx, report)
	})
	if err != nil {
		s.logger.Error("reconcile_failed", "Reconciliation failed", "", nil, err)
		return nil, err
	}

	if report.Corrections() > 0 || report.PositionsFixed > 0 || report.Reordered {
		s.logger.Info("reconcile_fixed", "Reconciliation applied corrections", "", map[string]interface{}{
			"enqueued":          report.Enqueued,
			"orders_synced":     report.OrdersSynced,
			"entries_completed": report.EntriesCompleted,
			"entries_readied":   report.EntriesReadied,
			"positions_fixed":   report.PositionsFixed,
			"reordered":         report.Reordered,
		})
		s.invalidate(ctx)
	}

	integrity, err := s.VerifyIntegrity(ctx)
	if err != nil {
		return nil, err
	}
	report.Integrity = *integrity
	return report, nil
}

func (s *Service) reconcileTx(ctx context.Context, tx interfaces.QueueTx, report *domain.ReconcileReport) error {
	orders := tx.Orders()
	now := s.now()

	stranded, err := orders.ListPaidOrders(ctx, domain.OrderPreparing)
	if err != nil {
		return fmt.Errorf("failed to list preparing orders: %w", err)
	}
	for _, meta := range stranded {
		_, err := tx.FindEntry(ctx, meta.OrderID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if _, err := s.enqueueTx(ctx, tx, meta.OrderID, reconcilerActor); err != nil {
			if errors.Is(err, domain.ErrNotEligible) {
				s.logger.Warn("reconcile_skip", fmt.Sprintf("Order %d cannot be queued", meta.OrderID), "", map[string]interface{}{
					"reason": err.Error(),
				})
				continue
			}
			return err
		}
		report.Enqueued = append(report.Enqueued, meta.OrderID)
	}

	active, err := tx.ListEntries(ctx, domain.QueueWaiting, domain.QueuePreparing, domain.QueueReady)
	if err != nil {
		return err
	}
	for _, entry := range active {
		if err := s.syncEntry(ctx, tx, entry, now, report); err != nil {
			return err
		}
	}

	all, err := tx.ListEntries(ctx, domain.AllQueueStatuses...)
	if err != nil {
		return err
	}
	if report.Corrections() == 0 && !Verify(all, now).HasIssues {
		return nil
	}

	report.PositionsFixed, err = s.fixPositions(ctx, tx, all, now)
	if err != nil {
		return err
	}

	if s.reorderAfterRepair {
		report.Reordered, _, err = s.reorderTx(ctx, tx, now)
		return err
	}
	waiting, err := tx.ListEntries(ctx, domain.QueueWaiting)
	if err != nil {
		return err
	}
	return s.settle(ctx, tx, waiting, now)
}

// syncEntry brings the order and its entry into agreement. Order statuses only move forward;
// an order that is already ahead of its entry pulls the entry along when that is a legal transition.
func (s *Service) syncEntry(ctx context.Context, tx interfaces.QueueTx, entry *domain.QueueEntry, now time.Time, report *domain.ReconcileReport) error {
	orders := tx.Orders()
	meta, err := orders.GetOrderMeta(ctx, entry.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("reconcile_orphan", fmt.Sprintf("Queue entry for missing order %d", entry.OrderID), "", nil)
		return nil
	}
	if err != nil {
		return err
	}

	want := domain.OrderStatusFor(entry.Status)
	if meta.Status == want {
		return nil
	}

	switch {
	case entry.Status == domain.QueueReady && meta.Status == domain.OrderCompleted:
		if err := s.advanceEntry(ctx, tx, entry, domain.QueueCompleted, meta.Status, now); err != nil {
			return err
		}
		report.EntriesCompleted = append(report.EntriesCompleted, entry.OrderID)
		return nil

	case entry.Status != domain.QueueReady && meta.Status == domain.OrderReady:
		if err := s.advanceEntry(ctx, tx, entry, domain.QueueReady, meta.Status, now); err != nil {
			return err
		}
		report.EntriesReadied = append(report.EntriesReadied, entry.OrderID)
		return nil

	case meta.Status.Closed(), meta.Status.Progress() > want.Progress():
		s.skipEntry(entry, meta.Status, report)
		return nil

	case entry.Status == domain.QueueWaiting && !meta.Paid():
		return nil
	}

	err = s.syncOrder(ctx, orders, entry.OrderID, want)
	if errors.Is(err, domain.ErrInvalidTransition) {
		s.skipEntry(entry, meta.Status, report)
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Debug("reconcile_order_synced", fmt.Sprintf("Order %d moved from %s to %s", entry.OrderID, meta.Status, want), "", nil)
	report.OrdersSynced = append(report.OrdersSynced, entry.OrderID)
	return nil
}

// advanceEntry moves an entry to the status its order already reached.
func (s *Service) advanceEntry(ctx context.Context, tx interfaces.QueueTx, entry *domain.QueueEntry, to domain.QueueStatus, orderStatus domain.OrderStatus, now time.Time) error {
	from := entry.Status
	if err := entry.TransitionTo(to, now); err != nil {
		return err
	}
	if err := tx.SaveEntry(ctx, entry); err != nil {
		return err
	}

	note := fmt.Sprintf("order already %s", orderStatus)
	return tx.LogTransition(ctx, &domain.StatusLog{
		OrderID:    entry.OrderID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  reconcilerActor,
		Note:       &note,
		ChangedAt:  now,
	})
}

func (s *Service) skipEntry(entry *domain.QueueEntry, orderStatus domain.OrderStatus, report *domain.ReconcileReport) {
	s.logger.Warn("reconcile_conflict", fmt.Sprintf("Order %d is %s while its entry is %s", entry.OrderID, orderStatus, entry.Status), "", map[string]interface{}{
		"order_id": entry.OrderID,
	})
	report.Skipped = append(report.Skipped, entry.OrderID)
}

// fixPositions zeroes positions outside the waiting set and renumbers waiting entries by creation time.
func (s *Service) fixPositions(ctx context.Context, tx interfaces.QueueTx, all []*domain.QueueEntry, now time.Time) (int, error) {
	fixed := 0
	var waiting []*domain.QueueEntry
	for _, e := range all {
		if e.Status == domain.QueueWaiting {
			waiting = append(waiting, e)
			continue
		}
		if e.Position != 0 {
			e.Position = 0
			e.UpdatedAt = now
			if err := tx.SaveEntry(ctx, e); err != nil {
				return fixed, err
			}
			fixed++
		}
	}

	ordered := ArrivalOrder(waiting)
	for i, e := range ordered {
		if e.Position != i+1 {
			fixed++
		}
	}
	return fixed, s.settle(ctx, tx, ordered, now)
}

// RunReconciler reconciles on every tick until ctx is cancelled.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.Reconcile(ctx)
			if err != nil {
				continue
			}
			if report.Integrity.HasIssues {
				s.logger.Warn("reconcile_unresolved", "Queue still has integrity issues after reconciliation", "", map[string]interface{}{
					"issues": report.Integrity.Issues,
				})
			} else {
				s.logger.Debug("reconcile_tick", "Queue is consistent", "", nil)
			}
		}
	}
}
