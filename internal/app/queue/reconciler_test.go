package queue_test

import (
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

func (s *SchedulerSuite) setOrderStatus(id int64, status domain.OrderStatus) {
	meta, ok := s.store.Order(id)
	s.Require().True(ok)
	meta.Status = status
	s.store.PutOrder(meta, []domain.LineItem{{Kind: domain.ItemCoffee, Quantity: 1}})
}

func (s *SchedulerSuite) TestReconcileCleanQueueChangesNothing() {
	s.order(1, domain.PriorityNormal, 0, 1)
	s.enqueue(1)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Zero(report.Corrections())
	s.Zero(report.PositionsFixed)
	s.False(report.Reordered)
	s.False(report.Integrity.HasIssues)
}

func (s *SchedulerSuite) TestReconcileEnqueuesStrandedPreparingOrders() {
	s.order(1, domain.PriorityNormal, 0, 1)
	s.enqueue(1)
	s.order(2, domain.PriorityNormal, time.Minute, 2)
	s.setOrderStatus(2, domain.OrderPreparing)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Equal([]int64{2}, report.Enqueued)
	e := s.entry(2)
	s.Equal(domain.QueueWaiting, e.Status)
	s.Equal(2, e.Position)
	s.Equal(domain.OrderWaiting, s.orderStatus(2))
	s.False(report.Integrity.HasIssues)
}

func (s *SchedulerSuite) TestReconcileSkipsStrandedOrdersWithoutCoffee() {
	s.store.PutOrder(domain.OrderMeta{OrderID: 3, PriorityClass: domain.PriorityNormal, PaymentStatus: domain.PaymentPaid, Status: domain.OrderPreparing},
		[]domain.LineItem{{Kind: domain.ItemBean, Quantity: 2}})

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Empty(report.Enqueued)
	_, err = s.store.FindEntry(s.ctx, 3)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *SchedulerSuite) TestReconcileSyncsOrderStatuses() {
	for id := int64(1); id <= 3; id++ {
		s.order(id, domain.PriorityNormal, time.Duration(id)*time.Minute, 1)
		s.enqueue(id)
	}
	_, err := s.svc.StartPreparation(s.ctx, 2, "alice")
	s.Require().NoError(err)
	_, err = s.svc.MarkReady(s.ctx, 3, "alice")
	s.Require().NoError(err)

	s.setOrderStatus(1, domain.OrderPending)
	s.setOrderStatus(2, domain.OrderWaiting)
	s.setOrderStatus(3, domain.OrderPreparing)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.ElementsMatch([]int64{1, 2, 3}, report.OrdersSynced)
	s.Equal(domain.OrderWaiting, s.orderStatus(1))
	s.Equal(domain.OrderPreparing, s.orderStatus(2))
	s.Equal(domain.OrderReady, s.orderStatus(3))
}

func (s *SchedulerSuite) TestReconcileCompletesPickedUpEntries() {
	s.order(1, domain.PriorityNormal, 0, 1)
	s.enqueue(1)
	_, err := s.svc.MarkReady(s.ctx, 1, "bob")
	s.Require().NoError(err)
	s.setOrderStatus(1, domain.OrderCompleted)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Equal([]int64{1}, report.EntriesCompleted)
	s.Equal(domain.QueueCompleted, s.entry(1).Status)
}

func (s *SchedulerSuite) TestReconcileLeavesCancelledOrdersAlone() {
	s.order(1, domain.PriorityNormal, 0, 1)
	s.enqueue(1)
	s.setOrderStatus(1, domain.OrderCancelled)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Empty(report.OrdersSynced)
	s.Equal(domain.OrderCancelled, s.orderStatus(1))
}

func (s *SchedulerSuite) seedDrift() {
	for id := int64(1); id <= 3; id++ {
		class := domain.PriorityNormal
		if id == 3 {
			class = domain.PriorityQuick
		}
		s.order(id, class, time.Duration(id)*time.Minute, 1)
		s.setOrderStatus(id, domain.OrderWaiting)
	}
	// broken positions: a gap, and a ready entry still holding a slot
	s.store.PutEntry(&domain.QueueEntry{OrderID: 1, Status: domain.QueueWaiting, Position: 4, CoffeeCount: 1, PreparationMinutes: 5, CreatedAt: opening.Add(time.Minute)})
	s.store.PutEntry(&domain.QueueEntry{OrderID: 2, Status: domain.QueueWaiting, Position: 2, CoffeeCount: 1, PreparationMinutes: 5, CreatedAt: opening.Add(2 * time.Minute)})
	s.store.PutEntry(&domain.QueueEntry{OrderID: 3, Status: domain.QueueWaiting, Position: 7, CoffeeCount: 1, PreparationMinutes: 5, CreatedAt: opening.Add(3 * time.Minute)})
	s.order(4, domain.PriorityNormal, 0, 1)
	s.setOrderStatus(4, domain.OrderReady)
	s.store.PutEntry(&domain.QueueEntry{OrderID: 4, Status: domain.QueueReady, Position: 1, CoffeeCount: 1, PreparationMinutes: 5, CreatedAt: opening})
}

func (s *SchedulerSuite) TestReconcileRepairsPositionsThenAppliesPriority() {
	s.seedDrift()
	before, err := s.svc.VerifyIntegrity(s.ctx)
	s.Require().NoError(err)
	s.True(before.HasIssues)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Positive(report.PositionsFixed)
	s.True(report.Reordered)
	s.False(report.Integrity.HasIssues, "%v", report.Integrity.Issues)
	s.Equal(map[int64]int{3: 1, 1: 2, 2: 3, 4: 0}, s.positions())
	s.NotNil(s.entry(1).EstimatedStart)
}

func (s *SchedulerSuite) TestReconcileRepairOnlyUsesCreationOrder() {
	s.svc = s.newService(domain.PreparationPolicy{BaseMinutes: 5, PerAdditionalMinutes: 3}, false)
	s.seedDrift()

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.False(report.Reordered)
	s.False(report.Integrity.HasIssues)
	s.Equal(map[int64]int{1: 1, 2: 2, 3: 3, 4: 0}, s.positions())
}

func (s *SchedulerSuite) TestReconcileAdvancesEntryWhenOrderIsAlreadyReady() {
	s.order(1, domain.PriorityNormal, 0, 1)
	s.order(2, domain.PriorityNormal, time.Minute, 2)
	s.enqueue(1)
	s.enqueue(2)
	s.setOrderStatus(1, domain.OrderReady)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Equal([]int64{1}, report.EntriesReadied)
	s.Empty(report.OrdersSynced)
	s.Equal(domain.OrderReady, s.orderStatus(1))

	e := s.entry(1)
	s.Equal(domain.QueueReady, e.Status)
	s.Equal(0, e.Position)
	s.NotNil(e.ActualCompletion)

	next := s.entry(2)
	s.Equal(1, next.Position)
	s.Require().NotNil(next.EstimatedStart)
	s.Equal(opening, *next.EstimatedStart)
	s.False(report.Integrity.HasIssues, "%v", report.Integrity.Issues)

	history, err := s.store.StatusHistory(s.ctx, 1)
	s.Require().NoError(err)
	last := history[len(history)-1]
	s.Equal(domain.QueueReady, last.ToStatus)
	s.Equal("reconciler", last.ChangedBy)
}

func (s *SchedulerSuite) TestReconcileDoesNotMoveOrderBackwards() {
	s.order(1, domain.PriorityNormal, 0, 1)
	s.enqueue(1)
	s.setOrderStatus(1, domain.OrderPreparing)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Empty(report.OrdersSynced)
	s.Equal([]int64{1}, report.Skipped)
	s.Equal(domain.OrderPreparing, s.orderStatus(1))
	s.Equal(domain.QueueWaiting, s.entry(1).Status)
}

func (s *SchedulerSuite) TestReconcileNeverRevivesCancelledOrder() {
	s.order(1, domain.PriorityNormal, 0, 1)
	s.enqueue(1)
	_, err := s.svc.MarkReady(s.ctx, 1, "bob")
	s.Require().NoError(err)
	s.setOrderStatus(1, domain.OrderCancelled)

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Empty(report.OrdersSynced)
	s.Empty(report.EntriesCompleted)
	s.Equal([]int64{1}, report.Skipped)
	s.Equal(domain.OrderCancelled, s.orderStatus(1))
	s.Equal(domain.QueueReady, s.entry(1).Status)
}

func (s *SchedulerSuite) TestReconcileRefusedOrderDoesNotBlockOtherRepairs() {
	s.order(1, domain.PriorityNormal, 0, 1)
	s.enqueue(1)
	s.setOrderStatus(1, domain.OrderPending)
	s.order(2, domain.PriorityNormal, time.Minute, 1)
	s.setOrderStatus(2, domain.OrderPreparing)

	s.store.OnSetOrderStatus(func(orderID int64, status domain.OrderStatus) (bool, error) {
		return orderID != 1, nil
	})

	report, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)

	s.Equal([]int64{1}, report.Skipped)
	s.Equal([]int64{2}, report.Enqueued)
	s.Equal(domain.OrderPending, s.orderStatus(1))
	s.Equal(domain.QueueWaiting, s.entry(2).Status)
	s.Equal(domain.OrderWaiting, s.orderStatus(2))
}
