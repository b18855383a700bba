package domain

import "time"

// QueueStatus is the lifecycle state of a queue entry.
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueuePreparing QueueStatus = "preparing"
	QueueReady     QueueStatus = "ready"
	QueueCompleted QueueStatus = "completed"
	QueueCancelled QueueStatus = "cancelled"
)

// AllQueueStatuses lists every queue status in lifecycle order.
var AllQueueStatuses = []QueueStatus{QueueWaiting, QueuePreparing, QueueReady, QueueCompleted, QueueCancelled}

func (s QueueStatus) Valid() bool {
	for _, v := range AllQueueStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Positioned reports whether entries in this status hold a queue position.
func (s QueueStatus) Positioned() bool {
	return s == QueueWaiting
}

// Terminal statuses are ready, completed and cancelled: they always carry position 0.
func (s QueueStatus) Terminal() bool {
	return s == QueueReady || s == QueueCompleted || s == QueueCancelled
}

// OrderStatus is the status of the external order aggregate.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderWaiting   OrderStatus = "waiting"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Closed orders are never moved to another status.
func (s OrderStatus) Closed() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Progress orders the open lifecycle: pending < waiting < preparing < ready < completed.
// Cancelled has no place in it and returns -1.
func (s OrderStatus) Progress() int {
	switch s {
	case OrderPending:
		return 0
	case OrderWaiting:
		return 1
	case OrderPreparing:
		return 2
	case OrderReady:
		return 3
	case OrderCompleted:
		return 4
	}
	return -1
}

// OrderStatusFor maps a queue status to the order status that must agree with it.
func OrderStatusFor(s QueueStatus) OrderStatus {
	switch s {
	case QueueWaiting:
		return OrderWaiting
	case QueuePreparing:
		return OrderPreparing
	case QueueReady:
		return OrderReady
	case QueueCompleted:
		return OrderCompleted
	case QueueCancelled:
		return OrderCancelled
	}
	return OrderPending
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PriorityClass decides scheduling precedence: quick orders go ahead of normal ones.
type PriorityClass string

const (
	PriorityQuick  PriorityClass = "quick"
	PriorityNormal PriorityClass = "normal"
)

// Rank is the first component of the scheduling sort key.
func (p PriorityClass) Rank() int {
	if p == PriorityQuick {
		return 0
	}
	return 1
}

// StatusLog represents a log entry for queue status changes
type StatusLog struct {
	ID         int64
	OrderID    int64
	FromStatus QueueStatus
	ToStatus   QueueStatus
	ChangedBy  string
	Note       *string
	ChangedAt  time.Time
}
