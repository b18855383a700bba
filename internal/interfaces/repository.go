package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

// Storage ports (postgres and memory adapters)

// QueueStore owns queue entries. Every mutation runs inside WithTx; reads outside it see the last committed state.
type QueueStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx QueueTx) error) error
	ListEntries(ctx context.Context) ([]*domain.QueueEntry, error)
	FindEntry(ctx context.Context, orderID int64) (*domain.QueueEntry, error)
	StatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusLog, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type QueueTx interface {
	// FindEntry returns domain.ErrNotFound when the order has no entry.
	FindEntry(ctx context.Context, orderID int64) (*domain.QueueEntry, error)
	// ListEntries returns entries with the given statuses ordered by position, then id.
	ListEntries(ctx context.Context, statuses ...domain.QueueStatus) ([]*domain.QueueEntry, error)
	CreateEntry(ctx context.Context, entry *domain.QueueEntry) error
	SaveEntry(ctx context.Context, entry *domain.QueueEntry) error
	// AssignPositions clears the positions of the given entries, then numbers them 1..N in slice order.
	AssignPositions(ctx context.Context, entryIDs []int64) error
	LogTransition(ctx context.Context, log *domain.StatusLog) error
	Orders() OrderGateway
}

// OrderGateway is the queue's view of the order aggregate, bound to the enclosing transaction.
type OrderGateway interface {
	GetOrderItems(ctx context.Context, orderID int64) ([]domain.LineItem, error)
	GetOrderMeta(ctx context.Context, orderID int64) (*domain.OrderMeta, error)
	SetOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (bool, error)
	ListPaidOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.OrderMeta, error)
}

type PreparerRepository interface {
	Touch(ctx context.Context, name string, now time.Time) error
	IncrementOrdersPrepared(ctx context.Context, name string) error
	SetOffline(ctx context.Context, name string) error
	ListAll(ctx context.Context) ([]*domain.Preparer, error)
}

// SummaryCache holds the last computed queue summary. Get reports the generation a miss must be
// refilled under; Invalidate starts a new generation, so a refill computed before it is never served.
type SummaryCache interface {
	Get(ctx context.Context) (summary *domain.Summary, generation int64, ok bool, err error)
	Set(ctx context.Context, generation int64, summary *domain.Summary) error
	Invalidate(ctx context.Context) error
}
