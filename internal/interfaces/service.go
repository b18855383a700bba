package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

// Service ports

// QueueService is the scheduler. Entries are addressed by the id of the order they belong to.
type QueueService interface {
	Enqueue(ctx context.Context, orderID int64) (*domain.QueueEntry, error)
	EnqueueOrder(ctx context.Context, orderID int64) (*domain.QueueEntry, bool, error)
	StartPreparation(ctx context.Context, orderID int64, preparer string) (*domain.QueueEntry, error)
	MarkReady(ctx context.Context, orderID int64, staff string) (*domain.QueueEntry, error)
	Cancel(ctx context.Context, orderID int64, reason string) (*domain.QueueEntry, error)
	Complete(ctx context.Context, orderID int64, staff string) (*domain.QueueEntry, error)

	Reorder(ctx context.Context) (bool, error)
	RecomputeAllTimes(ctx context.Context) (*domain.RecomputeReport, error)
	VerifyIntegrity(ctx context.Context) (*domain.IntegrityReport, error)
	Reconcile(ctx context.Context) (*domain.ReconcileReport, error)

	GetSummary(ctx context.Context) (*domain.Summary, error)
	GetWaitTime(ctx context.Context, orderID int64) (int, error)
}

type TrackingService interface {
	Summary(ctx context.Context) (*domain.Summary, error)
	EntryStatus(ctx context.Context, orderID int64) (*TrackingEntryResponse, error)
	Board(ctx context.Context) (*QueueBoard, error)
	History(ctx context.Context, orderID int64) ([]*domain.StatusLog, error)
	PreparersStatus(ctx context.Context) ([]*TrackingPreparerResponse, error)
}

// Tracking read models
type TrackingEntryResponse struct {
	OrderID             int64
	Status              domain.QueueStatus
	Position            int
	WaitMinutes         int
	RemainingMinutes    int
	EstimatedStart      *time.Time
	EstimatedCompletion *time.Time
	AssignedPreparer    *string
	UpdatedAt           time.Time
}

type QueueBoard struct {
	Waiting     []BoardWaiting
	Preparing   []BoardPreparing
	Ready       []BoardReady
	GeneratedAt time.Time
}

type BoardWaiting struct {
	OrderID             int64
	Position            int
	CoffeeCount         int
	WaitMinutes         int
	EstimatedStart      *time.Time
	EstimatedCompletion *time.Time
}

type BoardPreparing struct {
	OrderID          int64
	CoffeeCount      int
	AssignedPreparer *string
	ElapsedSeconds   int
	RemainingSeconds int
	// IsTimeUp means the estimate has passed and the barista has to confirm by hand.
	IsTimeUp bool
}

type BoardReady struct {
	OrderID        int64
	CoffeeCount    int
	ReadyAt        time.Time
	MinutesWaiting int
}

type TrackingPreparerResponse struct {
	Name           string
	Status         domain.PreparerStatus
	OrdersPrepared int
	LastSeen       time.Time
}
