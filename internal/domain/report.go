package domain

import "time"

type Summary struct {
	Waiting   int `json:"waiting"`
	Preparing int `json:"preparing"`
	Ready     int `json:"ready"`
	Total     int `json:"total"`
}

type StatusCounts struct {
	Waiting   int `json:"waiting"`
	Preparing int `json:"preparing"`
	Ready     int `json:"ready"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

func (c *StatusCounts) Add(s QueueStatus) {
	switch s {
	case QueueWaiting:
		c.Waiting++
	case QueuePreparing:
		c.Preparing++
	case QueueReady:
		c.Ready++
	case QueueCompleted:
		c.Completed++
	case QueueCancelled:
		c.Cancelled++
	}
}

// IntegrityReport is the result of a read-only integrity check.
type IntegrityReport struct {
	HasIssues bool         `json:"has_issues"`
	Issues    []string     `json:"issues"`
	Counts    StatusCounts `json:"counts"`
	CheckedAt time.Time    `json:"checked_at"`
}

// ReconcileReport lists every correction one reconciliation pass applied.
type ReconcileReport struct {
	Enqueued         []int64         `json:"enqueued"`
	OrdersSynced     []int64         `json:"orders_synced"`
	EntriesCompleted []int64         `json:"entries_completed"`
	EntriesReadied   []int64         `json:"entries_readied"`
	Skipped          []int64         `json:"skipped"`
	PositionsFixed   int             `json:"positions_fixed"`
	Reordered        bool            `json:"reordered"`
	Integrity        IntegrityReport `json:"integrity"`
	Timestamp        time.Time       `json:"timestamp"`
}

func (r *ReconcileReport) Corrections() int {
	return len(r.Enqueued) + len(r.OrdersSynced) + len(r.EntriesCompleted) + len(r.EntriesReadied)
}

// RecomputeReport is returned by a full reorder and ETA refresh.
type RecomputeReport struct {
	Reordered       bool      `json:"reordered"`
	WaitingUpdated  int       `json:"waiting_updated"`
	IntegrityIssues []string  `json:"integrity_issues"`
	HasIssues       bool      `json:"has_issues"`
	Timestamp       time.Time `json:"timestamp"`
}
