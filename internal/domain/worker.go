package domain

import (
	"errors"
	"time"
)

// Preparer represents a barista who prepares queue entries
type Preparer struct {
	ID             int64
	Name           string
	Status         PreparerStatus
	LastSeen       time.Time
	OrdersPrepared int
	CreatedAt      time.Time
}

type PreparerStatus string

const (
	PreparerOnline  PreparerStatus = "online"
	PreparerOffline PreparerStatus = "offline"
)

func NewPreparer(name string, now time.Time) (*Preparer, error) {
	if name == "" {
		return nil, errors.New("preparer name is required")
	}

	return &Preparer{
		Name:      name,
		Status:    PreparerOnline,
		LastSeen:  now,
		CreatedAt: now,
	}, nil
}

// Touch records activity of the preparer
func (p *Preparer) Touch(now time.Time) {
	p.LastSeen = now
	p.Status = PreparerOnline
}

func (p *Preparer) SetOffline() {
	p.Status = PreparerOffline
}

// IsOnline checks if the preparer has been active within timeout
func (p *Preparer) IsOnline(now time.Time, timeout time.Duration) bool {
	if p.Status == PreparerOffline {
		return false
	}
	return now.Sub(p.LastSeen) <= timeout
}
