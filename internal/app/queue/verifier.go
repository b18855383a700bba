package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

// Verify checks positional invariants of a queue snapshot. It never modifies entries.
func Verify(entries []*domain.QueueEntry, now time.Time) *domain.IntegrityReport {
	report := &domain.IntegrityReport{Issues: []string{}, CheckedAt: now}

	var waiting []*domain.QueueEntry
	for _, e := range entries {
		report.Counts.Add(e.Status)

		switch {
		case e.Status.Terminal() && e.Position != 0:
			report.Issues = append(report.Issues,
				fmt.Sprintf("order %d is %s but holds position %d", e.OrderID, e.Status, e.Position))
		case e.Status == domain.QueueWaiting:
			waiting = append(waiting, e)
		}
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		return waiting[i].Position < waiting[j].Position
	})

	seen := make(map[int]int64, len(waiting))
	for _, e := range waiting {
		if prev, dup := seen[e.Position]; dup {
			report.Issues = append(report.Issues,
				fmt.Sprintf("orders %d and %d share waiting position %d", prev, e.OrderID, e.Position))
			continue
		}
		seen[e.Position] = e.OrderID
	}

	for i, e := range waiting {
		if e.Position != i+1 {
			report.Issues = append(report.Issues,
				fmt.Sprintf("waiting positions are not contiguous: expected %d, order %d has %d", i+1, e.OrderID, e.Position))
			break
		}
	}

	report.HasIssues = len(report.Issues) > 0
	return report
}

func (s *Service) VerifyIntegrity(ctx context.Context) (*domain.IntegrityReport, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	report := Verify(entries, s.now())
	if report.HasIssues {
		s.logger.Info("integrity_issues_found", fmt.Sprintf("Queue has %d integrity issues", len(report.Issues)), "", map[string]interface{}{
			"issues": report.Issues,
		})
	}
	return report, nil
}
