package queue

import (
	"sort"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

// InsertionPosition picks the 1-based position for a new order among the waiting entries,
// which must be given in position order. Quick orders go in front of every normal order and
// behind quick orders that arrived earlier. Normal orders go right behind the last quick order,
// or by arrival among normals when there is no quick order. Missing metadata appends at the end.
func InsertionPosition(waiting []*domain.QueueEntry, metas map[int64]*domain.OrderMeta, incoming *domain.OrderMeta) int {
	end := len(waiting) + 1
	if len(waiting) == 0 {
		return 1
	}
	if incoming == nil {
		return end
	}

	if incoming.PriorityClass == domain.PriorityQuick {
		for i, e := range waiting {
			other, ok := metas[e.OrderID]
			if !ok {
				return end
			}
			if other.PriorityClass != domain.PriorityQuick {
				return i + 1
			}
			if incoming.ArrivalAt.Before(other.ArrivalAt) {
				return i + 1
			}
		}
		return end
	}

	lastQuick := 0
	for i, e := range waiting {
		other, ok := metas[e.OrderID]
		if !ok {
			return end
		}
		if other.PriorityClass == domain.PriorityQuick {
			lastQuick = i + 1
		}
	}
	if lastQuick > 0 {
		return lastQuick + 1
	}

	for i, e := range waiting {
		if incoming.ArrivalAt.Before(metas[e.OrderID].ArrivalAt) {
			return i + 1
		}
	}
	return end
}

type sortKey struct {
	rank    int
	arrival time.Time
}

func keyFor(e *domain.QueueEntry, metas map[int64]*domain.OrderMeta) sortKey {
	if m, ok := metas[e.OrderID]; ok {
		return sortKey{rank: m.PriorityClass.Rank(), arrival: m.ArrivalAt}
	}
	return sortKey{rank: domain.PriorityNormal.Rank(), arrival: e.CreatedAt}
}

// PriorityOrder returns the waiting entries stably sorted by (class rank, arrival).
// The input slice is left untouched.
func PriorityOrder(waiting []*domain.QueueEntry, metas map[int64]*domain.OrderMeta) []*domain.QueueEntry {
	target := make([]*domain.QueueEntry, len(waiting))
	copy(target, waiting)

	sort.SliceStable(target, func(i, j int) bool {
		a, b := keyFor(target[i], metas), keyFor(target[j], metas)
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.arrival.Before(b.arrival)
	})
	return target
}

// ArrivalOrder is the priority-unaware order used by position repair.
func ArrivalOrder(waiting []*domain.QueueEntry) []*domain.QueueEntry {
	target := make([]*domain.QueueEntry, len(waiting))
	copy(target, waiting)

	sort.SliceStable(target, func(i, j int) bool {
		if !target[i].CreatedAt.Equal(target[j].CreatedAt) {
			return target[i].CreatedAt.Before(target[j].CreatedAt)
		}
		return target[i].ID < target[j].ID
	})
	return target
}

func needsRenumber(ordered []*domain.QueueEntry) bool {
	for i, e := range ordered {
		if e.Position != i+1 {
			return true
		}
	}
	return false
}

func insertAt(entries []*domain.QueueEntry, entry *domain.QueueEntry, position int) []*domain.QueueEntry {
	idx := position - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(entries) {
		idx = len(entries)
	}

	out := make([]*domain.QueueEntry, 0, len(entries)+1)
	out = append(out, entries[:idx]...)
	out = append(out, entry)
	return append(out, entries[idx:]...)
}
