package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

// Store keeps queue entries and orders in process memory.
// Transactions are serialized and work on a private copy that replaces the committed state on success,
// so readers always see the last commit and never wait for a running transaction.
type Store struct {
	writeMu sync.Mutex

	mu        sync.RWMutex
	committed *state

	hookMu          sync.Mutex
	setStatusHook   func(orderID int64, status domain.OrderStatus) (bool, error)
	failNextCommits int
}

type orderRecord struct {
	meta  domain.OrderMeta
	items []domain.LineItem
}

type state struct {
	entries   map[int64]*domain.QueueEntry
	orders    map[int64]*orderRecord
	logs      []*domain.StatusLog
	nextEntry int64
	nextLog   int64
}

func NewStore() *Store {
	return &Store{committed: &state{
		entries: make(map[int64]*domain.QueueEntry),
		orders:  make(map[int64]*orderRecord),
	}}
}

func (st *state) clone() *state {
	c := &state{
		entries:   make(map[int64]*domain.QueueEntry, len(st.entries)),
		orders:    make(map[int64]*orderRecord, len(st.orders)),
		logs:      make([]*domain.StatusLog, len(st.logs)),
		nextEntry: st.nextEntry,
		nextLog:   st.nextLog,
	}
	for id, e := range st.entries {
		c.entries[id] = e.Clone()
	}
	for id, o := range st.orders {
		items := make([]domain.LineItem, len(o.items))
		copy(items, o.items)
		c.orders[id] = &orderRecord{meta: o.meta, items: items}
	}
	copy(c.logs, st.logs)
	return c
}

// PutOrder registers or replaces an order.
func (s *Store) PutOrder(meta domain.OrderMeta, items []domain.LineItem) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	stored := make([]domain.LineItem, len(items))
	copy(stored, items)
	next.orders[meta.OrderID] = &orderRecord{meta: meta, items: stored}
	s.swap(next)
}

// Order returns the committed order metadata.
func (s *Store) Order(orderID int64) (domain.OrderMeta, bool) {
	o, ok := s.snapshot().orders[orderID]
	if !ok {
		return domain.OrderMeta{}, false
	}
	return o.meta, true
}

// PutEntry stores an entry as is, bypassing every check. Used to seed drifted state.
func (s *Store) PutEntry(entry *domain.QueueEntry) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	if entry.ID == 0 {
		next.nextEntry++
		entry.ID = next.nextEntry
	} else if entry.ID > next.nextEntry {
		next.nextEntry = entry.ID
	}
	next.entries[entry.OrderID] = entry.Clone()
	s.swap(next)
}

// OnSetOrderStatus replaces the default order status update.
func (s *Store) OnSetOrderStatus(hook func(orderID int64, status domain.OrderStatus) (bool, error)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.setStatusHook = hook
}

// FailNextCommits makes the next n commits fail with a transient error.
func (s *Store) FailNextCommits(n int) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.failNextCommits = n
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

func (s *Store) swap(next *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = next
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.QueueTx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{store: s, st: s.snapshot().clone()}
	if err := fn(ctx, t); err != nil {
		return err
	}

	if err := t.st.checkPositions(); err != nil {
		return err
	}

	s.hookMu.Lock()
	fail := s.failNextCommits > 0
	if fail {
		s.failNextCommits--
	}
	s.hookMu.Unlock()
	if fail {
		return fmt.Errorf("commit aborted: %w", domain.ErrTransientStore)
	}

	s.swap(t.st)
	return nil
}

// checkPositions mirrors the unique index on waiting positions.
func (st *state) checkPositions() error {
	taken := make(map[int]int64)
	for _, e := range st.entries {
		if e.Status != domain.QueueWaiting || e.Position == 0 {
			continue
		}
		if other, dup := taken[e.Position]; dup {
			return fmt.Errorf("orders %d and %d share waiting position %d: %w", other, e.OrderID, e.Position, domain.ErrIntegrityViolation)
		}
		taken[e.Position] = e.OrderID
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context) ([]*domain.QueueEntry, error) {
	return s.snapshot().list(nil), nil
}

func (s *Store) FindEntry(ctx context.Context, orderID int64) (*domain.QueueEntry, error) {
	return s.snapshot().find(orderID)
}

func (s *Store) StatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusLog, error) {
	var history []*domain.StatusLog
	for _, l := range s.snapshot().logs {
		if l.OrderID == orderID {
			c := *l
			history = append(history, &c)
		}
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("history of order %d: %w", orderID, domain.ErrNotFound)
	}
	return history, nil
}

func (s *Store) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	var deleted int64
	for orderID, e := range next.entries {
		if (e.Status == domain.QueueCompleted || e.Status == domain.QueueCancelled) && e.UpdatedAt.Before(cutoff) {
			delete(next.entries, orderID)
			deleted++
		}
	}
	s.swap(next)
	return deleted, nil
}

func (st *state) find(orderID int64) (*domain.QueueEntry, error) {
	e, ok := st.entries[orderID]
	if !ok {
		return nil, fmt.Errorf("queue entry for order %d: %w", orderID, domain.ErrNotFound)
	}
	return e.Clone(), nil
}

func (st *state) list(statuses []domain.QueueStatus) []*domain.QueueEntry {
	want := make(map[domain.QueueStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	out := make([]*domain.QueueEntry, 0, len(st.entries))
	for _, e := range st.entries {
		if len(want) == 0 || want[e.Status] {
			out = append(out, e.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type tx struct {
	store *Store
	st    *state
}

func (t *tx) FindEntry(ctx context.Context, orderID int64) (*domain.QueueEntry, error) {
	return t.st.find(orderID)
}

func (t *tx) ListEntries(ctx context.Context, statuses ...domain.QueueStatus) ([]*domain.QueueEntry, error) {
	return t.st.list(statuses), nil
}

func (t *tx) CreateEntry(ctx context.Context, entry *domain.QueueEntry) error {
	if _, exists := t.st.entries[entry.OrderID]; exists {
		return fmt.Errorf("queue entry for order %d: %w", entry.OrderID, domain.ErrAlreadyExists)
	}
	t.st.nextEntry++
	entry.ID = t.st.nextEntry
	t.st.entries[entry.OrderID] = entry.Clone()
	return nil
}

func (t *tx) SaveEntry(ctx context.Context, entry *domain.QueueEntry) error {
	current, ok := t.st.entries[entry.OrderID]
	if !ok || current.ID != entry.ID {
		return fmt.Errorf("queue entry %d: %w", entry.ID, domain.ErrNotFound)
	}
	t.st.entries[entry.OrderID] = entry.Clone()
	return nil
}

func (t *tx) AssignPositions(ctx context.Context, entryIDs []int64) error {
	byID := make(map[int64]*domain.QueueEntry, len(t.st.entries))
	for _, e := range t.st.entries {
		byID[e.ID] = e
	}

	for _, id := range entryIDs {
		e, ok := byID[id]
		if !ok {
			return fmt.Errorf("queue entry %d: %w", id, domain.ErrNotFound)
		}
		e.Position = 0
	}
	for i, id := range entryIDs {
		byID[id].Position = i + 1
	}
	return nil
}

func (t *tx) LogTransition(ctx context.Context, log *domain.StatusLog) error {
	t.st.nextLog++
	c := *log
	c.ID = t.st.nextLog
	t.st.logs = append(t.st.logs, &c)
	log.ID = c.ID
	return nil
}

func (t *tx) Orders() interfaces.OrderGateway {
	return t
}

func (t *tx) GetOrderItems(ctx context.Context, orderID int64) ([]domain.LineItem, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	items := make([]domain.LineItem, len(o.items))
	copy(items, o.items)
	return items, nil
}

func (t *tx) GetOrderMeta(ctx context.Context, orderID int64) (*domain.OrderMeta, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	meta := o.meta
	return &meta, nil
}

// SetOrderStatus refuses to move a completed or cancelled order, like the Postgres gateway.
func (t *tx) SetOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (bool, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return false, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}

	if o.meta.Status == status {
		return true, nil
	}
	if o.meta.Status.Closed() {
		return false, nil
	}

	t.store.hookMu.Lock()
	hook := t.store.setStatusHook
	t.store.hookMu.Unlock()
	if hook != nil {
		accepted, err := hook(orderID, status)
		if err != nil || !accepted {
			return accepted, err
		}
	}

	o.meta.Status = status
	return true, nil
}

func (t *tx) ListPaidOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.OrderMeta, error) {
	var out []*domain.OrderMeta
	for _, o := range t.st.orders {
		if o.meta.Paid() && o.meta.Status == status {
			meta := o.meta
			out = append(out, &meta)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ArrivalAt.Equal(out[j].ArrivalAt) {
			return out[i].ArrivalAt.Before(out[j].ArrivalAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

var (
	_ interfaces.QueueStore   = (*Store)(nil)
	_ interfaces.QueueTx      = (*tx)(nil)
	_ interfaces.OrderGateway = (*tx)(nil)
)
