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

type PreparerRepository struct {
	mu        sync.Mutex
	preparers map[string]*domain.Preparer
	nextID    int64
}

func NewPreparerRepository() *PreparerRepository {
	return &PreparerRepository{preparers: make(map[string]*domain.Preparer)}
}

var _ interfaces.PreparerRepository = (*PreparerRepository)(nil)

func (r *PreparerRepository) Touch(ctx context.Context, name string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.preparers[name]; ok {
		p.Touch(now)
		return nil
	}

	p, err := domain.NewPreparer(name, now)
	if err != nil {
		return err
	}
	r.nextID++
	p.ID = r.nextID
	r.preparers[name] = p
	return nil
}

func (r *PreparerRepository) IncrementOrdersPrepared(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.preparers[name]
	if !ok {
		return fmt.Errorf("preparer %s: %w", name, domain.ErrNotFound)
	}
	p.OrdersPrepared++
	return nil
}

func (r *PreparerRepository) SetOffline(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.preparers[name]
	if !ok {
		return fmt.Errorf("preparer %s: %w", name, domain.ErrNotFound)
	}
	p.SetOffline()
	return nil
}

func (r *PreparerRepository) ListAll(ctx context.Context) ([]*domain.Preparer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Preparer, 0, len(r.preparers))
	for _, p := range r.preparers {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
