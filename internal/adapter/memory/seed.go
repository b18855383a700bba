package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

type seedFile struct {
	Orders []seedOrder `yaml:"orders"`
}

type seedOrder struct {
	ID       int64      `yaml:"id"`
	Priority string     `yaml:"priority"`
	Payment  string     `yaml:"payment"`
	Status   string     `yaml:"status"`
	Arrival  time.Time  `yaml:"arrival"`
	Items    []seedItem `yaml:"items"`
}

type seedItem struct {
	Kind     string `yaml:"kind"`
	Quantity int    `yaml:"quantity"`
}

// SeedFromFile loads orders from a YAML file into the store.
func SeedFromFile(store *Store, path string, now time.Time) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Seed(store, data, now)
}

// Seed loads orders from YAML. Missing fields default to a paid, pending, normal order arriving at now.
func Seed(store *Store, data []byte, now time.Time) (int, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, o := range f.Orders {
		if o.ID <= 0 {
			return 0, fmt.Errorf("seed order #%d: id must be positive: %w", i+1, domain.ErrConfig)
		}

		meta := domain.OrderMeta{
			OrderID:       o.ID,
			PriorityClass: domain.PriorityClass(withDefault(o.Priority, string(domain.PriorityNormal))),
			ArrivalAt:     o.Arrival,
			PaymentStatus: domain.PaymentStatus(withDefault(o.Payment, string(domain.PaymentPaid))),
			Status:        domain.OrderStatus(withDefault(o.Status, string(domain.OrderPending))),
		}
		if meta.ArrivalAt.IsZero() {
			meta.ArrivalAt = now
		}
		if meta.PriorityClass != domain.PriorityQuick && meta.PriorityClass != domain.PriorityNormal {
			return 0, fmt.Errorf("seed order %d: unknown priority %q: %w", o.ID, o.Priority, domain.ErrConfig)
		}

		items := make([]domain.LineItem, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, domain.LineItem{Kind: domain.ItemKind(it.Kind), Quantity: it.Quantity})
		}
		store.PutOrder(meta, items)
	}
	return len(f.Orders), nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
