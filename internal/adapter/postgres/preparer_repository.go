package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

type preparerRepository struct {
	db DB
}

func NewPreparerRepository(db DB) interfaces.PreparerRepository {
	return &preparerRepository{db: db}
}

// Touch registers the preparer on first sight and refreshes last_seen afterwards.
func (r *preparerRepository) Touch(ctx context.Context, name string, now time.Time) error {
	p, err := domain.NewPreparer(name, now)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO preparers (name, status, last_seen, orders_prepared, created_at)
		VALUES ($1, $2, $3, 0, $3)
		ON CONFLICT (name) DO UPDATE
		SET status = EXCLUDED.status, last_seen = EXCLUDED.last_seen
	`
	if _, err := r.db.Exec(ctx, query, p.Name, p.Status, p.LastSeen); err != nil {
		return classify(err, "failed to touch preparer %s", name)
	}
	return nil
}

func (r *preparerRepository) IncrementOrdersPrepared(ctx context.Context, name string) error {
	query := `
		UPDATE preparers
		SET orders_prepared = orders_prepared + 1
		WHERE name = $1
	`
	tag, err := r.db.Exec(ctx, query, name)
	if err != nil {
		return classify(err, "failed to increment orders prepared")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("preparer %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

func (r *preparerRepository) SetOffline(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE preparers SET status = $1 WHERE name = $2`, domain.PreparerOffline, name)
	if err != nil {
		return classify(err, "failed to set preparer %s offline", name)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("preparer %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

func (r *preparerRepository) ListAll(ctx context.Context) ([]*domain.Preparer, error) {
	query := `
		SELECT id, name, status, last_seen, orders_prepared, created_at
		FROM preparers
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, classify(err, "failed to list preparers")
	}
	defer rows.Close()

	var preparers []*domain.Preparer
	for rows.Next() {
		var p domain.Preparer
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.LastSeen, &p.OrdersPrepared, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preparer: %w", err)
		}
		preparers = append(preparers, &p)
	}
	return preparers, rows.Err()
}
