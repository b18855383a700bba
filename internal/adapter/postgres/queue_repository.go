package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

const entryColumns = `id, order_id, position, status, coffee_count, preparation_minutes,
	estimated_start, estimated_completion, actual_start, actual_completion,
	assigned_preparer, cancel_reason, created_at, updated_at`

type queueStore struct {
	db DB
}

func NewQueueStore(db DB) interfaces.QueueStore {
	return &queueStore{db: db}
}

// WithTx runs fn in a SERIALIZABLE transaction and commits only when fn succeeds.
func (s *queueStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.QueueTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return classify(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &queueTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err, "failed to commit transaction")
	}
	return nil
}

func (s *queueStore) ListEntries(ctx context.Context) ([]*domain.QueueEntry, error) {
	rows, err := s.db.Query(ctx, `SELECT `+entryColumns+` FROM queue_entries ORDER BY position, id`)
	if err != nil {
		return nil, classify(err, "failed to list queue entries")
	}
	return scanEntries(rows)
}

func (s *queueStore) FindEntry(ctx context.Context, orderID int64) (*domain.QueueEntry, error) {
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE order_id = $1`, orderID)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, classify(err, "queue entry for order %d", orderID)
	}
	return entry, nil
}

func (s *queueStore) StatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusLog, error) {
	query := `
		SELECT id, order_id, from_status, to_status, changed_by, note, changed_at
		FROM queue_status_log
		WHERE order_id = $1
		ORDER BY changed_at, id
	`
	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, classify(err, "failed to query history of order %d", orderID)
	}
	defer rows.Close()

	var history []*domain.StatusLog
	for rows.Next() {
		var l domain.StatusLog
		if err := rows.Scan(&l.ID, &l.OrderID, &l.FromStatus, &l.ToStatus, &l.ChangedBy, &l.Note, &l.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		history = append(history, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to read history of order %d", orderID)
	}

	if len(history) == 0 {
		return nil, fmt.Errorf("history of order %d: %w", orderID, domain.ErrNotFound)
	}
	return history, nil
}

func (s *queueStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM queue_entries
		WHERE status IN ('completed', 'cancelled') AND updated_at < $1
	`
	tag, err := s.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, classify(err, "failed to purge terminal entries")
	}
	return tag.RowsAffected(), nil
}

type queueTx struct {
	tx Tx
}

func (t *queueTx) FindEntry(ctx context.Context, orderID int64) (*domain.QueueEntry, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE order_id = $1 FOR UPDATE`, orderID)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, classify(err, "queue entry for order %d", orderID)
	}
	return entry, nil
}

func (t *queueTx) ListEntries(ctx context.Context, statuses ...domain.QueueStatus) ([]*domain.QueueEntry, error) {
	var (
		rows Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = t.tx.Query(ctx, `SELECT `+entryColumns+` FROM queue_entries ORDER BY position, id FOR UPDATE`)
	} else {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		rows, err = t.tx.Query(ctx,
			`SELECT `+entryColumns+` FROM queue_entries WHERE status = ANY($1) ORDER BY position, id FOR UPDATE`, names)
	}
	if err != nil {
		return nil, classify(err, "failed to list queue entries")
	}
	return scanEntries(rows)
}

func (t *queueTx) CreateEntry(ctx context.Context, entry *domain.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (order_id, position, status, coffee_count, preparation_minutes,
		                           estimated_start, estimated_completion, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := t.tx.QueryRow(ctx, query,
		entry.OrderID, entry.Position, entry.Status, entry.CoffeeCount, entry.PreparationMinutes,
		entry.EstimatedStart, entry.EstimatedCompletion, entry.CreatedAt, entry.UpdatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return classify(err, "failed to insert queue entry for order %d", entry.OrderID)
	}
	return nil
}

func (t *queueTx) SaveEntry(ctx context.Context, entry *domain.QueueEntry) error {
	query := `
		UPDATE queue_entries
		SET position = $1, status = $2, estimated_start = $3, estimated_completion = $4,
		    actual_start = $5, actual_completion = $6, assigned_preparer = $7,
		    cancel_reason = $8, updated_at = $9
		WHERE id = $10
	`
	tag, err := t.tx.Exec(ctx, query,
		entry.Position, entry.Status, entry.EstimatedStart, entry.EstimatedCompletion,
		entry.ActualStart, entry.ActualCompletion, entry.AssignedPreparer,
		entry.CancelReason, entry.UpdatedAt, entry.ID,
	)
	if err != nil {
		return classify(err, "failed to update queue entry %d", entry.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queue entry %d: %w", entry.ID, domain.ErrNotFound)
	}
	return nil
}

// AssignPositions zeroes the slots first so the partial unique index never sees two waiting entries on one position.
func (t *queueTx) AssignPositions(ctx context.Context, entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}

	tag, err := t.tx.Exec(ctx, `UPDATE queue_entries SET position = 0 WHERE id = ANY($1)`, entryIDs)
	if err != nil {
		return classify(err, "failed to clear positions")
	}
	if tag.RowsAffected() != int64(len(entryIDs)) {
		return fmt.Errorf("assign positions: %d of %d entries found: %w", tag.RowsAffected(), len(entryIDs), domain.ErrNotFound)
	}

	query := `
		UPDATE queue_entries q
		SET position = v.pos::int
		FROM unnest($1::bigint[]) WITH ORDINALITY AS v(id, pos)
		WHERE q.id = v.id
	`
	if _, err := t.tx.Exec(ctx, query, entryIDs); err != nil {
		return classify(err, "failed to assign positions")
	}
	return nil
}

func (t *queueTx) LogTransition(ctx context.Context, log *domain.StatusLog) error {
	query := `
		INSERT INTO queue_status_log (order_id, from_status, to_status, changed_by, note, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := t.tx.QueryRow(ctx, query,
		log.OrderID, log.FromStatus, log.ToStatus, log.ChangedBy, log.Note, log.ChangedAt,
	).Scan(&log.ID)
	if err != nil {
		return classify(err, "failed to log transition of order %d", log.OrderID)
	}
	return nil
}

func (t *queueTx) Orders() interfaces.OrderGateway {
	return &orderGateway{tx: t.tx}
}

func scanEntry(row Row) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := row.Scan(
		&e.ID, &e.OrderID, &e.Position, &e.Status, &e.CoffeeCount, &e.PreparationMinutes,
		&e.EstimatedStart, &e.EstimatedCompletion, &e.ActualStart, &e.ActualCompletion,
		&e.AssignedPreparer, &e.CancelReason, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntries(rows Rows) ([]*domain.QueueEntry, error) {
	defer rows.Close()

	var entries []*domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to read queue entries")
	}
	return entries, nil
}
