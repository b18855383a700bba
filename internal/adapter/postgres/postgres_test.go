package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"serialization failure", &pgconn.PgError{Code: "40001", Message: "could not serialize access"}, domain.ErrTransientStore},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrTransientStore},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrTransientStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, "order %d", 7)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, strings.HasPrefix(err.Error(), "order 7"))
		})
	}

	plain := errors.New("connection reset")
	err := classify(plain, "query")
	assert.ErrorIs(t, err, plain)
	assert.False(t, errors.Is(err, domain.ErrTransientStore))
	assert.NoError(t, classify(nil, "query"))
}

type fakeTag int64

func (t fakeTag) RowsAffected() int64 { return int64(t) }

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *domain.OrderStatus:
			*p = r.values[i].(domain.OrderStatus)
		case *int64:
			*p = r.values[i].(int64)
		}
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// fakeTx answers QueryRow from a queue of rows and records Exec calls.
type fakeTx struct {
	rows  []fakeRow
	execs []execCall
	tag   fakeTag
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	r := f.rows[0]
	f.rows = f.rows[1:]
	return r
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return f.tag, nil
}

func (f *fakeTx) Commit(ctx context.Context) error   { return nil }
func (f *fakeTx) Rollback(ctx context.Context) error { return nil }

func TestSetOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("updates active order", func(t *testing.T) {
		tx := &fakeTx{rows: []fakeRow{{values: []any{domain.OrderWaiting}}}, tag: 1}
		ok, err := (&orderGateway{tx: tx}).SetOrderStatus(ctx, 4, domain.OrderPreparing)

		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, tx.execs, 1)
		assert.Equal(t, []any{domain.OrderPreparing, int64(4)}, tx.execs[0].args)
	})

	t.Run("refuses cancelled order", func(t *testing.T) {
		tx := &fakeTx{rows: []fakeRow{{values: []any{domain.OrderCancelled}}}}
		ok, err := (&orderGateway{tx: tx}).SetOrderStatus(ctx, 4, domain.OrderReady)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, tx.execs)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		tx := &fakeTx{rows: []fakeRow{{values: []any{domain.OrderReady}}}}
		ok, err := (&orderGateway{tx: tx}).SetOrderStatus(ctx, 4, domain.OrderReady)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, tx.execs)
	})

	t.Run("missing order", func(t *testing.T) {
		tx := &fakeTx{rows: []fakeRow{{err: pgx.ErrNoRows}}}
		_, err := (&orderGateway{tx: tx}).SetOrderStatus(ctx, 4, domain.OrderReady)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAssignPositionsChecksEveryEntryExists(t *testing.T) {
	ctx := context.Background()

	tx := &fakeTx{tag: 3}
	require.NoError(t, (&queueTx{tx: tx}).AssignPositions(ctx, []int64{9, 4, 6}))
	require.Len(t, tx.execs, 2)
	assert.Contains(t, tx.execs[0].sql, "position = 0")
	assert.Equal(t, []any{[]int64{9, 4, 6}}, tx.execs[1].args)

	short := &fakeTx{tag: 2}
	err := (&queueTx{tx: short}).AssignPositions(ctx, []int64{9, 4, 6})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, short.execs, 1)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	body, err := migrationsFS.ReadFile("migrations/00002_queue.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "+goose Up")
	assert.Contains(t, string(body), "WHERE status = 'waiting' AND position > 0")
}
