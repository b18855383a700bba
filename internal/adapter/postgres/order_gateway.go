package postgres

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

// orderGateway reads and updates the orders table inside the queue transaction.
type orderGateway struct {
	tx Tx
}

func (g *orderGateway) GetOrderItems(ctx context.Context, orderID int64) ([]domain.LineItem, error) {
	rows, err := g.tx.Query(ctx, `SELECT kind, quantity FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, classify(err, "failed to query items of order %d", orderID)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.Kind, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to read items of order %d", orderID)
	}
	return items, nil
}

func (g *orderGateway) GetOrderMeta(ctx context.Context, orderID int64) (*domain.OrderMeta, error) {
	query := `
		SELECT id, priority_class, created_at, payment_status, status
		FROM orders
		WHERE id = $1
	`
	var meta domain.OrderMeta
	err := g.tx.QueryRow(ctx, query, orderID).Scan(
		&meta.OrderID, &meta.PriorityClass, &meta.ArrivalAt, &meta.PaymentStatus, &meta.Status,
	)
	if err != nil {
		return nil, classify(err, "order %d", orderID)
	}
	return &meta, nil
}

// SetOrderStatus refuses to move an order out of completed or cancelled and reports that as false.
func (g *orderGateway) SetOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (bool, error) {
	var current domain.OrderStatus
	err := g.tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&current)
	if err != nil {
		return false, classify(err, "order %d", orderID)
	}

	if current == status {
		return true, nil
	}
	if current == domain.OrderCompleted || current == domain.OrderCancelled {
		return false, nil
	}

	_, err = g.tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, status, orderID)
	if err != nil {
		return false, classify(err, "failed to update status of order %d", orderID)
	}
	return true, nil
}

func (g *orderGateway) ListPaidOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.OrderMeta, error) {
	query := `
		SELECT id, priority_class, created_at, payment_status, status
		FROM orders
		WHERE payment_status = 'paid' AND status = $1
		ORDER BY created_at, id
	`
	rows, err := g.tx.Query(ctx, query, status)
	if err != nil {
		return nil, classify(err, "failed to list paid orders")
	}
	defer rows.Close()

	var orders []*domain.OrderMeta
	for rows.Next() {
		var meta domain.OrderMeta
		if err := rows.Scan(&meta.OrderID, &meta.PriorityClass, &meta.ArrivalAt, &meta.PaymentStatus, &meta.Status); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &meta)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to read paid orders")
	}
	return orders, nil
}
