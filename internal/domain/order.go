package domain

import "time"

// OrderMeta is the slice of the order aggregate the scheduler reads.
type OrderMeta struct {
	OrderID       int64
	PriorityClass PriorityClass
	ArrivalAt     time.Time
	PaymentStatus PaymentStatus
	Status        OrderStatus
}

func (m *OrderMeta) Paid() bool {
	return m.PaymentStatus == PaymentPaid
}

type ItemKind string

const (
	ItemCoffee ItemKind = "coffee"
	ItemBean   ItemKind = "bean"
	ItemOther  ItemKind = "other"
)

// LineItem is one typed line of an order.
type LineItem struct {
	Kind     ItemKind
	Quantity int
}

// CoffeeCount sums the quantities of coffee lines. Beans and other goods need no preparation.
func CoffeeCount(items []LineItem) int {
	total := 0
	for _, item := range items {
		if item.Kind == ItemCoffee && item.Quantity > 0 {
			total += item.Quantity
		}
	}
	return total
}
