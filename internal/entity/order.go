package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity bounds the quantity of a single line, merged duplicates included.
const MaxLineQuantity = 999

// LineItem is a point-in-time copy of a menu item plus the ordered quantity.
type LineItem struct {
	ItemID   string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Subtotal returns price multiplied by quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a customer order held by the in-memory order store.
type Order struct {
	ID            string
	Number        int64
	Items         []LineItem
	CustomerName  string
	CustomerPhone string
	Total         decimal.Decimal
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy so callers never share the items slice with the store.
func (o Order) Clone() Order {
	cp := o
	if o.Items != nil {
		cp.Items = make([]LineItem, len(o.Items))
		copy(cp.Items, o.Items)
	}
	return cp
}

// SumLineItems totals price x quantity over items.
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
