package entity

import "github.com/shopspring/decimal"

// MenuItem is an entry of the restaurant menu.
type MenuItem struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Available   bool
}

// Snapshot captures the item as a line item with the given quantity.
func (m MenuItem) Snapshot(quantity int) LineItem {
	return LineItem{
		ItemID:   m.ID,
		Name:     m.Name,
		Price:    m.Price,
		Quantity: quantity,
	}
}
