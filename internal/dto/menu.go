package dto

import (
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/tableside/internal/entity"
)

// MenuItemResponse represents a menu item on the wire.
type MenuItemResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Available   bool            `json:"available"`
}

// FromMenuItem converts an entity into its transport form.
func FromMenuItem(item entity.MenuItem) MenuItemResponse {
	return MenuItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Price:       item.Price,
		Category:    item.Category,
		Available:   item.Available,
	}
}

// FromMenuItems converts a list of entities.
func FromMenuItems(items []entity.MenuItem) []MenuItemResponse {
	out := make([]MenuItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, FromMenuItem(item))
	}
	return out
}

// ToMenuItem converts the wire form back into an entity.
func (m MenuItemResponse) ToMenuItem() entity.MenuItem {
	return entity.MenuItem{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Category:    m.Category,
		Available:   m.Available,
	}
}
