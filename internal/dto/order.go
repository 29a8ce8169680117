package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/tableside/internal/entity"
)

// LineItem is the wire form of an order line.
type LineItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID            string          `json:"id"`
	OrderNumber   int64           `json:"orderNumber"`
	Items         []LineItem      `json:"items"`
	CustomerName  string          `json:"customerName"`
	CustomerPhone string          `json:"customerPhone"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CreateOrderResponse is returned to the customer after checkout.
type CreateOrderResponse struct {
	OrderNumber int64  `json:"orderNumber"`
	OrderID     string `json:"orderId"`
}

// OrderEvent is pushed to live listeners and relayed to the message bus.
type OrderEvent struct {
	Event string        `json:"event"`
	Order OrderResponse `json:"order"`
	At    time.Time     `json:"at"`
}

// OrderSnapshot is the first message of a live session.
type OrderSnapshot struct {
	Event  string          `json:"event"`
	Orders []OrderResponse `json:"orders"`
}

// FromOrder converts an entity into its transport form.
func FromOrder(order entity.Order) OrderResponse {
	items := make([]LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, LineItem{
			ID:       item.ItemID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	return OrderResponse{
		ID:            order.ID,
		OrderNumber:   order.Number,
		Items:         items,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		Total:         order.Total,
		Status:        string(order.Status),
		Timestamp:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

// FromOrders converts a list of entities.
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, FromOrder(order))
	}
	return out
}
