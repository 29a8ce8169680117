package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderEvent is an audit record of an order broadcast, written by the worker.
type OrderEvent struct {
	bun.BaseModel `bun:"table:order_events"`

	ID          int64     `bun:",pk,autoincrement"`
	Kind        string    `bun:"kind,notnull"`
	OrderID     string    `bun:"order_id,notnull"`
	OrderNumber int64     `bun:"order_number,notnull"`
	Status      string    `bun:"status,notnull"`
	Total       string    `bun:"total,notnull"`
	Payload     string    `bun:"payload"`
	OccurredAt  time.Time `bun:"occurred_at,notnull"`
	RecordedAt  time.Time `bun:"recorded_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
