package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Order struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	UserID      uuid.UUID   `json:"user_id" db:"user_id"`
	Status      OrderStatus `json:"status" db:"status"` // может быть устаревшим значением до прогона fix-statuses
	TotalAmount float64     `json:"total_amount" db:"total_amount"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// StatusHistoryEntry is one recorded status of an order at a point in time.
type StatusHistoryEntry struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OrderID        uuid.UUID    `json:"order_id" db:"order_id"`
	Status         OrderStatus  `json:"status" db:"status"`
	PreviousStatus *OrderStatus `json:"previous_status,omitempty" db:"previous_status"`
	ChangedBy      *uuid.UUID   `json:"changed_by,omitempty" db:"changed_by"`
	Comment        string       `json:"comment" db:"comment"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}
