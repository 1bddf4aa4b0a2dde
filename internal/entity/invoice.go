package entity

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is written exactly once by the creation pipeline and never mutated.
// Uniqueness per order is enforced by the store, not here.
type Invoice struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`

	Status InvoiceStatus `json:"status"`

	// Rendered human-readable invoice text, derived from the order event.
	Content string `json:"content"`

	TotalAmount int64 `json:"total_amount"`

	DocumentKey string `json:"document_key"`

	IssuedAt time.Time `json:"issued_at"`
}
