// Package event holds the wire representation of the domain events the
// service consumes and emits, and the codec translating between raw bus
// payloads and the internal types.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Logical topic names as they appear inside envelopes. The bus-side topic
// names (dotted) are configured separately.
const (
	TopicOrderValidationSucceeded = "discount/order/validation-succeeded"
	TopicInvoiceCreated           = "invoice/invoice/created"
)

// Envelope wraps every event on the bus: logical topic plus payload.
type Envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// OrderValidationSucceededData is the payload of the inbound event.
type OrderValidationSucceededData struct {
	Order OrderEventData `json:"order"`
}

// OrderEventData carries the order snapshot needed to populate an invoice.
// Transient, never stored.
type OrderEventData struct {
	ID                       uuid.UUID            `json:"id"`
	UserID                   uuid.UUID            `json:"userId"`
	CreatedAt                time.Time            `json:"createdAt"`
	OrderStatus              string               `json:"orderStatus"`
	PlacedAt                 *time.Time           `json:"placedAt,omitempty"`
	RejectionReason          *string              `json:"rejectionReason,omitempty"`
	OrderItems               []OrderItemEventData `json:"orderItems"`
	CompensatableOrderAmount int64                `json:"compensatableOrderAmount"`
	PaymentInformationID     uuid.UUID            `json:"paymentInformationId"`
}

// OrderItemEventData is one line item of the inbound order snapshot.
type OrderItemEventData struct {
	ID                      uuid.UUID   `json:"id"`
	CreatedAt               time.Time   `json:"createdAt"`
	ProductVariantID        uuid.UUID   `json:"productVariantId"`
	ProductVariantVersionID uuid.UUID   `json:"productVariantVersionId"`
	TaxRateVersionID        uuid.UUID   `json:"taxRateVersionId"`
	ShoppingCartItemID      uuid.UUID   `json:"shoppingCartItemId"`
	Count                   int64       `json:"count"`
	CompensatableAmount     int64       `json:"compensatableAmount"`
	ShipmentMethodID        uuid.UUID   `json:"shipmentMethodId"`
	DiscountIDs             []uuid.UUID `json:"discountIds"`
}

// InvoiceDTO is the invoice part of the outbound event payload.
type InvoiceDTO struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"orderId"`
	IssuedAt    time.Time `json:"issuedAt"`
	Content     string    `json:"content"`
	TotalAmount int64     `json:"totalAmount"`
}

// InvoiceCreatedData is the payload of the outbound event. Downstream
// consumers get the invoice together with the order snapshot it was built from.
type InvoiceCreatedData struct {
	Order   OrderEventData `json:"order"`
	Invoice InvoiceDTO     `json:"invoice"`
}
