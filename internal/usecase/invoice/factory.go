package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/internal/event"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/google/uuid"
)

const _timeLayout = "2006-01-02 15:04:05"

// BuildInvoice derives an invoice from the order snapshot. Pure: no I/O,
// repeated calls produce structurally equal invoices differing only in
// ID and IssuedAt. Uniqueness per order is the store's job, not ours.
func BuildInvoice(order event.OrderEventData) (*entity.Invoice, error) {
	if order.ID == uuid.Nil || order.UserID == uuid.Nil {
		return nil, fmt.Errorf("invoice - BuildInvoice - missing order/user id: %w", errs.ErrInvalidOrderPayload)
	}

	if len(order.OrderItems) == 0 {
		return nil, fmt.Errorf("invoice - BuildInvoice - order has no items: %w", errs.ErrInvalidOrderPayload)
	}

	if order.CompensatableOrderAmount < 0 {
		return nil, fmt.Errorf("invoice - BuildInvoice - negative order amount: %w", errs.ErrInvalidOrderPayload)
	}

	return &entity.Invoice{
		ID:          uuid.New(),
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      entity.InvoiceCreated,
		Content:     renderContent(order),
		TotalAmount: order.CompensatableOrderAmount,
		IssuedAt:    time.Now(),
	}, nil
}

func renderContent(order event.OrderEventData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Invoice for Order %s\n", order.ID)
	fmt.Fprintf(&b, "User UUID: %s\n", order.UserID)
	fmt.Fprintf(&b, "Created at: %s\n", order.CreatedAt.Format(_timeLayout))
	if order.PlacedAt != nil {
		fmt.Fprintf(&b, "Placed at: %s\n", order.PlacedAt.Format(_timeLayout))
	}
	fmt.Fprintf(&b, "Order Status: %s\n", order.OrderStatus)
	if order.RejectionReason != nil {
		fmt.Fprintf(&b, "Rejection Reason: %s\n", *order.RejectionReason)
	}

	b.WriteString("\nOrder Items:\n")
	for _, item := range order.OrderItems {
		fmt.Fprintf(&b, "Item UUID: %s\n", item.ID)
		fmt.Fprintf(&b, "Product Variant UUID: %s\n", item.ProductVariantID)
		fmt.Fprintf(&b, "Count: %d\n", item.Count)
		fmt.Fprintf(&b, "Compensatable Amount: %d\n", item.CompensatableAmount)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Total Compensatable Amount: %d\n", order.CompensatableOrderAmount)
	fmt.Fprintf(&b, "Payment Information UUID: %s\n", order.PaymentInformationID)

	return b.String()
}
