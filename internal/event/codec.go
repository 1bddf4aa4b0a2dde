package event

import (
	"encoding/json"
	"fmt"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/google/uuid"
)

// DecodeOrderValidationSucceeded translates a raw bus payload into the order
// snapshot. Every failure wraps errs.ErrMalformedEvent: such payloads can
// never succeed and must not be retried.
func DecodeOrderValidationSucceeded(raw []byte) (*OrderEventData, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("event - DecodeOrderValidationSucceeded - json.Unmarshal envelope: %w: %w", errs.ErrMalformedEvent, err)
	}

	if envelope.Topic != TopicOrderValidationSucceeded {
		return nil, fmt.Errorf("event - DecodeOrderValidationSucceeded - unexpected topic %q: %w", envelope.Topic, errs.ErrMalformedEvent)
	}

	var data OrderValidationSucceededData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("event - DecodeOrderValidationSucceeded - json.Unmarshal data: %w: %w", errs.ErrMalformedEvent, err)
	}

	if data.Order.ID == uuid.Nil {
		return nil, fmt.Errorf("event - DecodeOrderValidationSucceeded - missing order id: %w", errs.ErrMalformedEvent)
	}

	if data.Order.UserID == uuid.Nil {
		return nil, fmt.Errorf("event - DecodeOrderValidationSucceeded - missing user id: %w", errs.ErrMalformedEvent)
	}

	return &data.Order, nil
}

// EncodeInvoiceCreated builds the raw payload of the outbound
// invoice/invoice/created event. Total for well-formed inputs.
func EncodeInvoiceCreated(order OrderEventData, invoice *entity.Invoice) ([]byte, error) {
	data, err := json.Marshal(InvoiceCreatedData{
		Order: order,
		Invoice: InvoiceDTO{
			ID:          invoice.ID,
			OrderID:     invoice.OrderID,
			IssuedAt:    invoice.IssuedAt,
			Content:     invoice.Content,
			TotalAmount: invoice.TotalAmount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("event - EncodeInvoiceCreated - json.Marshal data: %w", err)
	}

	raw, err := json.Marshal(Envelope{
		Topic: TopicInvoiceCreated,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("event - EncodeInvoiceCreated - json.Marshal envelope: %w", err)
	}

	return raw, nil
}
