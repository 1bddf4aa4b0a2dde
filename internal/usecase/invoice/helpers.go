package invoice

import (
	"fmt"
	"time"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/internal/event"
	"github.com/google/uuid"
)

func (uc *UseCase) createOutboxEvent(order event.OrderEventData, inv *entity.Invoice) (*entity.OutboxEvent, error) {
	payload, err := event.EncodeInvoiceCreated(order, inv)
	if err != nil {
		return nil, fmt.Errorf("UseCase - createOutboxEvent - event.EncodeInvoiceCreated: %w", err)
	}

	return &entity.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: inv.ID,
		Payload:     payload,
		Status:      entity.Pending,
		CreatedAt:   time.Now(),
		RetryCount:  0,
	}, nil
}
