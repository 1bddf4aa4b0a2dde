package infrastructure

import (
	"context"

	"github.com/cloudcart/invoice-service/internal/entity"
)

type (
	EventsSender interface {
		SendEvents(ctx context.Context, events []*entity.OutboxEvent) error
		Close() error
	}

	// DeadLetterSender forwards payloads that can never be processed to an
	// operator-visible topic.
	DeadLetterSender interface {
		SendDeadLetter(ctx context.Context, key, value []byte, reason string) error
	}
)
