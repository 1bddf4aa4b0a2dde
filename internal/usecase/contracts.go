package usecase

import (
	"context"
	"io"
	"time"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/internal/event"
	"github.com/google/uuid"
)

type (
	// InvoiceUseCase is the write and read surface of the invoice pipeline.
	InvoiceUseCase interface {
		// CreateFromOrder persists the invoice derived from the order event
		// together with its publish intent in one transaction. Safe to call
		// repeatedly for one order: redeliveries get the originally stored
		// invoice back with created=false.
		CreateFromOrder(ctx context.Context, order event.OrderEventData) (invoice *entity.Invoice, created bool, err error)

		GetInvoiceByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
		GetInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Invoice, error)
		DownloadDocument(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error)

		GetPendingEvents(ctx context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error)
		MarkAsProcessingBatch(ctx context.Context, events []*entity.OutboxEvent) error
		MarkAsProcessedBatch(ctx context.Context, events []*entity.OutboxEvent) error
		IncrementRetryCountBatch(ctx context.Context, events []*entity.OutboxEvent) error
		ReclaimStuckEvents(ctx context.Context, olderThan time.Duration) error
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		CleanupOutbox(ctx context.Context) error
	}
)
