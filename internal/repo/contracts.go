package repo

import (
	"context"
	"io"
	"time"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/google/uuid"
)

type (
	// InvoiceRepo is the durable invoice store. Create is conditional on
	// order_id: concurrent or repeated calls for the same order leave exactly
	// one row, all but the first call report errs.ErrAlreadyExists.
	InvoiceRepo interface {
		Create(ctx context.Context, invoice *entity.Invoice) error
		GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
		GetByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Invoice, error)
	}

	// OutboxRepo stores publish intents for the invoice created event.
	OutboxRepo interface {
		Create(ctx context.Context, event *entity.OutboxEvent) error
		GetPendingEvents(ctx context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error)
		MarkAsProcessingBatch(ctx context.Context, ids uuid.UUIDs) error
		MarkAsProcessedBatch(ctx context.Context, ids uuid.UUIDs) error
		IncrementRetryCountBatch(ctx context.Context, ids uuid.UUIDs) error
		ReclaimStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		DeleteOldProcessedAndFailed(ctx context.Context) (int64, error)
	}

	// DocumentRepo archives rendered invoice documents in object storage.
	DocumentRepo interface {
		UploadBytes(ctx context.Context, key string, data []byte, contentType string) error
		Download(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
	}

	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}
)
