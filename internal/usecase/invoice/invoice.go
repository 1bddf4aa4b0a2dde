package invoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/internal/event"
	"github.com/cloudcart/invoice-service/internal/repo"
	"github.com/cloudcart/invoice-service/pkg/logger"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/google/uuid"
)

const _documentContentType = "text/plain; charset=utf-8"

type UseCase struct {
	invoiceRepo  repo.InvoiceRepo
	outboxRepo   repo.OutboxRepo
	documentRepo repo.DocumentRepo
	transactor   repo.Transactor

	logger logger.Interface
}

func New(
	invoiceRepo repo.InvoiceRepo,
	outboxRepo repo.OutboxRepo,
	documentRepo repo.DocumentRepo,
	transactor repo.Transactor,
	l logger.Interface,
) *UseCase {
	return &UseCase{
		invoiceRepo:  invoiceRepo,
		outboxRepo:   outboxRepo,
		documentRepo: documentRepo,
		transactor:   transactor,
		logger:       l,
	}
}

// CreateFromOrder builds the invoice and commits it together with its
// invoice/invoice/created outbox row in one transaction. An invoice row
// therefore always implies a durable publish intent, which the relay
// retries until delivered.
//
// A conflict on order_id means a previous delivery already completed the
// transaction, original outbox row included, so the duplicate enqueues
// nothing and the stored invoice is returned instead of the rebuilt one.
func (uc *UseCase) CreateFromOrder(ctx context.Context, order event.OrderEventData) (*entity.Invoice, bool, error) {
	inv, err := BuildInvoice(order)
	if err != nil {
		return nil, false, fmt.Errorf("UseCase - CreateFromOrder - BuildInvoice: %w", err)
	}

	documentKey := fmt.Sprintf("invoices/%s", inv.ID)
	inv.DocumentKey = documentKey

	// 1. archive the rendered document first, compensate below if the
	// transaction does not go through
	err = uc.documentRepo.UploadBytes(ctx, documentKey, []byte(inv.Content), _documentContentType)
	if err != nil {
		return nil, false, fmt.Errorf("UseCase - CreateFromOrder - uc.documentRepo.UploadBytes: %w", err)
	}

	// 2. invoice + outbox row in a single transaction
	err = uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.invoiceRepo.Create(ctx, inv); err != nil {
			return fmt.Errorf("UseCase - CreateFromOrder - uc.invoiceRepo.Create: %w", err)
		}

		outboxEvent, err := uc.createOutboxEvent(order, inv)
		if err != nil {
			return fmt.Errorf("UseCase - CreateFromOrder - uc.createOutboxEvent: %w", err)
		}
		if err := uc.outboxRepo.Create(ctx, outboxEvent); err != nil {
			return fmt.Errorf("UseCase - CreateFromOrder - uc.outboxRepo.Create: %w", err)
		}

		return nil
	})

	if err != nil {
		// the key embeds this attempt's freshly generated invoice id, so
		// the delete can only remove this attempt's upload, never the
		// document archived for the stored invoice
		deleteErr := uc.documentRepo.Delete(ctx, documentKey)
		if deleteErr != nil {
			uc.logger.Error(deleteErr, "UseCase - CreateFromOrder - uc.documentRepo.Delete")
		}

		if errors.Is(err, errs.ErrAlreadyExists) {
			stored, getErr := uc.invoiceRepo.GetByOrderID(ctx, order.ID)
			if getErr != nil {
				return nil, false, fmt.Errorf("UseCase - CreateFromOrder - uc.invoiceRepo.GetByOrderID: %w", getErr)
			}

			return stored, false, nil
		}

		return nil, false, fmt.Errorf("UseCase - CreateFromOrder - uc.transactor.WithinTransaction: %w", err)
	}

	return inv, true, nil
}

func (uc *UseCase) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UseCase - GetInvoiceByID - uc.invoiceRepo.GetByID: %w", err)
	}

	return inv, nil
}

func (uc *UseCase) GetInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Invoice, error) {
	inv, err := uc.invoiceRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("UseCase - GetInvoiceByOrderID - uc.invoiceRepo.GetByOrderID: %w", err)
	}

	return inv, nil
}

func (uc *UseCase) DownloadDocument(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("UseCase - DownloadDocument - uc.invoiceRepo.GetByID: %w", err)
	}

	body, err := uc.documentRepo.Download(ctx, inv.DocumentKey)
	if err != nil {
		return nil, "", fmt.Errorf("UseCase - DownloadDocument - uc.documentRepo.Download: %w", err)
	}

	return body, _documentContentType, nil
}

func (uc *UseCase) GetPendingEvents(ctx context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error) {
	events, err := uc.outboxRepo.GetPendingEvents(ctx, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("UseCase - GetPendingEvents - uc.outboxRepo.GetPendingEvents: %w", err)
	}

	return events, nil
}

func (uc *UseCase) MarkAsProcessingBatch(ctx context.Context, events []*entity.OutboxEvent) error {
	err := uc.outboxRepo.MarkAsProcessingBatch(ctx, eventIDs(events))
	if err != nil {
		return fmt.Errorf("UseCase - MarkAsProcessingBatch - uc.outboxRepo.MarkAsProcessingBatch: %w", err)
	}

	return nil
}

func (uc *UseCase) MarkAsProcessedBatch(ctx context.Context, events []*entity.OutboxEvent) error {
	err := uc.outboxRepo.MarkAsProcessedBatch(ctx, eventIDs(events))
	if err != nil {
		return fmt.Errorf("UseCase - MarkAsProcessedBatch - uc.outboxRepo.MarkAsProcessedBatch: %w", err)
	}

	return nil
}

func (uc *UseCase) IncrementRetryCountBatch(ctx context.Context, events []*entity.OutboxEvent) error {
	err := uc.outboxRepo.IncrementRetryCountBatch(ctx, eventIDs(events))
	if err != nil {
		return fmt.Errorf("UseCase - IncrementRetryCountBatch - uc.outboxRepo.IncrementRetryCountBatch: %w", err)
	}

	return nil
}

func (uc *UseCase) ReclaimStuckEvents(ctx context.Context, olderThan time.Duration) error {
	count, err := uc.outboxRepo.ReclaimStuckProcessing(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("UseCase - ReclaimStuckEvents - uc.outboxRepo.ReclaimStuckProcessing: %w", err)
	}

	if count > 0 {
		uc.logger.Warn("reclaimed stuck outbox events, count = %d", count)
	}

	return nil
}

func (uc *UseCase) MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error {
	err := uc.outboxRepo.MarkMaxRetriesAsFailed(ctx, maxRetries)
	if err != nil {
		return fmt.Errorf("UseCase - MarkMaxRetriesAsFailed - uc.outboxRepo.MarkMaxRetriesAsFailed: %w", err)
	}

	return nil
}

func (uc *UseCase) CleanupOutbox(ctx context.Context) error {
	count, err := uc.outboxRepo.DeleteOldProcessedAndFailed(ctx)
	if err != nil {
		return fmt.Errorf("UseCase - CleanupOutbox - uc.outboxRepo.DeleteOldProcessedAndFailed: %w", err)
	}

	if count > 0 {
		uc.logger.Info("deleted old outbox events, count = %d", count)
	}

	return nil
}

func eventIDs(events []*entity.OutboxEvent) uuid.UUIDs {
	var ids uuid.UUIDs

	for _, event := range events {
		ids = append(ids, event.ID)
	}

	return ids
}
