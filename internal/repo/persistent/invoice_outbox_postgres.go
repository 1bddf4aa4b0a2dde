package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/pkg/postgres"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	// Table
	outboxTable = "invoices_outbox"

	// Columns
	outboxIDColumn          = "id"
	outboxAggregateIDColumn = "aggregate_id"
	outboxPayloadColumn     = "payload"
	outboxStatusColumn      = "status"
	outboxCreatedAtColumn   = "created_at"
	outboxProcessedAtColumn = "processed_at"
	outboxRetryCountColumn  = "retry_count"
)

type InvoiceOutboxRepo struct {
	*postgres.Postgres
}

func NewInvoiceOutboxRepo(pg *postgres.Postgres) *InvoiceOutboxRepo {
	return &InvoiceOutboxRepo{pg}
}

func (r *InvoiceOutboxRepo) Create(ctx context.Context, event *entity.OutboxEvent) error {
	sql, args, err := r.Builder.
		Insert(outboxTable).
		Columns(
			outboxIDColumn,
			outboxAggregateIDColumn,
			outboxPayloadColumn,
			outboxStatusColumn,
			outboxCreatedAtColumn,
			outboxRetryCountColumn,
		).
		Values(
			event.ID,
			event.AggregateID,
			event.Payload,
			event.Status,
			event.CreatedAt,
			event.RetryCount,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("InvoiceOutboxRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("InvoiceOutboxRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *InvoiceOutboxRepo) GetPendingEvents(ctx context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error) {
	sql, args, err := r.Builder.
		Select(
			outboxIDColumn,
			outboxAggregateIDColumn,
			outboxPayloadColumn,
			outboxStatusColumn,
			outboxCreatedAtColumn,
			outboxProcessedAtColumn,
			outboxRetryCountColumn,
		).
		From(outboxTable).
		Where(squirrel.And{
			squirrel.Eq{outboxStatusColumn: entity.Pending},
			squirrel.Lt{outboxRetryCountColumn: maxRetries},
		}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("InvoiceOutboxRepo - GetPendingEvents - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("InvoiceOutboxRepo - GetPendingEvents - executor.Query: %w", err)
	}
	defer rows.Close()

	events := make([]*entity.OutboxEvent, 0, limit)
	for rows.Next() {
		var event entity.OutboxEvent
		err = rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.Payload,
			&event.Status,
			&event.CreatedAt,
			&event.ProcessedAt,
			&event.RetryCount,
		)
		if err != nil {
			return nil, fmt.Errorf("InvoiceOutboxRepo - GetPendingEvents - rows.Scan: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("InvoiceOutboxRepo - GetPendingEvents - rows.Err: %w", err)
	}

	return events, nil
}

func (r *InvoiceOutboxRepo) MarkAsProcessingBatch(ctx context.Context, ids uuid.UUIDs) error {
	return r.setStatusBatch(ctx, ids, entity.Processing, "MarkAsProcessingBatch")
}

func (r *InvoiceOutboxRepo) MarkAsProcessedBatch(ctx context.Context, ids uuid.UUIDs) error {
	return r.setStatusBatch(ctx, ids, entity.Processed, "MarkAsProcessedBatch")
}

func (r *InvoiceOutboxRepo) setStatusBatch(ctx context.Context, ids uuid.UUIDs, status entity.Status, method string) error {
	now := time.Now()

	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxStatusColumn, status).
		Set(outboxProcessedAtColumn, now).
		Where(squirrel.Eq{outboxIDColumn: ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("InvoiceOutboxRepo - %s - r.Builder.ToSql: %w", method, err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("InvoiceOutboxRepo - %s - executor.Exec: %w", method, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("InvoiceOutboxRepo - %s: %w", method, errs.ErrRecordNotFound)
	}

	return nil
}

func (r *InvoiceOutboxRepo) IncrementRetryCountBatch(ctx context.Context, ids uuid.UUIDs) error {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxRetryCountColumn, squirrel.Expr(outboxRetryCountColumn+" + 1")).
		Set(outboxStatusColumn, entity.Pending).
		Where(squirrel.Eq{outboxIDColumn: ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("InvoiceOutboxRepo - IncrementRetryCountBatch - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("InvoiceOutboxRepo - IncrementRetryCountBatch - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("InvoiceOutboxRepo - IncrementRetryCountBatch: %w", errs.ErrRecordNotFound)
	}

	return nil
}

// ReclaimStuckProcessing returns Processing rows to Pending when their last
// status transition is older than olderThan. A crash between marking a batch
// processing and the broker accepting it would otherwise strand the rows
// forever: no other query selects Processing. Reclaiming may republish an
// event whose send did land, which at-least-once delivery tolerates.
func (r *InvoiceOutboxRepo) ReclaimStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxStatusColumn, entity.Pending).
		Where(squirrel.And{
			squirrel.Eq{outboxStatusColumn: string(entity.Processing)},
			squirrel.Lt{outboxProcessedAtColumn: cutoff},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("InvoiceOutboxRepo - ReclaimStuckProcessing - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("InvoiceOutboxRepo - ReclaimStuckProcessing - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *InvoiceOutboxRepo) MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxStatusColumn, entity.Failed).
		Where(squirrel.And{
			squirrel.Eq{outboxStatusColumn: string(entity.Pending)},
			squirrel.GtOrEq{outboxRetryCountColumn: maxRetries},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("InvoiceOutboxRepo - MarkMaxRetriesAsFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("InvoiceOutboxRepo - MarkMaxRetriesAsFailed - executor.Exec: %w", err)
	}

	return nil
}

func (r *InvoiceOutboxRepo) DeleteOldProcessedAndFailed(ctx context.Context) (int64, error) {
	sql, args, err := r.Builder.
		Delete(outboxTable).
		Where(squirrel.Or{
			squirrel.Eq{outboxStatusColumn: string(entity.Processed)},
			squirrel.Eq{outboxStatusColumn: string(entity.Failed)},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("InvoiceOutboxRepo - DeleteOldProcessedAndFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)
	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("InvoiceOutboxRepo - DeleteOldProcessedAndFailed - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}
