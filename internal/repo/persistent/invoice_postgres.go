package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/pkg/postgres"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	invoicesTable = "invoices"

	// Columns
	idColumn          = "id"
	orderIDColumn     = "order_id"
	userIDColumn      = "user_id"
	statusColumn      = "status"
	contentColumn     = "content"
	totalAmountColumn = "total_amount"
	documentKeyColumn = "document_key"
	issuedAtColumn    = "issued_at"
)

type InvoiceRepo struct {
	*postgres.Postgres
}

func NewInvoiceRepo(pg *postgres.Postgres) *InvoiceRepo {
	return &InvoiceRepo{pg}
}

// Create inserts the invoice conditionally on order_id. The ON CONFLICT
// clause is the single atomicity primitive backing pipeline idempotency:
// under concurrent inserts for one order exactly one row wins, the rest
// report errs.ErrAlreadyExists and leave the store unchanged.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	sql, args, err := r.Builder.
		Insert(invoicesTable).
		Columns(
			idColumn,
			orderIDColumn,
			userIDColumn,
			statusColumn,
			contentColumn,
			totalAmountColumn,
			documentKeyColumn,
			issuedAtColumn,
		).
		Values(
			invoice.ID,
			invoice.OrderID,
			invoice.UserID,
			invoice.Status,
			invoice.Content,
			invoice.TotalAmount,
			invoice.DocumentKey,
			invoice.IssuedAt,
		).
		Suffix("ON CONFLICT (" + orderIDColumn + ") DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("InvoiceRepo - Create - r.Builder.ToSql: %w", err)
	}

	// Pool / Tx
	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("InvoiceRepo - Create - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("InvoiceRepo - Create - order_id=%s: %w", invoice.OrderID, errs.ErrAlreadyExists)
	}

	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	return r.getByColumn(ctx, idColumn, id, "GetByID")
}

func (r *InvoiceRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Invoice, error) {
	return r.getByColumn(ctx, orderIDColumn, orderID, "GetByOrderID")
}

func (r *InvoiceRepo) getByColumn(ctx context.Context, column string, value uuid.UUID, method string) (*entity.Invoice, error) {
	sql, args, err := r.Builder.
		Select(
			idColumn,
			orderIDColumn,
			userIDColumn,
			statusColumn,
			contentColumn,
			totalAmountColumn,
			documentKeyColumn,
			issuedAtColumn,
		).
		From(invoicesTable).
		Where(squirrel.Eq{column: value}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("InvoiceRepo - %s - r.Builder.ToSql: %w", method, err)
	}

	executor := r.GetExecutor(ctx)

	var invoice entity.Invoice
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&invoice.ID,
		&invoice.OrderID,
		&invoice.UserID,
		&invoice.Status,
		&invoice.Content,
		&invoice.TotalAmount,
		&invoice.DocumentKey,
		&invoice.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("InvoiceRepo - %s: %w", method, errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("InvoiceRepo - %s - executor.QueryRow: %w", method, err)
	}

	return &invoice, nil
}
