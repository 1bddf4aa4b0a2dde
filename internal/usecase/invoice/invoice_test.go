package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/internal/event"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(interface{}, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})       {}
func (nopLogger) Warn(string, ...interface{})       {}
func (nopLogger) Error(interface{}, ...interface{}) {}
func (nopLogger) Fatal(interface{}, ...interface{}) {}

// fakeInvoiceRepo mimics the store's conditional insert: one winner per
// order id, everyone else gets ErrAlreadyExists.
type fakeInvoiceRepo struct {
	mu        sync.Mutex
	byOrder   map[uuid.UUID]*entity.Invoice
	createErr error
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{byOrder: make(map[uuid.UUID]*entity.Invoice)}
}

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	if r.createErr != nil {
		return r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byOrder[inv.OrderID]; ok {
		return fmt.Errorf("fakeInvoiceRepo - Create: %w", errs.ErrAlreadyExists)
	}

	stored := *inv
	r.byOrder[inv.OrderID] = &stored

	return nil
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, inv := range r.byOrder {
		if inv.ID == id {
			found := *inv
			return &found, nil
		}
	}

	return nil, errs.ErrRecordNotFound
}

func (r *fakeInvoiceRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inv, ok := r.byOrder[orderID]; ok {
		found := *inv
		return &found, nil
	}

	return nil, errs.ErrRecordNotFound
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []*entity.OutboxEvent
}

func (r *fakeOutboxRepo) Create(_ context.Context, e *entity.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)

	return nil
}

func (r *fakeOutboxRepo) GetPendingEvents(context.Context, int, int) ([]*entity.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*entity.OutboxEvent(nil), r.events...), nil
}

func (r *fakeOutboxRepo) ReclaimStuckProcessing(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeOutboxRepo) MarkAsProcessingBatch(context.Context, uuid.UUIDs) error    { return nil }
func (r *fakeOutboxRepo) MarkAsProcessedBatch(context.Context, uuid.UUIDs) error     { return nil }
func (r *fakeOutboxRepo) IncrementRetryCountBatch(context.Context, uuid.UUIDs) error { return nil }
func (r *fakeOutboxRepo) MarkMaxRetriesAsFailed(context.Context, int) error          { return nil }
func (r *fakeOutboxRepo) DeleteOldProcessedAndFailed(context.Context) (int64, error) { return 0, nil }

func (r *fakeOutboxRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

type fakeDocumentRepo struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
}

func (r *fakeDocumentRepo) UploadBytes(_ context.Context, key string, _ []byte, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.uploads = append(r.uploads, key)

	return nil
}

func (r *fakeDocumentRepo) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errs.ErrRecordNotFound
}

func (r *fakeDocumentRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deletes = append(r.deletes, key)

	return nil
}

type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	return f(ctx)
}

func newTestUseCase() (*UseCase, *fakeInvoiceRepo, *fakeOutboxRepo, *fakeDocumentRepo) {
	invoiceRepo := newFakeInvoiceRepo()
	outboxRepo := &fakeOutboxRepo{}
	documentRepo := &fakeDocumentRepo{}

	uc := New(invoiceRepo, outboxRepo, documentRepo, fakeTransactor{}, nopLogger{})

	return uc, invoiceRepo, outboxRepo, documentRepo
}

func TestCreateFromOrder(t *testing.T) {
	uc, invoiceRepo, outboxRepo, documentRepo := newTestUseCase()
	order := validOrder()

	inv, created, err := uc.CreateFromOrder(context.Background(), order)
	require.NoError(t, err)
	require.True(t, created)

	stored, err := invoiceRepo.GetByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, stored.ID)

	// one publish intent, decodable and pointing at the new invoice
	require.Equal(t, 1, outboxRepo.count())
	var envelope event.Envelope
	require.NoError(t, json.Unmarshal(outboxRepo.events[0].Payload, &envelope))
	assert.Equal(t, event.TopicInvoiceCreated, envelope.Topic)
	var data event.InvoiceCreatedData
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, inv.ID, data.Invoice.ID)

	assert.Equal(t, []string{"invoices/" + inv.ID.String()}, documentRepo.uploads)
	assert.Empty(t, documentRepo.deletes)
}

func TestCreateFromOrderDuplicate(t *testing.T) {
	uc, _, outboxRepo, documentRepo := newTestUseCase()
	order := validOrder()

	first, created, err := uc.CreateFromOrder(context.Background(), order)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := uc.CreateFromOrder(context.Background(), order)
	require.NoError(t, err)

	// redelivery returns the originally stored invoice and enqueues nothing new
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, outboxRepo.count())

	// the duplicate's document upload is compensated; its key embeds the
	// duplicate attempt's invoice id, never the stored invoice's
	require.Len(t, documentRepo.uploads, 2)
	require.Len(t, documentRepo.deletes, 1)
	assert.Equal(t, documentRepo.uploads[1], documentRepo.deletes[0])
	assert.NotEqual(t, first.DocumentKey, documentRepo.deletes[0])
}

func TestCreateFromOrderStoreUnavailable(t *testing.T) {
	uc, invoiceRepo, outboxRepo, documentRepo := newTestUseCase()
	invoiceRepo.createErr = errors.New("connection refused")

	inv, created, err := uc.CreateFromOrder(context.Background(), validOrder())

	assert.Nil(t, inv)
	assert.False(t, created)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrAlreadyExists)
	assert.Equal(t, 0, outboxRepo.count())
	assert.Len(t, documentRepo.deletes, 1)
}

func TestCreateFromOrderInvalidPayload(t *testing.T) {
	uc, _, outboxRepo, documentRepo := newTestUseCase()
	order := validOrder()
	order.OrderItems = nil

	inv, created, err := uc.CreateFromOrder(context.Background(), order)

	assert.Nil(t, inv)
	assert.False(t, created)
	assert.ErrorIs(t, err, errs.ErrInvalidOrderPayload)
	assert.Equal(t, 0, outboxRepo.count())
	assert.Empty(t, documentRepo.uploads)
}

// Concurrent deliveries of one order race on the conditional insert: exactly
// one wins, everyone gets the same invoice back and a single publish intent
// is stored.
func TestCreateFromOrderConcurrent(t *testing.T) {
	uc, _, outboxRepo, _ := newTestUseCase()
	order := validOrder()

	const workers = 16

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		createdHits int
		ids         = make(map[uuid.UUID]struct{})
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			inv, created, err := uc.CreateFromOrder(context.Background(), order)

			mu.Lock()
			defer mu.Unlock()
			if !assert.NoError(t, err) {
				return
			}
			if created {
				createdHits++
			}
			ids[inv.ID] = struct{}{}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, createdHits)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, outboxRepo.count())
}
