package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/internal/event"
	"github.com/cloudcart/invoice-service/internal/usecase"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(interface{}, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})       {}
func (nopLogger) Warn(string, ...interface{})       {}
func (nopLogger) Error(interface{}, ...interface{}) {}
func (nopLogger) Fatal(interface{}, ...interface{}) {}

type fakeInvoiceUseCase struct {
	usecase.InvoiceUseCase

	createFn func(ctx context.Context, order event.OrderEventData) (*entity.Invoice, bool, error)
}

func (f *fakeInvoiceUseCase) CreateFromOrder(ctx context.Context, order event.OrderEventData) (*entity.Invoice, bool, error) {
	return f.createFn(ctx, order)
}

type fakeConsumer struct {
	commits []kafka.Message
}

func (f *fakeConsumer) ReadEvent(context.Context) (kafka.Message, error) {
	return kafka.Message{}, context.Canceled
}

func (f *fakeConsumer) CommitEvent(_ context.Context, msg kafka.Message) error {
	f.commits = append(f.commits, msg)
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeDeadLetterSender struct {
	reasons []string
	sendErr error
}

func (f *fakeDeadLetterSender) SendDeadLetter(_ context.Context, _, _ []byte, reason string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.reasons = append(f.reasons, reason)
	return nil
}

func newTestController(uc usecase.InvoiceUseCase, ec eventConsumer, dlq *fakeDeadLetterSender) *Controller {
	c := New(uc, ec, dlq, nopLogger{}, time.Second, time.Second, time.Millisecond, 1)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	return c
}

func validMessage(t *testing.T) kafka.Message {
	t.Helper()

	placedAt := time.Now().UTC()

	data, err := json.Marshal(event.OrderValidationSucceededData{
		Order: event.OrderEventData{
			ID:          uuid.New(),
			UserID:      uuid.New(),
			CreatedAt:   time.Now().UTC(),
			OrderStatus: "PLACED",
			PlacedAt:    &placedAt,
			OrderItems: []event.OrderItemEventData{{
				ID:                  uuid.New(),
				CreatedAt:           time.Now().UTC(),
				ProductVariantID:    uuid.New(),
				Count:               1,
				CompensatableAmount: 1200,
			}},
			CompensatableOrderAmount: 1200,
			PaymentInformationID:     uuid.New(),
		},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(event.Envelope{
		Topic: event.TopicOrderValidationSucceeded,
		Data:  data,
	})
	require.NoError(t, err)

	return kafka.Message{Key: []byte("order"), Value: raw}
}

func TestHandleMessageAcknowledged(t *testing.T) {
	ec := &fakeConsumer{}
	dlq := &fakeDeadLetterSender{}
	uc := &fakeInvoiceUseCase{
		createFn: func(_ context.Context, order event.OrderEventData) (*entity.Invoice, bool, error) {
			return &entity.Invoice{ID: uuid.New(), OrderID: order.ID}, true, nil
		},
	}

	c := newTestController(uc, ec, dlq)
	resolved := c.handleMessage(validMessage(t))

	assert.True(t, resolved)
	assert.Len(t, ec.commits, 1)
	assert.Empty(t, dlq.reasons)
}

func TestHandleMessageDuplicateAcknowledged(t *testing.T) {
	ec := &fakeConsumer{}
	dlq := &fakeDeadLetterSender{}
	uc := &fakeInvoiceUseCase{
		createFn: func(_ context.Context, order event.OrderEventData) (*entity.Invoice, bool, error) {
			return &entity.Invoice{ID: uuid.New(), OrderID: order.ID}, false, nil
		},
	}

	c := newTestController(uc, ec, dlq)
	resolved := c.handleMessage(validMessage(t))

	// a redelivered duplicate is a success, not an error
	assert.True(t, resolved)
	assert.Len(t, ec.commits, 1)
	assert.Empty(t, dlq.reasons)
}

func TestHandleMessageMalformedRejected(t *testing.T) {
	ec := &fakeConsumer{}
	dlq := &fakeDeadLetterSender{}
	uc := &fakeInvoiceUseCase{
		createFn: func(context.Context, event.OrderEventData) (*entity.Invoice, bool, error) {
			t.Fatal("decode must fail before the use case is reached")
			return nil, false, nil
		},
	}

	c := newTestController(uc, ec, dlq)
	resolved := c.handleMessage(kafka.Message{Key: []byte("order"), Value: []byte("not json")})

	// dead-lettered and committed so the payload is never retried
	assert.True(t, resolved)
	require.Len(t, dlq.reasons, 1)
	assert.Contains(t, dlq.reasons[0], errs.ErrMalformedEvent.Error())
	assert.Len(t, ec.commits, 1)
}

func TestHandleMessageInvalidPayloadRejected(t *testing.T) {
	ec := &fakeConsumer{}
	dlq := &fakeDeadLetterSender{}
	uc := &fakeInvoiceUseCase{
		createFn: func(context.Context, event.OrderEventData) (*entity.Invoice, bool, error) {
			return nil, false, fmt.Errorf("UseCase - CreateFromOrder: %w", errs.ErrInvalidOrderPayload)
		},
	}

	c := newTestController(uc, ec, dlq)
	resolved := c.handleMessage(validMessage(t))

	assert.True(t, resolved)
	require.Len(t, dlq.reasons, 1)
	assert.Len(t, ec.commits, 1)
}

func TestHandleMessageTransientDeferred(t *testing.T) {
	ec := &fakeConsumer{}
	dlq := &fakeDeadLetterSender{}
	uc := &fakeInvoiceUseCase{
		createFn: func(context.Context, event.OrderEventData) (*entity.Invoice, bool, error) {
			return nil, false, errors.New("connection refused")
		},
	}

	c := newTestController(uc, ec, dlq)
	resolved := c.handleMessage(validMessage(t))

	// unresolved: no commit, no dead-letter, the caller retries
	assert.False(t, resolved)
	assert.Empty(t, ec.commits)
	assert.Empty(t, dlq.reasons)
}

func TestHandleMessageDeadLetterFailureBlocksCommit(t *testing.T) {
	ec := &fakeConsumer{}
	dlq := &fakeDeadLetterSender{sendErr: errors.New("broker unavailable")}
	uc := &fakeInvoiceUseCase{
		createFn: func(context.Context, event.OrderEventData) (*entity.Invoice, bool, error) {
			return nil, false, fmt.Errorf("reject: %w", errs.ErrInvalidOrderPayload)
		},
	}

	c := newTestController(uc, ec, dlq)
	resolved := c.handleMessage(validMessage(t))

	// the rejected payload must land on the dead-letter topic before the
	// offset moves past it
	assert.False(t, resolved)
	assert.Empty(t, ec.commits)
}

// A deferred message is retried in place: the lane must not move on (and
// commit a later offset of the same partition) while an earlier event is
// unresolved.
func TestWorkerRetriesDeferredUntilResolved(t *testing.T) {
	ec := &fakeConsumer{}
	dlq := &fakeDeadLetterSender{}

	var attempts int
	uc := &fakeInvoiceUseCase{
		createFn: func(_ context.Context, order event.OrderEventData) (*entity.Invoice, bool, error) {
			attempts++
			if attempts < 3 {
				return nil, false, errors.New("connection refused")
			}
			return &entity.Invoice{ID: uuid.New(), OrderID: order.ID}, true, nil
		},
	}

	c := newTestController(uc, ec, dlq)

	lane := make(chan kafka.Message, 1)
	lane <- validMessage(t)
	close(lane)

	c.wg.Add(1)
	c.worker(lane)

	assert.Equal(t, 3, attempts)
	assert.Len(t, ec.commits, 1)
}

// All messages of one partition land in the same lane, so they are resolved
// and committed strictly in order.
func TestLaneIndexStablePerPartition(t *testing.T) {
	const workers = 4

	for partition := 0; partition < 12; partition++ {
		first := laneIndex(kafka.Message{Partition: partition, Offset: 1}, workers)
		second := laneIndex(kafka.Message{Partition: partition, Offset: 2}, workers)

		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, workers)
	}
}
