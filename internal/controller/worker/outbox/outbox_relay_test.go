package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/internal/usecase"
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

type fakeOutboxUseCase struct {
	usecase.InvoiceUseCase

	pending []*entity.OutboxEvent

	processing []*entity.OutboxEvent
	processed  []*entity.OutboxEvent
	retried    []*entity.OutboxEvent

	reclaimedOlderThan []time.Duration
	failedMaxRetries   []int
}

func (f *fakeOutboxUseCase) GetPendingEvents(context.Context, int, int) ([]*entity.OutboxEvent, error) {
	return f.pending, nil
}

func (f *fakeOutboxUseCase) MarkAsProcessingBatch(_ context.Context, events []*entity.OutboxEvent) error {
	f.processing = append(f.processing, events...)
	return nil
}

func (f *fakeOutboxUseCase) MarkAsProcessedBatch(_ context.Context, events []*entity.OutboxEvent) error {
	f.processed = append(f.processed, events...)
	return nil
}

func (f *fakeOutboxUseCase) IncrementRetryCountBatch(ctx context.Context, events []*entity.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.retried = append(f.retried, events...)
	return nil
}

func (f *fakeOutboxUseCase) ReclaimStuckEvents(_ context.Context, olderThan time.Duration) error {
	f.reclaimedOlderThan = append(f.reclaimedOlderThan, olderThan)
	return nil
}

func (f *fakeOutboxUseCase) MarkMaxRetriesAsFailed(_ context.Context, maxRetries int) error {
	f.failedMaxRetries = append(f.failedMaxRetries, maxRetries)
	return nil
}

type fakeEventsSender struct {
	sent    []*entity.OutboxEvent
	sendErr error
}

func (f *fakeEventsSender) SendEvents(_ context.Context, events []*entity.OutboxEvent) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, events...)
	return nil
}

func (f *fakeEventsSender) Close() error { return nil }

func newTestRelay(uc usecase.InvoiceUseCase, es *fakeEventsSender) *Relay {
	r := New(uc, es, nopLogger{}, time.Second, time.Minute, time.Minute, time.Second, 2*time.Minute, 100, 5)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	return r
}

func pendingEvents(n int) []*entity.OutboxEvent {
	events := make([]*entity.OutboxEvent, n)
	for i := range events {
		events[i] = &entity.OutboxEvent{
			ID:          uuid.New(),
			AggregateID: uuid.New(),
			Payload:     []byte(`{"topic":"invoice/invoice/created","data":{}}`),
			Status:      entity.Pending,
		}
	}

	return events
}

func TestProcessEventsBatch(t *testing.T) {
	uc := &fakeOutboxUseCase{pending: pendingEvents(3)}
	es := &fakeEventsSender{}

	r := newTestRelay(uc, es)
	r.processEventsBatch(context.Background())

	assert.Len(t, uc.processing, 3)
	assert.Len(t, es.sent, 3)
	require.Len(t, uc.processed, 3)
	assert.Empty(t, uc.retried)
	assert.Equal(t, uc.pending[0].ID, uc.processed[0].ID)
}

func TestProcessEventsBatchSendFailure(t *testing.T) {
	uc := &fakeOutboxUseCase{pending: pendingEvents(2)}
	es := &fakeEventsSender{sendErr: errors.New("broker unavailable")}

	r := newTestRelay(uc, es)
	r.processEventsBatch(context.Background())

	// batch goes back to pending with a bumped retry counter, nothing is
	// marked processed
	assert.Len(t, uc.processing, 2)
	assert.Empty(t, uc.processed)
	assert.Len(t, uc.retried, 2)
}

// A batch ctx cancelled mid-send (send timeout, shutdown) must not strand
// the rows in processing: the retry-count compensation runs on its own ctx.
func TestProcessEventsBatchSendCancelledMidBatch(t *testing.T) {
	uc := &fakeOutboxUseCase{pending: pendingEvents(2)}
	es := &fakeEventsSender{sendErr: context.Canceled}

	r := newTestRelay(uc, es)

	batchCtx, batchCancel := context.WithCancel(context.Background())
	batchCancel()
	r.processEventsBatch(batchCtx)

	assert.Len(t, uc.processing, 2)
	assert.Empty(t, uc.processed)
	assert.Len(t, uc.retried, 2)
}

// Rows stranded in processing by a crash are returned to pending and rows
// past the retry budget are failed, on the same housekeeping tick.
func TestRecoverStuckEvents(t *testing.T) {
	uc := &fakeOutboxUseCase{}
	es := &fakeEventsSender{}

	r := newTestRelay(uc, es)
	r.recoverStuckEvents(context.Background())

	require.Len(t, uc.reclaimedOlderThan, 1)
	assert.Equal(t, 2*time.Minute, uc.reclaimedOlderThan[0])
	require.Len(t, uc.failedMaxRetries, 1)
	assert.Equal(t, 5, uc.failedMaxRetries[0])
}

func TestProcessEventsBatchEmpty(t *testing.T) {
	uc := &fakeOutboxUseCase{}
	es := &fakeEventsSender{}

	r := newTestRelay(uc, es)
	r.processEventsBatch(context.Background())

	assert.Empty(t, uc.processing)
	assert.Empty(t, es.sent)
}
