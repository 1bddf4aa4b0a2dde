package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudcart/invoice-service/internal/infrastructure"
	"github.com/cloudcart/invoice-service/internal/usecase"
	"github.com/cloudcart/invoice-service/pkg/logger"
)

const _compensationTimeout = 5 * time.Second

// Relay publishes pending invoice created events from the outbox. A row is
// marked processed only after the broker accepted it; a failed send puts the
// batch back to pending with a bumped retry counter, so delivery is
// at-least-once and a stored invoice is never left unpublished.
type Relay struct {
	invoice usecase.InvoiceUseCase
	es      infrastructure.EventsSender
	logger  logger.Interface

	pollInterval        time.Duration
	cleanupInterval     time.Duration
	markFailedInterval  time.Duration
	processBatchTimeout time.Duration
	stuckTimeout        time.Duration
	batchSize           int
	maxRetries          int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	invoice usecase.InvoiceUseCase,
	es infrastructure.EventsSender,
	l logger.Interface,
	pollInterval time.Duration,
	cleanupInterval time.Duration,
	markFailedInterval time.Duration,
	processBatchTimeout time.Duration,
	stuckTimeout time.Duration,
	batchSize int,
	maxRetries int,
) *Relay {
	return &Relay{
		invoice:             invoice,
		es:                  es,
		logger:              l,
		pollInterval:        pollInterval,
		cleanupInterval:     cleanupInterval,
		markFailedInterval:  markFailedInterval,
		processBatchTimeout: processBatchTimeout,
		stuckTimeout:        stuckTimeout,
		batchSize:           batchSize,
		maxRetries:          maxRetries,
	}
}

func (r *Relay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("OutboxRelay - Start - worker already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	// 1. publish pending events
	r.worker(r.pollInterval, func() {
		batchCtx, batchCancel := context.WithTimeout(r.ctx, r.processBatchTimeout)
		r.processEventsBatch(batchCtx)
		batchCancel()
	})

	// 2. recover stranded rows and give up on rows past the retry budget
	r.worker(r.markFailedInterval, func() {
		r.recoverStuckEvents(r.ctx)
	})

	// 3. clean processed/failed rows
	r.worker(r.cleanupInterval, func() {
		err := r.invoice.CleanupOutbox(r.ctx)
		if err != nil {
			r.logger.Error(err, "OutboxRelay - Start - worker - r.invoice.CleanupOutbox")
		}
	})

	return nil
}

func (r *Relay) processEventsBatch(ctx context.Context) {
	events, err := r.invoice.GetPendingEvents(ctx, r.maxRetries, r.batchSize)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.invoice.GetPendingEvents")

		return
	}
	if len(events) == 0 {
		return
	}

	err = r.invoice.MarkAsProcessingBatch(ctx, events)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.invoice.MarkAsProcessingBatch")

		return
	}

	err = r.es.SendEvents(ctx, events)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.es.SendEvents")

		// the batch ctx may already be cancelled (send timeout, shutdown);
		// the rows must still go back to pending or no query will ever
		// pick them up again
		incCtx, incCancel := context.WithTimeout(context.WithoutCancel(ctx), _compensationTimeout)
		defer incCancel()

		incErr := r.invoice.IncrementRetryCountBatch(incCtx, events)
		if incErr != nil {
			r.logger.Error(incErr, "OutboxRelay - processEventsBatch - r.invoice.IncrementRetryCountBatch")
		}
		return
	}

	err = r.invoice.MarkAsProcessedBatch(ctx, events)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.invoice.MarkAsProcessedBatch")

		return
	}
}

// recoverStuckEvents returns rows stranded in processing (crash or shutdown
// mid-batch) to pending, then fails rows past the retry budget.
func (r *Relay) recoverStuckEvents(ctx context.Context) {
	err := r.invoice.ReclaimStuckEvents(ctx, r.stuckTimeout)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - recoverStuckEvents - r.invoice.ReclaimStuckEvents")
	}

	err = r.invoice.MarkMaxRetriesAsFailed(ctx, r.maxRetries)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - recoverStuckEvents - r.invoice.MarkMaxRetriesAsFailed")
	}
}

func (r *Relay) worker(interval time.Duration, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (r *Relay) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		r.es.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
