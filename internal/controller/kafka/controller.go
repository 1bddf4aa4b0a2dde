package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudcart/invoice-service/internal/event"
	"github.com/cloudcart/invoice-service/internal/infrastructure"
	"github.com/cloudcart/invoice-service/internal/usecase"
	"github.com/cloudcart/invoice-service/pkg/logger"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

type eventConsumer interface {
	ReadEvent(ctx context.Context) (kafka.Message, error)
	CommitEvent(ctx context.Context, event kafka.Message) error
	Close() error
}

// Controller drives an inbound event through decode, build and persist.
// Offsets are committed only after the invoice and its publish intent are
// durably stored, so an uncommitted event is redelivered and re-enters the
// pipeline where the conditional insert keeps it from duplicating anything.
type Controller struct {
	invoice usecase.InvoiceUseCase
	ec      eventConsumer
	dlq     infrastructure.DeadLetterSender
	logger  logger.Interface

	commitTimeout  time.Duration
	processTimeout time.Duration
	retryBackoff   time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	invoice usecase.InvoiceUseCase,
	ec eventConsumer,
	dlq infrastructure.DeadLetterSender,
	l logger.Interface,
	commitTimeout time.Duration,
	processTimeout time.Duration,
	retryBackoff time.Duration,
	workers int,
) *Controller {
	return &Controller{
		invoice:        invoice,
		ec:             ec,
		dlq:            dlq,
		logger:         l,
		commitTimeout:  commitTimeout,
		processTimeout: processTimeout,
		retryBackoff:   retryBackoff,
		workers:        workers,
	}
}

func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	// One lane per worker, routed by partition: committing an offset
	// advances the whole partition, so messages of one partition must be
	// resolved strictly in order or a later commit skips an earlier
	// unresolved event.
	lanes := make([]chan kafka.Message, c.workers)
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 2)

		c.wg.Add(1)
		go c.worker(lanes[i])
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()

		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				msg, err := c.ec.ReadEvent(c.ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						c.logger.Error(err, "KafkaController - Start - c.ec.ReadEvent")
					}
					continue
				}

				select {
				case lanes[laneIndex(msg, c.workers)] <- msg:
				case <-c.ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func laneIndex(msg kafka.Message, workers int) int {
	return msg.Partition % workers
}

// processEvent runs one inbound event through decode, build and persist.
// Errors wrapping ErrMalformedEvent or ErrInvalidOrderPayload are terminal;
// anything else is transient and resolved by bus redelivery.
func (c *Controller) processEvent(ctx context.Context, msg kafka.Message) error {
	order, err := event.DecodeOrderValidationSucceeded(msg.Value)
	if err != nil {
		return fmt.Errorf("KafkaController - processEvent - event.DecodeOrderValidationSucceeded: %w", err)
	}

	inv, created, err := c.invoice.CreateFromOrder(ctx, *order)
	if err != nil {
		return fmt.Errorf("KafkaController - processEvent - c.invoice.CreateFromOrder: %w", err)
	}

	if created {
		c.logger.Info("invoice created, invoice_id=%s, order_id=%s", inv.ID, inv.OrderID)
	} else {
		c.logger.Info("duplicate delivery, kept stored invoice, invoice_id=%s, order_id=%s", inv.ID, inv.OrderID)
	}

	return nil
}

func rejected(err error) bool {
	return errors.Is(err, errs.ErrMalformedEvent) || errors.Is(err, errs.ErrInvalidOrderPayload)
}

// worker resolves its lane strictly in order: an unresolved delivery is
// retried in place so no later message of the same partition can commit an
// offset past it.
func (c *Controller) worker(lane <-chan kafka.Message) {
	defer c.wg.Done()

	for msg := range lane {
		for {
			resolved := func() (resolved bool) {
				defer func() {
					if r := recover(); r != nil {
						// unresolved: retried like a transient failure so
						// the partition cannot commit past the message
						c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - worker - panic")
					}
				}()

				return c.handleMessage(msg)
			}()
			if resolved {
				break
			}

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.retryBackoff):
			}
		}
	}
}

// handleMessage decides the state of one delivery: acknowledged (commit),
// rejected (dead-letter + commit) or deferred (reported false, the caller
// retries; on shutdown the uncommitted offset is redelivered by the bus).
func (c *Controller) handleMessage(msg kafka.Message) bool {
	processCtx, processCancel := context.WithTimeout(c.ctx, c.processTimeout)
	err := c.processEvent(processCtx, msg)
	processCancel()
	if err != nil {
		if !rejected(err) {
			// transient: leave uncommitted
			c.logger.Error(err, "KafkaController - handleMessage - deferred")

			return false
		}

		// terminal: dead-letter, then fall through to commit so the
		// payload is never retried
		c.logger.Error(err, "KafkaController - handleMessage - rejected")

		dlqCtx, dlqCancel := context.WithTimeout(c.ctx, c.commitTimeout)
		dlqErr := c.dlq.SendDeadLetter(dlqCtx, msg.Key, msg.Value, err.Error())
		dlqCancel()
		if dlqErr != nil {
			c.logger.Error(dlqErr, "KafkaController - handleMessage - c.dlq.SendDeadLetter")

			return false
		}
	}

	commitCtx, commitCancel := context.WithTimeout(c.ctx, c.commitTimeout)
	commitErr := c.ec.CommitEvent(commitCtx, msg)
	commitCancel()
	if commitErr != nil {
		// processing was durable; redelivery after a failed commit is
		// absorbed by the conditional insert
		c.logger.Error(commitErr, "KafkaController - handleMessage - c.ec.CommitEvent")
	}

	return true
}

func (c *Controller) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		c.ec.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
