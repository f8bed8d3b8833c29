package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/waveleads/lead-agent-platform/internal/messaging"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

const (
	defaultWorkers          = 4
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
	defaultJobTimeout       = 60 * time.Second
)

// ErrDispatcherClosed is returned when enqueueing after shutdown.
var ErrDispatcherClosed = errors.New("conversation: dispatcher closed")

// TurnProcessor handles one dequeued inbound message.
type TurnProcessor interface {
	HandleInbound(ctx context.Context, msg messaging.Inbound) error
}

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	jobTimeout       time.Duration
}

// DispatcherOption customizes dispatcher behaviour.
type DispatcherOption func(*dispatcherConfig)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for receive calls.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			seconds = 0
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// WithJobTimeout bounds how long one turn may take before its context is
// cancelled.
func WithJobTimeout(d time.Duration) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if d > 0 {
			cfg.jobTimeout = d
		}
	}
}

// Dispatcher decouples webhook intake from turn processing: Enqueue returns
// as soon as the payload is on the queue and a worker picks it up later. The
// work is fire-and-forget because the webhook has already been acknowledged.
type Dispatcher struct {
	processor TurnProcessor
	queue     queueClient
	logger    *logging.Logger
	cfg       dispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher wires a queue-backed dispatcher around the supplied processor
// and starts its workers.
func NewDispatcher(processor TurnProcessor, queue queueClient, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
		jobTimeout:       defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		processor: processor,
		queue:     queue,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(i + 1)
	}
	return d
}

// Enqueue queues an inbound message for processing.
func (d *Dispatcher) Enqueue(ctx context.Context, msg messaging.Inbound) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	default:
	}

	body, err := encodeInbound(msg)
	if err != nil {
		return err
	}
	if err := d.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue inbound message: %w", err)
	}
	return nil
}

// Shutdown stops worker goroutines and waits for in-flight turns.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) runWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("dispatcher worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("dispatcher worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(d.ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive inbound jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleQueueMessage(msg)
		}
	}
}

func (d *Dispatcher) handleQueueMessage(msg queueMessage) {
	inbound, err := decodeInbound(msg.Body)
	if err != nil {
		d.logger.Error("failed to decode inbound job, dropping", "error", err)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.jobTimeout)
	err = d.processor.HandleInbound(ctx, inbound)
	cancel()
	if err != nil {
		d.logger.Error("failed to process inbound message", "error", err, "contact_key", inbound.ContactKey)
	}

	// Deleted even on failure: the engine already answered the contact with
	// a fallback where it could, and a redelivery would replay the oracle.
	d.deleteMessage(msg.ReceiptHandle)
}

func (d *Dispatcher) deleteMessage(receiptHandle string) {
	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.queue.Delete(deleteCtx, receiptHandle); err != nil {
		d.logger.Error("failed to delete inbound job", "error", err)
	}
}
