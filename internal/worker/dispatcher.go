package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"truckslot/internal/events"
	"truckslot/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultDeadLetterKey = "truckslot:notifications:deadletter"

var (
	ErrQueueFull        = errors.New("notification queue is full")
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

// Sink delivers a committed booking to one external system.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, p *events.BookingEventPayload) error
}

// DeadLetter is stored in redis when a sink exhausts its retries.
type DeadLetter struct {
	Sink      string                     `json:"sink"`
	Payload   events.BookingEventPayload `json:"payload"`
	Attempts  int                        `json:"attempts"`
	LastError string                     `json:"last_error"`
	FailedAt  time.Time                  `json:"failed_at"`
}

// Dispatcher fans booking_created events out to the configured sinks.
// A single consumer drains a bounded queue, so sinks see events in commit order.
type Dispatcher struct {
	sinks         []Sink
	queue         chan events.BookingEventPayload
	redis         *redis.Client
	retryPolicy   RetryPolicy
	deadLetterKey string
	logger        *zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	wait func(ctx context.Context, d time.Duration) error
}

// NewDispatcher builds a dispatcher with sane defaults. redisClient may be nil,
// in which case exhausted deliveries are only logged.
func NewDispatcher(sinks []Sink, queueSize int, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Dispatcher{
		sinks:         sinks,
		queue:         make(chan events.BookingEventPayload, queueSize),
		redis:         redisClient,
		retryPolicy:   retry,
		deadLetterKey: DefaultDeadLetterKey,
		logger:        logger,
		done:          make(chan struct{}),
		wait:          sleepContext,
	}
}

// Subscribe routes booking_created events from the bus into the queue.
func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		var p events.BookingEventPayload
		if err := e.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		return d.Enqueue(p)
	})
}

// Enqueue never blocks; when the queue is full the notification is dropped.
func (d *Dispatcher) Enqueue(p events.BookingEventPayload) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- p:
		return nil
	default:
		metrics.IncDelivery("queue", "dropped")
		d.logger.Warn().
			Str("booking_id", p.BookingID).
			Int("capacity", cap(d.queue)).
			Msg("notification queue full, dropping")
		return ErrQueueFull
	}
}

// Pending reports how many notifications are waiting.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Start runs the consumer until ctx is done or Shutdown drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)
	d.logger.Info().Int("sinks", len(d.sinks)).Msg("notification dispatcher started")
	defer d.logger.Info().Msg("notification dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				d.logger.Warn().Int("pending", n).Msg("dispatcher stopped with undelivered notifications")
			}
			return
		case p, ok := <-d.queue:
			if !ok {
				return
			}
			d.process(ctx, &p)
		}
	}
}

// Shutdown stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) process(ctx context.Context, p *events.BookingEventPayload) {
	for _, sink := range d.sinks {
		d.deliver(ctx, sink, p)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, p *events.BookingEventPayload) {
	var lastErr error
	for attempt := 1; attempt <= d.retryPolicy.MaxRetries; attempt++ {
		lastErr = sink.Deliver(ctx, p)
		if lastErr == nil {
			metrics.IncDelivery(sink.Name(), "success")
			return
		}

		metrics.IncDelivery(sink.Name(), "error")
		d.logger.Warn().Err(lastErr).
			Str("sink", sink.Name()).
			Str("booking_id", p.BookingID).
			Int("attempt", attempt).
			Msg("notification delivery failed")

		if attempt == d.retryPolicy.MaxRetries {
			break
		}
		if err := d.wait(ctx, d.retryPolicy.NextDelay(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	metrics.IncDelivery(sink.Name(), "exhausted")
	d.logger.Error().Err(lastErr).
		Str("sink", sink.Name()).
		Str("booking_id", p.BookingID).
		Str("date", p.Date).
		Str("timeslot", p.Timeslot).
		Msg("notification delivery exhausted")
	d.pushDeadLetter(ctx, sink.Name(), p, lastErr)
}

func (d *Dispatcher) pushDeadLetter(ctx context.Context, sinkName string, p *events.BookingEventPayload, cause error) {
	if d.redis == nil {
		return
	}

	entry := DeadLetter{
		Sink:     sinkName,
		Payload:  *p,
		Attempts: d.retryPolicy.MaxRetries,
		FailedAt: time.Now().UTC(),
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		d.logger.Error().Err(err).Str("booking_id", p.BookingID).Msg("encode dead letter")
		return
	}

	// the run context may already be cancelled
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.redis.LPush(pushCtx, d.deadLetterKey, data).Err(); err != nil {
		d.logger.Error().Err(err).Str("booking_id", p.BookingID).Msg("dead letter push failed")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
