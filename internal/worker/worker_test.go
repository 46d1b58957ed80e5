package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"truckslot/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	name string

	mu        sync.Mutex
	failures  int
	delivered []string
	calls     int
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Deliver(_ context.Context, p *events.BookingEventPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("sink unavailable")
	}
	f.delivered = append(f.delivered, p.BookingID)
	return nil
}

func (f *fakeSink) snapshot() (calls int, delivered []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]string(nil), f.delivered...)
}

func newTestDispatcher(sinks []Sink, queueSize int, rdb *redis.Client, retry RetryPolicy) (*Dispatcher, *[]time.Duration) {
	logger := zerolog.Nop()
	d := NewDispatcher(sinks, queueSize, rdb, retry, &logger)

	var waits []time.Duration
	d.wait = func(ctx context.Context, delay time.Duration) error {
		waits = append(waits, delay)
		return ctx.Err()
	}
	return d, &waits
}

func payload(id string) events.BookingEventPayload {
	return events.BookingEventPayload{BookingID: id, Date: "2025-06-01", Timeslot: "10:00"}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d)
	}
}

func TestDispatcher_DeliverSuccess(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	d, waits := newTestDispatcher([]Sink{a, b}, 4, nil, RetryPolicy{MaxRetries: 3})

	p := payload("b-1")
	d.process(context.Background(), &p)

	_, gotA := a.snapshot()
	_, gotB := b.snapshot()
	assert.Equal(t, []string{"b-1"}, gotA)
	assert.Equal(t, []string{"b-1"}, gotB)
	assert.Empty(t, *waits)
}

func TestDispatcher_RetriesWithBackoff(t *testing.T) {
	sink := &fakeSink{name: "flaky", failures: 2}
	d, waits := newTestDispatcher([]Sink{sink}, 4, nil, RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		BackoffFactor: 2,
		MaxDelay:      time.Minute,
	})

	p := payload("b-2")
	d.process(context.Background(), &p)

	calls, delivered := sink.snapshot()
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"b-2"}, delivered)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestDispatcher_ExhaustedGoesToDeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	broken := &fakeSink{name: "broken", failures: 100}
	healthy := &fakeSink{name: "healthy"}
	d, _ := newTestDispatcher([]Sink{broken, healthy}, 4, rdb, RetryPolicy{MaxRetries: 3})

	p := payload("b-3")
	d.process(context.Background(), &p)

	calls, _ := broken.snapshot()
	assert.Equal(t, 3, calls)
	_, delivered := healthy.snapshot()
	assert.Equal(t, []string{"b-3"}, delivered, "a failing sink must not block the others")

	items, err := mr.List(DefaultDeadLetterKey)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var dl DeadLetter
	require.NoError(t, json.Unmarshal([]byte(items[0]), &dl))
	assert.Equal(t, "broken", dl.Sink)
	assert.Equal(t, "b-3", dl.Payload.BookingID)
	assert.Equal(t, 3, dl.Attempts)
	assert.Equal(t, "sink unavailable", dl.LastError)
}

func TestDispatcher_ExhaustedWithoutRedis(t *testing.T) {
	sink := &fakeSink{name: "broken", failures: 100}
	d, _ := newTestDispatcher([]Sink{sink}, 4, nil, RetryPolicy{MaxRetries: 2})

	p := payload("b-4")
	assert.NotPanics(t, func() { d.process(context.Background(), &p) })
}

func TestDispatcher_QueueFull(t *testing.T) {
	d, _ := newTestDispatcher(nil, 1, nil, RetryPolicy{})

	require.NoError(t, d.Enqueue(payload("b-1")))
	assert.ErrorIs(t, d.Enqueue(payload("b-2")), ErrQueueFull)
	assert.Equal(t, 1, d.Pending())
}

func TestDispatcher_SubscribeAndDrain(t *testing.T) {
	sink := &fakeSink{name: "sink"}
	d, _ := newTestDispatcher([]Sink{sink}, 8, nil, RetryPolicy{})

	bus := events.NewEventBus()
	d.Subscribe(bus)

	for _, id := range []string{"b-1", "b-2", "b-3"} {
		require.NoError(t, bus.PublishJSON(events.EventBookingCreated, payload(id)))
	}
	assert.Equal(t, 3, d.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, d.Shutdown(shutdownCtx))

	_, delivered := sink.snapshot()
	assert.Equal(t, []string{"b-1", "b-2", "b-3"}, delivered, "events are delivered in publish order")

	assert.ErrorIs(t, d.Enqueue(payload("late")), ErrDispatcherClosed)
	assert.ErrorIs(t, bus.PublishJSON(events.EventBookingCreated, payload("late")), ErrDispatcherClosed)
}

func TestDispatcher_StopsOnContextCancel(t *testing.T) {
	d, _ := newTestDispatcher(nil, 4, nil, RetryPolicy{})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(finished)
	}()
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
