package repository

import (
	"context"
	"errors"
	"time"

	"truckslot/internal/domain"
	"truckslot/internal/metrics"
	"truckslot/internal/models"

	"github.com/rs/zerolog"
)

// InstrumentedStore wraps a backend with a per-call deadline, latency
// metrics and error logging. It never retries.
type InstrumentedStore struct {
	inner   domain.BookingStore
	driver  string
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewInstrumentedStore(inner domain.BookingStore, driver string, timeout time.Duration, logger *zerolog.Logger) *InstrumentedStore {
	return &InstrumentedStore{
		inner:   inner,
		driver:  driver,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *InstrumentedStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *InstrumentedStore) ListTimeslots(ctx context.Context, date string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	defer metrics.ObserveStoreOp(s.driver, "list_timeslots", time.Now())

	slots, err := s.inner.ListTimeslots(ctx, date)
	if err != nil {
		err = domain.NewStorageError("list timeslots", err)
		s.logger.Error().Err(err).Str("driver", s.driver).Str("date", date).Msg("list timeslots failed")
		return nil, err
	}
	return slots, nil
}

func (s *InstrumentedStore) Create(ctx context.Context, c models.Candidate) (*models.Booking, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	defer metrics.ObserveStoreOp(s.driver, "create", time.Now())

	booking, err := s.inner.Create(ctx, c)
	if err == nil {
		return booking, nil
	}
	if errors.Is(err, domain.ErrSlotTaken) {
		return nil, err
	}

	err = domain.NewStorageError("create booking", err)
	s.logger.Error().Err(err).
		Str("driver", s.driver).
		Str("date", c.Date).
		Str("timeslot", c.Timeslot).
		Msg("create booking failed")
	return nil, err
}

func (s *InstrumentedStore) ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	defer metrics.ObserveStoreOp(s.driver, "list_bookings", time.Now())

	bookings, err := s.inner.ListBookings(ctx, from, to)
	if err != nil {
		err = domain.NewStorageError("list bookings", err)
		s.logger.Error().Err(err).Str("driver", s.driver).Str("from", from).Str("to", to).Msg("list bookings failed")
		return nil, err
	}
	return bookings, nil
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.inner.Ping(ctx)
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
