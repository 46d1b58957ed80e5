package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"truckslot/internal/domain"
	"truckslot/internal/events"
	"truckslot/internal/models"
	"truckslot/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListTimeslots(ctx context.Context, date string) ([]string, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, c models.Candidate) (*models.Booking, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockStore) Close() error { return m.Called().Error(0) }

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

var testTime = time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC)

func validCandidate() models.Candidate {
	return models.Candidate{
		ContactName:  "Ada Lovelace",
		ContactEmail: "ada@example.com",
		Company:      "Acme Logistics",
		VAT:          "LT100001",
		TruckPlate:   "ABC123",
		Date:         "2025-06-01",
		Timeslot:     "10:00",
	}
}

func newTestService(store domain.BookingStore, pub domain.EventPublisher) *BookingService {
	logger := zerolog.New(io.Discard)
	return NewBookingService(store, pub, &logger)
}

func TestGetReservedTimeslots(t *testing.T) {
	ctx := context.Background()

	t.Run("DelegatesToStore", func(t *testing.T) {
		store := new(mockStore)
		store.On("ListTimeslots", ctx, "2025-06-01").Return([]string{"08:00", "10:00"}, nil).Once()

		slots, err := newTestService(store, nil).GetReservedTimeslots(ctx, "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"08:00", "10:00"}, slots)
		store.AssertExpectations(t)
	})

	t.Run("InvalidDates", func(t *testing.T) {
		for _, date := range []string{"", "2025-13-01", "01/06/2025", "tomorrow"} {
			store := new(mockStore)
			_, err := newTestService(store, nil).GetReservedTimeslots(ctx, date)
			assert.ErrorIs(t, err, domain.ErrInvalidInput, date)
			store.AssertNotCalled(t, "ListTimeslots", mock.Anything, mock.Anything)
		}
	})

	t.Run("StorageFailure", func(t *testing.T) {
		store := new(mockStore)
		store.On("ListTimeslots", ctx, "2025-06-01").Return(nil, errors.New("connection refused")).Once()

		_, err := newTestService(store, nil).GetReservedTimeslots(ctx, "2025-06-01")
		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}

func TestSubmitBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := new(mockStore)
		pub := new(mockPublisher)
		want := validCandidate().ToBooking("b-1", testTime)

		store.On("Create", ctx, validCandidate()).Return(want, nil).Once()
		pub.On("PublishJSON", events.EventBookingCreated, events.NewBookingPayload(want)).Return(nil).Once()

		got, err := newTestService(store, pub).SubmitBooking(ctx, validCandidate())
		require.NoError(t, err)
		assert.Equal(t, want, got)
		store.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("TrimsBeforeStoring", func(t *testing.T) {
		store := new(mockStore)
		padded := validCandidate()
		padded.Timeslot = " 10:00 "
		padded.ContactName = "  Ada Lovelace"

		store.On("Create", ctx, validCandidate()).Return(validCandidate().ToBooking("b-1", testTime), nil).Once()

		_, err := newTestService(store, nil).SubmitBooking(ctx, padded)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		store := new(mockStore)
		c := validCandidate()
		c.ContactEmail = ""
		c.VAT = "   "

		_, err := newTestService(store, nil).SubmitBooking(ctx, c)
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{"contactEmail", "vat"}, verr.Fields)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("OptionalFieldsMayBeEmpty", func(t *testing.T) {
		store := new(mockStore)
		c := validCandidate()
		c.ReloadCity = ""
		c.NewTruckNumber = ""
		store.On("Create", ctx, c).Return(c.ToBooking("b-2", testTime), nil).Once()

		_, err := newTestService(store, nil).SubmitBooking(ctx, c)
		assert.NoError(t, err)
	})

	t.Run("MalformedDate", func(t *testing.T) {
		store := new(mockStore)
		c := validCandidate()
		c.Date = "2025-02-30"

		_, err := newTestService(store, nil).SubmitBooking(ctx, c)
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{"date"}, verr.Fields)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Conflict", func(t *testing.T) {
		store := new(mockStore)
		pub := new(mockPublisher)
		store.On("Create", ctx, validCandidate()).
			Return(nil, &domain.ConflictError{Date: "2025-06-01", Timeslot: "10:00"}).Once()

		_, err := newTestService(store, pub).SubmitBooking(ctx, validCandidate())
		require.ErrorIs(t, err, domain.ErrSlotTaken)

		var conflict *domain.ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "10:00", conflict.Timeslot)
		store.AssertNumberOfCalls(t, "Create", 1)
		pub.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})

	t.Run("StorageFailureIsNotConflict", func(t *testing.T) {
		store := new(mockStore)
		store.On("Create", ctx, validCandidate()).Return(nil, errors.New("disk I/O error")).Once()

		_, err := newTestService(store, nil).SubmitBooking(ctx, validCandidate())
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.NotErrorIs(t, err, domain.ErrSlotTaken)
		store.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("PublishFailureDoesNotFailBooking", func(t *testing.T) {
		store := new(mockStore)
		pub := new(mockPublisher)
		store.On("Create", ctx, validCandidate()).Return(validCandidate().ToBooking("b-3", testTime), nil).Once()
		pub.On("PublishJSON", events.EventBookingCreated, mock.Anything).Return(errors.New("bus down")).Once()

		got, err := newTestService(store, pub).SubmitBooking(ctx, validCandidate())
		require.NoError(t, err)
		assert.Equal(t, "b-3", got.ID)
	})
}

func TestListBookings(t *testing.T) {
	ctx := context.Background()

	t.Run("Delegates", func(t *testing.T) {
		store := new(mockStore)
		store.On("ListBookings", ctx, "2025-06-01", "2025-06-30").Return([]*models.Booking{}, nil).Once()

		_, err := newTestService(store, nil).ListBookings(ctx, "2025-06-01", "2025-06-30")
		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("InvalidRanges", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil)
		for _, r := range [][2]string{
			{"", "2025-06-30"},
			{"2025-06-30", "2025-06-01"},
			{"2025-01-01", "2026-06-01"},
			{"2025-06-01", "June"},
		} {
			_, err := svc.ListBookings(ctx, r[0], r[1])
			assert.ErrorIs(t, err, domain.ErrInvalidInput, fmt.Sprint(r))
		}
		store.AssertNotCalled(t, "ListBookings", mock.Anything, mock.Anything, mock.Anything)
	})
}

// Walks the documented reserve-then-conflict scenario against a real store.
func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	bus := events.NewEventBus()

	var published []string
	bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		var p events.BookingEventPayload
		require.NoError(t, e.Decode(&p))
		published = append(published, p.Timeslot)
		return nil
	})

	svc := newTestService(store, bus)

	slots, err := svc.GetReservedTimeslots(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.Empty(t, slots)

	b, err := svc.SubmitBooking(ctx, validCandidate())
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)

	slots, err = svc.GetReservedTimeslots(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, slots)

	_, err = svc.SubmitBooking(ctx, validCandidate())
	assert.ErrorIs(t, err, domain.ErrSlotTaken)

	again, err := svc.GetReservedTimeslots(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, slots, again)

	missing := validCandidate()
	missing.ContactEmail = ""
	missing.Timeslot = "12:00"
	_, err = svc.SubmitBooking(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, store.Len(), "invalid request must not touch the store")

	assert.Equal(t, []string{"10:00"}, published)
}

func TestConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newTestService(store, nil)

	const n = 25
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := validCandidate()
			c.TruckPlate = fmt.Sprintf("TRK%03d", i)
			_, err := svc.SubmitBooking(ctx, c)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	ok, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, store.Len())
}
