package service

import (
	"context"
	"errors"

	"truckslot/internal/domain"
	"truckslot/internal/events"
	"truckslot/internal/metrics"
	"truckslot/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	store     domain.BookingStore
	eventBus  domain.EventPublisher
	validator *BookingValidator
	logger    *zerolog.Logger
}

func NewBookingService(store domain.BookingStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:     store,
		eventBus:  eventBus,
		validator: NewBookingValidator(),
		logger:    logger,
	}
}

// GetReservedTimeslots returns the reserved timeslots for a date.
// Deriving availability is left to the caller.
func (s *BookingService) GetReservedTimeslots(ctx context.Context, date string) ([]string, error) {
	if err := s.validator.ValidateDate("date", date); err != nil {
		return nil, err
	}

	slots, err := s.store.ListTimeslots(ctx, date)
	if err != nil {
		return nil, domain.NewStorageError("list timeslots", err)
	}
	return slots, nil
}

// SubmitBooking validates the request and hands it to the store's atomic
// insert. Conflicts are terminal; nothing is retried.
func (s *BookingService) SubmitBooking(ctx context.Context, candidate models.Candidate) (*models.Booking, error) {
	candidate = candidate.Normalize()

	if err := s.validator.ValidateCandidate(candidate); err != nil {
		metrics.IncBookingOutcome(models.OutcomeInvalid)
		return nil, err
	}

	booking, err := s.store.Create(ctx, candidate)
	if err != nil {
		if errors.Is(err, domain.ErrSlotTaken) {
			metrics.IncBookingOutcome(models.OutcomeConflict)
			s.logger.Info().
				Str("date", candidate.Date).
				Str("timeslot", candidate.Timeslot).
				Msg("timeslot already reserved")
			return nil, err
		}

		metrics.IncBookingOutcome(models.OutcomeError)
		return nil, domain.NewStorageError("create booking", err)
	}

	metrics.IncBookingOutcome(models.OutcomeCreated)
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("date", booking.Date).
		Str("timeslot", booking.Timeslot).
		Str("company", booking.Company).
		Msg("booking created")

	s.publishCreated(booking)

	return booking, nil
}

// ListBookings returns committed bookings in an inclusive date range.
func (s *BookingService) ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error) {
	if err := s.validator.ValidateRange(from, to); err != nil {
		return nil, err
	}

	bookings, err := s.store.ListBookings(ctx, from, to)
	if err != nil {
		return nil, domain.NewStorageError("list bookings", err)
	}
	return bookings, nil
}

func (s *BookingService) publishCreated(booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(events.EventBookingCreated, events.NewBookingPayload(booking)); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("publish booking_created failed")
	}
}
