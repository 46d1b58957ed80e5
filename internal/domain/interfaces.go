package domain

import (
	"context"

	"truckslot/internal/models"
)

// BookingStore is the durable record of reservations. Create must enforce
// one booking per (date, timeslot) atomically inside the storage engine.
type BookingStore interface {
	ListTimeslots(ctx context.Context, date string) ([]string, error)
	Create(ctx context.Context, candidate models.Candidate) (*models.Booking, error)
	ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error)
	Ping(ctx context.Context) error
	Close() error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type BookingService interface {
	GetReservedTimeslots(ctx context.Context, date string) ([]string, error)
	SubmitBooking(ctx context.Context, candidate models.Candidate) (*models.Booking, error)
	ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error)
}
