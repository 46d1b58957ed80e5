package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"truckslot/internal/domain"
	"truckslot/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps bookings in process memory. One mutex guards the
// check-and-insert so it behaves like a storage-level unique constraint.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]*models.Booking // keyed by date|timeslot
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]*models.Booking),
		now:      time.Now,
	}
}

func (s *MemoryStore) ListTimeslots(ctx context.Context, date string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("list timeslots", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]string, 0)
	for _, b := range s.bookings {
		if b.Date == date {
			slots = append(slots, b.Timeslot)
		}
	}
	sort.Strings(slots)
	return slots, nil
}

func (s *MemoryStore) Create(ctx context.Context, c models.Candidate) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("create booking", err)
	}

	booking := c.ToBooking(uuid.NewString(), s.now())
	key := booking.SlotKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[key]; exists {
		return nil, &domain.ConflictError{Date: c.Date, Timeslot: c.Timeslot}
	}
	s.bookings[key] = booking

	out := *booking
	return &out, nil
}

func (s *MemoryStore) ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("list bookings", err)
	}

	s.mu.RLock()
	out := make([]*models.Booking, 0)
	for _, b := range s.bookings {
		if b.Date >= from && b.Date <= to {
			cp := *b
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sortBookings(out)
	return out, nil
}

// Len reports how many bookings are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func sortBookings(bookings []*models.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Date == bookings[j].Date {
			return bookings[i].Timeslot < bookings[j].Timeslot
		}
		return bookings[i].Date < bookings[j].Date
	})
}
