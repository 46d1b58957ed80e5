package repository

import (
	"context"
	"testing"

	"truckslot/internal/domain"
	"truckslot/internal/storetest"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.BookingStore {
		return NewMemoryStore()
	})
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, storetest.Candidate("2025-06-01", "10:00"))
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())

	_, err = store.ListTimeslots(ctx, "2025-06-01")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	b, err := store.Create(ctx, storetest.Candidate("2025-06-01", "10:00"))
	assert.NoError(t, err)
	b.Timeslot = "mutated"

	slots, err := store.ListTimeslots(ctx, "2025-06-01")
	assert.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, slots)
}
