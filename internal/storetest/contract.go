// Package storetest holds the behavioural contract every BookingStore
// backend must satisfy. Backend packages run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"truckslot/internal/domain"
	"truckslot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) domain.BookingStore

// Candidate builds a fully populated booking request.
func Candidate(date, timeslot string) models.Candidate {
	return models.Candidate{
		ContactName:  "Ada Lovelace",
		ContactEmail: "ada@example.com",
		Company:      "Acme Logistics",
		VAT:          "LT100001",
		TruckPlate:   "ABC123",
		Date:         date,
		Timeslot:     timeslot,
	}
}

// Run executes the full contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyDate", func(t *testing.T) {
		store := newStore(t)
		slots, err := store.ListTimeslots(context.Background(), "2025-06-01")
		require.NoError(t, err)
		assert.NotNil(t, slots)
		assert.Empty(t, slots)
	})

	t.Run("CreateAssignsIdentity", func(t *testing.T) {
		store := newStore(t)
		c := Candidate("2025-06-01", "10:00")
		c.ReloadCity = "Kaunas"

		b, err := store.Create(context.Background(), c)
		require.NoError(t, err)
		assert.NotEmpty(t, b.ID)
		assert.False(t, b.CreatedAt.IsZero())
		assert.Equal(t, "2025-06-01", b.Date)
		assert.Equal(t, "10:00", b.Timeslot)
		assert.Equal(t, "Kaunas", b.ReloadCity)
		assert.Empty(t, b.NewTruckNumber)
	})

	t.Run("ConflictNamesTimeslot", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, Candidate("2025-06-01", "10:00"))
		require.NoError(t, err)

		other := Candidate("2025-06-01", "10:00")
		other.Company = "Other Co"
		_, err = store.Create(ctx, other)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSlotTaken)
		assert.NotErrorIs(t, err, domain.ErrStorage)

		var conflict *domain.ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "10:00", conflict.Timeslot)
		assert.Equal(t, "2025-06-01", conflict.Date)

		slots, err := store.ListTimeslots(ctx, "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"10:00"}, slots)

		bookings, err := store.ListBookings(ctx, "2025-06-01", "2025-06-01")
		require.NoError(t, err)
		require.Len(t, bookings, 1)
		assert.Equal(t, "Acme Logistics", bookings[0].Company, "losing request must not overwrite the winner")
	})

	t.Run("SameSlotOtherDate", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, Candidate("2025-06-01", "10:00"))
		require.NoError(t, err)
		_, err = store.Create(ctx, Candidate("2025-06-02", "10:00"))
		require.NoError(t, err)
		_, err = store.Create(ctx, Candidate("2025-06-01", "12:00"))
		require.NoError(t, err)

		slots, err := store.ListTimeslots(ctx, "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"10:00", "12:00"}, slots)
	})

	t.Run("IdempotentRead", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, Candidate("2025-06-01", "14:00"))
		require.NoError(t, err)
		_, err = store.Create(ctx, Candidate("2025-06-01", "08:00"))
		require.NoError(t, err)

		first, err := store.ListTimeslots(ctx, "2025-06-01")
		require.NoError(t, err)
		second, err := store.ListTimeslots(ctx, "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, []string{"08:00", "14:00"}, first)
	})

	t.Run("ListBookingsRange", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, c := range []models.Candidate{
			Candidate("2025-06-03", "08:00"),
			Candidate("2025-06-01", "12:00"),
			Candidate("2025-06-01", "10:00"),
			Candidate("2025-06-05", "10:00"),
		} {
			_, err := store.Create(ctx, c)
			require.NoError(t, err)
		}

		bookings, err := store.ListBookings(ctx, "2025-06-01", "2025-06-03")
		require.NoError(t, err)
		require.Len(t, bookings, 3)
		assert.Equal(t, "2025-06-01|10:00", bookings[0].SlotKey())
		assert.Equal(t, "2025-06-01|12:00", bookings[1].SlotKey())
		assert.Equal(t, "2025-06-03|08:00", bookings[2].SlotKey())
	})

	t.Run("ConcurrentCreates", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const numGoroutines = 10
		var wg sync.WaitGroup
		wg.Add(numGoroutines)

		results := make(chan error, numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				c := Candidate("2025-06-01", "10:00")
				c.ContactName = fmt.Sprintf("Driver %d", id)
				_, err := store.Create(ctx, c)
				results <- err
			}(i)
		}

		wg.Wait()
		close(results)

		successCount, conflictCount := 0, 0
		for err := range results {
			switch {
			case err == nil:
				successCount++
			case errors.Is(err, domain.ErrSlotTaken):
				conflictCount++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}

		assert.Equal(t, 1, successCount, "exactly one booking should win the slot")
		assert.Equal(t, numGoroutines-1, conflictCount)

		slots, err := store.ListTimeslots(ctx, "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"10:00"}, slots)
	})

	t.Run("Ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(context.Background()))
	})
}
