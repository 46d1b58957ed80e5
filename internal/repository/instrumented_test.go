package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"truckslot/internal/domain"
	"truckslot/internal/models"
	"truckslot/internal/storetest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore blocks until the context is done.
type slowStore struct {
	*MemoryStore
}

func (s slowStore) Create(ctx context.Context, c models.Candidate) (*models.Booking, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingStore struct {
	*MemoryStore
	err error
}

func (s failingStore) ListTimeslots(context.Context, string) ([]string, error) {
	return nil, s.err
}

func TestInstrumentedStore_Contract(t *testing.T) {
	logger := zerolog.Nop()
	storetest.Run(t, func(t *testing.T) domain.BookingStore {
		return NewInstrumentedStore(NewMemoryStore(), "memory", time.Second, &logger)
	})
}

func TestInstrumentedStore_Timeout(t *testing.T) {
	logger := zerolog.Nop()
	store := NewInstrumentedStore(slowStore{NewMemoryStore()}, "slow", 20*time.Millisecond, &logger)

	_, err := store.Create(context.Background(), storetest.Candidate("2025-06-01", "10:00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInstrumentedStore_WrapsRawErrors(t *testing.T) {
	logger := zerolog.Nop()
	store := NewInstrumentedStore(failingStore{NewMemoryStore(), errors.New("disk full")}, "broken", 0, &logger)

	_, err := store.ListTimeslots(context.Background(), "2025-06-01")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Contains(t, err.Error(), "disk full")
}
