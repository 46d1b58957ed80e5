package repository

import (
	"context"
	"testing"

	"truckslot/internal/config"
	"truckslot/internal/domain"
	"truckslot/internal/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "test"), s
}

func TestRedisStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.BookingStore {
		store, _ := newMiniredisStore(t)
		return store
	})
}

func TestRedisStore_Layout(t *testing.T) {
	store, s := newMiniredisStore(t)
	ctx := context.Background()

	b, err := store.Create(ctx, storetest.Candidate("2025-06-01", "10:00"))
	require.NoError(t, err)

	assert.True(t, s.Exists("test:bookings:2025-06-01"))
	raw := s.HGet("test:bookings:2025-06-01", "10:00")
	assert.Contains(t, raw, b.ID)
	assert.Contains(t, raw, `"truckPlate":"ABC123"`)
}

func TestRedisStore_StorageFailure(t *testing.T) {
	store, s := newMiniredisStore(t)
	s.Close()

	_, err := store.Create(context.Background(), storetest.Candidate("2025-06-01", "10:00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, domain.ErrSlotTaken)

	_, err = store.ListTimeslots(context.Background(), "2025-06-01")
	assert.ErrorIs(t, err, domain.ErrStorage)

	assert.Error(t, store.Ping(context.Background()))
}

func TestRedisStore_CorruptRecord(t *testing.T) {
	store, s := newMiniredisStore(t)
	s.HSet("test:bookings:2025-06-01", "10:00", "{not json")

	_, err := store.ListBookings(context.Background(), "2025-06-01", "2025-06-01")
	assert.ErrorIs(t, err, domain.ErrStorage)

	// the slot still counts as reserved
	slots, err := store.ListTimeslots(context.Background(), "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, slots)
}

func TestDatesBetween(t *testing.T) {
	dates, err := datesBetween("2025-02-27", "2025-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-27", "2025-02-28", "2025-03-01", "2025-03-02"}, dates)

	dates, err = datesBetween("2025-03-02", "2025-03-01")
	require.NoError(t, err)
	assert.Empty(t, dates)

	_, err = datesBetween("2025-01-01", "2027-01-01")
	assert.Error(t, err)

	_, err = datesBetween("bad", "2025-01-01")
	assert.Error(t, err)
}

func TestPingNilSafeClose(t *testing.T) {
	assert.NoError(t, Close(nil))

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	assert.NoError(t, Ping(context.Background(), client))
}
