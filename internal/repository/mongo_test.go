package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"truckslot/internal/config"
	"truckslot/internal/domain"
	"truckslot/internal/storetest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBookingIndexes(t *testing.T) {
	require.Len(t, bookingIndexes, 1)
	idx := bookingIndexes[0]

	keys, ok := idx.Keys.(bson.D)
	require.True(t, ok)
	assert.Equal(t, "date", keys[0].Key)
	assert.Equal(t, "timeslot", keys[1].Key)
	require.NotNil(t, idx.Options.Unique)
	assert.True(t, *idx.Options.Unique)
}

// Requires a reachable server: TRUCKSLOT_TEST_MONGO_URI=mongodb://localhost:27017
func TestMongoStore_Contract(t *testing.T) {
	uri := os.Getenv("TRUCKSLOT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TRUCKSLOT_TEST_MONGO_URI not set")
	}
	logger := zerolog.Nop()

	storetest.Run(t, func(t *testing.T) domain.BookingStore {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg := config.MongoConfig{
			URI:        uri,
			Database:   "truckslot_test",
			Collection: fmt.Sprintf("bookings_%d", time.Now().UnixNano()),
		}
		store, err := NewMongoStore(ctx, cfg, &logger)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = store.collection.Drop(context.Background())
			_ = store.Close()
		})
		return store
	})
}
