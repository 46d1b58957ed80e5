package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"truckslot/internal/config"
	"truckslot/internal/domain"
	"truckslot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var bookingIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: "date", Value: 1}, {Key: "timeslot", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_date_timeslot"),
	},
}

// MongoStore relies on a unique compound index over (date, timeslot).
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoStore(ctx context.Context, cfg config.MongoConfig, logger *zerolog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	if _, err := coll.Indexes().CreateMany(ctx, bookingIndexes); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ensure mongo indexes: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Str("collection", cfg.Collection).Msg("Mongo booking store ready")
	return &MongoStore{client: client, collection: coll, now: time.Now}, nil
}

func (s *MongoStore) ListTimeslots(ctx context.Context, date string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"timeslot": 1}).
		SetSort(bson.D{{Key: "timeslot", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{"date": date}, opts)
	if err != nil {
		return nil, domain.NewStorageError("list timeslots", err)
	}
	defer cursor.Close(ctx)

	slots := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			Timeslot string `bson:"timeslot"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, domain.NewStorageError("decode timeslot", err)
		}
		slots = append(slots, doc.Timeslot)
	}
	if err := cursor.Err(); err != nil {
		return nil, domain.NewStorageError("list timeslots", err)
	}
	return slots, nil
}

func (s *MongoStore) Create(ctx context.Context, c models.Candidate) (*models.Booking, error) {
	// BSON datetimes carry millisecond precision
	booking := c.ToBooking(uuid.NewString(), s.now().Truncate(time.Millisecond))

	if _, err := s.collection.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &domain.ConflictError{Date: c.Date, Timeslot: c.Timeslot}
		}
		return nil, domain.NewStorageError("create booking", err)
	}
	return booking, nil
}

func (s *MongoStore) ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error) {
	filter := bson.M{"date": bson.M{"$gte": from, "$lte": to}}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "timeslot", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.NewStorageError("list bookings", err)
	}
	defer cursor.Close(ctx)

	out := make([]*models.Booking, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, domain.NewStorageError("decode bookings", err)
	}
	for _, b := range out {
		b.CreatedAt = b.CreatedAt.UTC()
	}
	return out, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
