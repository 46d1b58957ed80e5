package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"truckslot/internal/config"
	"truckslot/internal/domain"
	"truckslot/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per date: field = timeslot, value = booking JSON.
// HSETNX gives the atomic check-and-insert.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "truckslot"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) dateKey(date string) string {
	return fmt.Sprintf("%s:bookings:%s", s.prefix, date)
}

func (s *RedisStore) ListTimeslots(ctx context.Context, date string) ([]string, error) {
	slots, err := s.client.HKeys(ctx, s.dateKey(date)).Result()
	if err != nil {
		return nil, domain.NewStorageError("list timeslots", err)
	}
	if slots == nil {
		slots = []string{}
	}
	sort.Strings(slots)
	return slots, nil
}

func (s *RedisStore) Create(ctx context.Context, c models.Candidate) (*models.Booking, error) {
	booking := c.ToBooking(uuid.NewString(), s.now())
	data, err := json.Marshal(booking)
	if err != nil {
		return nil, domain.NewStorageError("encode booking", err)
	}

	inserted, err := s.client.HSetNX(ctx, s.dateKey(c.Date), c.Timeslot, data).Result()
	if err != nil {
		return nil, domain.NewStorageError("create booking", err)
	}
	if !inserted {
		return nil, &domain.ConflictError{Date: c.Date, Timeslot: c.Timeslot}
	}
	return booking, nil
}

func (s *RedisStore) ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error) {
	dates, err := datesBetween(from, to)
	if err != nil {
		return nil, domain.NewStorageError("list bookings", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, 0, len(dates))
	for _, d := range dates {
		cmds = append(cmds, pipe.HVals(ctx, s.dateKey(d)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, domain.NewStorageError("list bookings", err)
	}

	out := make([]*models.Booking, 0)
	for _, cmd := range cmds {
		for _, raw := range cmd.Val() {
			var b models.Booking
			if err := json.Unmarshal([]byte(raw), &b); err != nil {
				return nil, domain.NewStorageError("decode booking", err)
			}
			out = append(out, &b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.client)
}

func (s *RedisStore) Close() error {
	return Close(s.client)
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// datesBetween expands an inclusive YYYY-MM-DD range.
func datesBetween(from, to string) ([]string, error) {
	start, err := time.Parse(models.DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("parse from: %w", err)
	}
	end, err := time.Parse(models.DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("parse to: %w", err)
	}
	if end.Before(start) {
		return nil, nil
	}
	if end.Sub(start) > models.MaxExportRangeDays*24*time.Hour {
		return nil, fmt.Errorf("range %s..%s exceeds %d days", from, to, models.MaxExportRangeDays)
	}

	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(models.DateLayout))
	}
	return out, nil
}
