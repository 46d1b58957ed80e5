package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"truckslot/internal/config"
	"truckslot/internal/domain"
	"truckslot/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const pgUniqueViolation = "23505"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"id", "created_at", "date::text", "timeslot",
	"contact_name", "contact_email", "company", "vat", "truck_plate",
	"reload_city", "new_truck_number",
}

// PostgresStore relies on the UNIQUE (date, timeslot) constraint; a
// unique_violation from INSERT is the conflict signal.
type PostgresStore struct {
	db     *sql.DB
	logger *zerolog.Logger
	now    func() time.Time
}

func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig, logger *zerolog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{db: db, logger: logger, now: time.Now}
	if err := store.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Postgres booking store ready")
	return store, nil
}

func (s *PostgresStore) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			date DATE NOT NULL,
			timeslot TEXT NOT NULL,
			contact_name TEXT NOT NULL,
			contact_email TEXT NOT NULL,
			company TEXT NOT NULL,
			vat TEXT NOT NULL,
			truck_plate TEXT NOT NULL,
			reload_city TEXT NOT NULL DEFAULT '',
			new_truck_number TEXT NOT NULL DEFAULT '',
			CONSTRAINT bookings_date_timeslot_key UNIQUE (date, timeslot)
		)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create postgres schema: %w", err)
		}
	}
	return nil
}

func buildListTimeslots(date string) (string, []interface{}, error) {
	return psql.Select("timeslot").
		From("bookings").
		Where(squirrel.Eq{"date": date}).
		OrderBy("timeslot").
		ToSql()
}

func buildInsertBooking(b *models.Booking) (string, []interface{}, error) {
	return psql.Insert("bookings").
		Columns(
			"id", "created_at", "date", "timeslot",
			"contact_name", "contact_email", "company", "vat", "truck_plate",
			"reload_city", "new_truck_number",
		).
		Values(
			b.ID, b.CreatedAt, b.Date, b.Timeslot,
			b.ContactName, b.ContactEmail, b.Company, b.VAT, b.TruckPlate,
			b.ReloadCity, b.NewTruckNumber,
		).
		ToSql()
}

func buildListBookings(from, to string) (string, []interface{}, error) {
	return psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy("date", "timeslot").
		ToSql()
}

func (s *PostgresStore) ListTimeslots(ctx context.Context, date string) ([]string, error) {
	query, args, err := buildListTimeslots(date)
	if err != nil {
		return nil, domain.NewStorageError("build query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError("list timeslots", err)
	}
	defer rows.Close()

	slots := make([]string, 0)
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, domain.NewStorageError("scan timeslot", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list timeslots", err)
	}
	return slots, nil
}

func (s *PostgresStore) Create(ctx context.Context, c models.Candidate) (*models.Booking, error) {
	booking := c.ToBooking(uuid.NewString(), s.now())

	query, args, err := buildInsertBooking(booking)
	if err != nil {
		return nil, domain.NewStorageError("build query", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, &domain.ConflictError{Date: c.Date, Timeslot: c.Timeslot}
		}
		return nil, domain.NewStorageError("create booking", err)
	}
	return booking, nil
}

func (s *PostgresStore) ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error) {
	query, args, err := buildListBookings(from, to)
	if err != nil {
		return nil, domain.NewStorageError("build query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError("list bookings", err)
	}
	defer rows.Close()

	out := make([]*models.Booking, 0)
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(
			&b.ID, &b.CreatedAt, &b.Date, &b.Timeslot,
			&b.ContactName, &b.ContactEmail, &b.Company, &b.VAT, &b.TruckPlate,
			&b.ReloadCity, &b.NewTruckNumber,
		); err != nil {
			return nil, domain.NewStorageError("scan booking", err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list bookings", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
