package database

import (
	"context"
	"errors"

	"truckslot/internal/domain"
	"truckslot/internal/models"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const bookingSelect = `SELECT id, created_at, date, timeslot, contact_name, contact_email,
	company, vat, truck_plate, reload_city, new_truck_number FROM bookings`

func (db *DB) ListTimeslots(ctx context.Context, date string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT timeslot FROM bookings WHERE date = ? ORDER BY timeslot`, date)
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

// Create inserts the booking in a single statement; the UNIQUE (date, timeslot)
// constraint decides the winner when requests race.
func (db *DB) Create(ctx context.Context, c models.Candidate) (*models.Booking, error) {
	booking := c.ToBooking(uuid.NewString(), db.now())

	query := `INSERT INTO bookings (
				id, created_at, date, timeslot, contact_name, contact_email,
				company, vat, truck_plate, reload_city, new_truck_number
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.CreatedAt,
		booking.Date,
		booking.Timeslot,
		booking.ContactName,
		booking.ContactEmail,
		booking.Company,
		booking.VAT,
		booking.TruckPlate,
		booking.ReloadCity,
		booking.NewTruckNumber,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &domain.ConflictError{Date: c.Date, Timeslot: c.Timeslot}
		}
		return nil, domain.NewStorageError("create booking", err)
	}

	return booking, nil
}

func (db *DB) ListBookings(ctx context.Context, from, to string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, bookingSelect+` WHERE date >= ? AND date <= ? ORDER BY date, timeslot`, from, to)
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

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
