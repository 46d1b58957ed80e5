package models

import (
	"strings"
	"time"
)

// Booking is a committed reservation of one timeslot on one date.
type Booking struct {
	ID             string    `json:"id" bson:"_id"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
	Date           string    `json:"date" bson:"date"`
	Timeslot       string    `json:"timeslot" bson:"timeslot"`
	ContactName    string    `json:"contactName" bson:"contact_name"`
	ContactEmail   string    `json:"contactEmail" bson:"contact_email"`
	Company        string    `json:"company" bson:"company"`
	VAT            string    `json:"vat" bson:"vat"`
	TruckPlate     string    `json:"truckPlate" bson:"truck_plate"`
	ReloadCity     string    `json:"reloadCity,omitempty" bson:"reload_city,omitempty"`
	NewTruckNumber string    `json:"newTruckNumber,omitempty" bson:"new_truck_number,omitempty"`
}

// Candidate carries the caller-supplied fields of a booking request.
type Candidate struct {
	ContactName    string `json:"contactName" validate:"required"`
	ContactEmail   string `json:"contactEmail" validate:"required"`
	Company        string `json:"company" validate:"required"`
	VAT            string `json:"vat" validate:"required"`
	TruckPlate     string `json:"truckPlate" validate:"required"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Timeslot       string `json:"timeslot" validate:"required"`
	ReloadCity     string `json:"reloadCity,omitempty"`
	NewTruckNumber string `json:"newTruckNumber,omitempty"`
}

// Normalize trims surrounding whitespace from every field.
func (c Candidate) Normalize() Candidate {
	return Candidate{
		ContactName:    strings.TrimSpace(c.ContactName),
		ContactEmail:   strings.TrimSpace(c.ContactEmail),
		Company:        strings.TrimSpace(c.Company),
		VAT:            strings.TrimSpace(c.VAT),
		TruckPlate:     strings.TrimSpace(c.TruckPlate),
		Date:           strings.TrimSpace(c.Date),
		Timeslot:       strings.TrimSpace(c.Timeslot),
		ReloadCity:     strings.TrimSpace(c.ReloadCity),
		NewTruckNumber: strings.TrimSpace(c.NewTruckNumber),
	}
}

// ToBooking materializes the candidate with store-assigned identity.
func (c Candidate) ToBooking(id string, createdAt time.Time) *Booking {
	return &Booking{
		ID:             id,
		CreatedAt:      createdAt.UTC(),
		Date:           c.Date,
		Timeslot:       c.Timeslot,
		ContactName:    c.ContactName,
		ContactEmail:   c.ContactEmail,
		Company:        c.Company,
		VAT:            c.VAT,
		TruckPlate:     c.TruckPlate,
		ReloadCity:     c.ReloadCity,
		NewTruckNumber: c.NewTruckNumber,
	}
}

// SlotKey identifies the (date, timeslot) pair a booking occupies.
func (b *Booking) SlotKey() string {
	return b.Date + "|" + b.Timeslot
}
