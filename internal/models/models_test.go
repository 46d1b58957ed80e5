package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCandidate_Normalize(t *testing.T) {
	c := Candidate{
		ContactName:  "  Ada ",
		ContactEmail: "ada@example.com\n",
		Company:      "\tAcme",
		VAT:          " ",
		Date:         " 2025-06-01 ",
		Timeslot:     "10:00 ",
	}

	n := c.Normalize()
	assert.Equal(t, "Ada", n.ContactName)
	assert.Equal(t, "ada@example.com", n.ContactEmail)
	assert.Equal(t, "Acme", n.Company)
	assert.Equal(t, "", n.VAT)
	assert.Equal(t, "2025-06-01", n.Date)
	assert.Equal(t, "10:00", n.Timeslot)
	assert.Equal(t, "  Ada ", c.ContactName, "original must stay untouched")
}

func TestCandidate_ToBooking(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	created := time.Date(2025, 5, 30, 12, 0, 0, 0, loc)
	c := Candidate{
		ContactName:    "Ada",
		ContactEmail:   "ada@example.com",
		Company:        "Acme",
		VAT:            "LT123",
		TruckPlate:     "ABC123",
		Date:           "2025-06-01",
		Timeslot:       "10:00",
		ReloadCity:     "Kaunas",
		NewTruckNumber: "XYZ789",
	}

	b := c.ToBooking("id-1", created)
	assert.Equal(t, "id-1", b.ID)
	assert.Equal(t, time.UTC, b.CreatedAt.Location())
	assert.True(t, b.CreatedAt.Equal(created))
	assert.Equal(t, "Kaunas", b.ReloadCity)
	assert.Equal(t, "XYZ789", b.NewTruckNumber)
	assert.Equal(t, "2025-06-01|10:00", b.SlotKey())
}
