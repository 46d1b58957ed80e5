package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"truckslot/internal/models"
)

const (
	EventBookingCreated = "booking_created"
)

// BookingEventPayload describes the booking snapshot handed to event consumers.
type BookingEventPayload struct {
	BookingID      string    `json:"booking_id"`
	Date           string    `json:"date"`
	Timeslot       string    `json:"timeslot"`
	ContactName    string    `json:"contact_name"`
	ContactEmail   string    `json:"contact_email"`
	Company        string    `json:"company"`
	VAT            string    `json:"vat"`
	TruckPlate     string    `json:"truck_plate"`
	ReloadCity     string    `json:"reload_city,omitempty"`
	NewTruckNumber string    `json:"new_truck_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewBookingPayload snapshots a committed booking.
func NewBookingPayload(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:      b.ID,
		Date:           b.Date,
		Timeslot:       b.Timeslot,
		ContactName:    b.ContactName,
		ContactEmail:   b.ContactEmail,
		Company:        b.Company,
		VAT:            b.VAT,
		TruckPlate:     b.TruckPlate,
		ReloadCity:     b.ReloadCity,
		NewTruckNumber: b.NewTruckNumber,
		CreatedAt:      b.CreatedAt,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Every handler runs even
// if an earlier one fails; their errors are joined.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
