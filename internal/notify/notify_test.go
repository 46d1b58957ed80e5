package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"truckslot/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func samplePayload() *events.BookingEventPayload {
	return &events.BookingEventPayload{
		BookingID:    "b-1",
		Date:         "2025-06-01",
		Timeslot:     "10:00",
		ContactName:  "Ada Lovelace",
		ContactEmail: "ada@example.com",
		Company:      "Acme Logistics",
		VAT:          "LT100001",
		TruckPlate:   "ABC123",
		ReloadCity:   "Kaunas",
		CreatedAt:    time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC),
	}
}

func TestFormatBookingMessage(t *testing.T) {
	text := FormatBookingMessage(samplePayload())

	assert.Contains(t, text, "2025-06-01")
	assert.Contains(t, text, "10:00")
	assert.Contains(t, text, "Acme Logistics")
	assert.Contains(t, text, "Kaunas")
	assert.NotContains(t, text, "Новый номер")
	assert.Contains(t, text, "ID: b-1")
}

func TestTelegramNotifier_Deliver(t *testing.T) {
	ctx := context.Background()

	t.Run("SendsToEveryChat", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && (msg.ChatID == 1 || msg.ChatID == 2)
		})).Return(nil).Twice()

		n := NewTelegramNotifier(sender, []int64{1, 2})
		require.NoError(t, n.Deliver(ctx, samplePayload()))
		sender.AssertExpectations(t)
	})

	t.Run("PartialFailureReported", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			return c.(tgbotapi.MessageConfig).ChatID == 1
		})).Return(errors.New("blocked")).Once()
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			return c.(tgbotapi.MessageConfig).ChatID == 2
		})).Return(nil).Once()

		err := NewTelegramNotifier(sender, []int64{1, 2}).Deliver(ctx, samplePayload())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat 1")
		sender.AssertNumberOfCalls(t, "Send", 2)
	})

	t.Run("NoChatsIsNoop", func(t *testing.T) {
		sender := new(mockSender)
		assert.NoError(t, NewTelegramNotifier(sender, nil).Deliver(ctx, samplePayload()))
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	assert.Equal(t, "telegram", NewTelegramNotifier(nil, nil).Name())
}

func TestKafkaNotifier_Deliver(t *testing.T) {
	ctx := context.Background()

	t.Run("KeyedBySlot", func(t *testing.T) {
		w := &fakeWriter{}
		n := NewKafkaNotifier(w)
		require.NoError(t, n.Deliver(ctx, samplePayload()))
		require.Len(t, w.msgs, 1)

		msg := w.msgs[0]
		assert.Equal(t, "2025-06-01|10:00", string(msg.Key))
		require.Len(t, msg.Headers, 1)
		assert.Equal(t, events.EventBookingCreated, string(msg.Headers[0].Value))

		var decoded events.BookingEventPayload
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, *samplePayload(), decoded)
	})

	t.Run("WriterError", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("leader not available")}
		err := NewKafkaNotifier(w).Deliver(ctx, samplePayload())
		assert.ErrorContains(t, err, "leader not available")
	})

	t.Run("Close", func(t *testing.T) {
		w := &fakeWriter{}
		require.NoError(t, NewKafkaNotifier(w).Close())
		assert.True(t, w.closed)
	})
}
