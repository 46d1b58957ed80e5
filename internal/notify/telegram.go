package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"truckslot/internal/config"
	"truckslot/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the subset of *tgbotapi.BotAPI used for notifications.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a short booking summary to the dispatcher chats.
type TelegramNotifier struct {
	sender  TelegramSender
	chatIDs []int64
}

// NewTelegramBot creates the bot API client from config.
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func NewTelegramNotifier(sender TelegramSender, chatIDs []int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatIDs: chatIDs}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

// Deliver sends the message to every configured chat. A failed chat does not
// stop the others; the combined error is returned.
func (n *TelegramNotifier) Deliver(ctx context.Context, p *events.BookingEventPayload) error {
	if len(n.chatIDs) == 0 {
		return nil
	}

	text := FormatBookingMessage(p)
	var errs []error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// FormatBookingMessage renders a plain-text booking summary.
func FormatBookingMessage(p *events.BookingEventPayload) string {
	var sb strings.Builder
	sb.WriteString("🚚 Новое бронирование\n\n")
	fmt.Fprintf(&sb, "📅 Дата: %s\n", p.Date)
	fmt.Fprintf(&sb, "🕒 Слот: %s\n", p.Timeslot)
	fmt.Fprintf(&sb, "🏢 Компания: %s (VAT %s)\n", p.Company, p.VAT)
	fmt.Fprintf(&sb, "👤 Контакт: %s <%s>\n", p.ContactName, p.ContactEmail)
	fmt.Fprintf(&sb, "🔢 Номер: %s\n", p.TruckPlate)
	if p.ReloadCity != "" {
		fmt.Fprintf(&sb, "🔁 Перегруз: %s\n", p.ReloadCity)
	}
	if p.NewTruckNumber != "" {
		fmt.Fprintf(&sb, "🔢 Новый номер: %s\n", p.NewTruckNumber)
	}
	fmt.Fprintf(&sb, "\nID: %s", p.BookingID)
	return sb.String()
}
