package bot

import (
	"context"
	"time"

	"truckslot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TelegramAPI is the subset of *tgbotapi.BotAPI the bot relies on.
type TelegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
	GetSelf() tgbotapi.User
}

type botWrapper struct {
	*tgbotapi.BotAPI
}

func (w *botWrapper) GetSelf() tgbotapi.User {
	return w.Self
}

// Wrap adapts a bot API client to TelegramAPI.
func Wrap(api *tgbotapi.BotAPI) TelegramAPI {
	return &botWrapper{BotAPI: api}
}

// Bot answers read-only schedule commands from the dispatcher chats.
type Bot struct {
	api          TelegramAPI
	svc          domain.BookingService
	timeslots    []string
	allowedChats map[int64]struct{}
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewBot(api TelegramAPI, svc domain.BookingService, timeslots []string, chatIDs []int64, logger *zerolog.Logger) *Bot {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	allowed := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = struct{}{}
	}

	return &Bot{
		api:          api,
		svc:          svc,
		timeslots:    timeslots,
		allowedChats: allowed,
		logger:       logger,
		now:          time.Now,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.api.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	chatID := update.Message.Chat.ID
	if _, ok := b.allowedChats[chatID]; !ok {
		b.logger.Debug().Int64("chat_id", chatID).Msg("ignoring command from unknown chat")
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Int64("chat_id", chatID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		b.handleCommand(updateCtx, update.Message)
	})
}

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("send message")
	}
}
