package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"truckslot/internal/domain"
	"truckslot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `Команды:
/slots ГГГГ-ММ-ДД — занятые и свободные слоты на дату
/today — слоты на сегодня
/tomorrow — слоты на завтра`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		b.sendMessage(ctx, chatID, helpText)
	case "today":
		b.sendSchedule(ctx, chatID, b.now().Format(models.DateLayout))
	case "tomorrow":
		b.sendSchedule(ctx, chatID, b.now().AddDate(0, 0, 1).Format(models.DateLayout))
	case "slots":
		date := strings.TrimSpace(msg.CommandArguments())
		if date == "" {
			date = b.now().Format(models.DateLayout)
		}
		b.sendSchedule(ctx, chatID, date)
	default:
		b.sendMessage(ctx, chatID, "Неизвестная команда.\n\n"+helpText)
	}
}

func (b *Bot) sendSchedule(ctx context.Context, chatID int64, date string) {
	reserved, err := b.svc.GetReservedTimeslots(ctx, date)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			b.sendMessage(ctx, chatID, "❌ Неверный формат даты. Используйте ГГГГ-ММ-ДД")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("date", date).Msg("load reserved timeslots")
		b.sendMessage(ctx, chatID, "⚠️ Сервис временно недоступен, попробуйте позже.")
		return
	}

	b.sendMessage(ctx, chatID, b.formatSchedule(date, reserved))
}

func (b *Bot) formatSchedule(date string, reserved []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s\n", date)

	if len(reserved) == 0 {
		sb.WriteString("Занято: —\n")
	} else {
		fmt.Fprintf(&sb, "Занято: %s\n", strings.Join(reserved, ", "))
	}

	if len(b.timeslots) > 0 {
		taken := make(map[string]bool, len(reserved))
		for _, s := range reserved {
			taken[s] = true
		}
		var free []string
		for _, s := range b.timeslots {
			if !taken[s] {
				free = append(free, s)
			}
		}
		if len(free) == 0 {
			sb.WriteString("Свободно: —")
		} else {
			fmt.Fprintf(&sb, "Свободно: %s", strings.Join(free, ", "))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
