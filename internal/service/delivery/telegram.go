package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
)

// MessageSender is the part of *bot.Bot the push channel uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// TelegramPush delivers push notifications to the user's Telegram chat.
// Sends share one limiter to stay under the bot API quota.
type TelegramPush struct {
	sender   MessageSender
	contacts domrepo.ContactStore
	limiter  *rate.Limiter
}

// NewTelegramBot builds a bot client without the startup getMe round trip.
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return b, nil
}

func NewTelegramPush(sender MessageSender, contacts domrepo.ContactStore, perSecond float64) *TelegramPush {
	if perSecond <= 0 {
		perSecond = 25
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &TelegramPush{sender: sender, contacts: contacts, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *TelegramPush) Name() string { return models.ChannelPush }

func (t *TelegramPush) Send(ctx context.Context, userID string, msg models.DeliveryMessage) error {
	contact, err := t.contacts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("telegram: no contact for user %s", userID)
		}
		return fmt.Errorf("telegram: load contact: %w", err)
	}
	if contact.TelegramChatID == 0 {
		return fmt.Errorf("telegram: user %s has no chat id", userID)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	_, err = t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    contact.TelegramChatID,
		Text:      formatTelegram(msg),
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", contact.TelegramChatID, err)
	}
	return nil
}

func formatTelegram(msg models.DeliveryMessage) string {
	return fmt.Sprintf("*%s*\n%s\n\n_Priority:_ %s",
		bot.EscapeMarkdown(msg.Title),
		bot.EscapeMarkdown(msg.Message),
		strings.ToUpper(string(msg.Priority)))
}
