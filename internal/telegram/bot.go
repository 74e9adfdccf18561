package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"go-openclaw-scanner/internal/ports"
)

// ActionHandler receives clicks on notification buttons.
type ActionHandler func(ctx context.Context, id string, action ports.NotificationAction)

type Bot struct {
	api         *tgbotapi.BotAPI
	chatID      int64
	listingsURL string
	logger      zerolog.Logger
}

func NewBot(token string, chatID int64, listingsURL string, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return NewBotWithAPI(api, chatID, listingsURL, logger), nil
}

func NewBotWithAPI(api *tgbotapi.BotAPI, chatID int64, listingsURL string, logger zerolog.Logger) *Bot {
	return &Bot{
		api:         api,
		chatID:      chatID,
		listingsURL: listingsURL,
		logger:      logger.With().Str("component", "telegram").Logger(),
	}
}

func (b *Bot) escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(",
		")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#",
		"+", "\\+", "-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{",
		"}", "\\}", ".", "\\.", "!", "\\!",
	)
	return replacer.Replace(text)
}

// Show posts a new-jobs message with Open and Dismiss buttons. Silent
// notifications are delivered without a sound.
func (b *Bot) Show(ctx context.Context, n ports.Notification) (ports.NotificationHandle, error) {
	msgText := fmt.Sprintf("🆕 *%s*\n", b.escapeMarkdown(n.Title))
	if n.Body != "" {
		msgText += fmt.Sprintf("💼 %s\n", b.escapeMarkdown(n.Body))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔗 Open", CallbackData(ports.ActionOpen, n.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Dismiss", CallbackData(ports.ActionDismiss, n.ID)),
		),
	)

	msg := tgbotapi.NewMessage(b.chatID, msgText)
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = keyboard
	msg.DisableNotification = n.Silent

	sent, err := b.api.Send(msg)
	if err != nil {
		return nil, fmt.Errorf("send notification: %w", err)
	}
	return &handle{bot: b, messageID: sent.MessageID}, nil
}

// OpenListings answers an Open click with a link to the listings view.
func (b *Bot) OpenListings(ctx context.Context) error {
	if b.listingsURL == "" {
		return b.SendStatus("New listings are waiting in the scanner database.")
	}
	msg := tgbotapi.NewMessage(b.chatID, "📋 Your new job listings")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🔗 View Listings", b.listingsURL)),
	)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendError(err error) error {
	msg := tgbotapi.NewMessage(b.chatID, fmt.Sprintf("❌ Error: %v", err))
	_, sendErr := b.api.Send(msg)
	return sendErr
}

func (b *Bot) SendStatus(message string) error {
	msg := tgbotapi.NewMessage(b.chatID, "ℹ️ "+message)
	_, err := b.api.Send(msg)
	return err
}

// Listen long-polls for button clicks and routes them to handle until ctx
// is done.
func (b *Bot) Listen(ctx context.Context, handle ActionHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info().Msg("👂 Listening for notification actions")
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			cq := upd.CallbackQuery
			if cq == nil {
				continue
			}
			if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
				b.logger.Debug().Err(err).Msg("Failed to answer callback")
			}
			action, id, ok := ParseCallbackData(cq.Data)
			if !ok {
				b.logger.Debug().Str("data", cq.Data).Msg("Ignoring unknown callback")
				continue
			}
			handle(ctx, id, action)
		}
	}
}

// CallbackData encodes a button click as "<action>:<notification id>".
func CallbackData(action ports.NotificationAction, id string) string {
	return string(action) + ":" + id
}

func ParseCallbackData(data string) (ports.NotificationAction, string, bool) {
	action, id, found := strings.Cut(data, ":")
	if !found || id == "" {
		return "", "", false
	}
	switch a := ports.NotificationAction(action); a {
	case ports.ActionOpen, ports.ActionDismiss:
		return a, id, true
	}
	return "", "", false
}

// handle deletes the notification message on Close.
type handle struct {
	bot       *Bot
	messageID int
}

func (h *handle) Close() error {
	_, err := h.bot.api.Request(tgbotapi.NewDeleteMessage(h.bot.chatID, h.messageID))
	return err
}
