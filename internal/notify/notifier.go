// Package notify forwards selected gatekeeper events to Telegram chats and
// answers parent commands sent to the bot.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quizgate/internal/core"
	"quizgate/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender sends a Telegram message; *tgbotapi.BotAPI satisfies it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AppStore resolves app display names
type AppStore interface {
	GetTargetApp(ctx context.Context, id string) (*core.TargetApp, error)
}

// New creates a notifier over an arbitrary sender. apps may be nil.
func New(sender Sender, apps AppStore, chatIDs []int64, timezone string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
		}
		loc = l
	}

	return &Notifier{
		sender:   sender,
		apps:     apps,
		chatIDs:  chatIDs,
		location: loc,
		logger:   logger.With("component", "notifier"),
	}, nil
}

// Run forwards events until the channel closes or ctx is cancelled
func (n *Notifier) Run(ctx context.Context, ch <-chan events.Event) error {
	n.logger.Info("Notifier started", "chats", len(n.chatIDs))
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			n.Notify(ctx, e)
		case <-ctx.Done():
			n.logger.Info("Notifier stopped")
			return nil
		}
	}
}

// Notify sends the message for one event, if the event type is of interest
func (n *Notifier) Notify(ctx context.Context, e events.Event) {
	text, ok := FormatEvent(e, n.appName(ctx, e.AppID), n.location)
	if !ok {
		return
	}

	for _, chatID := range n.chatIDs {
		if err := n.sendMessage(chatID, text); err != nil {
			n.logger.Error("Failed to send notification",
				"chat_id", chatID,
				"event", e.Type,
				"app_id", e.AppID,
				"error", err,
			)
		}
	}
}

func (n *Notifier) appName(ctx context.Context, appID string) string {
	if n.apps == nil {
		return appID
	}
	app, err := n.apps.GetTargetApp(ctx, appID)
	if err != nil || app.Name == "" {
		return appID
	}
	return app.Name
}

// sendMessage sends a text message
func (n *Notifier) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
