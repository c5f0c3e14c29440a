package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quizgate/internal/core"
	"quizgate/internal/gatekeeper"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the part of *tgbotapi.BotAPI the command handler needs
type BotAPI interface {
	Sender
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// CommandStore reads and toggles gated apps
type CommandStore interface {
	ListTargetApps(ctx context.Context) ([]*core.TargetApp, error)
	GetTargetApp(ctx context.Context, id string) (*core.TargetApp, error)
	UpdateTargetApp(ctx context.Context, app *core.TargetApp) error
}

// QuotaSource reports today's quota and the streak
type QuotaSource interface {
	CheckDailyLimit(ctx context.Context, appID string) (*core.DailyLimitStatus, error)
	GetStreak(ctx context.Context) (*core.StreakState, error)
}

// SessionSource lists live gatekeeper sessions and releases disabled apps
type SessionSource interface {
	Snapshots() []gatekeeper.Snapshot
	Release(ctx context.Context, appID string)
}

// Commands answers parent commands sent to the bot. Only configured chats
// are served.
type Commands struct {
	api      BotAPI
	apps     CommandStore
	quota    QuotaSource
	sessions SessionSource
	allowed  map[int64]bool
	logger   *slog.Logger
}

// NewCommands creates a command handler. sessions may be nil.
func NewCommands(api BotAPI, apps CommandStore, quota QuotaSource, sessions SessionSource, chatIDs []int64, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[int64]bool, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = true
	}
	return &Commands{
		api:      api,
		apps:     apps,
		quota:    quota,
		sessions: sessions,
		allowed:  allowed,
		logger:   logger.With("component", "bot"),
	}
}

// Run handles updates until the channel closes or ctx is cancelled
func (c *Commands) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	c.logger.Info("Bot commands started")
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if err := c.HandleUpdate(ctx, u); err != nil {
				c.logger.Error("Failed to handle update", "update_id", u.UpdateID, "error", err)
			}
		case <-ctx.Done():
			c.logger.Info("Bot commands stopped")
			return nil
		}
	}
}

// HandleUpdate processes one Telegram update
func (c *Commands) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	var chatID int64
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
	default:
		return nil
	}

	if !c.allowed[chatID] {
		c.logger.Warn("Unauthorized access attempt", "chat_id", chatID)
		return c.send(chatID, "⛔ This chat is not allowed to control quizgate.", nil)
	}

	if update.CallbackQuery != nil {
		// Clear the loading state on the button
		if _, err := c.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
			c.logger.Error("Failed to answer callback", "error", err)
		}
		return c.dispatch(ctx, chatID, update.CallbackQuery.Data)
	}
	return c.dispatch(ctx, chatID, update.Message.Text)
}

func (c *Commands) dispatch(ctx context.Context, chatID int64, text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil
	}
	// Commands in groups arrive as /apps@botname
	command, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	args := fields[1:]

	c.logger.Info("Received command", "chat_id", chatID, "command", command)

	switch command {
	case "start", "help":
		return c.send(chatID, helpText, quickActions())
	case "apps":
		return c.handleApps(ctx, chatID)
	case "streak":
		return c.handleStreak(ctx, chatID)
	case "sessions":
		return c.handleSessions(chatID)
	case "enable", "disable":
		return c.handleToggle(ctx, chatID, args, command == "enable")
	default:
		return c.send(chatID, "Unknown command. Use /start to see available commands.", nil)
	}
}

const helpText = `*quizgate*

/apps - gated apps and today's quota
/streak - answer streak and level
/sessions - apps currently being gated
/enable <app id> - start gating an app
/disable <app id> - stop gating an app`

func (c *Commands) handleApps(ctx context.Context, chatID int64) error {
	apps, err := c.apps.ListTargetApps(ctx)
	if err != nil {
		return c.sendError(chatID, err)
	}
	if len(apps) == 0 {
		return c.send(chatID, "No gated apps configured.", nil)
	}

	var b strings.Builder
	b.WriteString("*Gated apps*\n")
	for _, app := range apps {
		if !app.Enabled {
			fmt.Fprintf(&b, "\n⏸ *%s* (`%s`) disabled", escapeMarkdown(app.Name), app.ID)
			continue
		}
		status, err := c.quota.CheckDailyLimit(ctx, app.ID)
		if err != nil {
			fmt.Fprintf(&b, "\n⚠️ *%s* (`%s`) quota unavailable", escapeMarkdown(app.Name), app.ID)
			continue
		}
		fmt.Fprintf(&b, "\n%s *%s* (`%s`) %s", quotaEmoji(status), escapeMarkdown(app.Name), app.ID, FormatQuota(status))
	}
	return c.send(chatID, b.String(), nil)
}

func (c *Commands) handleStreak(ctx context.Context, chatID int64) error {
	streak, err := c.quota.GetStreak(ctx)
	if err != nil {
		return c.sendError(chatID, err)
	}
	return c.send(chatID, FormatStreak(streak), nil)
}

func (c *Commands) handleSessions(chatID int64) error {
	if c.sessions == nil {
		return c.send(chatID, "Sessions are not available.", nil)
	}
	var active []gatekeeper.Snapshot
	for _, s := range c.sessions.Snapshots() {
		if s.State != gatekeeper.StateIdle {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return c.send(chatID, "No active sessions.", nil)
	}

	var b strings.Builder
	b.WriteString("*Active sessions*\n")
	for _, s := range active {
		fmt.Fprintf(&b, "\n`%s` %s", s.AppID, strings.ReplaceAll(string(s.State), "_", " "))
		if s.State == gatekeeper.StateQuizActive {
			fmt.Fprintf(&b, " (%d/%d correct)", s.CorrectInRow, s.QuestionsNeeded)
		}
	}
	return c.send(chatID, b.String(), nil)
}

func (c *Commands) handleToggle(ctx context.Context, chatID int64, args []string, enabled bool) error {
	if len(args) != 1 {
		return c.send(chatID, "Usage: /enable <app id> or /disable <app id>", nil)
	}

	app, err := c.apps.GetTargetApp(ctx, args[0])
	if errors.Is(err, core.ErrAppNotFound) {
		return c.send(chatID, fmt.Sprintf("App `%s` not found.", args[0]), nil)
	}
	if err != nil {
		return c.sendError(chatID, err)
	}

	app.Enabled = enabled
	if err := c.apps.UpdateTargetApp(ctx, app); err != nil {
		return c.sendError(chatID, err)
	}
	if !enabled && c.sessions != nil {
		c.sessions.Release(ctx, app.ID)
	}
	c.logger.Info("App toggled from chat", "chat_id", chatID, "app_id", app.ID, "enabled", enabled)

	word := "disabled"
	if enabled {
		word = "enabled"
	}
	return c.send(chatID, fmt.Sprintf("✅ Gating %s for *%s*.", word, escapeMarkdown(app.Name)), nil)
}

func (c *Commands) sendError(chatID int64, err error) error {
	c.logger.Error("Command failed", "chat_id", chatID, "error", err)
	return c.send(chatID, "❌ Something went wrong, try again later.", nil)
}

func (c *Commands) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func quickActions() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📱 Apps", "/apps"),
			tgbotapi.NewInlineKeyboardButtonData("🔥 Streak", "/streak"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏱ Sessions", "/sessions"),
		),
	)
	return &kb
}

func quotaEmoji(s *core.DailyLimitStatus) string {
	if s.WithinLimit {
		return "🟢"
	}
	return "🔴"
}
