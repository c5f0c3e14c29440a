package notify

import (
	"fmt"
	"strings"
	"time"

	"quizgate/internal/core"
	"quizgate/internal/events"
)

// FormatEvent renders an event as a Telegram Markdown message. The boolean is
// false for event types that are not forwarded.
func FormatEvent(e events.Event, appName string, loc *time.Location) (string, bool) {
	name := escapeMarkdown(appName)

	switch e.Type {
	case events.TypeUnlocked:
		return fmt.Sprintf("🔓 *%s* unlocked until %s", name, formatTime(e.Until, loc)), true
	case events.TypeCooldownStarted:
		return fmt.Sprintf("⏳ *%s*: two wrong answers, cooldown until %s", name, formatTime(e.Until, loc)), true
	case events.TypeBypassExhausted:
		return fmt.Sprintf("🚫 *%s*: emergency bypasses used up for today", name), true
	case events.TypeRelocked:
		return fmt.Sprintf("🔒 *%s* locked again", name), true
	case events.TypeQuotaUnavailable:
		return fmt.Sprintf("⚠️ *%s* kept locked: usage ledger unavailable", name), true
	}
	return "", false
}

// formatTime formats a time in the configured timezone
func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "?"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04")
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatQuota renders today's remaining allowance for one app
func FormatQuota(s *core.DailyLimitStatus) string {
	parts := []string{fmt.Sprintf("%d uses left", s.UsesRemaining)}
	if s.MinutesRemaining >= 0 {
		parts = append(parts, fmt.Sprintf("%d min left", s.MinutesRemaining))
	}
	if s.EmergencyRemaining > 0 {
		parts = append(parts, fmt.Sprintf("%d bypass", s.EmergencyRemaining))
	}
	return strings.Join(parts, ", ")
}

// FormatStreak renders the streak and level summary
func FormatStreak(s *core.StreakState) string {
	if s == nil || s.LastActivityDate == "" {
		return "No correct answers yet. The streak starts with the first one."
	}
	return fmt.Sprintf("🔥 *%d* day streak (best %d)\n⭐ Level %d, %d XP\nLast active %s",
		s.CurrentStreak, s.LongestStreak, s.Level, s.ExperiencePoints, s.LastActivityDate)
}
