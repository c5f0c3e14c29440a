package logging

import (
	"context"
	"log/slog"
	"time"

	"quizgate/internal/core"
)

// LedgerLogger wraps a QuotaLedger and logs all method calls
type LedgerLogger struct {
	ledger core.QuotaLedger
	logger *slog.Logger
}

// NewLedgerLogger creates a new logging decorator for the quota ledger
func NewLedgerLogger(ledger core.QuotaLedger, logger *slog.Logger) core.QuotaLedger {
	return &LedgerLogger{
		ledger: ledger,
		logger: logger.With("interface", "QuotaLedger"),
	}
}

func (l *LedgerLogger) RecordAttempt(ctx context.Context, attempt core.Attempt) (*core.AttemptResult, error) {
	start := time.Now()
	l.logger.Debug("RecordAttempt called",
		"app_id", attempt.AppID,
		"question_id", attempt.QuestionID,
		"correct", attempt.Correct,
		"unlocks", attempt.Unlocks)

	result, err := l.ledger.RecordAttempt(ctx, attempt)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("RecordAttempt failed",
			"app_id", attempt.AppID,
			"question_id", attempt.QuestionID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	attrs := []any{
		"app_id", attempt.AppID,
		"correct", attempt.Correct,
		"uses_today", result.UsesToday,
		"uses_remaining", result.UsesRemaining,
		"duration", duration,
	}
	if result.Streak != nil {
		attrs = append(attrs,
			"streak", result.Streak.CurrentStreak,
			"level", result.Streak.Level,
			"leveled_up", result.LeveledUp)
	}
	l.logger.Info("RecordAttempt completed", attrs...)

	return result, nil
}

func (l *LedgerLogger) CheckDailyLimit(ctx context.Context, appID string) (*core.DailyLimitStatus, error) {
	start := time.Now()

	status, err := l.ledger.CheckDailyLimit(ctx, appID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("CheckDailyLimit failed",
			"app_id", appID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("CheckDailyLimit completed",
		"app_id", appID,
		"within_limit", status.WithinLimit,
		"uses_remaining", status.UsesRemaining,
		"minutes_remaining", status.MinutesRemaining,
		"emergency_remaining", status.EmergencyRemaining,
		"duration", duration)

	return status, nil
}

func (l *LedgerLogger) ConsumeEmergencyBypass(ctx context.Context, appID string) (core.BypassResult, error) {
	start := time.Now()
	l.logger.Info("ConsumeEmergencyBypass called", "app_id", appID)

	result, err := l.ledger.ConsumeEmergencyBypass(ctx, appID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("ConsumeEmergencyBypass failed",
			"app_id", appID,
			"duration", duration,
			"error", err)
		return result, err
	}

	l.logger.Info("ConsumeEmergencyBypass completed",
		"app_id", appID,
		"result", result,
		"duration", duration)

	return result, nil
}

func (l *LedgerLogger) DayRollover(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()

	n, err := l.ledger.DayRollover(ctx, now)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("DayRollover failed",
			"now", now,
			"duration", duration,
			"error", err)
		return 0, err
	}

	l.logger.Debug("DayRollover completed",
		"rolled_over", n,
		"duration", duration)

	return n, nil
}

func (l *LedgerLogger) GetStreak(ctx context.Context) (*core.StreakState, error) {
	streak, err := l.ledger.GetStreak(ctx)
	if err != nil {
		l.logger.Error("GetStreak failed", "error", err)
		return nil, err
	}
	return streak, nil
}

// ProviderLogger wraps a QuestionProvider and logs all method calls
type ProviderLogger struct {
	provider core.QuestionProvider
	logger   *slog.Logger
}

// NewProviderLogger creates a new logging decorator for the question provider
func NewProviderLogger(provider core.QuestionProvider, logger *slog.Logger) core.QuestionProvider {
	return &ProviderLogger{
		provider: provider,
		logger:   logger.With("interface", "QuestionProvider"),
	}
}

func (l *ProviderLogger) GetQuestion(ctx context.Context, topic string, difficulty core.Difficulty) (*core.Question, error) {
	start := time.Now()
	l.logger.Debug("GetQuestion called",
		"topic", topic,
		"difficulty", difficulty)

	q, err := l.provider.GetQuestion(ctx, topic, difficulty)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("GetQuestion failed",
			"topic", topic,
			"difficulty", difficulty,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("GetQuestion completed",
		"topic", topic,
		"difficulty", difficulty,
		"question_id", q.ID,
		"source", q.Source,
		"duration", duration)

	return q, nil
}

// Ensure decorators implement their interfaces
var (
	_ core.QuotaLedger      = (*LedgerLogger)(nil)
	_ core.QuestionProvider = (*ProviderLogger)(nil)
)
