package core

import (
	"context"
	"time"
)

// QuotaLedger defines the contract for quota, bypass and streak bookkeeping
type QuotaLedger interface {
	RecordAttempt(ctx context.Context, attempt Attempt) (*AttemptResult, error)
	CheckDailyLimit(ctx context.Context, appID string) (*DailyLimitStatus, error)
	ConsumeEmergencyBypass(ctx context.Context, appID string) (BypassResult, error)
	DayRollover(ctx context.Context, now time.Time) (int, error)
	GetStreak(ctx context.Context) (*StreakState, error)
}

// QuestionProvider supplies questions. It resolves within a bounded time to a
// question or ErrNoQuestions.
type QuestionProvider interface {
	GetQuestion(ctx context.Context, topic string, difficulty Difficulty) (*Question, error)
}

// LedgerStorage defines the storage operations the ledger needs
type LedgerStorage interface {
	GetTargetApp(ctx context.Context, id string) (*TargetApp, error)
	UpdateAppCounters(ctx context.Context, appID string, usesToday, emergencyUsed int, ledgerDate string) error
	RolloverApps(ctx context.Context, today string) (int, error)

	GetQuotaEntry(ctx context.Context, appID, date string) (*QuotaEntry, error)
	SaveQuotaEntry(ctx context.Context, entry *QuotaEntry) error

	GetStreak(ctx context.Context) (*StreakState, error)
	SaveStreak(ctx context.Context, streak *StreakState) error

	CreateAttempt(ctx context.Context, attempt *Attempt) error
}
