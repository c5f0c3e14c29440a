package storage

import (
	"context"

	"quizgate/internal/core"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Target apps
	CreateTargetApp(ctx context.Context, app *core.TargetApp) error
	GetTargetApp(ctx context.Context, id string) (*core.TargetApp, error)
	ListTargetApps(ctx context.Context) ([]*core.TargetApp, error)
	UpdateTargetApp(ctx context.Context, app *core.TargetApp) error
	DeleteTargetApp(ctx context.Context, id string) error
	UpdateAppCounters(ctx context.Context, appID string, usesToday, emergencyUsed int, ledgerDate string) error
	RolloverApps(ctx context.Context, today string) (int, error)

	// Questions
	SaveQuestion(ctx context.Context, q *core.Question) error
	SeedQuestions(ctx context.Context, questions []*core.Question) (int, error)
	GetQuestion(ctx context.Context, id string) (*core.Question, error)
	CountQuestions(ctx context.Context, source core.QuestionSource) (int, error)

	// Quota ledger
	GetQuotaEntry(ctx context.Context, appID, date string) (*core.QuotaEntry, error)
	SaveQuotaEntry(ctx context.Context, entry *core.QuotaEntry) error

	// Streak
	GetStreak(ctx context.Context) (*core.StreakState, error)
	SaveStreak(ctx context.Context, streak *core.StreakState) error

	// Attempts
	CreateAttempt(ctx context.Context, attempt *core.Attempt) error
	ListAttempts(ctx context.Context, appID string, limit int) ([]*core.Attempt, error)

	// Lifecycle
	Close() error
}

// Ensure Storage satisfies the ledger's storage contract
var _ core.LedgerStorage = (Storage)(nil)
