package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quizgate/internal/clock"
	"quizgate/internal/idgen"
)

// BypassResult is the outcome of an emergency bypass request
type BypassResult string

const (
	BypassGranted   BypassResult = "granted"
	BypassExhausted BypassResult = "exhausted"
	BypassDisabled  BypassResult = "disabled"
)

// DailyLimitStatus answers "may this app be unlocked again today?"
type DailyLimitStatus struct {
	WithinLimit        bool
	UsesRemaining      int
	MinutesRemaining   int // -1 when the app has no minute limit
	EmergencyRemaining int
}

// AttemptResult reports ledger state after an attempt was recorded
type AttemptResult struct {
	UsesToday     int
	UsesRemaining int
	Streak        *StreakState // nil for wrong answers
	LeveledUp     bool
}

// Ledger maintains per-app daily quotas, emergency bypasses and the streak.
// Mutations for one app are serialized; different apps proceed independently.
type Ledger struct {
	storage  LedgerStorage
	clock    clock.Clock
	timezone *time.Location

	locks    keyedMutex
	streakMu sync.Mutex
}

// NewLedger creates a new ledger
func NewLedger(storage LedgerStorage, clk clock.Clock, timezone *time.Location) *Ledger {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if timezone == nil {
		timezone = time.UTC
	}
	return &Ledger{
		storage:  storage,
		clock:    clk,
		timezone: timezone,
		locks:    keyedMutex{locks: make(map[string]*sync.Mutex)},
	}
}

// RecordAttempt records an answered question. Correct answers add experience
// and advance the streak; a correct answer that completes an unlock also
// consumes one daily use and charges the unlock window against the minute
// budget.
func (l *Ledger) RecordAttempt(ctx context.Context, attempt Attempt) (*AttemptResult, error) {
	unlock := l.locks.Lock(attempt.AppID)
	defer unlock()

	today, err := l.rollover(ctx)
	if err != nil {
		return nil, err
	}

	app, err := l.getApp(ctx, attempt.AppID)
	if err != nil {
		return nil, err
	}

	entry, err := l.storage.GetQuotaEntry(ctx, app.ID, today)
	if err != nil {
		return nil, unavailable("get quota entry", err)
	}
	entry.Attempts++
	if attempt.Correct {
		entry.CorrectAttempts++
	}

	if attempt.Correct && attempt.Unlocks {
		app.CurrentUsesToday++
		entry.MinutesUsed += app.PerUnlockDurationMinutes
	}
	if app.CurrentUsesToday > app.MaxUsesPerDay {
		app.CurrentUsesToday = app.MaxUsesPerDay
	}
	if err := l.storage.UpdateAppCounters(ctx, app.ID, app.CurrentUsesToday, app.EmergencyUsesUsed, today); err != nil {
		return nil, unavailable("update app counters", err)
	}
	if err := l.storage.SaveQuotaEntry(ctx, entry); err != nil {
		return nil, unavailable("save quota entry", err)
	}

	if attempt.ID == "" {
		attempt.ID = idgen.NewAttempt()
	}
	if attempt.AnsweredAt.IsZero() {
		attempt.AnsweredAt = l.clock.Now()
	}
	if err := l.storage.CreateAttempt(ctx, &attempt); err != nil {
		return nil, unavailable("create attempt", err)
	}

	result := &AttemptResult{
		UsesToday:     app.CurrentUsesToday,
		UsesRemaining: app.MaxUsesPerDay - app.CurrentUsesToday,
	}

	if attempt.Correct {
		streak, leveledUp, err := l.applyCorrectAnswer(ctx, today)
		if err != nil {
			return nil, err
		}
		result.Streak = streak
		result.LeveledUp = leveledUp
	}

	return result, nil
}

// CheckDailyLimit reports whether the app can be unlocked again today
func (l *Ledger) CheckDailyLimit(ctx context.Context, appID string) (*DailyLimitStatus, error) {
	unlock := l.locks.Lock(appID)
	defer unlock()

	today, err := l.rollover(ctx)
	if err != nil {
		return nil, err
	}

	app, err := l.getApp(ctx, appID)
	if err != nil {
		return nil, err
	}

	entry, err := l.storage.GetQuotaEntry(ctx, appID, today)
	if err != nil {
		return nil, unavailable("get quota entry", err)
	}

	usesRemaining := app.MaxUsesPerDay - app.CurrentUsesToday
	if usesRemaining < 0 {
		usesRemaining = 0
	}

	status := &DailyLimitStatus{
		UsesRemaining:      usesRemaining,
		MinutesRemaining:   -1,
		EmergencyRemaining: app.EmergencyRemaining(),
	}
	status.WithinLimit = usesRemaining > 0

	if app.DailyLimitMinutes > 0 {
		minutesRemaining := app.DailyLimitMinutes - entry.MinutesUsed
		if minutesRemaining < 0 {
			minutesRemaining = 0
		}
		status.MinutesRemaining = minutesRemaining
		if minutesRemaining == 0 {
			status.WithinLimit = false
		}
	}

	return status, nil
}

// ConsumeEmergencyBypass atomically takes one emergency use if any is left.
// A granted bypass is charged against the minute budget like any unlock.
func (l *Ledger) ConsumeEmergencyBypass(ctx context.Context, appID string) (BypassResult, error) {
	unlock := l.locks.Lock(appID)
	defer unlock()

	today, err := l.rollover(ctx)
	if err != nil {
		return "", err
	}

	app, err := l.getApp(ctx, appID)
	if err != nil {
		return "", err
	}

	if !app.EmergencyBypassEnabled {
		return BypassDisabled, nil
	}
	if app.EmergencyUsesUsed >= app.EmergencyUsesPerDay {
		return BypassExhausted, nil
	}

	entry, err := l.storage.GetQuotaEntry(ctx, appID, today)
	if err != nil {
		return "", unavailable("get quota entry", err)
	}

	app.EmergencyUsesUsed++
	if err := l.storage.UpdateAppCounters(ctx, appID, app.CurrentUsesToday, app.EmergencyUsesUsed, today); err != nil {
		return "", unavailable("update app counters", err)
	}

	entry.EmergencyUses++
	entry.MinutesUsed += app.PerUnlockDurationMinutes
	if err := l.storage.SaveQuotaEntry(ctx, entry); err != nil {
		return "", unavailable("save quota entry", err)
	}

	return BypassGranted, nil
}

// DayRollover resets counters of every app whose ledger date differs from
// the calendar day of now. It is idempotent.
func (l *Ledger) DayRollover(ctx context.Context, now time.Time) (int, error) {
	n, err := l.storage.RolloverApps(ctx, DateKey(now, l.timezone))
	if err != nil {
		return 0, unavailable("rollover apps", err)
	}
	return n, nil
}

// GetStreak returns the current streak state
func (l *Ledger) GetStreak(ctx context.Context) (*StreakState, error) {
	streak, err := l.storage.GetStreak(ctx)
	if err != nil {
		return nil, unavailable("get streak", err)
	}
	return streak, nil
}

// Today returns the ledger's current calendar day key
func (l *Ledger) Today() string {
	return DateKey(l.clock.Now(), l.timezone)
}

func (l *Ledger) rollover(ctx context.Context) (string, error) {
	today := l.Today()
	if _, err := l.storage.RolloverApps(ctx, today); err != nil {
		return "", unavailable("rollover apps", err)
	}
	return today, nil
}

func (l *Ledger) getApp(ctx context.Context, appID string) (*TargetApp, error) {
	app, err := l.storage.GetTargetApp(ctx, appID)
	if errors.Is(err, ErrAppNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("get target app", err)
	}
	return app, nil
}

func (l *Ledger) applyCorrectAnswer(ctx context.Context, today string) (*StreakState, bool, error) {
	l.streakMu.Lock()
	defer l.streakMu.Unlock()

	streak, err := l.storage.GetStreak(ctx)
	if err != nil {
		return nil, false, unavailable("get streak", err)
	}
	if streak.Level == 0 {
		streak.Level = LevelFor(streak.ExperiencePoints)
	}

	leveledUp := streak.ApplyCorrectAnswer(today, ExperiencePerCorrect)
	if err := l.storage.SaveStreak(ctx, streak); err != nil {
		return nil, false, unavailable("save streak", err)
	}
	return streak, leveledUp, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQuotaUnavailable, op, err)
}

// keyedMutex hands out one mutex per key
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Ensure Ledger implements QuotaLedger
var _ QuotaLedger = (*Ledger)(nil)
