package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizgate/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations

type mockLedgerStorage struct {
	mu        sync.Mutex
	apps      map[string]*TargetApp
	entries   map[string]*QuotaEntry
	streak    StreakState
	attempts  []Attempt
	failGet   bool
	failWrite bool
}

func newMockLedgerStorage() *mockLedgerStorage {
	return &mockLedgerStorage{
		apps:    make(map[string]*TargetApp),
		entries: make(map[string]*QuotaEntry),
		streak:  StreakState{Level: 1},
	}
}

func (m *mockLedgerStorage) addApp(app *TargetApp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.ID] = app
}

func (m *mockLedgerStorage) GetTargetApp(ctx context.Context, id string) (*TargetApp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("get failed")
	}
	app, ok := m.apps[id]
	if !ok {
		return nil, ErrAppNotFound
	}
	copied := *app
	return &copied, nil
}

func (m *mockLedgerStorage) UpdateAppCounters(ctx context.Context, appID string, usesToday, emergencyUsed int, ledgerDate string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("write failed")
	}
	app, ok := m.apps[appID]
	if !ok {
		return ErrAppNotFound
	}
	app.CurrentUsesToday = usesToday
	app.EmergencyUsesUsed = emergencyUsed
	app.LedgerDate = ledgerDate
	return nil
}

func (m *mockLedgerStorage) RolloverApps(ctx context.Context, today string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return 0, errors.New("rollover failed")
	}
	n := 0
	for _, app := range m.apps {
		if app.LedgerDate != today {
			app.CurrentUsesToday = 0
			app.EmergencyUsesUsed = 0
			app.LedgerDate = today
			n++
		}
	}
	return n, nil
}

func (m *mockLedgerStorage) GetQuotaEntry(ctx context.Context, appID, date string) (*QuotaEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[appID+date]
	if !ok {
		return &QuotaEntry{AppID: appID, Date: date}, nil
	}
	copied := *entry
	return &copied, nil
}

func (m *mockLedgerStorage) SaveQuotaEntry(ctx context.Context, entry *QuotaEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("write failed")
	}
	copied := *entry
	m.entries[entry.AppID+entry.Date] = &copied
	return nil
}

func (m *mockLedgerStorage) GetStreak(ctx context.Context) (*StreakState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := m.streak
	return &copied, nil
}

func (m *mockLedgerStorage) SaveStreak(ctx context.Context, streak *StreakState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streak = *streak
	return nil
}

func (m *mockLedgerStorage) CreateAttempt(ctx context.Context, attempt *Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func testApp(id string) *TargetApp {
	return &TargetApp{
		ID:                       id,
		Name:                     "Test App",
		Enabled:                  true,
		MaxUsesPerDay:            3,
		PerUnlockDurationMinutes: 15,
		QuestionsPerUnlock:       1,
		DifficultyLevel:          DifficultyMedium,
		EmergencyBypassEnabled:   true,
		EmergencyUsesPerDay:      3,
	}
}

func newTestLedger(storage *mockLedgerStorage, start time.Time) (*Ledger, *clock.MockClock) {
	clk := clock.NewMockClock(start)
	return NewLedger(storage, clk, time.UTC), clk
}

var day1 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func correctUnlock(appID string) Attempt {
	return Attempt{AppID: appID, QuestionID: "q1", Correct: true, Unlocks: true, TimeTakenMs: 1200}
}

// Tests

func TestLedger_DailyLimitReached(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("com.example.social"))
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ledger.RecordAttempt(ctx, correctUnlock("com.example.social"))
		require.NoError(t, err)
	}

	status, err := ledger.CheckDailyLimit(ctx, "com.example.social")
	require.NoError(t, err)
	assert.False(t, status.WithinLimit)
	assert.Equal(t, 0, status.UsesRemaining)
	assert.Equal(t, -1, status.MinutesRemaining)
}

func TestLedger_UsesNeverExceedMax(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("app1"))
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.RecordAttempt(ctx, correctUnlock("app1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	app, _ := storage.GetTargetApp(ctx, "app1")
	assert.Equal(t, 3, app.CurrentUsesToday)

	entry, _ := storage.GetQuotaEntry(ctx, "app1", "2024-03-10")
	assert.Equal(t, 20, entry.Attempts)
	assert.Equal(t, 20, entry.CorrectAttempts)
}

func TestLedger_ConcurrentCorrectAnswersCountExactly(t *testing.T) {
	storage := newMockLedgerStorage()
	app := testApp("app1")
	app.MaxUsesPerDay = 100
	storage.addApp(app)
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ledger.RecordAttempt(ctx, correctUnlock("app1"))
		}()
	}
	wg.Wait()

	got, _ := storage.GetTargetApp(ctx, "app1")
	assert.Equal(t, 40, got.CurrentUsesToday)
}

func TestLedger_WrongAnswerOnlyCountsAttempt(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("app1"))
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	result, err := ledger.RecordAttempt(ctx, Attempt{AppID: "app1", QuestionID: "q1", Correct: false})
	require.NoError(t, err)
	assert.Nil(t, result.Streak)
	assert.Equal(t, 0, result.UsesToday)

	streak, _ := storage.GetStreak(ctx)
	assert.Equal(t, 0, streak.ExperiencePoints)
	assert.Equal(t, 0, streak.CurrentStreak)

	entry, _ := storage.GetQuotaEntry(ctx, "app1", "2024-03-10")
	assert.Equal(t, 1, entry.Attempts)
	assert.Equal(t, 0, entry.CorrectAttempts)
	require.Len(t, storage.attempts, 1)
	assert.NotEmpty(t, storage.attempts[0].ID)
}

func TestLedger_IntermediateCorrectAnswerDoesNotConsumeUse(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("app1"))
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	result, err := ledger.RecordAttempt(ctx, Attempt{AppID: "app1", Correct: true, Unlocks: false})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UsesToday)
	require.NotNil(t, result.Streak)
	assert.Equal(t, ExperiencePerCorrect, result.Streak.ExperiencePoints)
}

func TestLedger_DayRolloverIdempotent(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("app1"))
	storage.addApp(testApp("app2"))
	ledger, clk := newTestLedger(storage, day1)
	ctx := context.Background()

	_, err := ledger.RecordAttempt(ctx, correctUnlock("app1"))
	require.NoError(t, err)
	_, err = ledger.ConsumeEmergencyBypass(ctx, "app2")
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	next := clk.Now()

	n, err := ledger.DayRollover(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first1, _ := storage.GetTargetApp(ctx, "app1")
	first2, _ := storage.GetTargetApp(ctx, "app2")

	n, err = ledger.DayRollover(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	second1, _ := storage.GetTargetApp(ctx, "app1")
	second2, _ := storage.GetTargetApp(ctx, "app2")
	assert.Equal(t, first1, second1)
	assert.Equal(t, first2, second2)
	assert.Equal(t, 0, second1.CurrentUsesToday)
	assert.Equal(t, 0, second2.EmergencyUsesUsed)
	assert.Equal(t, "2024-03-11", second1.LedgerDate)
}

func TestLedger_LazyRolloverOnCheck(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("app1"))
	ledger, clk := newTestLedger(storage, day1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ledger.RecordAttempt(ctx, correctUnlock("app1"))
		require.NoError(t, err)
	}
	status, err := ledger.CheckDailyLimit(ctx, "app1")
	require.NoError(t, err)
	assert.False(t, status.WithinLimit)

	clk.Advance(24 * time.Hour)

	status, err = ledger.CheckDailyLimit(ctx, "app1")
	require.NoError(t, err)
	assert.True(t, status.WithinLimit)
	assert.Equal(t, 3, status.UsesRemaining)
}

func TestLedger_EmergencyBypassExhausted(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("app1"))
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := ledger.ConsumeEmergencyBypass(ctx, "app1")
		require.NoError(t, err)
		assert.Equal(t, BypassGranted, result)
	}

	result, err := ledger.ConsumeEmergencyBypass(ctx, "app1")
	require.NoError(t, err)
	assert.Equal(t, BypassExhausted, result)

	app, _ := storage.GetTargetApp(ctx, "app1")
	assert.Equal(t, 3, app.EmergencyUsesUsed)

	entry, _ := storage.GetQuotaEntry(ctx, "app1", "2024-03-10")
	assert.Equal(t, 3, entry.EmergencyUses)
}

func TestLedger_EmergencyBypassConcurrentNeverExceedsCap(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("app1"))
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	var mu sync.Mutex
	granted := 0
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := ledger.ConsumeEmergencyBypass(ctx, "app1")
			assert.NoError(t, err)
			if result == BypassGranted {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
	app, _ := storage.GetTargetApp(ctx, "app1")
	assert.Equal(t, 3, app.EmergencyUsesUsed)
}

func TestLedger_EmergencyBypassDisabled(t *testing.T) {
	storage := newMockLedgerStorage()
	app := testApp("app1")
	app.EmergencyBypassEnabled = false
	storage.addApp(app)
	ledger, _ := newTestLedger(storage, day1)

	result, err := ledger.ConsumeEmergencyBypass(context.Background(), "app1")
	require.NoError(t, err)
	assert.Equal(t, BypassDisabled, result)
}

func TestLedger_MinuteLimit(t *testing.T) {
	storage := newMockLedgerStorage()
	app := testApp("app1")
	app.MaxUsesPerDay = 10
	app.DailyLimitMinutes = 30
	app.EmergencyBypassEnabled = true
	storage.addApp(app)
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	_, err := ledger.RecordAttempt(ctx, correctUnlock("app1"))
	require.NoError(t, err)
	status, err := ledger.CheckDailyLimit(ctx, "app1")
	require.NoError(t, err)
	assert.True(t, status.WithinLimit)
	assert.Equal(t, 15, status.MinutesRemaining)

	// a correct answer that does not unlock charges nothing
	_, err = ledger.RecordAttempt(ctx, Attempt{AppID: "app1", Correct: true})
	require.NoError(t, err)
	status, err = ledger.CheckDailyLimit(ctx, "app1")
	require.NoError(t, err)
	assert.Equal(t, 15, status.MinutesRemaining)

	result, err := ledger.ConsumeEmergencyBypass(ctx, "app1")
	require.NoError(t, err)
	require.Equal(t, BypassGranted, result)
	status, err = ledger.CheckDailyLimit(ctx, "app1")
	require.NoError(t, err)
	assert.False(t, status.WithinLimit)
	assert.Equal(t, 0, status.MinutesRemaining)
}

func TestLedger_MinuteChargeFailsWithUnlock(t *testing.T) {
	storage := newMockLedgerStorage()
	app := testApp("app1")
	app.DailyLimitMinutes = 30
	app.EmergencyBypassEnabled = true
	storage.addApp(app)
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	storage.failWrite = true
	_, err := ledger.ConsumeEmergencyBypass(ctx, "app1")
	assert.ErrorIs(t, err, ErrQuotaUnavailable)
	_, err = ledger.RecordAttempt(ctx, correctUnlock("app1"))
	assert.ErrorIs(t, err, ErrQuotaUnavailable)

	storage.failWrite = false
	status, err := ledger.CheckDailyLimit(ctx, "app1")
	require.NoError(t, err)
	assert.Equal(t, 30, status.MinutesRemaining)
}

func TestLedger_StreakAcrossDays(t *testing.T) {
	storage := newMockLedgerStorage()
	app := testApp("app1")
	app.MaxUsesPerDay = 50
	storage.addApp(app)
	ledger, clk := newTestLedger(storage, day1)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		result, err := ledger.RecordAttempt(ctx, correctUnlock("app1"))
		require.NoError(t, err)
		assert.Equal(t, day, result.Streak.CurrentStreak)

		// same-day repeat leaves the count unchanged
		result, err = ledger.RecordAttempt(ctx, correctUnlock("app1"))
		require.NoError(t, err)
		assert.Equal(t, day, result.Streak.CurrentStreak)

		clk.Advance(24 * time.Hour)
	}

	// skip a day
	clk.Advance(24 * time.Hour)
	result, err := ledger.RecordAttempt(ctx, correctUnlock("app1"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak.CurrentStreak)
	assert.Equal(t, 3, result.Streak.LongestStreak)
	assert.Equal(t, "2024-03-14", result.Streak.LastActivityDate)
	assert.Equal(t, 7*ExperiencePerCorrect, result.Streak.ExperiencePoints)
}

func TestLedger_LevelUp(t *testing.T) {
	storage := newMockLedgerStorage()
	app := testApp("app1")
	app.MaxUsesPerDay = 50
	storage.addApp(app)
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	var last *AttemptResult
	levelUps := 0
	for i := 0; i < 10; i++ {
		result, err := ledger.RecordAttempt(ctx, correctUnlock("app1"))
		require.NoError(t, err)
		if result.LeveledUp {
			levelUps++
		}
		last = result
	}

	assert.Equal(t, 100, last.Streak.ExperiencePoints)
	assert.Equal(t, 2, last.Streak.Level)
	assert.Equal(t, 1, levelUps)
}

func TestLedger_StorageFailureIsQuotaUnavailable(t *testing.T) {
	storage := newMockLedgerStorage()
	storage.addApp(testApp("app1"))
	storage.failGet = true
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	_, err := ledger.CheckDailyLimit(ctx, "app1")
	assert.ErrorIs(t, err, ErrQuotaUnavailable)

	_, err = ledger.ConsumeEmergencyBypass(ctx, "app1")
	assert.ErrorIs(t, err, ErrQuotaUnavailable)

	storage.failGet = false
	storage.failWrite = true
	_, err = ledger.RecordAttempt(ctx, correctUnlock("app1"))
	assert.ErrorIs(t, err, ErrQuotaUnavailable)
}

func TestLedger_UnknownApp(t *testing.T) {
	storage := newMockLedgerStorage()
	ledger, _ := newTestLedger(storage, day1)

	_, err := ledger.CheckDailyLimit(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAppNotFound)
	assert.NotErrorIs(t, err, ErrQuotaUnavailable)
}

func TestLedger_UsesClampedWhenMaxLowered(t *testing.T) {
	storage := newMockLedgerStorage()
	app := testApp("app1")
	app.MaxUsesPerDay = 2
	app.CurrentUsesToday = 5
	app.LedgerDate = "2024-03-10"
	storage.addApp(app)
	ledger, _ := newTestLedger(storage, day1)
	ctx := context.Background()

	result, err := ledger.RecordAttempt(ctx, Attempt{AppID: "app1", Correct: false})
	require.NoError(t, err)
	assert.Equal(t, 2, result.UsesToday)
	assert.Equal(t, 0, result.UsesRemaining)
}
