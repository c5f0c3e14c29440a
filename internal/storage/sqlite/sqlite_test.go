package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quizgate/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	storage, err := New(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		storage.Close()
	})

	return storage
}

func newApp(id string) *core.TargetApp {
	return &core.TargetApp{
		ID:                       id,
		Name:                     "App " + id,
		Enabled:                  true,
		MaxUsesPerDay:            3,
		PerUnlockDurationMinutes: 15,
		QuestionsPerUnlock:       1,
		DifficultyLevel:          core.DifficultyMedium,
		SelectedTopics:           []string{"Science", " history "},
		EmergencyBypassEnabled:   true,
		EmergencyUsesPerDay:      2,
	}
}

func TestSQLiteStorage_TargetApps(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	app := newApp("com.example.video")
	require.NoError(t, storage.CreateTargetApp(ctx, app))

	// Duplicate
	err := storage.CreateTargetApp(ctx, newApp("com.example.video"))
	assert.ErrorIs(t, err, core.ErrAppAlreadyExists)

	// Invalid
	invalid := newApp("bad")
	invalid.MaxUsesPerDay = 0
	assert.ErrorIs(t, storage.CreateTargetApp(ctx, invalid), core.ErrInvalidMaxUses)

	retrieved, err := storage.GetTargetApp(ctx, "com.example.video")
	require.NoError(t, err)
	assert.Equal(t, app.Name, retrieved.Name)
	assert.True(t, retrieved.Enabled)
	assert.Equal(t, core.DifficultyMedium, retrieved.DifficultyLevel)
	assert.Equal(t, []string{"science", "history"}, retrieved.SelectedTopics)
	assert.True(t, retrieved.EmergencyBypassEnabled)
	assert.Equal(t, 2, retrieved.EmergencyUsesPerDay)

	_, err = storage.GetTargetApp(ctx, "nonexistent")
	assert.ErrorIs(t, err, core.ErrAppNotFound)

	require.NoError(t, storage.CreateTargetApp(ctx, newApp("com.example.chat")))
	apps, err := storage.ListTargetApps(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 2)

	// Update config does not touch counters
	require.NoError(t, storage.UpdateAppCounters(ctx, "com.example.video", 2, 1, "2024-03-10"))
	retrieved.Name = "Video Updated"
	retrieved.MaxUsesPerDay = 5
	retrieved.CurrentUsesToday = 0
	require.NoError(t, storage.UpdateTargetApp(ctx, retrieved))

	updated, err := storage.GetTargetApp(ctx, "com.example.video")
	require.NoError(t, err)
	assert.Equal(t, "Video Updated", updated.Name)
	assert.Equal(t, 5, updated.MaxUsesPerDay)
	assert.Equal(t, 2, updated.CurrentUsesToday)
	assert.Equal(t, 1, updated.EmergencyUsesUsed)
	assert.Equal(t, "2024-03-10", updated.LedgerDate)

	missing := newApp("missing")
	assert.ErrorIs(t, storage.UpdateTargetApp(ctx, missing), core.ErrAppNotFound)
	assert.ErrorIs(t, storage.UpdateAppCounters(ctx, "missing", 0, 0, ""), core.ErrAppNotFound)

	require.NoError(t, storage.DeleteTargetApp(ctx, "com.example.chat"))
	assert.ErrorIs(t, storage.DeleteTargetApp(ctx, "com.example.chat"), core.ErrAppNotFound)
}

func TestSQLiteStorage_RolloverApps(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.CreateTargetApp(ctx, newApp("a")))
	require.NoError(t, storage.CreateTargetApp(ctx, newApp("b")))
	require.NoError(t, storage.UpdateAppCounters(ctx, "a", 3, 2, "2024-03-10"))
	require.NoError(t, storage.UpdateAppCounters(ctx, "b", 1, 0, "2024-03-11"))

	n, err := storage.RolloverApps(ctx, "2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, err := storage.GetTargetApp(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, a.CurrentUsesToday)
	assert.Equal(t, 0, a.EmergencyUsesUsed)
	assert.Equal(t, "2024-03-11", a.LedgerDate)

	b, err := storage.GetTargetApp(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, b.CurrentUsesToday)

	// Second run for the same day is a no-op
	n, err = storage.RolloverApps(ctx, "2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLiteStorage_Questions(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	generated := &core.Question{
		ID:            "q_1",
		Text:          "Which planet is known as the red planet?",
		Options:       [4]string{"Venus", "Mars", "Jupiter", "Saturn"},
		CorrectAnswer: "Mars",
		Topic:         "science",
		Difficulty:    core.DifficultyEasy,
		Source:        core.SourceGenerated,
		Model:         "gpt-4o-mini",
	}
	require.NoError(t, storage.SaveQuestion(ctx, generated))

	got, err := storage.GetQuestion(ctx, "q_1")
	require.NoError(t, err)
	assert.Equal(t, generated.Options, got.Options)
	assert.Equal(t, "Mars", got.CorrectAnswer)
	assert.Equal(t, core.SourceGenerated, got.Source)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, core.DifficultyEasy, got.Difficulty)

	_, err = storage.GetQuestion(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrQuestionNotFound)

	invalid := &core.Question{ID: "q_2", Text: "", Options: [4]string{"a", "b", "c", "d"}, CorrectAnswer: "a"}
	assert.ErrorIs(t, storage.SaveQuestion(ctx, invalid), core.ErrEmptyQuestion)

	local := []*core.Question{
		{ID: "qlocal_1", Text: "2+2?", Options: [4]string{"3", "4", "5", "6"}, CorrectAnswer: "4", Topic: "math", Difficulty: core.DifficultyEasy, Source: core.SourceLocal},
		{ID: "qlocal_2", Text: "3*3?", Options: [4]string{"6", "9", "12", "33"}, CorrectAnswer: "9", Topic: "math", Difficulty: core.DifficultyEasy, Source: core.SourceLocal},
	}
	n, err := storage.SeedQuestions(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Reseeding is idempotent
	n, err = storage.SeedQuestions(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := storage.CountQuestions(ctx, core.SourceLocal)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteStorage_QuotaEntries(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, storage.CreateTargetApp(ctx, newApp("a")))

	entry, err := storage.GetQuotaEntry(ctx, "a", "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Attempts)
	assert.Equal(t, "2024-03-10", entry.Date)

	entry.Attempts = 3
	entry.CorrectAttempts = 2
	entry.MinutesUsed = 30
	entry.EmergencyUses = 1
	require.NoError(t, storage.SaveQuotaEntry(ctx, entry))

	entry.Attempts = 4
	require.NoError(t, storage.SaveQuotaEntry(ctx, entry))

	got, err := storage.GetQuotaEntry(ctx, "a", "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Attempts)
	assert.Equal(t, 2, got.CorrectAttempts)
	assert.Equal(t, 30, got.MinutesUsed)
	assert.Equal(t, 1, got.EmergencyUses)

	// Other days are separate rows
	other, err := storage.GetQuotaEntry(ctx, "a", "2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, 0, other.Attempts)
}

func TestSQLiteStorage_Streak(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	streak, err := storage.GetStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, streak.Level)
	assert.Equal(t, 0, streak.CurrentStreak)

	streak.CurrentStreak = 3
	streak.LongestStreak = 5
	streak.LastActivityDate = "2024-03-10"
	streak.ExperiencePoints = 130
	streak.Level = 2
	require.NoError(t, storage.SaveStreak(ctx, streak))

	got, err := storage.GetStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentStreak)
	assert.Equal(t, 5, got.LongestStreak)
	assert.Equal(t, "2024-03-10", got.LastActivityDate)
	assert.Equal(t, 130, got.ExperiencePoints)
	assert.Equal(t, 2, got.Level)
}

func TestSQLiteStorage_Attempts(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, storage.CreateTargetApp(ctx, newApp("a")))

	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, storage.CreateAttempt(ctx, &core.Attempt{
			ID:          "att_" + string(rune('1'+i)),
			AppID:       "a",
			QuestionID:  "q_1",
			Correct:     i == 2,
			Unlocks:     i == 2,
			TimeTakenMs: int64(1000 * (i + 1)),
			AnsweredAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	attempts, err := storage.ListAttempts(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "att_3", attempts[0].ID)
	assert.True(t, attempts[0].Correct)
	assert.True(t, attempts[0].Unlocks)
	assert.Equal(t, int64(3000), attempts[0].TimeTakenMs)

	// Deleting the app cascades
	require.NoError(t, storage.DeleteTargetApp(ctx, "a"))
	attempts, err = storage.ListAttempts(ctx, "a", 10)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
