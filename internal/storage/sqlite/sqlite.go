package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizgate/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; the ledger serializes per app above this anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS target_apps (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			daily_limit_minutes INTEGER NOT NULL DEFAULT 0,
			max_uses_per_day INTEGER NOT NULL,
			per_unlock_minutes INTEGER NOT NULL,
			questions_per_unlock INTEGER NOT NULL DEFAULT 1,
			difficulty TEXT NOT NULL,
			topics TEXT NOT NULL DEFAULT '[]',
			emergency_enabled INTEGER NOT NULL DEFAULT 0,
			emergency_per_day INTEGER NOT NULL DEFAULT 0,
			uses_today INTEGER NOT NULL DEFAULT 0,
			emergency_used INTEGER NOT NULL DEFAULT 0,
			ledger_date TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			topic TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			source TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS quota_entries (
			app_id TEXT NOT NULL,
			date TEXT NOT NULL,
			minutes_used INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			correct_attempts INTEGER NOT NULL DEFAULT 0,
			emergency_uses INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (app_id, date),
			FOREIGN KEY (app_id) REFERENCES target_apps(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS streak (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			last_activity_date TEXT NOT NULL DEFAULT '',
			experience_points INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			app_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			correct INTEGER NOT NULL,
			unlocks INTEGER NOT NULL DEFAULT 0,
			time_taken_ms INTEGER NOT NULL,
			answered_at DATETIME NOT NULL,
			FOREIGN KEY (app_id) REFERENCES target_apps(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions(topic, difficulty);
		CREATE INDEX IF NOT EXISTS idx_quota_entries_date ON quota_entries(date);
		CREATE INDEX IF NOT EXISTS idx_attempts_app ON attempts(app_id, answered_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

const appColumns = `id, name, enabled, daily_limit_minutes, max_uses_per_day, per_unlock_minutes,
	questions_per_unlock, difficulty, topics, emergency_enabled, emergency_per_day,
	uses_today, emergency_used, ledger_date, created_at, updated_at`

// CreateTargetApp creates a new target app
func (s *SQLiteStorage) CreateTargetApp(ctx context.Context, app *core.TargetApp) error {
	if err := app.Validate(); err != nil {
		return err
	}

	topics, err := json.Marshal(normalizeTopics(app.SelectedTopics))
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}

	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO target_apps (`+appColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, app.ID, app.Name, app.Enabled, app.DailyLimitMinutes, app.MaxUsesPerDay, app.PerUnlockDurationMinutes,
		app.QuestionsPerUnlock, string(app.DifficultyLevel), string(topics), app.EmergencyBypassEnabled,
		app.EmergencyUsesPerDay, app.CurrentUsesToday, app.EmergencyUsesUsed, app.LedgerDate,
		app.CreatedAt, app.UpdatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return core.ErrAppAlreadyExists
	}
	return err
}

// GetTargetApp retrieves a target app by ID
func (s *SQLiteStorage) GetTargetApp(ctx context.Context, id string) (*core.TargetApp, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+appColumns+` FROM target_apps WHERE id = ?`, id)
	app, err := scanApp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAppNotFound
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ListTargetApps retrieves all target apps
func (s *SQLiteStorage) ListTargetApps(ctx context.Context) ([]*core.TargetApp, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+appColumns+` FROM target_apps ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*core.TargetApp
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateTargetApp updates the configuration of a target app. Counters are
// owned by the ledger and are not touched here.
func (s *SQLiteStorage) UpdateTargetApp(ctx context.Context, app *core.TargetApp) error {
	if err := app.Validate(); err != nil {
		return err
	}

	topics, err := json.Marshal(normalizeTopics(app.SelectedTopics))
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}

	app.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE target_apps
		SET name = ?, enabled = ?, daily_limit_minutes = ?, max_uses_per_day = ?, per_unlock_minutes = ?,
			questions_per_unlock = ?, difficulty = ?, topics = ?, emergency_enabled = ?,
			emergency_per_day = ?, updated_at = ?
		WHERE id = ?
	`, app.Name, app.Enabled, app.DailyLimitMinutes, app.MaxUsesPerDay, app.PerUnlockDurationMinutes,
		app.QuestionsPerUnlock, string(app.DifficultyLevel), string(topics), app.EmergencyBypassEnabled,
		app.EmergencyUsesPerDay, app.UpdatedAt, app.ID)
	if err != nil {
		return err
	}
	return expectRow(result, core.ErrAppNotFound)
}

// DeleteTargetApp deletes a target app and its ledger history
func (s *SQLiteStorage) DeleteTargetApp(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM target_apps WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectRow(result, core.ErrAppNotFound)
}

// UpdateAppCounters writes the daily counters of an app
func (s *SQLiteStorage) UpdateAppCounters(ctx context.Context, appID string, usesToday, emergencyUsed int, ledgerDate string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE target_apps SET uses_today = ?, emergency_used = ?, ledger_date = ?, updated_at = ?
		WHERE id = ?
	`, usesToday, emergencyUsed, ledgerDate, time.Now(), appID)
	if err != nil {
		return err
	}
	return expectRow(result, core.ErrAppNotFound)
}

// RolloverApps resets the counters of every app stamped with a different day.
// Running it twice for the same day changes nothing the second time.
func (s *SQLiteStorage) RolloverApps(ctx context.Context, today string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE target_apps SET uses_today = 0, emergency_used = 0, ledger_date = ?, updated_at = ?
		WHERE ledger_date != ?
	`, today, time.Now(), today)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SaveQuestion persists a question. Questions are immutable once stored.
func (s *SQLiteStorage) SaveQuestion(ctx context.Context, q *core.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err := insertQuestion(ctx, s.db, "INSERT", q)
	return err
}

// SeedQuestions inserts local bank questions, skipping IDs already present.
// It returns the number of rows actually inserted.
func (s *SQLiteStorage) SeedQuestions(ctx context.Context, questions []*core.Question) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	now := time.Now()
	for _, q := range questions {
		if q.CreatedAt.IsZero() {
			q.CreatedAt = now
		}
		result, err := insertQuestion(ctx, tx, "INSERT OR IGNORE", q)
		if err != nil {
			return 0, fmt.Errorf("failed to seed question %s: %w", q.ID, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetQuestion retrieves a question by ID
func (s *SQLiteStorage) GetQuestion(ctx context.Context, id string) (*core.Question, error) {
	var q core.Question
	var options, difficulty, source string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, text, options, correct_answer, topic, difficulty, source, model, created_at
		FROM questions WHERE id = ?
	`, id).Scan(&q.ID, &q.Text, &options, &q.CorrectAnswer, &q.Topic, &difficulty, &source, &q.Model, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}

	var opts []string
	if err := json.Unmarshal([]byte(options), &opts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	copy(q.Options[:], opts)
	q.Difficulty = core.Difficulty(difficulty)
	q.Source = core.QuestionSource(source)

	return &q, nil
}

// CountQuestions counts stored questions of a source
func (s *SQLiteStorage) CountQuestions(ctx context.Context, source core.QuestionSource) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions WHERE source = ?", string(source)).Scan(&n)
	return n, err
}

// GetQuotaEntry retrieves the ledger entry of an app for a day, or a zero
// entry when the day has no activity yet
func (s *SQLiteStorage) GetQuotaEntry(ctx context.Context, appID, date string) (*core.QuotaEntry, error) {
	var entry core.QuotaEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT app_id, date, minutes_used, attempts, correct_attempts, emergency_uses, created_at, updated_at
		FROM quota_entries WHERE app_id = ? AND date = ?
	`, appID, date).Scan(&entry.AppID, &entry.Date, &entry.MinutesUsed, &entry.Attempts,
		&entry.CorrectAttempts, &entry.EmergencyUses, &entry.CreatedAt, &entry.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now()
		return &core.QuotaEntry{AppID: appID, Date: date, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveQuotaEntry upserts a ledger entry
func (s *SQLiteStorage) SaveQuotaEntry(ctx context.Context, entry *core.QuotaEntry) error {
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_entries (app_id, date, minutes_used, attempts, correct_attempts, emergency_uses, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_id, date) DO UPDATE SET
			minutes_used = excluded.minutes_used,
			attempts = excluded.attempts,
			correct_attempts = excluded.correct_attempts,
			emergency_uses = excluded.emergency_uses,
			updated_at = excluded.updated_at
	`, entry.AppID, entry.Date, entry.MinutesUsed, entry.Attempts, entry.CorrectAttempts,
		entry.EmergencyUses, entry.CreatedAt, entry.UpdatedAt)
	return err
}

// GetStreak retrieves the streak singleton, a fresh level-1 state if none
func (s *SQLiteStorage) GetStreak(ctx context.Context) (*core.StreakState, error) {
	var streak core.StreakState
	err := s.db.QueryRowContext(ctx, `
		SELECT current_streak, longest_streak, last_activity_date, experience_points, level, updated_at
		FROM streak WHERE id = 1
	`).Scan(&streak.CurrentStreak, &streak.LongestStreak, &streak.LastActivityDate,
		&streak.ExperiencePoints, &streak.Level, &streak.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return &core.StreakState{Level: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	return &streak, nil
}

// SaveStreak upserts the streak singleton
func (s *SQLiteStorage) SaveStreak(ctx context.Context, streak *core.StreakState) error {
	streak.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streak (id, current_streak, longest_streak, last_activity_date, experience_points, level, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_activity_date = excluded.last_activity_date,
			experience_points = excluded.experience_points,
			level = excluded.level,
			updated_at = excluded.updated_at
	`, streak.CurrentStreak, streak.LongestStreak, streak.LastActivityDate,
		streak.ExperiencePoints, streak.Level, streak.UpdatedAt)
	return err
}

// CreateAttempt records an answered question
func (s *SQLiteStorage) CreateAttempt(ctx context.Context, attempt *core.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, app_id, question_id, correct, unlocks, time_taken_ms, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, attempt.ID, attempt.AppID, attempt.QuestionID, attempt.Correct, attempt.Unlocks,
		attempt.TimeTakenMs, attempt.AnsweredAt)
	return err
}

// ListAttempts returns the most recent attempts of an app, newest first
func (s *SQLiteStorage) ListAttempts(ctx context.Context, appID string, limit int) ([]*core.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, question_id, correct, unlocks, time_taken_ms, answered_at
		FROM attempts WHERE app_id = ? ORDER BY answered_at DESC LIMIT ?
	`, appID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*core.Attempt
	for rows.Next() {
		var a core.Attempt
		if err := rows.Scan(&a.ID, &a.AppID, &a.QuestionID, &a.Correct, &a.Unlocks, &a.TimeTakenMs, &a.AnsweredAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanApp(row scanner) (*core.TargetApp, error) {
	var app core.TargetApp
	var difficulty, topics string

	err := row.Scan(&app.ID, &app.Name, &app.Enabled, &app.DailyLimitMinutes, &app.MaxUsesPerDay,
		&app.PerUnlockDurationMinutes, &app.QuestionsPerUnlock, &difficulty, &topics,
		&app.EmergencyBypassEnabled, &app.EmergencyUsesPerDay, &app.CurrentUsesToday,
		&app.EmergencyUsesUsed, &app.LedgerDate, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}

	app.DifficultyLevel = core.Difficulty(difficulty)
	if err := json.Unmarshal([]byte(topics), &app.SelectedTopics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topics: %w", err)
	}
	return &app, nil
}

func insertQuestion(ctx context.Context, db execer, verb string, q *core.Question) (sql.Result, error) {
	options, err := json.Marshal(q.Options[:])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}

	return db.ExecContext(ctx, verb+` INTO questions
		(id, text, options, correct_answer, topic, difficulty, source, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, q.Text, string(options), q.CorrectAnswer, q.Topic, string(q.Difficulty),
		string(q.Source), q.Model, q.CreatedAt)
}

func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
