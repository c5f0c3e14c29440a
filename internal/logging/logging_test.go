package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"quizgate/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	err error
}

func (s stubLedger) RecordAttempt(ctx context.Context, attempt core.Attempt) (*core.AttemptResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.AttemptResult{UsesToday: 1, UsesRemaining: 2, Streak: &core.StreakState{CurrentStreak: 1, Level: 1}}, nil
}

func (s stubLedger) CheckDailyLimit(ctx context.Context, appID string) (*core.DailyLimitStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.DailyLimitStatus{WithinLimit: true, UsesRemaining: 2, MinutesRemaining: -1}, nil
}

func (s stubLedger) ConsumeEmergencyBypass(ctx context.Context, appID string) (core.BypassResult, error) {
	return core.BypassGranted, s.err
}

func (s stubLedger) DayRollover(ctx context.Context, now time.Time) (int, error) {
	return 3, s.err
}

func (s stubLedger) GetStreak(ctx context.Context) (*core.StreakState, error) {
	return &core.StreakState{Level: 1}, s.err
}

type stubProvider struct {
	err error
}

func (s stubProvider) GetQuestion(ctx context.Context, topic string, difficulty core.Difficulty) (*core.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.Question{ID: "q_1", Source: core.SourceLocal}, nil
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("Error"))
	assert.Equal(t, slog.LevelInfo+2, ParseLevel("info+2"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewLogger_ServiceAndOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Format:  "json",
		Level:   slog.LevelInfo,
		Service: "quizgate",
		Output:  &buf,
	})

	logger.Debug("hidden")
	logger.Info("gate opened", "app_id", "com.game")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "quizgate", record["service"])
	assert.Equal(t, "gate opened", record["msg"])
	assert.Equal(t, "com.game", record["app_id"])
	assert.Contains(t, record, "timestamp")
	assert.NotContains(t, record, "time")
}

func TestNewLogger_TextWithoutService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "TEXT", Output: &buf})

	logger.Info("agent polling")

	line := buf.String()
	assert.Contains(t, line, "timestamp=")
	assert.Contains(t, line, `msg="agent polling"`)
	assert.NotContains(t, line, "service=")
}

func TestLedgerLogger(t *testing.T) {
	var buf bytes.Buffer
	ledger := NewLedgerLogger(stubLedger{}, bufferLogger(&buf))
	ctx := context.Background()

	result, err := ledger.RecordAttempt(ctx, core.Attempt{AppID: "com.example.video", Correct: true, Unlocks: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UsesToday)

	_, err = ledger.CheckDailyLimit(ctx, "com.example.video")
	require.NoError(t, err)

	n, err := ledger.DayRollover(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out := buf.String()
	assert.Contains(t, out, "RecordAttempt completed")
	assert.Contains(t, out, "interface=QuotaLedger")
	assert.Contains(t, out, "CheckDailyLimit completed")
}

func TestLedgerLogger_PassesErrorsThrough(t *testing.T) {
	var buf bytes.Buffer
	ledger := NewLedgerLogger(stubLedger{err: core.ErrQuotaUnavailable}, bufferLogger(&buf))

	_, err := ledger.CheckDailyLimit(context.Background(), "com.example.video")
	assert.ErrorIs(t, err, core.ErrQuotaUnavailable)
	assert.Contains(t, buf.String(), "CheckDailyLimit failed")
}

func TestProviderLogger(t *testing.T) {
	var buf bytes.Buffer
	provider := NewProviderLogger(stubProvider{}, bufferLogger(&buf))

	q, err := provider.GetQuestion(context.Background(), "science", core.DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, "q_1", q.ID)
	assert.Contains(t, buf.String(), "GetQuestion completed")

	buf.Reset()
	provider = NewProviderLogger(stubProvider{err: core.ErrNoQuestions}, bufferLogger(&buf))
	_, err = provider.GetQuestion(context.Background(), "science", core.DifficultyEasy)
	assert.True(t, errors.Is(err, core.ErrNoQuestions))
	assert.Contains(t, buf.String(), "GetQuestion failed")
}
