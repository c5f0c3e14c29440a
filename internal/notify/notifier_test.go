package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizgate/internal/core"
	"quizgate/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations

type mockSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	err      error
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return tgbotapi.Message{}, m.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.messages = append(m.messages, msg)
	}
	return tgbotapi.Message{}, nil
}

func (m *mockSender) sent() []tgbotapi.MessageConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), m.messages...)
}

type mockApps struct{}

func (mockApps) GetTargetApp(ctx context.Context, id string) (*core.TargetApp, error) {
	if id == "com.example.video" {
		return &core.TargetApp{ID: id, Name: "Video"}, nil
	}
	return nil, core.ErrAppNotFound
}

var until = time.Date(2024, 3, 10, 9, 15, 0, 0, time.UTC)

// Tests

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    events.Event
		contains string
		ok       bool
	}{
		{"unlocked", events.Event{Type: events.TypeUnlocked, Until: until}, "unlocked until 09:15", true},
		{"cooldown", events.Event{Type: events.TypeCooldownStarted, Until: until}, "cooldown until 09:15", true},
		{"bypass exhausted", events.Event{Type: events.TypeBypassExhausted}, "used up", true},
		{"relocked", events.Event{Type: events.TypeRelocked}, "locked again", true},
		{"quota unavailable", events.Event{Type: events.TypeQuotaUnavailable}, "ledger unavailable", true},
		{"question ready", events.Event{Type: events.TypeQuestionReady}, "", false},
		{"idle", events.Event{Type: events.TypeIdle}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok := FormatEvent(tt.event, "Video", time.UTC)
			assert.Equal(t, tt.ok, ok)
			assert.Contains(t, text, tt.contains)
		})
	}
}

func TestFormatEvent_Timezone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	text, ok := FormatEvent(events.Event{Type: events.TypeUnlocked, Until: until}, "Video", loc)
	require.True(t, ok)
	assert.Contains(t, text, "12:15")
}

func TestFormatEvent_EscapesName(t *testing.T) {
	text, _ := FormatEvent(events.Event{Type: events.TypeRelocked}, "my_app", time.UTC)
	assert.Contains(t, text, "my\\_app")
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New(&mockSender{}, nil, nil, "Not/AZone", nil)
	assert.Error(t, err)
}

func TestNotifier_NotifyAllChats(t *testing.T) {
	sender := &mockSender{}
	n, err := New(sender, mockApps{}, []int64{1, 2}, "", nil)
	require.NoError(t, err)

	n.Notify(context.Background(), events.Event{Type: events.TypeUnlocked, AppID: "com.example.video", Until: until})
	n.Notify(context.Background(), events.Event{Type: events.TypeQuestionReady, AppID: "com.example.video"})

	sent := sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, int64(1), sent[0].ChatID)
	assert.Equal(t, int64(2), sent[1].ChatID)
	assert.Equal(t, "Markdown", sent[0].ParseMode)
	assert.Contains(t, sent[0].Text, "*Video*")
}

func TestNotifier_UnknownAppUsesID(t *testing.T) {
	sender := &mockSender{}
	n, err := New(sender, mockApps{}, []int64{1}, "", nil)
	require.NoError(t, err)

	n.Notify(context.Background(), events.Event{Type: events.TypeRelocked, AppID: "org.other"})
	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "org.other")
}

func TestNotifier_SendFailureIsLogged(t *testing.T) {
	sender := &mockSender{err: errors.New("telegram down")}
	n, err := New(sender, nil, []int64{1}, "", nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), events.Event{Type: events.TypeRelocked, AppID: "com.example.video"})
	})
}

func TestNotifier_RunFromBus(t *testing.T) {
	sender := &mockSender{}
	n, err := New(sender, nil, []int64{7}, "", nil)
	require.NoError(t, err)

	bus := events.NewBus(nil)
	ch, unsubscribe := bus.Subscribe(events.DefaultBuffer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, ch) }()

	bus.Publish(events.Event{Type: events.TypeBypassExhausted, AppID: "com.example.video"})
	require.Eventually(t, func() bool { return len(sender.sent()) == 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop after unsubscribe")
	}
}
