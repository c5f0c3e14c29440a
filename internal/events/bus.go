// Package events fans out session state changes to subscribers such as the
// SSE stream and the Telegram notifier.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Type identifies a state change
type Type string

const (
	TypeLocked           Type = "locked"
	TypeQuestionReady    Type = "question_ready"
	TypeAnswerWrong      Type = "answer_wrong"
	TypeUnlocked         Type = "unlocked"
	TypeCooldownStarted  Type = "cooldown_started"
	TypeRelocked         Type = "relocked"
	TypeBypassExhausted  Type = "bypass_exhausted"
	TypeQuotaUnavailable Type = "quota_unavailable"
	TypeNoQuestions      Type = "no_questions"
	TypeIdle             Type = "idle"
)

// Event is a state change of one app's session
type Event struct {
	Type             Type      `json:"type"`
	AppID            string    `json:"app_id"`
	State            string    `json:"state"`
	Reason           string    `json:"reason,omitempty"`
	QuestionID       string    `json:"question_id,omitempty"`
	RemainingSeconds int       `json:"remaining_seconds,omitempty"`
	Until            time.Time `json:"until,omitzero"`
	At               time.Time `json:"at"`
}

// DefaultBuffer is the per-subscriber channel size
const DefaultBuffer = 64

// Bus is an in-process publish/subscribe hub. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
	logger *slog.Logger
}

// NewBus creates an event bus
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger.With("component", "events"),
	}
}

// Publish delivers e to every subscriber that has room for it
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"subscriber", id,
				"type", e.Type,
				"app_id", e.AppID,
			)
		}
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
