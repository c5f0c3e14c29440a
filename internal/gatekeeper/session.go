package gatekeeper

import (
	"math"
	"sync"
	"time"

	"quizgate/internal/clock"
	"quizgate/internal/core"
)

// State is the lifecycle state of an app session
type State string

const (
	StateIdle       State = "idle"
	StateLocked     State = "locked"
	StateQuizActive State = "quiz_active"
	StateUnlocked   State = "unlocked"
	StateCooldown   State = "cooldown"
)

// LockReason explains why a session is Locked
type LockReason string

const (
	ReasonNone             LockReason = ""
	ReasonFetchingQuestion LockReason = "fetching_question"
	ReasonQuotaExceeded    LockReason = "quota_exceeded"
	ReasonQuotaUnavailable LockReason = "quota_unavailable"
	ReasonNoQuestions      LockReason = "no_questions"
)

// QuestionView is a question as shown to the user, without its answer
type QuestionView struct {
	ID         string              `json:"id"`
	Text       string              `json:"text"`
	Options    [4]string           `json:"options"`
	Topic      string              `json:"topic"`
	Difficulty core.Difficulty     `json:"difficulty"`
	Source     core.QuestionSource `json:"source"`
}

// Snapshot is a point-in-time view of a session
type Snapshot struct {
	AppID            string        `json:"app_id"`
	State            State         `json:"state"`
	Reason           LockReason    `json:"reason,omitempty"`
	Question         *QuestionView `json:"question,omitempty"`
	RemainingSeconds int           `json:"remaining_seconds,omitempty"`
	WrongCount       int           `json:"wrong_count"`
	CorrectInRow     int           `json:"correct_in_row"`
	QuestionsNeeded  int           `json:"questions_needed"`
	UnlockedUntil    time.Time     `json:"unlocked_until,omitzero"`
	CooldownUntil    time.Time     `json:"cooldown_until,omitzero"`
	BypassAvailable  bool          `json:"bypass_available"`
	StartedAt        time.Time     `json:"started_at,omitzero"`
}

// session is the in-memory state of one target app. All fields are guarded
// by mu; every transition for the app happens while holding it.
type session struct {
	mu sync.Mutex

	appID  string
	state  State
	reason LockReason

	question       *core.Question
	startedAt      time.Time
	quizStartedAt  time.Time
	answerDeadline time.Time

	wrongCount      int
	correctInRow    int
	questionsNeeded int
	bypassAvailable bool

	// Grants and cooldowns are time-bounded and outlive abandonment
	grantUntil    time.Time
	cooldownUntil time.Time

	timer    clock.Timer
	timerSeq uint64
	fetchSeq uint64
}

func newSession(appID string) *session {
	return &session{appID: appID, state: StateIdle, questionsNeeded: 1}
}

// cancelTimer stops the pending timer. Bumping the sequence also disarms a
// callback that already started and is waiting for mu.
func (s *session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}

// cancelFetch discards the result of an in-flight question request
func (s *session) cancelFetch() {
	s.fetchSeq++
}

func (s *session) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		AppID:           s.appID,
		State:           s.state,
		WrongCount:      s.wrongCount,
		CorrectInRow:    s.correctInRow,
		QuestionsNeeded: s.questionsNeeded,
		BypassAvailable: s.bypassAvailable,
	}
	if s.state != StateIdle {
		snap.StartedAt = s.startedAt
	}
	if s.state == StateLocked {
		snap.Reason = s.reason
	}
	if s.state == StateQuizActive && s.question != nil {
		snap.Question = viewOf(s.question)
		snap.RemainingSeconds = remainingSeconds(now, s.answerDeadline)
	}
	if now.Before(s.grantUntil) {
		snap.UnlockedUntil = s.grantUntil
	}
	if now.Before(s.cooldownUntil) {
		snap.CooldownUntil = s.cooldownUntil
	}
	return snap
}

func viewOf(q *core.Question) *QuestionView {
	return &QuestionView{
		ID:         q.ID,
		Text:       q.Text,
		Options:    q.Options,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
		Source:     q.Source,
	}
}

func remainingSeconds(now, deadline time.Time) int {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// tierFor maps consecutive wrong answers to a question difficulty: the app's
// configured difficulty with no misses, one step easier after one or two,
// easy from three on.
func tierFor(configured core.Difficulty, wrong int) core.Difficulty {
	if configured.Rank() < 0 {
		configured = core.DifficultyMedium
	}
	switch {
	case wrong >= 3:
		return core.DifficultyEasy
	case wrong >= 1:
		return configured.Easier()
	default:
		return configured
	}
}
