// Package gatekeeper runs the per-app lock, quiz, unlock and cooldown
// lifecycle.
package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"quizgate/internal/clock"
	"quizgate/internal/core"
	"quizgate/internal/events"
)

// Default engine timings
const (
	DefaultAnswerTimeout     = 30 * time.Second
	DefaultCooldown          = 5 * time.Minute
	DefaultCooldownThreshold = 2
	DefaultEnforcerTimeout   = 2 * time.Second
)

var (
	// ErrNotGated is returned for apps that are unknown or disabled
	ErrNotGated = errors.New("app is not a gated target")
	// ErrNotLocked is returned when a bypass is requested outside the Locked state
	ErrNotLocked = errors.New("emergency bypass is only possible while locked")
)

// Outcome is the result of submitting an answer
type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeUnlocked     Outcome = "unlocked"
	OutcomeNextQuestion Outcome = "next_question"
	OutcomeWrong        Outcome = "wrong"
	OutcomeCooldown     Outcome = "cooldown"
	OutcomeLocked       Outcome = "locked" // ledger failed, session stays blocked
)

// AnswerResult reports what an answer did to the session
type AnswerResult struct {
	Outcome   Outcome
	Snapshot  Snapshot
	Streak    *core.StreakState
	LeveledUp bool
}

// BypassOutcome reports the result of an emergency bypass request
type BypassOutcome struct {
	Result   core.BypassResult
	Snapshot Snapshot
}

// AppStore reads target app configuration
type AppStore interface {
	GetTargetApp(ctx context.Context, id string) (*core.TargetApp, error)
}

// Enforcer carries block/allow commands to the enforcement layer
type Enforcer interface {
	BlockApp(ctx context.Context, appID string) error
	AllowApp(ctx context.Context, appID string, until time.Time) error
	// ReleaseApp drops any command for an app that is no longer gated
	ReleaseApp(ctx context.Context, appID string) error
}

// Publisher receives session state changes
type Publisher interface {
	Publish(e events.Event)
}

// Config holds engine timings
type Config struct {
	AnswerTimeout     time.Duration
	Cooldown          time.Duration
	CooldownThreshold int
	// EnforcerTimeout bounds each enforcer call made under a session lock
	EnforcerTimeout time.Duration
}

// Engine owns one session per target app. Operations on the same app are
// serialized by that session's mutex; different apps never wait on each other.
type Engine struct {
	apps      AppStore
	ledger    core.QuotaLedger
	provider  core.QuestionProvider
	enforcer  Enforcer
	publisher Publisher
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	pickTopic func(topics []string) string
}

// New creates a gatekeeper engine. enforcer and publisher may be nil.
func New(
	apps AppStore,
	ledger core.QuotaLedger,
	provider core.QuestionProvider,
	enforcer Enforcer,
	publisher Publisher,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	if cfg.AnswerTimeout <= 0 {
		cfg.AnswerTimeout = DefaultAnswerTimeout
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.CooldownThreshold <= 0 {
		cfg.CooldownThreshold = DefaultCooldownThreshold
	}
	if cfg.EnforcerTimeout <= 0 {
		cfg.EnforcerTimeout = DefaultEnforcerTimeout
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if enforcer == nil {
		enforcer = noopEnforcer{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		apps:      apps,
		ledger:    ledger,
		provider:  provider,
		enforcer:  enforcer,
		publisher: publisher,
		clock:     clk,
		cfg:       cfg,
		logger:    logger.With("component", "gatekeeper"),
		sessions:  make(map[string]*session),
		ctx:       ctx,
		cancel:    cancel,
		pickTopic: randomTopic,
	}
}

// IsTarget reports whether appID is an enabled target app
func (e *Engine) IsTarget(ctx context.Context, appID string) (bool, error) {
	app, err := e.apps.GetTargetApp(ctx, appID)
	if errors.Is(err, core.ErrAppNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return app.Enabled, nil
}

// HandleForeground intercepts a target app that came to the foreground. An
// app already in a live state keeps it; an Idle app is evaluated against its
// grant, cooldown and daily quota.
func (e *Engine) HandleForeground(ctx context.Context, appID string) (Snapshot, error) {
	app, err := e.getApp(ctx, appID)
	if errors.Is(err, ErrNotGated) {
		return Snapshot{AppID: appID, State: StateIdle}, err
	}

	s := e.session(appID)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := e.clock.Now()
	if err != nil {
		e.failClosed(ctx, s, err, now)
		return s.snapshot(now), err
	}

	switch s.state {
	case StateQuizActive, StateUnlocked, StateCooldown:
		return s.snapshot(now), nil
	case StateLocked:
		if s.reason == ReasonFetchingQuestion {
			return s.snapshot(now), nil
		}
	}

	err = e.intercept(ctx, s, app, now)
	return s.snapshot(now), err
}

// SubmitAnswer evaluates an answer for the current question. Answers for a
// superseded question, after time-up or outside QuizActive are ignored.
func (e *Engine) SubmitAnswer(ctx context.Context, appID, questionID, answer string) (AnswerResult, error) {
	s := e.lookup(appID)
	if s == nil {
		return AnswerResult{Outcome: OutcomeIgnored, Snapshot: Snapshot{AppID: appID, State: StateIdle}}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := e.clock.Now()
	if s.state != StateQuizActive || s.question == nil ||
		(questionID != "" && questionID != s.question.ID) ||
		!now.Before(s.answerDeadline) {
		e.logger.Debug("ignoring answer", "app_id", appID, "question_id", questionID, "state", s.state)
		return AnswerResult{Outcome: OutcomeIgnored, Snapshot: s.snapshot(now)}, nil
	}

	app, err := e.getApp(ctx, appID)
	if errors.Is(err, ErrNotGated) {
		e.release(ctx, s, now)
		return AnswerResult{Outcome: OutcomeIgnored, Snapshot: s.snapshot(now)}, err
	}
	if err != nil {
		e.failClosed(ctx, s, err, now)
		return AnswerResult{Outcome: OutcomeLocked, Snapshot: s.snapshot(now)}, err
	}

	taken := now.Sub(s.quizStartedAt)
	if !s.question.IsCorrect(answer) {
		outcome, err := e.recordWrong(ctx, s, app, taken, now)
		return AnswerResult{Outcome: outcome, Snapshot: s.snapshot(now)}, err
	}

	q := s.question
	s.cancelTimer()
	s.question = nil
	s.wrongCount = 0
	s.correctInRow++
	s.questionsNeeded = max(1, app.QuestionsPerUnlock)
	unlocks := s.correctInRow >= s.questionsNeeded

	recorded, err := e.ledger.RecordAttempt(ctx, core.Attempt{
		AppID:       appID,
		QuestionID:  q.ID,
		Correct:     true,
		Unlocks:     unlocks,
		TimeTakenMs: taken.Milliseconds(),
		AnsweredAt:  now,
	})
	if err != nil {
		e.failClosed(ctx, s, err, now)
		return AnswerResult{Outcome: OutcomeLocked, Snapshot: s.snapshot(now)}, err
	}

	result := AnswerResult{Streak: recorded.Streak, LeveledUp: recorded.LeveledUp}
	if unlocks {
		s.correctInRow = 0
		e.grant(ctx, s, app, now)
		result.Outcome = OutcomeUnlocked
	} else {
		s.state = StateLocked
		s.reason = ReasonFetchingQuestion
		e.publish(s, events.TypeLocked, now)
		e.fetchQuestion(s, app)
		result.Outcome = OutcomeNextQuestion
	}

	e.logger.Info("answer accepted",
		"app_id", appID,
		"question_id", q.ID,
		"outcome", result.Outcome,
		"time_taken_ms", taken.Milliseconds(),
	)

	result.Snapshot = s.snapshot(now)
	return result, nil
}

// Bypass spends one emergency use to unlock a Locked app. An exhausted or
// disabled allowance is reported in the result, not as an error.
func (e *Engine) Bypass(ctx context.Context, appID string) (BypassOutcome, error) {
	app, err := e.getApp(ctx, appID)
	if err != nil {
		return BypassOutcome{Snapshot: Snapshot{AppID: appID, State: StateIdle}}, err
	}

	s := e.lookup(appID)
	if s == nil {
		return BypassOutcome{Snapshot: Snapshot{AppID: appID, State: StateIdle}}, ErrNotLocked
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := e.clock.Now()
	if s.state != StateLocked {
		return BypassOutcome{Snapshot: s.snapshot(now)}, ErrNotLocked
	}

	result, err := e.ledger.ConsumeEmergencyBypass(ctx, appID)
	if err != nil {
		e.failClosed(ctx, s, err, now)
		return BypassOutcome{Snapshot: s.snapshot(now)}, err
	}

	switch result {
	case core.BypassGranted:
		s.correctInRow = 0
		e.grant(ctx, s, app, now)
		e.logger.Info("emergency bypass granted", "app_id", appID)
	case core.BypassExhausted:
		s.bypassAvailable = false
		e.publish(s, events.TypeBypassExhausted, now)
		e.logger.Info("emergency bypass exhausted", "app_id", appID)
	case core.BypassDisabled:
		s.bypassAvailable = false
	}

	return BypassOutcome{Result: result, Snapshot: s.snapshot(now)}, nil
}

// Abandon returns the app's session to Idle without penalty. A pending
// question is forfeited; unlock grants and cooldowns keep running on the wall
// clock and apply again on re-entry. An abandoned grant still re-blocks the
// app when it expires.
func (e *Engine) Abandon(appID string) {
	s := e.lookup(appID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}

	previous := s.state
	if previous != StateUnlocked {
		s.cancelTimer()
	}
	s.cancelFetch()
	s.question = nil
	s.correctInRow = 0
	s.state = StateIdle
	s.reason = ReasonNone

	e.publish(s, events.TypeIdle, e.clock.Now())
	e.logger.Info("session abandoned", "app_id", appID, "previous_state", previous)
}

// Release forgets everything about an app that stopped being gated: the
// session goes back to Idle, grants and cooldowns are dropped and the
// enforcement layer is told to stop blocking it.
func (e *Engine) Release(ctx context.Context, appID string) {
	s := e.session(appID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e.release(ctx, s, e.clock.Now())
}

// RecheckQuota unlocks the path to a new quiz for sessions parked on an
// exhausted daily quota once the ledger reports quota again, typically
// after the day rolled over.
func (e *Engine) RecheckQuota(ctx context.Context) {
	e.mu.Lock()
	sessions := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		e.recheck(ctx, s)
		s.mu.Unlock()
	}
}

// recheck re-evaluates one quota-exceeded session. Caller holds s.mu.
func (e *Engine) recheck(ctx context.Context, s *session) {
	if s.state != StateLocked || s.reason != ReasonQuotaExceeded {
		return
	}

	now := e.clock.Now()
	app, err := e.getApp(ctx, s.appID)
	if errors.Is(err, ErrNotGated) {
		e.release(ctx, s, now)
		return
	}
	if err != nil {
		return
	}

	status, err := e.ledger.CheckDailyLimit(ctx, app.ID)
	if err != nil || !status.WithinLimit {
		return
	}
	e.logger.Info("quota available again", "app_id", s.appID)
	_ = e.intercept(ctx, s, app, now)
}

// Snapshot returns the current view of an app's session
func (e *Engine) Snapshot(appID string) Snapshot {
	s := e.lookup(appID)
	if s == nil {
		return Snapshot{AppID: appID, State: StateIdle, QuestionsNeeded: 1}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(e.clock.Now())
}

// Snapshots returns the view of every known session
func (e *Engine) Snapshots() []Snapshot {
	e.mu.Lock()
	sessions := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	now := e.clock.Now()
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		out = append(out, s.snapshot(now))
		s.mu.Unlock()
	}
	return out
}

// Close stops every timer and waits for in-flight question requests
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.cancel()

	e.mu.Lock()
	for _, s := range e.sessions {
		s.mu.Lock()
		s.cancelTimer()
		s.cancelFetch()
		s.mu.Unlock()
	}
	e.mu.Unlock()

	e.wg.Wait()
}

// intercept decides what a (re)entering app gets. Caller holds s.mu.
func (e *Engine) intercept(ctx context.Context, s *session, app *core.TargetApp, now time.Time) error {
	if s.state == StateIdle {
		s.startedAt = now
	}
	s.questionsNeeded = max(1, app.QuestionsPerUnlock)

	if now.Before(s.grantUntil) {
		e.enterUnlocked(ctx, s, s.grantUntil, now)
		return nil
	}
	if now.Before(s.cooldownUntil) {
		e.block(ctx, s.appID)
		e.enterCooldown(s, s.cooldownUntil, now)
		return nil
	}

	status, err := e.ledger.CheckDailyLimit(ctx, app.ID)
	if err != nil {
		e.failClosed(ctx, s, err, now)
		return err
	}

	s.bypassAvailable = status.EmergencyRemaining > 0
	s.question = nil
	s.state = StateLocked
	e.block(ctx, s.appID)

	if !status.WithinLimit {
		s.reason = ReasonQuotaExceeded
		e.publish(s, events.TypeLocked, now)
		e.logger.Info("daily limit reached, app stays locked",
			"app_id", app.ID,
			"bypass_available", s.bypassAvailable,
		)
		return nil
	}

	s.reason = ReasonFetchingQuestion
	e.publish(s, events.TypeLocked, now)
	e.fetchQuestion(s, app)
	return nil
}

// fetchQuestion asks the provider on its own goroutine. The session stays
// Locked until questionReady runs. Caller holds s.mu.
func (e *Engine) fetchQuestion(s *session, app *core.TargetApp) {
	s.cancelFetch()
	if e.closed.Load() {
		return
	}

	seq := s.fetchSeq
	appID := s.appID
	topic := e.pickTopic(app.SelectedTopics)
	difficulty := tierFor(app.DifficultyLevel, s.wrongCount)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		q, err := e.provider.GetQuestion(e.ctx, topic, difficulty)
		e.questionReady(appID, seq, q, err)
	}()
}

func (e *Engine) questionReady(appID string, seq uint64, q *core.Question, err error) {
	s := e.lookup(appID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetchSeq != seq || s.state != StateLocked || s.reason != ReasonFetchingQuestion {
		e.logger.Debug("discarding stale question", "app_id", appID)
		return
	}

	now := e.clock.Now()
	if err != nil {
		s.reason = ReasonNoQuestions
		e.publish(s, events.TypeNoQuestions, now)
		e.logger.Error("no question available", "app_id", appID, "error", err)
		return
	}

	s.question = q
	s.state = StateQuizActive
	s.reason = ReasonNone
	s.quizStartedAt = now
	s.answerDeadline = now.Add(e.cfg.AnswerTimeout)
	e.schedule(s, e.cfg.AnswerTimeout, e.answerTimedOut)
	e.publish(s, events.TypeQuestionReady, now)
}

// recordWrong handles a wrong answer or a time-up. Caller holds s.mu.
func (e *Engine) recordWrong(ctx context.Context, s *session, app *core.TargetApp, taken time.Duration, now time.Time) (Outcome, error) {
	q := s.question
	s.cancelTimer()
	s.question = nil
	s.correctInRow = 0
	s.wrongCount++

	attempt := core.Attempt{
		AppID:       s.appID,
		Correct:     false,
		TimeTakenMs: taken.Milliseconds(),
		AnsweredAt:  now,
	}
	if q != nil {
		attempt.QuestionID = q.ID
	}
	if _, err := e.ledger.RecordAttempt(ctx, attempt); err != nil {
		e.failClosed(ctx, s, err, now)
		return OutcomeLocked, err
	}

	if s.wrongCount >= e.cfg.CooldownThreshold {
		e.enterCooldown(s, now.Add(e.cfg.Cooldown), now)
		e.logger.Info("cooldown started", "app_id", s.appID, "wrong_count", s.wrongCount)
		return OutcomeCooldown, nil
	}

	s.state = StateLocked
	s.reason = ReasonFetchingQuestion
	e.publish(s, events.TypeAnswerWrong, now)
	e.fetchQuestion(s, app)
	return OutcomeWrong, nil
}

func (e *Engine) answerTimedOut(appID string, seq uint64) {
	s := e.lookup(appID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timerSeq != seq || s.state != StateQuizActive {
		return
	}
	s.timer = nil

	now := e.clock.Now()
	app, err := e.getApp(e.ctx, appID)
	if errors.Is(err, ErrNotGated) {
		e.release(e.ctx, s, now)
		return
	}
	if err != nil {
		e.failClosed(e.ctx, s, err, now)
		return
	}

	e.logger.Info("answer time expired", "app_id", appID)
	_, _ = e.recordWrong(e.ctx, s, app, e.cfg.AnswerTimeout, now)
}

func (e *Engine) cooldownExpired(appID string, seq uint64) {
	s := e.lookup(appID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timerSeq != seq || s.state != StateCooldown {
		return
	}
	s.timer = nil
	s.cooldownUntil = time.Time{}

	now := e.clock.Now()
	app, err := e.getApp(e.ctx, appID)
	if errors.Is(err, ErrNotGated) {
		e.release(e.ctx, s, now)
		return
	}
	if err != nil {
		e.failClosed(e.ctx, s, err, now)
		return
	}

	s.state = StateLocked
	_ = e.intercept(e.ctx, s, app, now)
}

func (e *Engine) unlockExpired(appID string, seq uint64) {
	s := e.lookup(appID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// An abandoned grant leaves the session Idle with its timer running
	if s.timerSeq != seq || (s.state != StateUnlocked && s.state != StateIdle) {
		return
	}
	s.timer = nil
	s.grantUntil = time.Time{}
	s.state = StateIdle
	s.reason = ReasonNone

	e.block(e.ctx, appID)
	e.publish(s, events.TypeRelocked, e.clock.Now())
	e.logger.Info("unlock expired, app blocked again", "app_id", appID)
}

// grant opens the unlock window. The ledger already charged it together with
// the use or bypass. Caller holds s.mu.
func (e *Engine) grant(ctx context.Context, s *session, app *core.TargetApp, now time.Time) {
	e.enterUnlocked(ctx, s, now.Add(app.UnlockDuration()), now)
}

func (e *Engine) enterUnlocked(ctx context.Context, s *session, until, now time.Time) {
	s.cancelFetch()
	s.question = nil
	s.state = StateUnlocked
	s.reason = ReasonNone
	s.grantUntil = until
	e.schedule(s, until.Sub(now), e.unlockExpired)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.EnforcerTimeout)
	defer cancel()
	if err := e.enforcer.AllowApp(ctx, s.appID, until); err != nil {
		e.logger.Error("failed to allow app", "app_id", s.appID, "error", err)
	}
	e.publishUntil(s, events.TypeUnlocked, now, until)
}

func (e *Engine) enterCooldown(s *session, until, now time.Time) {
	s.cancelFetch()
	s.question = nil
	s.state = StateCooldown
	s.reason = ReasonNone
	s.cooldownUntil = until
	e.schedule(s, until.Sub(now), e.cooldownExpired)
	e.publishUntil(s, events.TypeCooldownStarted, now, until)
}

// failClosed keeps the app blocked when the ledger cannot be trusted
func (e *Engine) failClosed(ctx context.Context, s *session, err error, now time.Time) {
	s.cancelTimer()
	s.cancelFetch()
	s.question = nil
	s.state = StateLocked
	s.reason = ReasonQuotaUnavailable

	e.block(ctx, s.appID)
	e.publish(s, events.TypeQuotaUnavailable, now)
	e.logger.Error("ledger unavailable, keeping app locked", "app_id", s.appID, "error", err)
}

// schedule replaces the session timer. Caller holds s.mu.
func (e *Engine) schedule(s *session, d time.Duration, fire func(appID string, seq uint64)) {
	s.cancelTimer()
	seq := s.timerSeq
	appID := s.appID
	s.timer = e.clock.AfterFunc(d, func() { fire(appID, seq) })
}

func (e *Engine) block(ctx context.Context, appID string) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.EnforcerTimeout)
	defer cancel()
	if err := e.enforcer.BlockApp(ctx, appID); err != nil {
		e.logger.Error("failed to block app", "app_id", appID, "error", err)
	}
}

// release resets the session to a fresh Idle one and clears its enforcement
// command. Caller holds s.mu.
func (e *Engine) release(ctx context.Context, s *session, now time.Time) {
	s.cancelTimer()
	s.cancelFetch()
	s.question = nil
	s.state = StateIdle
	s.reason = ReasonNone
	s.wrongCount = 0
	s.correctInRow = 0
	s.bypassAvailable = false
	s.grantUntil = time.Time{}
	s.cooldownUntil = time.Time{}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.EnforcerTimeout)
	defer cancel()
	if err := e.enforcer.ReleaseApp(ctx, s.appID); err != nil {
		e.logger.Error("failed to release app", "app_id", s.appID, "error", err)
	}
	e.publish(s, events.TypeIdle, now)
	e.logger.Info("app released", "app_id", s.appID)
}

func (e *Engine) publish(s *session, typ events.Type, now time.Time) {
	e.publishUntil(s, typ, now, time.Time{})
}

func (e *Engine) publishUntil(s *session, typ events.Type, now, until time.Time) {
	ev := events.Event{
		Type:   typ,
		AppID:  s.appID,
		State:  string(s.state),
		Reason: string(s.reason),
		Until:  until,
		At:     now,
	}
	if s.question != nil {
		ev.QuestionID = s.question.ID
		ev.RemainingSeconds = remainingSeconds(now, s.answerDeadline)
	}
	e.publisher.Publish(ev)
}

func (e *Engine) getApp(ctx context.Context, appID string) (*core.TargetApp, error) {
	app, err := e.apps.GetTargetApp(ctx, appID)
	if errors.Is(err, core.ErrAppNotFound) {
		return nil, ErrNotGated
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get target app: %w", core.ErrQuotaUnavailable, err)
	}
	if !app.Enabled {
		return nil, ErrNotGated
	}
	return app, nil
}

func (e *Engine) session(appID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[appID]
	if !ok {
		s = newSession(appID)
		e.sessions[appID] = s
	}
	return s
}

func (e *Engine) lookup(appID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[appID]
}

func randomTopic(topics []string) string {
	if len(topics) == 0 {
		return core.TopicGeneral
	}
	return topics[rand.IntN(len(topics))]
}

type noopEnforcer struct{}

func (noopEnforcer) BlockApp(context.Context, string) error            { return nil }
func (noopEnforcer) AllowApp(context.Context, string, time.Time) error { return nil }
func (noopEnforcer) ReleaseApp(context.Context, string) error          { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(events.Event) {}
