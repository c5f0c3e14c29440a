package deviceagent

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"quizgate/internal/clock"
	"quizgate/internal/drivers/agent"
)

const (
	// closeDebounce prevents spamming close calls for the same app
	closeDebounce = 5 * time.Second

	noticeTitle   = "App locked"
	noticeMessage = "Answer a question in Quizgate to unlock"
)

// EnforcerState tracks the current enforcement state
type EnforcerState struct {
	LastForeground     string     // last app reported to the server
	Blocked            []string   // apps blocked as of the last successful poll
	Known              []string   // gated apps as of the last successful poll
	LastCloseApp       string     // app of the last close (debounce)
	LastCloseTime      *time.Time // when we last closed an app (debounce)
	LastSuccessfulPoll *time.Time // for the network error grace period
	NetworkErrorSince  *time.Time // when network errors started
}

// Enforcer runs the poll/enforce loop
type Enforcer struct {
	client   Client
	platform Platform
	clock    clock.Clock
	config   *Config
	logger   *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	state   EnforcerState
	blocked map[string]time.Time // app -> allowed-until; zero means blocked now
	known   map[string]struct{}
}

// NewEnforcer creates a new enforcer
func NewEnforcer(client Client, platform Platform, clk clock.Clock, config *Config, logger *slog.Logger) *Enforcer {
	return &Enforcer{
		client:   client,
		platform: platform,
		clock:    clk,
		config:   config,
		logger:   logger.With("component", "enforcer"),
		stopChan: make(chan struct{}),
		blocked:  make(map[string]time.Time),
		known:    make(map[string]struct{}),
	}
}

// Start begins the enforcement loop (blocking)
func (e *Enforcer) Start(ctx context.Context) {
	e.logger.Info("starting enforcement loop",
		"server", e.config.ServerURL,
		"poll_interval", e.config.PollInterval,
		"grace_period", e.config.GracePeriod,
	)

	ticker := e.clock.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("enforcement loop stopped (context cancelled)")
			return
		case <-e.stopChan:
			e.logger.Info("enforcement loop stopped")
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// Stop signals the enforcer to stop
func (e *Enforcer) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
}

// poll reports the foreground app, refreshes decisions and enforces them
func (e *Enforcer) poll(ctx context.Context) {
	fg, err := e.platform.ForegroundApp()
	if err != nil {
		e.logger.Warn("failed to read foreground app", "error", err)
		fg = ""
	}
	e.report(ctx, fg)

	statuses, err := e.client.AppStatuses(ctx)
	if err != nil {
		e.handleNetworkError(err, fg)
		return
	}
	e.processStatuses(statuses, fg)
}

func (e *Enforcer) report(ctx context.Context, fg string) {
	e.mu.Lock()
	last := e.state.LastForeground
	e.mu.Unlock()

	if fg == "" || fg == last {
		return
	}
	if err := e.client.ReportForeground(ctx, fg, e.clock.Now()); err != nil {
		e.logger.Warn("failed to report foreground app", "app_id", fg, "error", err)
		return
	}

	e.mu.Lock()
	e.state.LastForeground = fg
	e.mu.Unlock()
	e.logger.Debug("foreground app reported", "app_id", fg)
}

// processStatuses handles a successful poll result
func (e *Enforcer) processStatuses(statuses []agent.AppStatus, fg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.state.LastSuccessfulPoll = &now
	e.state.NetworkErrorSince = nil

	// the server's list is authoritative; released apps drop out of both
	clear(e.blocked)
	clear(e.known)
	for _, st := range statuses {
		e.known[st.AppID] = struct{}{}
		if !st.Allowed {
			e.blocked[st.AppID] = time.Time{}
		} else if !st.Until.IsZero() {
			// enforce expiry locally between polls, corrected for clock skew
			e.blocked[st.AppID] = now.Add(st.Until.Sub(st.ServerTime))
		}
	}
	e.refreshStateLists(now)

	if fg != "" && e.isBlocked(fg, now) {
		e.logger.Info("blocked app in foreground, closing", "app_id", fg)
		e.tryClose(fg, now)
	}
}

// handleNetworkError implements fail-closed with a grace period. After the
// grace period every gated app is treated as blocked.
func (e *Enforcer) handleNetworkError(err error, fg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.logger.Warn("network error polling app statuses", "error", err)

	if e.state.NetworkErrorSince == nil {
		e.state.NetworkErrorSince = &now
	}

	errorDuration := now.Sub(*e.state.NetworkErrorSince)
	if errorDuration < e.config.GracePeriod {
		if e.state.LastSuccessfulPoll != nil && now.Sub(*e.state.LastSuccessfulPoll) < e.config.GracePeriod {
			// keep enforcing the last known decisions
			if fg != "" && e.isBlocked(fg, now) {
				e.tryClose(fg, now)
			}
			return
		}
	}

	if fg == "" {
		return
	}
	if _, gated := e.known[fg]; gated {
		e.logger.Warn("grace period exceeded, closing gated app (fail-closed)",
			"app_id", fg,
			"error_duration", errorDuration,
			"grace_period", e.config.GracePeriod,
		)
		e.tryClose(fg, now)
	}
}

// isBlocked reports whether appID may not run at now. Caller holds mu.
func (e *Enforcer) isBlocked(appID string, now time.Time) bool {
	until, ok := e.blocked[appID]
	if !ok {
		return false
	}
	return until.IsZero() || !now.Before(until)
}

// tryClose closes appID with debouncing. Caller holds mu.
func (e *Enforcer) tryClose(appID string, now time.Time) {
	if e.state.LastCloseTime != nil && e.state.LastCloseApp == appID {
		if since := now.Sub(*e.state.LastCloseTime); since < closeDebounce {
			e.logger.Debug("close debounced", "app_id", appID, "time_since_last", since)
			return
		}
	}

	if err := e.platform.CloseApp(appID); err != nil {
		e.logger.Error("failed to close app", "app_id", appID, "error", err)
		return
	}
	e.state.LastCloseApp = appID
	e.state.LastCloseTime = &now
	// the app is gone, so a reopen must be reported again
	e.state.LastForeground = ""

	if err := e.platform.ShowNotice(noticeTitle, noticeMessage); err != nil {
		e.logger.Error("failed to show notice", "error", err)
	}
}

func (e *Enforcer) refreshStateLists(now time.Time) {
	e.state.Blocked = e.state.Blocked[:0]
	for app := range e.blocked {
		if e.isBlocked(app, now) {
			e.state.Blocked = append(e.state.Blocked, app)
		}
	}
	e.state.Known = e.state.Known[:0]
	for app := range e.known {
		e.state.Known = append(e.state.Known, app)
	}
	slices.Sort(e.state.Blocked)
	slices.Sort(e.state.Known)
}

// GetState returns a copy of the current state (for testing/debugging)
func (e *Enforcer) GetState() EnforcerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	st.Blocked = slices.Clone(e.state.Blocked)
	st.Known = slices.Clone(e.state.Known)
	return st
}
