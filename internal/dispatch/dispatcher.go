// Package dispatch routes foreground-change events to the gatekeeper engine.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"quizgate/internal/gatekeeper"
)

// DefaultBuffer is the inbound channel capacity
const DefaultBuffer = 32

// ErrStopped is returned by Submit once the dispatcher has stopped
var ErrStopped = errors.New("dispatcher stopped")

// ForegroundEvent reports that an app came to the foreground
type ForegroundEvent struct {
	AppID string
	At    time.Time
}

// Engine is the part of the gatekeeper the dispatcher drives
type Engine interface {
	IsTarget(ctx context.Context, appID string) (bool, error)
	HandleForeground(ctx context.Context, appID string) (gatekeeper.Snapshot, error)
	Abandon(appID string)
}

// Dispatcher drains foreground events one at a time. The routing state
// (last app, active target) is only touched by the draining goroutine.
type Dispatcher struct {
	engine   Engine
	ownAppID string
	events   chan ForegroundEvent
	stopChan chan struct{}
	logger   *slog.Logger

	lastApp      string
	activeTarget string
}

// New creates a dispatcher. ownAppID is the quiz UI itself; bringing it to
// the foreground never abandons the app being quizzed.
func New(engine Engine, ownAppID string, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		engine:   engine,
		ownAppID: ownAppID,
		events:   make(chan ForegroundEvent, buffer),
		stopChan: make(chan struct{}),
		logger:   logger.With("component", "dispatcher"),
	}
}

// Submit queues an event. It blocks while the buffer is full.
func (d *Dispatcher) Submit(ctx context.Context, ev ForegroundEvent) error {
	select {
	case <-d.stopChan:
		return ErrStopped
	default:
	}

	select {
	case d.events <- ev:
		return nil
	case <-d.stopChan:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains events until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Dispatcher started")
	defer close(d.stopChan)

	for {
		select {
		case ev := <-d.events:
			d.Handle(ctx, ev)
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopped")
			return nil
		}
	}
}

// Handle routes a single event. Run calls it for every queued event; it is
// exported for callers that drive the dispatcher synchronously.
func (d *Dispatcher) Handle(ctx context.Context, ev ForegroundEvent) {
	if ev.AppID == "" {
		return
	}
	if ev.AppID == d.lastApp {
		d.logger.Debug("duplicate foreground event", "app_id", ev.AppID)
		return
	}
	d.lastApp = ev.AppID

	if ev.AppID == d.ownAppID {
		return
	}

	target, err := d.engine.IsTarget(ctx, ev.AppID)
	if err != nil {
		// Let the engine decide; it keeps the app blocked when storage is down
		d.logger.Error("Failed to check target app", "app_id", ev.AppID, "error", err)
		target = true
	}

	if !target {
		d.leaveTarget()
		return
	}

	if d.activeTarget != ev.AppID {
		d.leaveTarget()
	}
	d.activeTarget = ev.AppID

	snap, err := d.engine.HandleForeground(ctx, ev.AppID)
	switch {
	case errors.Is(err, gatekeeper.ErrNotGated):
		d.activeTarget = ""
		d.logger.Debug("app not gated", "app_id", ev.AppID)
	case err != nil:
		d.logger.Error("Failed to handle foreground app", "app_id", ev.AppID, "error", err)
	default:
		d.logger.Debug("target app intercepted",
			"app_id", ev.AppID,
			"state", snap.State,
			"reason", snap.Reason,
			"at", ev.At,
		)
	}
}

func (d *Dispatcher) leaveTarget() {
	if d.activeTarget == "" {
		return
	}
	d.engine.Abandon(d.activeTarget)
	d.activeTarget = ""
}
