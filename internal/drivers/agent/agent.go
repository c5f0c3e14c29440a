// Package agent provides an enforcement driver for on-device agents. The
// driver keeps the latest command per app in memory; the agent polls it over
// the HTTP API and enforces locally.
package agent

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"quizgate/internal/clock"
	"quizgate/internal/drivers"
)

const DriverName = "agent"

// AppStatus is what an agent needs to enforce one app
type AppStatus struct {
	AppID      string    `json:"app_id"`
	Allowed    bool      `json:"allowed"`
	Until      time.Time `json:"until,omitzero"`
	ServerTime time.Time `json:"server_time"`
}

type command struct {
	allowed bool
	until   time.Time
	at      time.Time
}

// Driver implements drivers.Driver with an in-memory command table
type Driver struct {
	mu       sync.RWMutex
	commands map[string]command
	clock    clock.Clock
	logger   *slog.Logger
}

// NewDriver creates a new agent driver
func NewDriver(clk clock.Clock, logger *slog.Logger) *Driver {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		commands: make(map[string]command),
		clock:    clk,
		logger:   logger.With("driver", DriverName),
	}
}

// Name returns the driver name
func (d *Driver) Name() string {
	return DriverName
}

// BlockApp records a block command for the agent to pick up
func (d *Driver) BlockApp(ctx context.Context, appID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.commands[appID] = command{at: d.clock.Now()}
	d.logger.Debug("app blocked", "app_id", appID)
	return nil
}

// AllowApp records an allow command valid until the given time
func (d *Driver) AllowApp(ctx context.Context, appID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.commands[appID] = command{allowed: true, until: until, at: d.clock.Now()}
	d.logger.Debug("app allowed", "app_id", appID, "until", until)
	return nil
}

// ReleaseApp drops the app from the command table so agents stop enforcing it
func (d *Driver) ReleaseApp(ctx context.Context, appID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.commands, appID)
	d.logger.Debug("app released", "app_id", appID)
	return nil
}

// Status returns the enforcement status of an app. Apps without a command
// are allowed; an allow command past its deadline reads as blocked.
func (d *Driver) Status(appID string) AppStatus {
	d.mu.RLock()
	cmd, ok := d.commands[appID]
	d.mu.RUnlock()

	now := d.clock.Now()
	status := AppStatus{AppID: appID, Allowed: true, ServerTime: now}
	if !ok {
		return status
	}

	status.Allowed = cmd.allowed && now.Before(cmd.until)
	if status.Allowed {
		status.Until = cmd.until
	}
	return status
}

// Statuses returns the status of every app with a recorded command
func (d *Driver) Statuses() []AppStatus {
	d.mu.RLock()
	ids := make([]string, 0, len(d.commands))
	for id := range d.commands {
		ids = append(ids, id)
	}
	d.mu.RUnlock()

	sort.Strings(ids)
	out := make([]AppStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.Status(id))
	}
	return out
}

var _ drivers.Driver = (*Driver)(nil)
