// Package passive provides a no-op enforcement driver. It logs block and
// allow commands and leaves enforcement to something outside the engine.
package passive

import (
	"context"
	"log/slog"
	"time"

	"quizgate/internal/drivers"
)

const DriverName = "passive"

// Driver implements drivers.Driver by logging only
type Driver struct {
	logger *slog.Logger
}

// NewDriver creates a new passive driver
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		logger: logger.With("driver", DriverName),
	}
}

// Name returns the driver name
func (d *Driver) Name() string {
	return DriverName
}

// BlockApp logs the block command
func (d *Driver) BlockApp(ctx context.Context, appID string) error {
	d.logger.Info("passive driver: app blocked", "app_id", appID)
	return nil
}

// AllowApp logs the allow command
func (d *Driver) AllowApp(ctx context.Context, appID string, until time.Time) error {
	d.logger.Info("passive driver: app allowed",
		"app_id", appID,
		"until", until,
	)
	return nil
}

// ReleaseApp logs the release command
func (d *Driver) ReleaseApp(ctx context.Context, appID string) error {
	d.logger.Info("passive driver: app released", "app_id", appID)
	return nil
}

var _ drivers.Driver = (*Driver)(nil)
