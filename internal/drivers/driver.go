// Package drivers holds the enforcement drivers that carry block and allow
// commands from the gatekeeper to whatever actually stops an app.
package drivers

import (
	"context"
	"time"
)

// Driver defines the interface that all enforcement drivers must implement
type Driver interface {
	// Name returns the unique name of this driver (e.g., "passive", "agent")
	Name() string

	// BlockApp prevents the app from being used until it is allowed again
	BlockApp(ctx context.Context, appID string) error

	// AllowApp lets the app be used until the given time
	AllowApp(ctx context.Context, appID string, until time.Time) error

	// ReleaseApp forgets the app entirely; it is no longer gated
	ReleaseApp(ctx context.Context, appID string) error
}
