// Package webhook provides an enforcement driver that forwards block and allow
// commands to an external parental-control service over HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quizgate/internal/drivers"
	"quizgate/internal/idgen"
)

const DriverName = "webhook"

// Actions sent to the remote service
const (
	ActionBlock   = "block"
	ActionAllow   = "allow"
	ActionRelease = "release"
)

// Config contains webhook configuration
type Config struct {
	URL     string // endpoint receiving actions
	APIKey  string // sent as x-api-key
	Timeout time.Duration
}

// Action is the JSON body posted for every command
type Action struct {
	ID     string    `json:"id"`
	Action string    `json:"action"`
	AppID  string    `json:"app_id"`
	Until  time.Time `json:"until,omitzero"`
	SentAt time.Time `json:"sent_at"`
}

// Driver implements drivers.Driver over HTTP
type Driver struct {
	config     Config
	httpClient *http.Client
}

// NewDriver creates a new webhook driver
func NewDriver(config Config) *Driver {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Driver{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the driver name
func (d *Driver) Name() string {
	return DriverName
}

// BlockApp asks the service to block the app
func (d *Driver) BlockApp(ctx context.Context, appID string) error {
	return d.send(ctx, Action{Action: ActionBlock, AppID: appID})
}

// AllowApp asks the service to allow the app until the given time
func (d *Driver) AllowApp(ctx context.Context, appID string, until time.Time) error {
	return d.send(ctx, Action{Action: ActionAllow, AppID: appID, Until: until})
}

// ReleaseApp tells the service the app is no longer gated
func (d *Driver) ReleaseApp(ctx context.Context, appID string) error {
	return d.send(ctx, Action{Action: ActionRelease, AppID: appID})
}

func (d *Driver) send(ctx context.Context, action Action) error {
	action.ID = idgen.New()
	action.SentAt = time.Now()

	req, err := d.newRequest(ctx, http.MethodPost, d.config.URL, action)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", action.Action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s failed with status %d: %s", action.Action, action.AppID, resp.StatusCode, string(bodyBytes))
	}

	return nil
}

// newRequest creates a new HTTP request with standard headers
func (d *Driver) newRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var bodyReader io.Reader

	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if d.config.APIKey != "" {
		req.Header.Set("x-api-key", d.config.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

var _ drivers.Driver = (*Driver)(nil)
