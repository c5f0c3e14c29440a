package deviceagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"quizgate/internal/drivers/agent"
)

// ErrUnauthorized is returned when the server rejects the agent token
var ErrUnauthorized = errors.New("unauthorized: invalid agent token")

// Client talks to the quizgate agent API
type Client interface {
	// AppStatuses returns the allow/block decision for every known app
	AppStatuses(ctx context.Context) ([]agent.AppStatus, error)
	// ReportForeground tells the server which app came to the foreground
	ReportForeground(ctx context.Context, appID string, at time.Time) error
}

// HTTPClient implements Client over HTTP
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a new HTTP client for the agent API
func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With("component", "agent-client"),
	}
}

// AppStatuses retrieves the current decisions
func (c *HTTPClient) AppStatuses(ctx context.Context) ([]agent.AppStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/agent/apps", nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var statuses []agent.AppStatus
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Debug("app statuses received", "apps", len(statuses))
	return statuses, nil
}

// ReportForeground posts a foreground event
func (c *HTTPClient) ReportForeground(ctx context.Context, appID string, at time.Time) error {
	payload := map[string]any{"app_id": appID, "at": at}
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/agent/foreground", payload)
	if err != nil {
		return err
	}

	_, err = c.do(req, http.StatusAccepted)
	return err
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *HTTPClient) do(req *http.Request, want int) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != want {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

var _ Client = (*HTTPClient)(nil)
