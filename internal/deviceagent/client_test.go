package deviceagent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"quizgate/internal/drivers/agent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPClient_AppStatuses_Success(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	until := now.Add(15 * time.Minute)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET method, got %s", r.Method)
		}
		if r.URL.Path != "/v1/agent/apps" {
			t.Errorf("Expected path /v1/agent/apps, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Expected bearer token, got %s", r.Header.Get("Authorization"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]agent.AppStatus{
			{AppID: "com.game", Allowed: true, Until: until, ServerTime: now},
			{AppID: "com.video", Allowed: false, ServerTime: now},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())
	statuses, err := client.AppStatuses(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(statuses) != 2 {
		t.Fatalf("Expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Allowed || !statuses[0].Until.Equal(until) {
		t.Errorf("Unexpected first status: %+v", statuses[0])
	}
	if statuses[1].Allowed {
		t.Errorf("Expected com.video to be blocked")
	}
}

func TestHTTPClient_ReportForeground(t *testing.T) {
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	var got struct {
		AppID string    `json:"app_id"`
		At    time.Time `json:"at"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/agent/foreground" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %s", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())
	if err := client.ReportForeground(context.Background(), "com.game", at); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.AppID != "com.game" || !got.At.Equal(at) {
		t.Errorf("Unexpected payload: %+v", got)
	}
}

func TestHTTPClient_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "bad-token", testLogger())
	_, err := client.AppStatuses(context.Background())

	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestHTTPClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())
	_, err := client.AppStatuses(context.Background())

	if err == nil {
		t.Fatal("Expected error for server error")
	}
}

func TestHTTPClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())
	_, err := client.AppStatuses(context.Background())

	if err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewHTTPClient(server.URL, "test-token", testLogger())
	if _, err := client.AppStatuses(ctx); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}

func TestCommandPlatform_NoCommand(t *testing.T) {
	p := NewCommandPlatform("", "", "", testLogger())

	if _, err := p.ForegroundApp(); !errors.Is(err, ErrNoCommand) {
		t.Errorf("Expected ErrNoCommand, got %v", err)
	}
	if err := p.CloseApp("com.game"); !errors.Is(err, ErrNoCommand) {
		t.Errorf("Expected ErrNoCommand, got %v", err)
	}
	if err := p.ShowNotice("t", "m"); err != nil {
		t.Errorf("Expected notice without command to be logged only, got %v", err)
	}
}

func TestCommandPlatform_Substitution(t *testing.T) {
	p := NewCommandPlatform("echo com.game", "echo closing {app}", "", testLogger())

	fg, err := p.ForegroundApp()
	if err != nil {
		t.Skipf("echo not available: %v", err)
	}
	if fg != "com.game" {
		t.Errorf("Expected trimmed foreground app, got %q", fg)
	}

	out, err := p.run(p.CloseCmd, map[string]string{"{app}": "com.video"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != "closing com.video\n" {
		t.Errorf("Expected substituted argument, got %q", out)
	}
}
