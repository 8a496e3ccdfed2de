package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/tessary/coref/internal/config"
	"github.com/tessary/coref/internal/extractor"
	"github.com/tessary/coref/internal/session"
	"github.com/tessary/coref/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Security: config.SecurityConfig{Mode: "development"},
		Limits:   config.LimitsConfig{RequestsPerSec: 1000, Burst: 1000},
	}
}

func startTestServer(t *testing.T, cfg *config.Config) string {
	t.Helper()

	mgr, err := session.NewManager(storage.NewMemoryStore(), extractor.New(), session.DefaultConfig())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		time.Sleep(50 * time.Millisecond)
	})

	addr, _, err := Start(ctx, cfg, mgr, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return addr
}

func TestServerHealthEndpoint(t *testing.T) {
	addr := startTestServer(t, testConfig())

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected security headers, got X-Content-Type-Options=%q", got)
	}
}

func TestServerTurnFlow(t *testing.T) {
	addr := startTestServer(t, testConfig())

	body, _ := json.Marshal(map[string]string{
		"user_message":      "show me pumps",
		"assistant_message": "1. ZF4 Pump\n2. ZF5 Pump",
	})
	resp, err := http.Post("http://"+addr+"/api/turn", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("turn request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, msg)
	}

	var result struct {
		SessionID string `json:"session_id"`
		Turn      int    `json:"turn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Turn != 1 || result.SessionID == "" {
		t.Errorf("unexpected turn result: %+v", result)
	}
}

func TestServerProductionAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{Mode: "production", APIToken: "sekrit"}
	addr := startTestServer(t, cfg)

	// Health stays open.
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected open health endpoint, got %d", resp.StatusCode)
	}

	// API routes require the token.
	body := bytes.NewReader([]byte(`{"user_message":"hello"}`))
	resp, err = http.Post("http://"+addr+"/api/turn", "application/json", body)
	if err != nil {
		t.Fatalf("turn request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, "http://"+addr+"/api/turn",
		bytes.NewReader([]byte(`{"user_message":"hello"}`)))
	req.Header.Set("Authorization", "Bearer sekrit")
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authorized request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", resp.StatusCode)
	}
}
