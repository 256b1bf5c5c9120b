package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/evc-wallet/evc_wallet/internal/config"
	"github.com/evc-wallet/evc_wallet/internal/httpx"
	"github.com/evc-wallet/evc_wallet/internal/logging"
)

func TestNewServesPingAndRendersErrors(t *testing.T) {
	srv, err := New(config.Config{AppName: "EVCWallet", AppEnv: "test", JWTSecret: "server-test"}, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK || resp.Header.Get("X-Request-ID") != "req-123" {
		t.Fatalf("unexpected ping response: %d %q", resp.StatusCode, resp.Header.Get("X-Request-ID"))
	}

	req = httptest.NewRequest(fiber.MethodGet, "/api/v1/transactions/balance/me", nil)
	req.Header.Set("X-Request-ID", "req-456")
	resp, err = srv.App().Test(req)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body httpx.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RequestID != "req-456" || body.Error == "" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestNewRequiresBackendsInProduction(t *testing.T) {
	if _, err := New(config.Config{AppEnv: "production"}, nil, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error without database and redis")
	}
}
