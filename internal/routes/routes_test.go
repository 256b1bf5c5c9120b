package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evc-wallet/evc_wallet/internal/config"
	"github.com/evc-wallet/evc_wallet/internal/httpx"
	"github.com/evc-wallet/evc_wallet/internal/logging"
	"github.com/evc-wallet/evc_wallet/internal/middleware"
)

const (
	adminPhone    = "+252690000000"
	adminPassword = "admin-password"
)

func newTestApp(t *testing.T, withRedis bool) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:           "EVCWallet",
		AppEnv:            "test",
		JWTSecret:         "routes-test-secret",
		AccessTokenTTL:    time.Hour,
		IdempotencyTTL:    time.Hour,
		TransferRateLimit: 50,
		DefaultCurrency:   "USD",
		AdminPhone:        adminPhone,
		AdminPassword:     adminPassword,
	}
	var cache *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		cache = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = cache.Close() })
	}

	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(logger, middleware.RequestIDFrom)})
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logger}))
	return app
}

type call struct {
	method string
	path   string
	token  string
	body   any
	key    string
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	if c.key != "" {
		req.Header.Set(middleware.IdempotencyKeyHeader, c.key)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	out["_replayed"] = resp.Header.Get("Idempotent-Replayed")
	return resp.StatusCode, out
}

func login(t *testing.T, app *fiber.App, phone, password string) string {
	t.Helper()
	status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/v1/auth/login", body: map[string]string{"phone": phone, "password": password}})
	require.Equal(t, fiber.StatusOK, status, body)
	return body["access_token"].(string)
}

func register(t *testing.T, app *fiber.App, phone string) (string, string) {
	t.Helper()
	status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/v1/users", body: map[string]string{
		"name": "Test User", "phone": phone, "password": "user-password",
	}})
	require.Equal(t, fiber.StatusCreated, status, body)
	user := body["user"].(map[string]any)
	w := body["wallet"].(map[string]any)
	assert.Equal(t, "0.00", w["evc_balance"])
	assert.Equal(t, "0.00", w["bank_balance"])
	assert.Equal(t, "user", user["role"])
	return user["id"].(string), login(t, app, phone, "user-password")
}

func seed(t *testing.T, app *fiber.App, adminToken, userID, account, delta string) {
	t.Helper()
	status, body := do(t, app, call{
		method: fiber.MethodPost,
		path:   "/api/v1/admin/wallets/" + userID + "/adjustments",
		token:  adminToken,
		body:   map[string]string{"account": account, "delta": delta, "reason": "opening balance"},
	})
	require.Equal(t, fiber.StatusOK, status, body)
}

func TestTransferLifecycle(t *testing.T) {
	app := newTestApp(t, true)
	adminToken := login(t, app, adminPhone, adminPassword)
	userID, token := register(t, app, "+252611000001")
	seed(t, app, adminToken, userID, "evc", "100")

	status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/v1/transactions/transfer", token: token,
		body: map[string]any{"direction": "evc_to_bank", "amount": "30"}})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "70.00", body["evc_balance"])
	assert.Equal(t, "30.00", body["bank_balance"])
	tx := body["transaction"].(map[string]any)
	assert.Equal(t, "completed", tx["status"])
	assert.Equal(t, "evc_to_bank", tx["type"])
	assert.Equal(t, "100.00", tx["balance_before"])
	assert.Equal(t, "70.00", tx["balance_after"])
	assert.Regexp(t, `^EVC2BANK-`, tx["reference"])

	status, body = do(t, app, call{method: fiber.MethodPost, path: "/api/v1/transactions/bank-to-evc", token: token,
		body: map[string]any{"amount": 50}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "insufficient_funds", body["code"])

	status, body = do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/balance/me", token: token})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "70.00", body["evc_balance"])
	assert.Equal(t, "30.00", body["bank_balance"])
	assert.Equal(t, "USD", body["currency"])

	status, body = do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/history/me", token: token})
	require.Equal(t, fiber.StatusOK, status, body)
	history := body["transactions"].([]any)
	require.Len(t, history, 3)
	assert.Equal(t, "failed", history[0].(map[string]any)["status"])
	assert.Equal(t, "bank_to_evc", history[0].(map[string]any)["type"])
	assert.Equal(t, "evc_to_bank", history[1].(map[string]any)["type"])
	assert.Equal(t, "wallet_adjustment", history[2].(map[string]any)["type"])
}

func TestRequestValidation(t *testing.T) {
	app := newTestApp(t, false)
	_, token := register(t, app, "+252611000002")

	cases := []map[string]any{
		{"direction": "sideways", "amount": "10"},
		{"direction": "evc_to_bank", "amount": "0"},
		{"direction": "evc_to_bank", "amount": "-5"},
		{"direction": "evc_to_bank", "amount": "10.001"},
		{"direction": "evc_to_bank", "amount": "1000000.01"},
		{"direction": "evc_to_bank"},
	}
	for _, tc := range cases {
		status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/v1/transactions/transfer", token: token, body: tc})
		assert.Equal(t, fiber.StatusBadRequest, status, "%v -> %v", tc, body)
		assert.Equal(t, "validation", body["code"], "%v", tc)
	}

	status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/v1/users", body: map[string]string{"name": "x", "phone": "12", "password": "short"}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "phone")
	assert.Contains(t, details, "password")
}

func TestAccessControl(t *testing.T) {
	app := newTestApp(t, false)
	adminToken := login(t, app, adminPhone, adminPassword)
	aliceID, aliceToken := register(t, app, "+252611000003")
	bobID, bobToken := register(t, app, "+252611000004")
	seed(t, app, adminToken, bobID, "bank", "25.50")

	status, _ := do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/balance/me"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/balance/" + bobID, token: aliceToken})
	assert.Equal(t, fiber.StatusForbidden, status, "users may only read their own balance")

	status, _ = do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/balance/" + aliceID, token: aliceToken})
	assert.Equal(t, fiber.StatusOK, status, "own id works like me")

	status, _ = do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/history", token: bobToken})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, call{method: fiber.MethodPost, path: "/api/v1/admin/wallets/" + aliceID + "/adjustments", token: bobToken,
		body: map[string]string{"account": "evc", "delta": "1000", "reason": "free money"}})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/balance/" + bobID, token: adminToken})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "25.50", body["bank_balance"])

	status, body = do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/history?limit=10", token: adminToken})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Len(t, body["transactions"].([]any), 1)
	assert.EqualValues(t, 10, body["limit"])

	status, _ = do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/balance/me", token: adminToken})
	assert.Equal(t, fiber.StatusNotFound, status, "administrators hold no wallet")

	status, body = do(t, app, call{method: fiber.MethodGet, path: "/api/v1/users/me", token: aliceToken})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, aliceID, body["id"])
}

func TestIdempotentTransfer(t *testing.T) {
	app := newTestApp(t, true)
	adminToken := login(t, app, adminPhone, adminPassword)
	userID, token := register(t, app, "+252611000005")
	seed(t, app, adminToken, userID, "evc", "40")

	transfer := call{method: fiber.MethodPost, path: "/api/v1/transactions/evc-to-bank", token: token,
		body: map[string]string{"amount": "15.25"}, key: "retry-1"}
	status, first := do(t, app, transfer)
	require.Equal(t, fiber.StatusOK, status, first)
	status, second := do(t, app, transfer)
	require.Equal(t, fiber.StatusOK, status, second)

	assert.Equal(t, "true", second["_replayed"])
	assert.Equal(t, first["transaction"], second["transaction"])

	_, balance := do(t, app, call{method: fiber.MethodGet, path: "/api/v1/transactions/balance/me", token: token})
	assert.Equal(t, "24.75", balance["evc_balance"])
	assert.Equal(t, "15.25", balance["bank_balance"])
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	app := newTestApp(t, false)
	register(t, app, "+252611000006")

	status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/v1/auth/login",
		body: map[string]string{"phone": "+252611000006", "password": "not-the-password"}})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["code"])
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, true)
	status, body := do(t, app, call{method: fiber.MethodGet, path: "/healthz"})
	require.Equal(t, fiber.StatusOK, status)
	checks := body["status"].(map[string]any)
	assert.Equal(t, "disabled", checks["postgres"])
	assert.Equal(t, "ok", checks["redis"])
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	app := fiber.New()
	err := Setup(app, Deps{Cfg: config.Config{AppEnv: "production"}, Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestAdminPathsRejectMalformedUserID(t *testing.T) {
	app := newTestApp(t, false)
	adminToken := login(t, app, adminPhone, adminPassword)

	for _, c := range []call{
		{method: fiber.MethodGet, path: "/api/v1/transactions/balance/not-a-uuid", token: adminToken},
		{method: fiber.MethodGet, path: "/api/v1/transactions/history/not-a-uuid", token: adminToken},
		{method: fiber.MethodPost, path: "/api/v1/admin/wallets/not-a-uuid/adjustments", token: adminToken,
			body: map[string]string{"account": "evc", "delta": "10", "reason": "correction"}},
	} {
		status, body := do(t, app, c)
		assert.Equal(t, fiber.StatusBadRequest, status, "%s %s -> %v", c.method, c.path, body)
		assert.Equal(t, "validation", body["code"], c.path)
	}
}
