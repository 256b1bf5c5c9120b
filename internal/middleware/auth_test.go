package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/evc-wallet/evc_wallet/internal/auth"
	"github.com/evc-wallet/evc_wallet/internal/logging"
)

var testSecret = []byte("test-secret")

func token(t *testing.T, secret []byte, sub, role string, ttl time.Duration) string {
	t.Helper()
	signed, err := auth.Sign(secret, auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func authApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestID())
	app.Use(JWTAuth(testSecret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"actor": ActorID(c), "role": Role(c), "request_id": RequestIDFrom(c)})
	})
	app.Get("/admin", RequireRole(RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, bearer string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestJWTAuth(t *testing.T) {
	app := authApp()
	user := uuid.NewString()

	cases := []struct {
		name   string
		bearer string
		status int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"garbage", "not-a-token", fiber.StatusUnauthorized},
		{"wrong secret", token(t, []byte("other"), user, RoleUser, time.Hour), fiber.StatusUnauthorized},
		{"expired", token(t, testSecret, user, RoleUser, -time.Minute), fiber.StatusUnauthorized},
		{"bad subject", token(t, testSecret, "bob", RoleUser, time.Hour), fiber.StatusUnauthorized},
		{"valid", token(t, testSecret, user, RoleUser, time.Hour), fiber.StatusOK},
	}
	for _, tc := range cases {
		if got := get(t, app, "/whoami", tc.bearer); got != tc.status {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.status, got)
		}
	}
}

func TestJWTAuthRejectsNoneAlgorithm(t *testing.T) {
	app := authApp()
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if got := get(t, app, "/whoami", unsigned); got != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
}

func TestRequireRole(t *testing.T) {
	app := authApp()
	user := uuid.NewString()

	if got := get(t, app, "/admin", token(t, testSecret, user, RoleUser, time.Hour)); got != fiber.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", got)
	}
	if got := get(t, app, "/admin", token(t, testSecret, user, "superuser", time.Hour)); got != fiber.StatusForbidden {
		t.Fatalf("unknown roles must be treated as user, got %d", got)
	}
	if got := get(t, app, "/admin", token(t, testSecret, user, RoleAdmin, time.Hour)); got != fiber.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", got)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(requestIDHeader) != "trace-123" {
		t.Fatalf("expected request id to be echoed, got %q", resp.Header.Get(requestIDHeader))
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if _, err := uuid.Parse(resp.Header.Get(requestIDHeader)); err != nil {
		t.Fatalf("expected generated uuid, got %q", resp.Header.Get(requestIDHeader))
	}
}

func TestTransferRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Use(JWTAuth(testSecret))
	app.Post("/transfer", TransferRateLimit(cache, 3, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	alice := token(t, testSecret, uuid.NewString(), RoleUser, time.Hour)
	bob := token(t, testSecret, uuid.NewString(), RoleUser, time.Hour)

	send := func(bearer string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/transfer", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	for i := 0; i < 3; i++ {
		if got := send(alice); got != fiber.StatusCreated {
			t.Fatalf("request %d: expected 201 got %d", i, got)
		}
	}
	if got := send(alice); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
	if got := send(bob); got != fiber.StatusCreated {
		t.Fatalf("limit must be per actor, got %d", got)
	}
}

func TestTransferRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/transfer", TransferRateLimit(nil, 1, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/transfer", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("expected pass-through, got %d", resp.StatusCode)
		}
	}
}
